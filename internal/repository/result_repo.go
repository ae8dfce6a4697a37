package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/jantenpas/llm-eval-studio/internal/models"
)

// ResultRepository exposes persistence helpers for graded results.
type ResultRepository interface {
	Create(ctx context.Context, result *models.Result) error
	ListByRun(ctx context.Context, runID string) ([]models.Result, error)
}

// NewResultRepository constructs a result repository.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

type resultRepository struct {
	db *gorm.DB
}

func (r *resultRepository) Create(ctx context.Context, result *models.Result) error {
	return r.db.WithContext(ctx).Create(result).Error
}

// ListByRun returns the run's results in insertion order.
func (r *resultRepository) ListByRun(ctx context.Context, runID string) ([]models.Result, error) {
	var results []models.Result
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at").
		Find(&results).Error
	return results, err
}
