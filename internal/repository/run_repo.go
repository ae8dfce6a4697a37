package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jantenpas/llm-eval-studio/internal/models"
)

// RunListRow is one row of the run index: run fields joined with aggregates
// over its results. AvgScore is nil for runs without results.
type RunListRow struct {
	ID          string
	Name        string
	Status      models.RunStatus
	CreatedAt   time.Time
	ResultCount int64
	AvgScore    *float64
}

// RunRepository exposes persistence helpers for evaluation runs.
type RunRepository interface {
	Create(ctx context.Context, run *models.Run) error
	UpdateStatus(ctx context.Context, id string, status models.RunStatus) error
	GetByID(ctx context.Context, id string) (models.Run, error)
	ListWithStats(ctx context.Context) ([]RunListRow, error)
}

// NewRunRepository constructs a run repository.
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

type runRepository struct {
	db *gorm.DB
}

func (r *runRepository) Create(ctx context.Context, run *models.Run) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepository) UpdateStatus(ctx context.Context, id string, status models.RunStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Run{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *runRepository) GetByID(ctx context.Context, id string) (models.Run, error) {
	var run models.Run
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if err != nil {
		return models.Run{}, err
	}
	return run, nil
}

func (r *runRepository) ListWithStats(ctx context.Context) ([]RunListRow, error) {
	var rows []RunListRow
	err := r.db.WithContext(ctx).
		Model(&models.Run{}).
		Select("runs.id, runs.name, runs.status, runs.created_at, COUNT(results.id) AS result_count, AVG(results.score) AS avg_score").
		Joins("LEFT JOIN results ON results.run_id = runs.id").
		Group("runs.id, runs.name, runs.status, runs.created_at").
		Order("runs.created_at DESC").
		Scan(&rows).Error
	return rows, err
}
