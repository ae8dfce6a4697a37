package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jantenpas/llm-eval-studio/internal/models"
)

// snapshot is the durable JSON document written after every run.
type snapshot struct {
	Run     models.Run      `json:"run"`
	Results []models.Result `json:"results"`
}

// SnapshotFileName derives the deterministic snapshot name from the run's
// display name (spaces become underscores) and its id.
func SnapshotFileName(run models.Run) string {
	return fmt.Sprintf("%s_%s.json", strings.ReplaceAll(run.Name, " ", "_"), run.ID)
}

// WriteSnapshot persists the run and its graded results to the results
// directory, creating the directory on demand, and returns the written
// path. The document carries the results even when the run failed.
func WriteSnapshot(dir string, run models.Run, results []models.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create results dir: %w", err)
	}

	if results == nil {
		results = []models.Result{}
	}

	payload, err := json.MarshalIndent(snapshot{Run: run, Results: results}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	path := filepath.Join(dir, SnapshotFileName(run))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}
