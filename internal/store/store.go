package store

import (
	"context"

	"github.com/convotest/convotest/internal/models"
)

// RunStore persists run progress and per-question results. Results append
// in completion order; ListResults with a skip offset supports tailing a
// live run.
type RunStore interface {
	SaveResult(ctx context.Context, runID string, result models.TestResult) error
	UpdateProgress(ctx context.Context, progress models.RunProgress) error
	GetProgress(ctx context.Context, runID string) (models.RunProgress, error)
	ListResults(ctx context.Context, runID string, skip int) ([]models.TestResult, error)
}
