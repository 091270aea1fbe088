package history

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the interface for run history persistence operations.
type Store interface {
	// Record saves a run and its results in one transaction.
	Record(ctx context.Context, run *Run, results []*Result) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)

	// ListRuns retrieves a paginated list of runs, newest first.
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)

	// ListResults retrieves the results of a run in start order.
	ListResults(ctx context.Context, runID uuid.UUID) ([]*Result, error)

	// ListByTest retrieves the most recent results of a test across runs.
	ListByTest(ctx context.Context, testName string, limit int) ([]*Result, error)
}
