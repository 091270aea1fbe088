package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
)

// SQLStore implements the Store interface using GORM.
type SQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewSQLStore creates a new GORM-backed history store.
func NewSQLStore(db *gorm.DB, log logger.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		logger: log,
	}
}

// Record saves a run and its results in one transaction.
func (s *SQLStore) Record(ctx context.Context, run *Run, results []*Result) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	for _, res := range results {
		res.RunID = run.ID
		if err := res.Validate(); err != nil {
			return err
		}
	}
	run.Tally(results)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}
		return tx.Create(results).Error
	})
	if err != nil {
		s.logger.Error(ctx, "failed to record run", map[string]interface{}{
			"error":  err.Error(),
			"run_id": run.ID,
		})
		return err
	}

	s.logger.Info(ctx, "run recorded", map[string]interface{}{
		"run_id": run.ID,
		"total":  run.Total,
		"failed": run.Failed,
	})
	return nil
}

// GetRun retrieves a run by its ID.
func (s *SQLStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	var run Run
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		s.logger.Error(ctx, "failed to get run by ID", map[string]interface{}{
			"error":  err.Error(),
			"run_id": id,
		})
		return nil, err
	}

	return &run, nil
}

// ListRuns retrieves a paginated list of runs, newest first.
func (s *SQLStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	var runs []*Run
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list runs", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return runs, nil
}

// ListResults retrieves the results of a run in start order.
func (s *SQLStore) ListResults(ctx context.Context, runID uuid.UUID) ([]*Result, error) {
	var results []*Result
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("started_at ASC").
		Find(&results).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list results", map[string]interface{}{
			"error":  err.Error(),
			"run_id": runID,
		})
		return nil, err
	}

	return results, nil
}

// ListByTest retrieves the most recent results of a test across runs.
func (s *SQLStore) ListByTest(ctx context.Context, testName string, limit int) ([]*Result, error) {
	var results []*Result
	err := s.db.WithContext(ctx).
		Where("test_name = ?", testName).
		Order("started_at DESC").
		Limit(limit).
		Find(&results).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list results by test", map[string]interface{}{
			"error":     err.Error(),
			"test_name": testName,
		})
		return nil, err
	}

	return results, nil
}
