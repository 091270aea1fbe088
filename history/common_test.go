package history

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/testutil"
)

// setupTestStore creates a migrated test database and history store.
func setupTestStore(t *testing.T) (*gorm.DB, Store, *logger.TestLogger) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	if err := Migrate(db, DriverSQLite); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	log := logger.NewTestLogger()
	return db, NewSQLStore(db, log), log
}

// createResult creates a result with default values.
func createResult(name string, status Status, started time.Time) *Result {
	return &Result{
		ID:        uuid.New(),
		TestName:  name,
		Worker:    "worker-1",
		Status:    status,
		Message:   string(status),
		StartedAt: started,
	}
}
