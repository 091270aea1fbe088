package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/testutil"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		in   report.Status
		want Status
	}{
		{report.StatusPass, StatusPassed},
		{report.StatusFail, StatusFailed},
		{report.StatusSkip, StatusSkipped},
		{report.StatusWarning, StatusWarning},
		{report.StatusInfo, StatusInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			got := StatusOf(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsValid())
		})
	}
	assert.False(t, Status("pending").IsValid())
}

func TestResult_Validate(t *testing.T) {
	runID := uuid.New()
	tests := []struct {
		name   string
		result Result
		want   error
	}{
		{name: "valid", result: Result{RunID: runID, TestName: "login", Status: StatusPassed}},
		{name: "missing run", result: Result{TestName: "login", Status: StatusPassed}, want: ErrInvalidRunID},
		{name: "missing name", result: Result{RunID: runID, Status: StatusPassed}, want: ErrInvalidTestName},
		{name: "bad status", result: Result{RunID: runID, TestName: "login", Status: "running"}, want: ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.result.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResultsFrom(t *testing.T) {
	m, err := report.NewManager(t.TempDir(), report.Metadata{}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	w := session.WorkerID("w1")
	_, err = m.CreateTest(w, "checkout", "")
	require.NoError(t, err)
	require.NoError(t, m.LogInfo(w, "Initializing WebDriver: chrome"))
	require.NoError(t, m.LogFail(w, "Test Failed: total mismatch"))
	m.RemoveTest(w)

	runID := uuid.New()
	results := ResultsFrom(runID, m.Tests())
	require.Len(t, results, 1)
	assert.Equal(t, runID, results[0].RunID)
	assert.Equal(t, "checkout", results[0].TestName)
	assert.Equal(t, "w1", results[0].Worker)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, "Test Failed: total mismatch", results[0].Message)
	assert.NotNil(t, results[0].EndedAt)
	assert.Equal(t, 1, results[0].Attempt)
	assert.False(t, results[0].Retried)
	assert.NoError(t, results[0].Validate())
}

func TestResultsFrom_Retries(t *testing.T) {
	m, err := report.NewManager(t.TempDir(), report.Metadata{}, nil)
	require.NoError(t, err)
	require.NoError(t, m.Init())

	w := session.WorkerID("w1")
	_, err = m.CreateTest(w, "checkout", "")
	require.NoError(t, err)
	require.NoError(t, m.LogFail(w, "Test Failed: total mismatch"))
	m.RemoveTest(w)
	_, err = m.CreateRetry(w, "checkout", "", 2)
	require.NoError(t, err)
	require.NoError(t, m.LogPass(w, "Test Passed Successfully"))
	m.RemoveTest(w)

	results := ResultsFrom(uuid.New(), m.Tests())
	require.Len(t, results, 2)
	assert.Equal(t, "checkout", results[1].TestName)
	assert.Equal(t, 2, results[1].Attempt)
	assert.True(t, results[0].Retried)
	assert.False(t, results[1].Retried)

	var run Run
	run.Tally(results)
	assert.Equal(t, 1, run.Total)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 0, run.Failed)
}

func TestSQLStore_Record(t *testing.T) {
	_, store, log := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

	t.Run("records run and results", func(t *testing.T) {
		run := &Run{Browser: "chrome", Environment: "QA", StartedAt: start}
		results := []*Result{
			createResult("login", StatusPassed, start),
			createResult("checkout", StatusFailed, start.Add(time.Second)),
			createResult("search", StatusSkipped, start.Add(2*time.Second)),
		}
		require.NoError(t, store.Record(ctx, run, results))
		assert.NotEqual(t, uuid.Nil, run.ID)
		assert.Equal(t, 3, run.Total)
		assert.Equal(t, 1, run.Passed)
		assert.Equal(t, 1, run.Failed)
		assert.Equal(t, 1, run.Skipped)

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, "chrome", got.Browser)
		assert.Equal(t, 3, got.Total)

		listed, err := store.ListResults(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, listed, 3)
		assert.Equal(t, "login", listed[0].TestName)
		assert.Equal(t, "search", listed[2].TestName)
		assert.NotEmpty(t, log.Messages("info"))
	})

	t.Run("run without results", func(t *testing.T) {
		run := &Run{StartedAt: start}
		require.NoError(t, store.Record(ctx, run, nil))
		listed, err := store.ListResults(ctx, run.ID)
		require.NoError(t, err)
		assert.Empty(t, listed)
	})

	t.Run("retried attempts are stored but not counted", func(t *testing.T) {
		run := &Run{StartedAt: start}
		first := createResult("checkout", StatusFailed, start)
		first.Retried = true
		second := createResult("checkout", StatusPassed, start.Add(time.Second))
		second.Attempt = 2
		require.NoError(t, store.Record(ctx, run, []*Result{first, second}))
		assert.Equal(t, 1, run.Total)
		assert.Equal(t, 1, run.Passed)
		assert.Equal(t, 0, run.Failed)

		listed, err := store.ListResults(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, 1, listed[0].Attempt)
		assert.True(t, listed[0].Retried)
		assert.Equal(t, 2, listed[1].Attempt)
		assert.False(t, listed[1].Retried)
	})

	t.Run("invalid result is rejected", func(t *testing.T) {
		run := &Run{StartedAt: start}
		err := store.Record(ctx, run, []*Result{createResult("", StatusPassed, start)})
		assert.ErrorIs(t, err, ErrInvalidTestName)

		_, err = store.GetRun(ctx, run.ID)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestSQLStore_ListRuns(t *testing.T) {
	_, store, _ := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, &Run{StartedAt: start.Add(time.Duration(i) * time.Hour)}, nil))
	}

	runs, err := store.ListRuns(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	runs, err = store.ListRuns(ctx, 10, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestSQLStore_ListByTest(t *testing.T) {
	_, store, _ := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		at := start.Add(time.Duration(i) * time.Hour)
		status := StatusPassed
		if i == 2 {
			status = StatusFailed
		}
		require.NoError(t, store.Record(ctx, &Run{StartedAt: at}, []*Result{
			createResult("login", status, at),
			createResult("search", StatusPassed, at),
		}))
	}

	results, err := store.ListByTest(ctx, "login", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, "login", results[1].TestName)
}

func TestMigrate(t *testing.T) {
	db := testutil.SetupTestDB(t)

	require.NoError(t, Migrate(db, "SQLite3"))
	require.NoError(t, Migrate(db, DriverSQLite), "no change is not an error")

	v, dirty, err := Version(db, DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
	assert.False(t, dirty)
	assert.True(t, db.Migrator().HasTable(&Result{}))
	assert.True(t, db.Migrator().HasColumn(&Result{}, "Attempt"))

	require.NoError(t, Rollback(db, DriverSQLite))
	assert.True(t, db.Migrator().HasTable(&Result{}))
	assert.False(t, db.Migrator().HasColumn(&Result{}, "Attempt"))
	assert.False(t, db.Migrator().HasColumn(&Result{}, "Retried"))

	require.NoError(t, Rollback(db, DriverSQLite))
	assert.False(t, db.Migrator().HasTable(&Result{}))
	assert.True(t, db.Migrator().HasTable(&Run{}))

	assert.ErrorIs(t, Migrate(db, "postgres"), ErrUnsupportedDriver)
}

func TestOpenAndConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.New(map[string]string{}))
	assert.Equal(t, DriverSQLite, cfg.Driver)

	_, err := Open(Config{Driver: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	db, err := Open(Config{Driver: DriverSQLite, DSN: t.TempDir() + "/nested/history.db"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, Migrate(db, DriverSQLite))
	assert.True(t, db.Migrator().HasTable(&Run{}))
}

func TestSQLStore_GetRunAndResults(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	testutil.AutoMigrate(t, db, &Run{}, &Result{})
	store := NewSQLStore(db, logger.NewTestLogger())

	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	run := &Run{ID: uuid.New(), Application: "Shop", StartedAt: start}
	second := createResult("checkout", StatusFailed, start.Add(time.Minute))
	first := createResult("login", StatusPassed, start)
	second.RunID, first.RunID = run.ID, run.ID
	testutil.CreateFixtures(t, db, run, second, first)

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shop", got.Application)

	results, err := store.ListResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "login", results[0].TestName)
	assert.Equal(t, "checkout", results[1].TestName)

	_, err = store.GetRun(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}
