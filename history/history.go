// Package history persists the outcome of every run so results can be
// compared across runs.
package history

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
)

var (
	// ErrRunNotFound is returned when a run is not found.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidRunID is returned when a result has no run id.
	ErrInvalidRunID = errors.New("run_id is required")

	// ErrInvalidTestName is returned when a result has no test name.
	ErrInvalidTestName = errors.New("test_name is required")

	// ErrInvalidStatus is returned when status is invalid.
	ErrInvalidStatus = errors.New("invalid status")
)

// Status is the persisted outcome of a test.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusWarning Status = "warning"
	StatusInfo    Status = "info"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped, StatusWarning, StatusInfo:
		return true
	default:
		return false
	}
}

// StatusOf maps a report status onto the persisted status.
func StatusOf(s report.Status) Status {
	switch s {
	case report.StatusPass:
		return StatusPassed
	case report.StatusFail:
		return StatusFailed
	case report.StatusSkip:
		return StatusSkipped
	case report.StatusWarning:
		return StatusWarning
	default:
		return StatusInfo
	}
}

// Run is one execution of the suite.
type Run struct {
	ID          uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Application string    `json:"application" gorm:"type:varchar(255)"`
	Environment string    `json:"environment" gorm:"type:varchar(64)"`
	Browser     string    `json:"browser" gorm:"type:varchar(32)"`
	ReportPath  string    `json:"report_path" gorm:"type:varchar(1024)"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	StartedAt   time.Time `json:"started_at" gorm:"index:idx_runs_started_at"`
	EndedAt     time.Time `json:"ended_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating a new run
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Tally fills the counters from results. Attempts replaced by a retry are
// not counted.
func (r *Run) Tally(results []*Result) {
	r.Total, r.Passed, r.Failed, r.Skipped = 0, 0, 0, 0
	for _, res := range results {
		if res.Retried {
			continue
		}
		r.Total++
		switch res.Status {
		case StatusPassed:
			r.Passed++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}

// Result is the outcome of one test in a run.
type Result struct {
	ID         uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	RunID      uuid.UUID  `json:"run_id" gorm:"type:char(36);not null;index:idx_results_run_id"`
	TestName   string     `json:"test_name" gorm:"type:varchar(255);not null;index:idx_results_test_name"`
	Worker     string     `json:"worker" gorm:"type:varchar(64)"`
	Attempt    int        `json:"attempt" gorm:"not null;default:1"`
	Retried    bool       `json:"retried" gorm:"not null;default:false"`
	Status     Status     `json:"status" gorm:"type:varchar(20);not null"`
	Message    string     `json:"message" gorm:"type:text"`
	Screenshot string     `json:"screenshot,omitempty" gorm:"type:varchar(1024)"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// BeforeCreate hook to generate UUID before creating a new result
func (r *Result) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Validate checks if the result has valid required fields.
func (r *Result) Validate() error {
	if r.RunID == uuid.Nil {
		return ErrInvalidRunID
	}
	if r.TestName == "" {
		return ErrInvalidTestName
	}
	if !r.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// ResultsFrom converts the report's tests into results of run.
func ResultsFrom(runID uuid.UUID, tests []*report.TestContext) []*Result {
	results := make([]*Result, 0, len(tests))
	for _, t := range tests {
		res := &Result{
			ID:        t.ID,
			RunID:     runID,
			TestName:  t.Name,
			Worker:    string(t.Worker),
			Attempt:   t.Attempt,
			Retried:   t.Retried(),
			Status:    StatusOf(t.Status()),
			Message:   t.LastMessage(),
			StartedAt: t.Started(),
		}
		if end := t.Ended(); !end.IsZero() {
			res.EndedAt = &end
		}
		if shots := t.Screenshots(); len(shots) > 0 {
			res.Screenshot = shots[len(shots)-1]
		}
		results = append(results, res)
	}
	return results
}
