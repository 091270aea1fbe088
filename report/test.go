package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
)

// Entry is one timestamped log line of a test.
type Entry struct {
	Time    time.Time
	Status  Status
	Message string
}

// TestContext is the report node of one test. It is written by the worker
// bound to it and read when the report is flushed.
type TestContext struct {
	ID          uuid.UUID
	Name        string
	Description string
	Worker      session.WorkerID
	// Attempt is 1 for the first run of a test and counts up on retries.
	Attempt int

	mu          sync.Mutex
	retried     bool
	entries     []Entry
	status      Status
	screenshots []string
	started     time.Time
	ended       time.Time
}

func (t *TestContext) log(at time.Time, status Status, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Time: at, Status: status, Message: msg})
	if status > t.status {
		t.status = status
	}
}

// DisplayName is the name shown in the report, labelled with the retry
// number for attempts after the first.
func (t *TestContext) DisplayName() string {
	if t.Attempt > 1 {
		return fmt.Sprintf("%s (retry %d)", t.Name, t.Attempt-1)
	}
	return t.Name
}

// Retried reports whether a later attempt of the same test replaced this
// one. Retried attempts are kept in the report but not counted.
func (t *TestContext) Retried() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retried
}

func (t *TestContext) markRetried() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retried = true
}

func (t *TestContext) attach(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screenshots = append(t.screenshots, path)
}

func (t *TestContext) finish(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended.IsZero() {
		t.ended = at
	}
}

// Status returns the most severe status logged so far.
func (t *TestContext) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Entries returns a copy of the log entries in order.
func (t *TestContext) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Screenshots returns the attached screenshot paths.
func (t *TestContext) Screenshots() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.screenshots...)
}

// Started returns when the test was created.
func (t *TestContext) Started() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Ended returns when the test was removed, or the zero time.
func (t *TestContext) Ended() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// LastMessage returns the message of the most recent entry with the
// test's final status.
func (t *TestContext) LastMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Status == t.status {
			return t.entries[i].Message
		}
	}
	return ""
}
