// Package suite runs UI tests concurrently, one browser session per worker,
// and records every outcome in the shared report.
package suite

import (
	"context"
	"errors"
	"fmt"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/interaction"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
)

// ErrSkip is matched by the error returned from Skip.
var ErrSkip = errors.New("test skipped")

// SkipError marks a test as skipped rather than failed.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

func (e *SkipError) Is(target error) bool { return target == ErrSkip }

// Skip returns an error that records the running test as skipped.
func Skip(reason string) error {
	return &SkipError{Reason: reason}
}

func skipReason(err error) string {
	var se *SkipError
	if errors.As(err, &se) {
		return se.Reason
	}
	return err.Error()
}

// Test is a named test body.
type Test struct {
	Name        string
	Description string
	Run         func(ctx context.Context, t *T) error
}

// T gives a test body its worker's session, a Page over it and access to
// the worker's report entry.
type T struct {
	Worker  session.WorkerID
	Session *session.Session
	Page    *interaction.Page
	Config  *config.Config
	AppURL  string

	reports *report.Manager
}

// Log adds an info entry to the test's report.
func (t *T) Log(msg string) error {
	return t.reports.LogInfo(t.Worker, msg)
}

// Logf is Log with formatting.
func (t *T) Logf(format string, args ...interface{}) error {
	return t.Log(fmt.Sprintf(format, args...))
}

// Warn adds a warning entry to the test's report.
func (t *T) Warn(msg string) error {
	return t.reports.LogWarning(t.Worker, msg)
}

// Screenshot captures the page under name and attaches it to the report.
func (t *T) Screenshot(ctx context.Context, name string) (string, error) {
	path, err := t.Page.ScreenshotAs(ctx, name)
	if err != nil {
		return "", err
	}
	return path, t.reports.AddScreenshot(t.Worker, path)
}
