package report

import (
	"errors"
	"fmt"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
)

// ErrReportUsage is matched by every UsageError.
var ErrReportUsage = errors.New("report usage error")

// UsageError reports a call made in the wrong order, such as logging for a
// worker that has no bound test.
type UsageError struct {
	Op     string
	Worker session.WorkerID
	Reason string
}

func (e *UsageError) Error() string {
	if e.Worker == "" {
		return fmt.Sprintf("report: %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("report: %s for worker %s: %s", e.Op, e.Worker, e.Reason)
}

func (e *UsageError) Is(target error) bool { return target == ErrReportUsage }
