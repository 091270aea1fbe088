package interaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/browser"
)

var (
	// ErrLocatorTimeout is matched by every LocatorTimeoutError.
	ErrLocatorTimeout = errors.New("locator timeout")

	// ErrNoScreenshotStore is returned when screenshots are requested from
	// a page built without a screenshot store.
	ErrNoScreenshotStore = errors.New("no screenshot store configured")

	errNotReady = errors.New("condition not met")
)

// LocatorTimeoutError reports a wait condition that was never satisfied.
// It does not distinguish an element that never appeared from one that
// appeared but never reached the condition.
type LocatorTimeoutError struct {
	Locator   browser.Locator
	Condition string
	Timeout   time.Duration
	Err       error
}

func (e *LocatorTimeoutError) Error() string {
	target := e.Locator.String()
	if e.Locator.Value == "" {
		target = "alert"
	}
	if e.Err == nil {
		return fmt.Sprintf("timed out after %s waiting for %s to be %s", e.Timeout, target, e.Condition)
	}
	return fmt.Sprintf("timed out after %s waiting for %s to be %s: %v", e.Timeout, target, e.Condition, e.Err)
}

func (e *LocatorTimeoutError) Unwrap() error { return e.Err }

func (e *LocatorTimeoutError) Is(target error) bool { return target == ErrLocatorTimeout }
