package notify

import (
	"errors"
	"fmt"
)

var (
	// ErrNotificationTransport is matched by every TransportError.
	ErrNotificationTransport = errors.New("notification transport error")
	// ErrNoReport is returned when a directory holds no report artifact.
	ErrNoReport = errors.New("no report found")
)

// TransportError reports a failure to build or deliver a notification.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("notify: failed to %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrNotificationTransport }
