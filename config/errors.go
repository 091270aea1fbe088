package config

import (
	"errors"
	"fmt"
)

// ErrConfig is matched by every configuration failure: a missing key,
// an unparsable value or an unreadable settings source.
var ErrConfig = errors.New("config error")

// Error describes a configuration failure for a single key.
type Error struct {
	Key   string
	Value string
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Key == "":
		return fmt.Sprintf("config: %v", e.Err)
	case e.Value != "":
		return fmt.Sprintf("config: key %q has invalid value %q: %v", e.Key, e.Value, e.Err)
	default:
		return fmt.Sprintf("config: key %q: %v", e.Key, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is ErrConfig.
func (e *Error) Is(target error) bool { return target == ErrConfig }

var (
	errMissing    = errors.New("property not found")
	errNotBool    = errors.New("expected true or false")
	errNotInteger = errors.New("expected an integer")
)
