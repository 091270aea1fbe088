package report

import "strings"

// Status is the outcome recorded by a log entry. Higher values are more
// severe; a test's final status is the most severe status it logged.
type Status int

const (
	StatusInfo Status = iota
	StatusPass
	StatusWarning
	StatusSkip
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusInfo:
		return "info"
	case StatusPass:
		return "pass"
	case StatusWarning:
		return "warning"
	case StatusSkip:
		return "skip"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseStatus is the inverse of Status.String.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(s) {
	case "info":
		return StatusInfo, true
	case "pass":
		return StatusPass, true
	case "warning":
		return StatusWarning, true
	case "skip":
		return StatusSkip, true
	case "fail":
		return StatusFail, true
	default:
		return StatusInfo, false
	}
}
