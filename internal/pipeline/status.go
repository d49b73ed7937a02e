package pipeline

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an application.
type Status string

const (
	StatusApplied             Status = "applied"
	StatusInterviewInvited    Status = "interview_invited"
	StatusInterviewInProgress Status = "interview_in_progress"
	StatusInterviewCompleted  Status = "interview_completed"
	StatusScored              Status = "scored"
	StatusShortlisted         Status = "shortlisted"
	StatusOffered             Status = "offered"
	StatusHired               Status = "hired"

	StatusRejected Status = "rejected"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// forward lists the main path in order; a status may only move to its successor.
var forward = []Status{
	StatusApplied,
	StatusInterviewInvited,
	StatusInterviewInProgress,
	StatusInterviewCompleted,
	StatusScored,
	StatusShortlisted,
	StatusOffered,
	StatusHired,
}

var sideTerminals = map[Status]struct{}{
	StatusRejected: {},
	StatusDeclined: {},
	StatusExpired:  {},
}

// ParseStatus normalizes and validates a status string.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return s, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	if _, ok := sideTerminals[s]; ok {
		return true
	}
	return Index(s) >= 0
}

// Index returns the position of s on the forward path, or -1 for side
// terminal and unknown states.
func Index(s Status) int {
	for i, f := range forward {
		if f == s {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether no further transition can leave s.
func (s Status) IsTerminal() bool {
	if s == StatusHired {
		return true
	}
	_, ok := sideTerminals[s]
	return ok
}

// IsSideTerminal reports whether s is one of rejected, declined or expired.
func (s Status) IsSideTerminal() bool {
	_, ok := sideTerminals[s]
	return ok
}

// AtLeast reports whether s sits on the forward path at or after other.
func (s Status) AtLeast(other Status) bool {
	i, j := Index(s), Index(other)
	return i >= 0 && j >= 0 && i >= j
}

// CanTransition reports whether the graph allows from -> to.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from == to || from.IsTerminal() {
		return false
	}
	if to.IsSideTerminal() {
		return true
	}
	i, j := Index(from), Index(to)
	return i >= 0 && j == i+1
}

// Transition validates a move of an application from current to target.
// suppliedVersion is the version the caller read; it must equal the stored
// one. On success the new status and the next version are returned.
func Transition(current, target Status, storedVersion, suppliedVersion int64) (Status, int64, error) {
	if storedVersion != suppliedVersion {
		return current, storedVersion, fmt.Errorf("%w: stored version %d, supplied %d", ErrConflict, storedVersion, suppliedVersion)
	}
	if !CanTransition(current, target) {
		return current, storedVersion, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
	}
	return target, storedVersion + 1, nil
}

// Label renders a transition for logs and metrics, e.g. "applied->interview_invited".
func Label(from, to Status) string {
	return string(from) + "->" + string(to)
}
