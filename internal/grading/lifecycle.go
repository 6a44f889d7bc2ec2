package grading

import (
	"errors"
	"fmt"
)

// Status is the persisted grading state of a submission.
type Status string

const (
	// StatusPending means at least one item is waiting for a human grader.
	StatusPending Status = "pending"
	// StatusGraded means every item is scored and the aggregate is final.
	StatusGraded Status = "graded"
)

// ErrInvalidTransition is returned for a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid submission status transition")

// InitialStatus is the status a new submission enters.
func InitialStatus(needsManual bool) Status {
	if needsManual {
		return StatusPending
	}
	return StatusGraded
}

// ItemState is the subset of a submission item that decides the submission status.
type ItemState struct {
	MarksAwarded   *float64
	RequiresReview bool
	ManuallyGraded bool
}

// Outstanding reports whether the item still needs a human grade.
func (s ItemState) Outstanding() bool {
	return s.MarksAwarded == nil || (s.RequiresReview && !s.ManuallyGraded)
}

// DeriveStatus is pending while any item is outstanding, graded otherwise.
func DeriveStatus(items []ItemState) Status {
	for _, item := range items {
		if item.Outstanding() {
			return StatusPending
		}
	}
	return StatusGraded
}

// CanTransition reports whether from -> to is allowed. The empty status is
// the not-yet-created submission.
func CanTransition(from, to Status) bool {
	switch from {
	case "":
		return to == StatusPending || to == StatusGraded
	case StatusPending:
		return to == StatusPending || to == StatusGraded
	case StatusGraded:
		return to == StatusGraded
	default:
		return false
	}
}

// Transition validates from -> to and returns to.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
	return to, nil
}
