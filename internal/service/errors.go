package service

import "errors"

var (
	// ErrAssessmentNotFound indicates the assessment does not exist.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrSubmissionNotFound indicates the submission does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionItemNotFound indicates the submission item does not exist.
	ErrSubmissionItemNotFound = errors.New("submission item not found")
	// ErrForbidden indicates the actor does not own the child or submission.
	ErrForbidden = errors.New("forbidden")
	// ErrRetakeNotAllowed rejects a second attempt on an assessment without retakes.
	ErrRetakeNotAllowed = errors.New("retake not allowed for this assessment")
	// ErrSubmissionConflict reports a concurrent attempt that took the same
	// retake number. The client may resubmit.
	ErrSubmissionConflict = errors.New("another attempt was recorded at the same time, please resubmit")
	// ErrFlagConflict rejects a second open flag on the same item by the same user.
	ErrFlagConflict = errors.New("an open grading flag already exists for this item")
	// ErrFlagNotFound indicates the grading flag does not exist.
	ErrFlagNotFound = errors.New("grading flag not found")
	// ErrFlagNotPending rejects resolving a flag that is already closed.
	ErrFlagNotPending = errors.New("grading flag is not pending")
	// ErrGradeExceedsMax rejects a grade above the item's marks possible.
	ErrGradeExceedsMax = errors.New("grade exceeds marks possible")
	// ErrInvalidFlagInput rejects flag text that sanitizes to nothing.
	ErrInvalidFlagInput = errors.New("invalid grading flag input")
	// ErrNotificationNotFound indicates the notification does not exist for the user.
	ErrNotificationNotFound = errors.New("notification not found")
)

const (
	roleAdmin   = "admin"
	roleTeacher = "teacher"
)

func isStaff(role string) bool {
	switch normalizeRole(role) {
	case roleAdmin, roleTeacher:
		return true
	default:
		return false
	}
}
