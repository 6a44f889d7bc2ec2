package grading

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks a question that cannot be graded because its data is
// unusable, for example an unknown type or a numeric question with no answer key.
var ErrConfiguration = errors.New("grading configuration error")

// ErrAnswerShape indicates the submitted answer does not have the shape the
// question type expects.
var ErrAnswerShape = errors.New("answer shape does not match question type")

// ConfigurationError describes which question could not be graded and why.
type ConfigurationError struct {
	QuestionID uint
	Index      int
	Type       QuestionType
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.QuestionID > 0 {
		return fmt.Sprintf("question %d (index %d, type %q): %s", e.QuestionID, e.Index, e.Type, e.Reason)
	}
	return fmt.Sprintf("question at index %d (type %q): %s", e.Index, e.Type, e.Reason)
}

// Is lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configError(q Question, reason string) error {
	return &ConfigurationError{QuestionID: q.ID, Index: q.Index, Type: q.Type, Reason: reason}
}

func shapeError(t QuestionType, answer AnswerPayload) error {
	return fmt.Errorf("%w: %s cannot be graded as %s", ErrAnswerShape, answerKindOf(answer), t)
}
