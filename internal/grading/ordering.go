package grading

import "strings"

type orderingGrader struct{}

func (orderingGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, OrderAnswer:
		return nil
	default:
		return shapeError(TypeOrdering, answer)
	}
}

func (orderingGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	if len(q.Config.CorrectOrder) == 0 {
		return Result{}, configError(q, "ordering question has no correct order")
	}

	order, ok := answer.(OrderAnswer)
	if !ok {
		return Result{Feedback: "No answer provided."}, nil
	}

	details := map[string]interface{}{
		"correct_order": q.Config.CorrectOrder,
		"student_order": order.Order,
	}
	if !sameSequence(q.Config.CorrectOrder, order.Order) {
		return Result{Feedback: "Incorrect order.", Details: details}, nil
	}
	return Result{MarksAwarded: float64(q.Marks), IsCorrect: true, Feedback: "Correct order!", Details: details}, nil
}

func sameSequence(expected, actual []string) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if strings.TrimSpace(expected[i]) != strings.TrimSpace(actual[i]) {
			return false
		}
	}
	return true
}
