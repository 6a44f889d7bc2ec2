package grading

import (
	"fmt"
	"strings"
)

type matchingGrader struct{}

func (matchingGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, PairsAnswer:
		return nil
	default:
		return shapeError(TypeMatching, answer)
	}
}

func (matchingGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	if len(q.Config.Pairs) == 0 {
		return Result{}, configError(q, "matching question has no pairs")
	}

	expected := make(map[string]string, len(q.Config.Pairs))
	for _, pair := range q.Config.Pairs {
		expected[strings.TrimSpace(pair.Left)] = strings.TrimSpace(pair.Right)
	}

	pairs, ok := answer.(PairsAnswer)
	if !ok {
		return Result{Feedback: "No answer provided."}, nil
	}

	correct := 0
	counted := make(map[string]struct{}, len(pairs.Pairs))
	for _, pair := range pairs.Pairs {
		left := strings.TrimSpace(pair.Left)
		if _, dup := counted[left]; dup {
			continue
		}
		counted[left] = struct{}{}
		if right, ok := expected[left]; ok && right == strings.TrimSpace(pair.Right) {
			correct++
		}
	}

	total := len(expected)
	return Result{
		MarksAwarded: float64(q.Marks) * float64(correct) / float64(total),
		Feedback:     fmt.Sprintf("You got %d out of %d matches correct.", correct, total),
		Details: map[string]interface{}{
			"correct_count": correct,
			"total_matches": total,
		},
	}, nil
}
