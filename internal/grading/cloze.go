package grading

import "fmt"

type clozeGrader struct{}

func (clozeGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, BlanksAnswer:
		return nil
	default:
		return shapeError(TypeCloze, answer)
	}
}

func (clozeGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	blanks := q.Config.Blanks
	if len(blanks) == 0 {
		return Result{}, configError(q, "cloze question has no blanks")
	}

	response, ok := answer.(BlanksAnswer)
	if !ok {
		return Result{Feedback: "No answer provided."}, nil
	}

	correct := 0
	perBlank := make(map[string]bool, len(blanks))
	for i, blank := range blanks {
		provided, found := response.ByID[blank.ID]
		if !found && i < len(response.Positional) {
			provided, found = response.Positional[i], true
		}
		ok := false
		if found {
			needle := normalizeText(provided, q.Config.CaseSensitive)
			for _, accepted := range blank.Accepted {
				if normalizeText(accepted, q.Config.CaseSensitive) == needle {
					ok = true
					break
				}
			}
		}
		perBlank[blank.ID] = ok
		if ok {
			correct++
		}
	}

	return Result{
		MarksAwarded: float64(q.Marks) * float64(correct) / float64(len(blanks)),
		Feedback:     fmt.Sprintf("%d of %d blanks correct.", correct, len(blanks)),
		Details:      map[string]interface{}{"blanks": perBlank},
	}, nil
}
