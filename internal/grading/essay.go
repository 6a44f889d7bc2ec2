package grading

// essayGrader never scores automatically. The item always waits for a human;
// any AI suggestion is attached later as advisory metadata.
type essayGrader struct{}

func (essayGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, TextAnswer:
		return nil
	default:
		return shapeError(TypeEssay, answer)
	}
}

func (essayGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	words := 0
	if text, ok := answer.(TextAnswer); ok {
		words = countWords(text.Text)
	}
	return Result{
		Feedback:            "This question requires manual grading.",
		RequiresHumanReview: true,
		Details: map[string]interface{}{
			"manual_reason": "Essay questions require human evaluation for content quality, structure, and critical thinking.",
			"word_count":    words,
		},
	}, nil
}

func countWords(s string) int {
	count, inWord := 0, false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			inWord = false
			continue
		}
		if !inWord {
			count++
			inWord = true
		}
	}
	return count
}
