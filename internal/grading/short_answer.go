package grading

type shortAnswerGrader struct {
	defaultEditDistance int
}

func (shortAnswerGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, TextAnswer:
		return nil
	default:
		return shapeError(TypeShortAnswer, answer)
	}
}

func (g shortAnswerGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	cfg := q.Config

	text, ok := answer.(TextAnswer)
	if !ok {
		return Result{Feedback: "No answer provided."}, nil
	}

	if len(cfg.AcceptedAnswers) == 0 {
		return Result{
			Feedback:            "This answer requires manual grading.",
			RequiresHumanReview: true,
			Details:             map[string]interface{}{"provided": text.Text, "manual_reason": "no accepted answers configured"},
		}, nil
	}

	provided := normalizeText(text.Text, cfg.CaseSensitive)
	matched, fuzzy := "", false
	for _, accepted := range cfg.AcceptedAnswers {
		if normalizeText(accepted, cfg.CaseSensitive) == provided {
			matched = accepted
			break
		}
	}

	if matched == "" && cfg.FuzzyMatch {
		distance := cfg.MaxEditDistance
		if distance <= 0 {
			distance = g.defaultEditDistance
		}
		candidate := stripPunctuation(provided)
		for _, accepted := range cfg.AcceptedAnswers {
			if levenshtein(stripPunctuation(normalizeText(accepted, cfg.CaseSensitive)), candidate) <= distance {
				matched, fuzzy = accepted, true
				break
			}
		}
	}

	details := map[string]interface{}{"provided": text.Text, "fuzzy_match": fuzzy}
	result := Result{Details: details, RequiresHumanReview: cfg.RequiresReview}
	if matched != "" {
		details["matched"] = matched
		result.MarksAwarded = float64(q.Marks)
		result.IsCorrect = true
		result.Feedback = "Correct answer!"
		if fuzzy {
			result.Feedback = "Correct answer (close match)."
		}
	} else {
		result.Feedback = "Incorrect answer."
	}
	if cfg.RequiresReview {
		result.Feedback += " Pending teacher review."
	}
	return result, nil
}
