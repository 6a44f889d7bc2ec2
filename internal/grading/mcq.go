package grading

import (
	"fmt"
	"strconv"
	"strings"
)

type choiceGrader struct {
	kind QuestionType
}

func (g choiceGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, ChoiceAnswer:
		return nil
	default:
		return shapeError(g.kind, answer)
	}
}

func (g choiceGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	options := q.Config.Options
	if len(options) == 0 {
		return Result{}, configError(q, "question has no options")
	}

	correct := make(map[string]struct{})
	for _, option := range options {
		if option.IsCorrect {
			correct[option.ID] = struct{}{}
		}
	}
	if len(correct) == 0 {
		return Result{}, configError(q, "question has no correct option")
	}

	choice, ok := answer.(ChoiceAnswer)
	if !ok {
		return Result{Feedback: "No answer provided."}, nil
	}

	selected := normalizeSelection(options, choice.Selected)
	var correctSelected, incorrectSelected, missed []string
	for _, id := range selected {
		if _, ok := correct[id]; ok {
			correctSelected = append(correctSelected, id)
		} else {
			incorrectSelected = append(incorrectSelected, id)
		}
	}
	for _, option := range options {
		if !option.IsCorrect {
			continue
		}
		if !containsString(selected, option.ID) {
			missed = append(missed, option.ID)
		}
	}

	details := map[string]interface{}{
		"selected":           selected,
		"correct_selected":   correctSelected,
		"incorrect_selected": incorrectSelected,
		"missed_correct":     missed,
		"total_correct":      len(correct),
	}

	marks := float64(q.Marks)
	if len(incorrectSelected) == 0 && len(missed) == 0 {
		return Result{MarksAwarded: marks, IsCorrect: true, Feedback: "Correct answer!", Details: details}, nil
	}

	awarded := 0.0
	if q.Config.PartialCredit {
		ratio := float64(len(correctSelected)-len(incorrectSelected)) / float64(len(correct))
		if ratio > 0 {
			awarded = marks * ratio
		}
	}

	return Result{
		MarksAwarded: awarded,
		Feedback:     choiceFeedback(correctSelected, incorrectSelected, missed),
		Details:      details,
	}, nil
}

// normalizeSelection maps raw tokens onto option ids. A token that names an
// option id is kept; otherwise a zero-based integer is read as an index. Any
// other token is kept verbatim and counts as an incorrect selection.
func normalizeSelection(options []Option, tokens []string) []string {
	selected := make([]string, 0, len(tokens))
	seen := make(map[string]struct{}, len(tokens))
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		selected = append(selected, id)
	}

	for _, raw := range tokens {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		if id, ok := matchOptionID(options, token); ok {
			add(id)
			continue
		}
		if index, err := strconv.Atoi(token); err == nil && index >= 0 && index < len(options) {
			add(options[index].ID)
			continue
		}
		add(token)
	}
	return selected
}

func matchOptionID(options []Option, token string) (string, bool) {
	for _, option := range options {
		if option.ID == token {
			return option.ID, true
		}
	}
	for _, option := range options {
		if strings.EqualFold(option.ID, token) {
			return option.ID, true
		}
	}
	return "", false
}

func choiceFeedback(correctSelected, incorrectSelected, missed []string) string {
	parts := make([]string, 0, 3)
	if len(correctSelected) > 0 {
		parts = append(parts, fmt.Sprintf("Correctly selected: %s", strings.Join(correctSelected, ", ")))
	}
	if len(incorrectSelected) > 0 {
		parts = append(parts, fmt.Sprintf("Incorrectly selected: %s", strings.Join(incorrectSelected, ", ")))
	}
	if len(missed) > 0 {
		parts = append(parts, fmt.Sprintf("Missed correct options: %s", strings.Join(missed, ", ")))
	}
	if len(parts) == 0 {
		return "Incorrect answer."
	}
	return strings.Join(parts, " | ")
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
