package ai

import "context"

// EssayInput carries what a model needs to suggest a grade for an essay answer.
type EssayInput struct {
	QuestionPrompt string
	Rubric         string
	Answer         string
	MaxMarks       int
}

// EssaySuggestion is an advisory grade. It is stored for the human grader and
// never counted towards the submission total.
type EssaySuggestion struct {
	SuggestedMarks float64  `json:"suggested_marks"`
	Feedback       string   `json:"feedback"`
	Confidence     float64  `json:"confidence"`
	Strengths      []string `json:"strengths,omitempty"`
	Improvements   []string `json:"improvements,omitempty"`
	Model          string   `json:"model"`
}

// EssayAdvisor suggests grades for free-text answers.
type EssayAdvisor interface {
	Suggest(ctx context.Context, input EssayInput) (EssaySuggestion, error)
}
