// Package grading implements the per-question-type grading strategies, the
// ordered aggregation of item results, and the submission status rules.
//
// Everything in this package is pure: it performs no I/O and holds no state
// beyond the grader registry, so the same inputs always yield the same output.
package grading

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QuestionType identifies the grading strategy used for a question.
type QuestionType string

const (
	TypeMCQ          QuestionType = "mcq"
	TypeImageGridMCQ QuestionType = "image_grid_mcq"
	TypeNumeric      QuestionType = "numeric"
	TypeShortAnswer  QuestionType = "short_answer"
	TypeEssay        QuestionType = "essay"
	TypeLongAnswer   QuestionType = "long_answer"
	TypeMatching     QuestionType = "matching"
	TypeOrdering     QuestionType = "ordering"
	TypeCloze        QuestionType = "cloze"
)

// NormalizeType lower-cases and trims a raw type tag. Hyphenated aliases such
// as "multiple-choice" are mapped onto their canonical names.
func NormalizeType(raw string) QuestionType {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch value {
	case "multiple_choice":
		return TypeMCQ
	case "open_response":
		return TypeEssay
	}
	return QuestionType(value)
}

// Question is the point-in-time snapshot a grader works from. Submission items
// keep their own copy so later edits to the bank question never change
// historical grades.
type Question struct {
	ID     uint         `json:"id,omitempty"`
	Index  int          `json:"index"`
	Type   QuestionType `json:"type"`
	Marks  int          `json:"marks"`
	Config Config       `json:"config"`
}

// Option is a selectable choice for choice-based questions.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text,omitempty"`
	IsCorrect bool   `json:"is_correct"`
}

// Pair is one left/right association in a matching question or answer.
type Pair struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

// Blank is one gap in a cloze question.
type Blank struct {
	ID       string   `json:"id"`
	Accepted []string `json:"accepted"`
}

// Config carries the type-specific payload of a question. Only the fields
// relevant to the question's type are consulted.
type Config struct {
	Prompt string `json:"prompt,omitempty"`
	Rubric string `json:"rubric,omitempty"`

	Options       []Option `json:"options,omitempty"`
	PartialCredit bool     `json:"partial_credit,omitempty"`

	CorrectValue     *float64 `json:"correct_value,omitempty"`
	Tolerance        float64  `json:"tolerance,omitempty"`
	TolerancePercent float64  `json:"tolerance_percent,omitempty"`

	AcceptedAnswers []string `json:"accepted_answers,omitempty"`
	CaseSensitive   bool     `json:"case_sensitive,omitempty"`
	FuzzyMatch      bool     `json:"fuzzy_match,omitempty"`
	MaxEditDistance int      `json:"max_edit_distance,omitempty"`
	RequiresReview  bool     `json:"requires_review,omitempty"`

	Pairs        []Pair   `json:"pairs,omitempty"`
	CorrectOrder []string `json:"correct_order,omitempty"`
	Blanks       []Blank  `json:"blanks,omitempty"`
}

// ParseConfig decodes a stored question payload. Options without an id are
// given positional letter ids ("a", "b", ...).
func ParseConfig(raw []byte) (Config, error) {
	var cfg Config
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode question config: %w", err)
	}
	for i := range cfg.Options {
		cfg.Options[i].ID = strings.TrimSpace(cfg.Options[i].ID)
		if cfg.Options[i].ID == "" {
			cfg.Options[i].ID = string(rune('a' + i))
		}
	}
	return cfg, nil
}

// Result is the outcome of grading a single question.
type Result struct {
	MarksAwarded        float64                `json:"marks_awarded"`
	IsCorrect           bool                   `json:"is_correct"`
	Feedback            string                 `json:"feedback"`
	RequiresHumanReview bool                   `json:"requires_human_review"`
	Details             map[string]interface{} `json:"details,omitempty"`
}
