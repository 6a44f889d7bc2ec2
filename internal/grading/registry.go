package grading

import (
	"math"
	"sort"
)

// Grader scores one question type.
type Grader interface {
	// ValidateAnswer reports whether the payload has a shape this grader accepts.
	ValidateAnswer(answer AnswerPayload) error
	Grade(q Question, answer AnswerPayload) (Result, error)
}

// RegistryOption tunes the built-in graders.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	maxEditDistance int
}

// WithFuzzyEditDistance sets the default edit distance used by short answers
// that enable fuzzy matching without declaring their own distance.
func WithFuzzyEditDistance(n int) RegistryOption {
	return func(c *registryConfig) {
		if n >= 0 {
			c.maxEditDistance = n
		}
	}
}

// Registry routes a question to the grader registered for its type.
type Registry struct {
	graders map[QuestionType]Grader
}

// NewRegistry installs the built-in graders.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := &registryConfig{maxEditDistance: 1}
	for _, opt := range opts {
		opt(cfg)
	}

	manual := essayGrader{}
	return &Registry{
		graders: map[QuestionType]Grader{
			TypeMCQ:          choiceGrader{kind: TypeMCQ},
			TypeImageGridMCQ: choiceGrader{kind: TypeImageGridMCQ},
			TypeNumeric:      numericGrader{},
			TypeShortAnswer:  shortAnswerGrader{defaultEditDistance: cfg.maxEditDistance},
			TypeEssay:        manual,
			TypeLongAnswer:   manual,
			TypeMatching:     matchingGrader{},
			TypeOrdering:     orderingGrader{},
			TypeCloze:        clozeGrader{},
		},
	}
}

// Register adds or replaces the grader for a type.
func (r *Registry) Register(t QuestionType, grader Grader) {
	r.graders[t] = grader
}

// Supports reports whether a grader exists for the type.
func (r *Registry) Supports(t QuestionType) bool {
	_, ok := r.graders[t]
	return ok
}

// Types lists the registered question types in sorted order.
func (r *Registry) Types() []QuestionType {
	types := make([]QuestionType, 0, len(r.graders))
	for t := range r.graders {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Grade dispatches to the type's grader and clamps the awarded marks into
// [0, q.Marks].
func (r *Registry) Grade(q Question, answer AnswerPayload) (Result, error) {
	grader, ok := r.graders[q.Type]
	if !ok {
		return Result{}, configError(q, "unsupported question type")
	}
	if q.Marks <= 0 {
		return Result{}, configError(q, "question marks must be positive")
	}
	if answer == nil {
		answer = EmptyAnswer{}
	}
	if err := grader.ValidateAnswer(answer); err != nil {
		return Result{}, err
	}

	result, err := grader.Grade(q, answer)
	if err != nil {
		return Result{}, err
	}

	result.MarksAwarded = clampMarks(result.MarksAwarded, float64(q.Marks))
	if !result.RequiresHumanReview {
		result.IsCorrect = result.MarksAwarded >= float64(q.Marks)-markEpsilon
	}
	return result, nil
}

const markEpsilon = 1e-9

func clampMarks(value, max float64) float64 {
	if math.IsNaN(value) || value < 0 {
		return 0
	}
	if value > max {
		return max
	}
	return math.Round(value*100) / 100
}

// RoundMarks converts a possibly fractional mark to the integer used by the
// submission aggregate. Halves round away from zero.
func RoundMarks(value float64) int {
	return int(math.Round(value))
}

// SumMarks totals per-item marks the same way aggregation does, so a
// recomputation after manual grading matches the original submit.
func SumMarks(values []float64) int {
	total := 0
	for _, value := range values {
		total += RoundMarks(value)
	}
	return total
}
