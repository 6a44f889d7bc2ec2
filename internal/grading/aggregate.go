package grading

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ItemResult is one graded question ready to be persisted as a submission item.
type ItemResult struct {
	Question Question
	Answer   json.RawMessage
	Result   Result
	Metadata map[string]interface{}
}

// Aggregation is the outcome of grading a whole answer set.
type Aggregation struct {
	TotalMarks    int
	MarksObtained int
	NeedsManual   bool
	Status        Status
	Items         []ItemResult
}

// Aggregate grades questions in their defined order. answers is keyed by the
// question's position; a missing answer is graded as unattempted. The first
// configuration or answer-shape error aborts the whole aggregation so that a
// partially graded submission is never produced.
func Aggregate(registry *Registry, questions []Question, answers map[int]json.RawMessage) (Aggregation, error) {
	agg := Aggregation{Items: make([]ItemResult, 0, len(questions))}

	for position, question := range questions {
		question.Index = position
		raw := answers[position]

		payload, err := DecodeAnswer(question.Type, raw)
		if err != nil {
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) {
				cfgErr.QuestionID = question.ID
				cfgErr.Index = position
				return Aggregation{}, cfgErr
			}
			return Aggregation{}, fmt.Errorf("question at index %d: %w", position, err)
		}

		result, err := registry.Grade(question, payload)
		if err != nil {
			if errors.Is(err, ErrConfiguration) {
				return Aggregation{}, err
			}
			return Aggregation{}, fmt.Errorf("question at index %d: %w", position, err)
		}

		agg.TotalMarks += question.Marks
		agg.MarksObtained += RoundMarks(result.MarksAwarded)
		agg.NeedsManual = agg.NeedsManual || result.RequiresHumanReview

		agg.Items = append(agg.Items, ItemResult{
			Question: question,
			Answer:   storedAnswer(raw),
			Result:   result,
			Metadata: autoMetadata(question, result),
		})
	}

	agg.Status = InitialStatus(agg.NeedsManual)
	return agg, nil
}

func storedAnswer(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`{"no_answer":true}`)
	}
	return raw
}

func autoMetadata(q Question, result Result) map[string]interface{} {
	method := "auto"
	if result.RequiresHumanReview {
		method = "manual_required"
	}
	metadata := map[string]interface{}{
		"auto_graded":           !result.RequiresHumanReview,
		"grading_method":        method,
		"requires_human_review": result.RequiresHumanReview,
		"question_type_used":    string(q.Type),
		"raw_marks":             result.MarksAwarded,
	}
	if len(result.Details) > 0 {
		metadata["handler_details"] = result.Details
	}
	return metadata
}
