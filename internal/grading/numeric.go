package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type numericGrader struct{}

func (numericGrader) ValidateAnswer(answer AnswerPayload) error {
	switch answer.(type) {
	case EmptyAnswer, NumericAnswer:
		return nil
	default:
		return shapeError(TypeNumeric, answer)
	}
}

func (numericGrader) Grade(q Question, answer AnswerPayload) (Result, error) {
	if q.Config.CorrectValue == nil {
		return Result{}, configError(q, "numeric question has no correct value")
	}
	if q.Config.Tolerance < 0 || q.Config.TolerancePercent < 0 {
		return Result{}, configError(q, "tolerance must not be negative")
	}
	expected := *q.Config.CorrectValue

	numeric, ok := answer.(NumericAnswer)
	if !ok {
		return Result{Feedback: "No answer provided."}, nil
	}

	value, parsed := parseNumber(numeric.Raw)
	if !parsed {
		return Result{
			Feedback: "Answer is not a number.",
			Details:  map[string]interface{}{"provided": numeric.Raw},
		}, nil
	}

	allowed := q.Config.Tolerance
	if q.Config.TolerancePercent > 0 {
		allowed = math.Max(allowed, math.Abs(expected)*q.Config.TolerancePercent/100)
	}
	diff := math.Abs(value - expected)
	details := map[string]interface{}{
		"provided":  value,
		"expected":  expected,
		"tolerance": allowed,
	}

	if diff <= allowed+markEpsilon {
		return Result{MarksAwarded: float64(q.Marks), IsCorrect: true, Feedback: "Correct answer!", Details: details}, nil
	}
	return Result{
		Feedback: fmt.Sprintf("Incorrect answer. Expected %s.", strconv.FormatFloat(expected, 'f', -1, 64)),
		Details:  details,
	}, nil
}

// parseNumber accepts plain decimals, a leading number followed by a unit
// ("9.8 m/s"), and thousands separators ("1,000").
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return v, true
	}
	if fields := strings.Fields(s); len(fields) > 1 {
		if v, err := strconv.ParseFloat(fields[0], 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return v, true
		}
	}
	if strings.Contains(s, ",") && !strings.Contains(s, " ") {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return v, true
		}
	}
	return 0, false
}
