package grading

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnswerPayload is the decoded, type-checked form of a student's raw answer.
// Each grader declares which variants it accepts.
type AnswerPayload interface {
	kind() string
}

// EmptyAnswer stands for a question the student did not attempt.
type EmptyAnswer struct{}

// ChoiceAnswer holds selected option tokens. Tokens may be option ids or
// zero-based option indices; graders normalise them against the options.
type ChoiceAnswer struct {
	Selected []string
}

// TextAnswer holds a free-text response.
type TextAnswer struct {
	Text string
}

// NumericAnswer keeps the raw text so that unparsable input grades to zero
// instead of failing the submission.
type NumericAnswer struct {
	Raw string
}

// PairsAnswer holds matching associations.
type PairsAnswer struct {
	Pairs []Pair
}

// OrderAnswer holds an ordered list of item tokens.
type OrderAnswer struct {
	Order []string
}

// BlanksAnswer holds cloze responses keyed by blank id, or positionally when
// the client did not send ids.
type BlanksAnswer struct {
	ByID       map[string]string
	Positional []string
}

func (EmptyAnswer) kind() string   { return "empty answer" }
func (ChoiceAnswer) kind() string  { return "choice answer" }
func (TextAnswer) kind() string    { return "text answer" }
func (NumericAnswer) kind() string { return "numeric answer" }
func (PairsAnswer) kind() string   { return "pairs answer" }
func (OrderAnswer) kind() string   { return "order answer" }
func (BlanksAnswer) kind() string  { return "blanks answer" }

func answerKindOf(answer AnswerPayload) string {
	if answer == nil {
		return "nil answer"
	}
	return answer.kind()
}

// DecodeAnswer converts the heterogeneous JSON a client sends into the
// AnswerPayload variant expected by the question type. A missing or null
// answer decodes to EmptyAnswer.
func DecodeAnswer(t QuestionType, raw json.RawMessage) (AnswerPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return EmptyAnswer{}, nil
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	var value interface{}
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: invalid json: %v", ErrAnswerShape, err)
	}

	switch t {
	case TypeMCQ, TypeImageGridMCQ:
		return decodeChoice(t, value)
	case TypeNumeric:
		return decodeNumeric(value)
	case TypeShortAnswer, TypeEssay, TypeLongAnswer:
		return decodeText(t, value)
	case TypeMatching:
		return decodePairs(value)
	case TypeOrdering:
		return decodeOrder(value)
	case TypeCloze:
		return decodeBlanks(value)
	default:
		return nil, &ConfigurationError{Type: t, Reason: "unsupported question type"}
	}
}

func decodeChoice(t QuestionType, value interface{}) (AnswerPayload, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		for _, key := range []string{"selected_options", "selected_images", "selected", "answer", "response"} {
			if inner, ok := v[key]; ok {
				return decodeChoice(t, inner)
			}
		}
		return nil, fmt.Errorf("%w: %s object has no selection", ErrAnswerShape, t)
	case []interface{}:
		selected := make([]string, 0, len(v))
		for _, item := range v {
			token, ok := scalarString(item)
			if !ok {
				return nil, fmt.Errorf("%w: %s selection must contain scalars", ErrAnswerShape, t)
			}
			if token != "" {
				selected = append(selected, token)
			}
		}
		if len(selected) == 0 {
			return EmptyAnswer{}, nil
		}
		return ChoiceAnswer{Selected: selected}, nil
	default:
		token, ok := scalarString(v)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported %s selection", ErrAnswerShape, t)
		}
		selected := splitNonEmpty(token, ",")
		if len(selected) == 0 {
			return EmptyAnswer{}, nil
		}
		return ChoiceAnswer{Selected: selected}, nil
	}
}

func decodeNumeric(value interface{}) (AnswerPayload, error) {
	if obj, ok := value.(map[string]interface{}); ok {
		for _, key := range []string{"answer", "response", "value"} {
			if inner, ok := obj[key]; ok {
				return decodeNumeric(inner)
			}
		}
		return nil, fmt.Errorf("%w: numeric object has no value", ErrAnswerShape)
	}
	token, ok := scalarString(value)
	if !ok {
		return nil, fmt.Errorf("%w: numeric answer must be a scalar", ErrAnswerShape)
	}
	if token == "" {
		return EmptyAnswer{}, nil
	}
	return NumericAnswer{Raw: token}, nil
}

func decodeText(t QuestionType, value interface{}) (AnswerPayload, error) {
	if obj, ok := value.(map[string]interface{}); ok {
		for _, key := range []string{"answer", "response", "text"} {
			if inner, ok := obj[key]; ok {
				return decodeText(t, inner)
			}
		}
		return nil, fmt.Errorf("%w: %s object has no text", ErrAnswerShape, t)
	}
	text, ok := scalarString(value)
	if !ok {
		return nil, fmt.Errorf("%w: %s answer must be text", ErrAnswerShape, t)
	}
	if text == "" {
		return EmptyAnswer{}, nil
	}
	return TextAnswer{Text: text}, nil
}

func decodePairs(value interface{}) (AnswerPayload, error) {
	switch v := value.(type) {
	case []interface{}:
		pairs := make([]Pair, 0, len(v))
		for _, item := range v {
			obj, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: matching pairs must be objects", ErrAnswerShape)
			}
			left, lok := scalarString(obj["left"])
			right, rok := scalarString(obj["right"])
			if !lok || !rok {
				return nil, fmt.Errorf("%w: matching pair needs left and right", ErrAnswerShape)
			}
			pairs = append(pairs, Pair{Left: left, Right: right})
		}
		if len(pairs) == 0 {
			return EmptyAnswer{}, nil
		}
		return PairsAnswer{Pairs: pairs}, nil
	case map[string]interface{}:
		if inner, ok := v["pairs"]; ok {
			return decodePairs(inner)
		}
		if inner, ok := v["matches"]; ok {
			return decodePairs(inner)
		}
		if inner, ok := v["response"]; ok {
			return decodePairs(inner)
		}
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		pairs := make([]Pair, 0, len(keys))
		for _, key := range keys {
			right, ok := scalarString(v[key])
			if !ok {
				return nil, fmt.Errorf("%w: matching value for %q must be a scalar", ErrAnswerShape, key)
			}
			pairs = append(pairs, Pair{Left: strings.TrimSpace(key), Right: right})
		}
		if len(pairs) == 0 {
			return EmptyAnswer{}, nil
		}
		return PairsAnswer{Pairs: pairs}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported matching answer", ErrAnswerShape)
	}
}

func decodeOrder(value interface{}) (AnswerPayload, error) {
	switch v := value.(type) {
	case []interface{}:
		order := make([]string, 0, len(v))
		for _, item := range v {
			token, ok := scalarString(item)
			if !ok {
				return nil, fmt.Errorf("%w: ordering items must be scalars", ErrAnswerShape)
			}
			order = append(order, token)
		}
		if len(order) == 0 {
			return EmptyAnswer{}, nil
		}
		return OrderAnswer{Order: order}, nil
	case map[string]interface{}:
		for _, key := range []string{"order", "ordered_items", "response"} {
			if inner, ok := v[key]; ok {
				return decodeOrder(inner)
			}
		}
		return nil, fmt.Errorf("%w: ordering object has no order", ErrAnswerShape)
	default:
		return nil, fmt.Errorf("%w: ordering answer must be a list", ErrAnswerShape)
	}
}

func decodeBlanks(value interface{}) (AnswerPayload, error) {
	switch v := value.(type) {
	case []interface{}:
		positional := make([]string, 0, len(v))
		for _, item := range v {
			token, ok := scalarString(item)
			if !ok {
				return nil, fmt.Errorf("%w: cloze answers must be scalars", ErrAnswerShape)
			}
			positional = append(positional, token)
		}
		return BlanksAnswer{Positional: positional}, nil
	case map[string]interface{}:
		for _, key := range []string{"answers", "response"} {
			if inner, ok := v[key]; ok {
				return decodeBlanks(inner)
			}
		}
		byID := make(map[string]string, len(v))
		for key, raw := range v {
			token, ok := scalarString(raw)
			if !ok {
				return nil, fmt.Errorf("%w: cloze answer for %q must be a scalar", ErrAnswerShape, key)
			}
			byID[strings.TrimSpace(key)] = token
		}
		return BlanksAnswer{ByID: byID}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported cloze answer", ErrAnswerShape)
	}
}

func scalarString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	default:
		return "", false
	}
}

func splitNonEmpty(input, sep string) []string {
	parts := strings.Split(input, sep)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
