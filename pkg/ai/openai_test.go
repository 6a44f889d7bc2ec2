package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSuggestionClampsToMarks(t *testing.T) {
	suggestion, err := parseSuggestion(`{"suggested_marks":14.456,"feedback":"Good","confidence":1.7}`, 10)
	require.NoError(t, err)
	require.Equal(t, 10.0, suggestion.SuggestedMarks)
	require.Equal(t, 1.0, suggestion.Confidence)

	suggestion, err = parseSuggestion(`{"suggested_marks":-2}`, 10)
	require.NoError(t, err)
	require.Zero(t, suggestion.SuggestedMarks)

	_, err = parseSuggestion(`not json`, 10)
	require.Error(t, err)
}

func TestBuildEssayPromptIncludesRubricWhenPresent(t *testing.T) {
	prompt := buildEssayPrompt(EssayInput{QuestionPrompt: "Why is the sky blue?", Rubric: "Mention scattering", Answer: "Rayleigh", MaxMarks: 4})
	require.Contains(t, prompt, "## Rubric\nMention scattering")
	require.Contains(t, prompt, "## Maximum Marks\n4")

	prompt = buildEssayPrompt(EssayInput{QuestionPrompt: "Q", Answer: "A", MaxMarks: 1})
	require.NotContains(t, prompt, "Rubric")
}

func TestOpenAIAdvisorSuggest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": `{"suggested_marks":7.5,"feedback":"Clear structure","confidence":0.8}`,
				},
			}},
		})
	}))
	defer server.Close()

	advisor, err := NewOpenAIAdvisor(OpenAIConfig{APIKey: "test", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	suggestion, err := advisor.Suggest(context.Background(), EssayInput{QuestionPrompt: "Q", Answer: "A", MaxMarks: 10})
	require.NoError(t, err)
	require.Equal(t, 7.5, suggestion.SuggestedMarks)
	require.Equal(t, "Clear structure", suggestion.Feedback)
	require.Equal(t, "gpt-4o-mini", suggestion.Model)
}

func TestNewOpenAIAdvisorRequiresKey(t *testing.T) {
	_, err := NewOpenAIAdvisor(OpenAIConfig{})
	require.Error(t, err)
}
