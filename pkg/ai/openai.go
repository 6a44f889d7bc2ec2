package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	advisoryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "essay_advisory_duration_seconds",
		Help:      "Duration of AI essay advisory requests",
	}, []string{"model"})

	advisoryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "essay_advisory_failures_total",
		Help:      "Number of failed AI essay advisory requests",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI advisor.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIAdvisor implements EssayAdvisor against the OpenAI chat completion API.
type OpenAIAdvisor struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIAdvisor builds an advisor using the provided configuration.
func NewOpenAIAdvisor(cfg OpenAIConfig) (*OpenAIAdvisor, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIAdvisor{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-assessment-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_essay_advisor").Logger(),
	}, nil
}

// Suggest asks the model for an advisory grade and clamps it to the question's marks.
func (a *OpenAIAdvisor) Suggest(parent context.Context, input EssayInput) (EssaySuggestion, error) {
	ctx, span := a.tracer.Start(parent, "openai.essay_suggest", trace.WithAttributes(
		attribute.String("model", a.cfg.Model),
		attribute.Int("essay.max_marks", input.MaxMarks),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: advisorSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildEssayPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	advisoryDuration.WithLabelValues(a.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return EssaySuggestion{}, a.fail(span, fmt.Errorf("openai essay suggest: %w", err))
	}

	if len(resp.Choices) == 0 {
		return EssaySuggestion{}, a.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	suggestion, err := parseSuggestion(strings.TrimSpace(resp.Choices[0].Message.Content), input.MaxMarks)
	if err != nil {
		return EssaySuggestion{}, a.fail(span, err)
	}
	suggestion.Model = a.cfg.Model

	span.SetAttributes(attribute.Float64("essay.suggested_marks", suggestion.SuggestedMarks))
	a.logger.Debug().Float64("suggested_marks", suggestion.SuggestedMarks).Msg("essay suggestion received")
	return suggestion, nil
}

func (a *OpenAIAdvisor) fail(span trace.Span, err error) error {
	advisoryFailures.WithLabelValues(a.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func advisorSystemPrompt() string {
	return "You are an assistant helping a teacher grade essay answers. Respond with a JSON object containing " +
		"suggested_marks (number), feedback (string), confidence (0-1), strengths (array) and improvements (array). " +
		"Your grade is advisory; a teacher makes the final decision."
}

func buildEssayPrompt(input EssayInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Question\n")
	builder.WriteString(input.QuestionPrompt)
	builder.WriteString(fmt.Sprintf("\n\n## Maximum Marks\n%d", input.MaxMarks))
	if strings.TrimSpace(input.Rubric) != "" {
		builder.WriteString("\n\n## Rubric\n")
		builder.WriteString(input.Rubric)
	}
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(input.Answer)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseSuggestion(content string, maxMarks int) (EssaySuggestion, error) {
	var suggestion EssaySuggestion
	if err := json.Unmarshal([]byte(content), &suggestion); err != nil {
		return EssaySuggestion{}, fmt.Errorf("parse suggestion json: %w", err)
	}

	if math.IsNaN(suggestion.SuggestedMarks) || suggestion.SuggestedMarks < 0 {
		suggestion.SuggestedMarks = 0
	}
	if limit := float64(maxMarks); suggestion.SuggestedMarks > limit {
		suggestion.SuggestedMarks = limit
	}
	suggestion.SuggestedMarks = math.Round(suggestion.SuggestedMarks*100) / 100

	if suggestion.Confidence < 0 {
		suggestion.Confidence = 0
	}
	if suggestion.Confidence > 1 {
		suggestion.Confidence = 1
	}

	return suggestion, nil
}
