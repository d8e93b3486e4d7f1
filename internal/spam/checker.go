// Package spam classifies submissions with a team-configured LLM prompt.
//
// The check is best-effort by policy: any failure of the upstream call yields
// Unavailable, and the pipeline maps Unavailable to "deliver the mail". A spam
// filter outage must never block legitimate submissions.
package spam

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/formloft/formloft/internal/domain"
	"github.com/formloft/formloft/internal/openai"
)

// Outcome is the result of a spam check.
type Outcome int

const (
	// Ham is an explicit "not spam" verdict.
	Ham Outcome = iota
	// Spam is an explicit "spam" verdict.
	Spam
	// Unavailable means the classifier could not produce a verdict.
	Unavailable
)

func (o Outcome) String() string {
	switch o {
	case Ham:
		return "ham"
	case Spam:
		return "spam"
	case Unavailable:
		return "unavailable"
	}
	return "unknown"
}

// ShouldBlock maps an outcome to the delivery decision. Unavailable maps to
// false: fail-open.
func ShouldBlock(o Outcome) bool {
	return o == Spam
}

// Checker classifies a submission using the team-supplied API key, so usage is
// billed to the team rather than the platform.
type Checker interface {
	Check(ctx context.Context, fields []domain.Field, apiKey, prompt string) Outcome
}

const defaultModel = "gpt-4o-mini"

// verdictSchema is the strict structured-output schema the model must satisfy.
var verdictSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"spam": {"type": "boolean"}
	},
	"required": ["spam"],
	"additionalProperties": false
}`)

// OpenAIChecker implements Checker against the OpenAI chat completions API.
type OpenAIChecker struct {
	model   string
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

// CheckerOption configures an OpenAIChecker.
type CheckerOption func(*OpenAIChecker)

// WithModel overrides the classification model.
func WithModel(model string) CheckerOption {
	return func(c *OpenAIChecker) {
		c.model = model
	}
}

// WithBaseURL points the checker at a custom API endpoint.
func WithBaseURL(baseURL string) CheckerOption {
	return func(c *OpenAIChecker) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the deadline for one classification call.
func WithTimeout(timeout time.Duration) CheckerOption {
	return func(c *OpenAIChecker) {
		c.timeout = timeout
	}
}

// NewOpenAIChecker creates a checker with a 10s per-call deadline by default.
func NewOpenAIChecker(logger *slog.Logger, opts ...CheckerOption) *OpenAIChecker {
	c := &OpenAIChecker{
		model:   defaultModel,
		timeout: 10 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Checker = (*OpenAIChecker)(nil)

// Check sends the field list and the form's custom prompt to the model and
// parses the structured verdict. Every failure path returns Unavailable.
func (c *OpenAIChecker) Check(ctx context.Context, fields []domain.Field, apiKey, prompt string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var clientOpts []openai.ClientOption
	if c.baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(c.baseURL))
	}
	client := openai.NewClient(apiKey, clientOpts...)

	req := &openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: "system", Content: prompt},
			{Role: "user", Content: FormatFields(fields)},
		},
		ResponseFormat: &openai.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &openai.JSONSchema{
				Name:   "spam_check",
				Strict: true,
				Schema: verdictSchema,
			},
		},
	}

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Error("spam check call failed, allowing submission to proceed",
			slog.String("error", err.Error()))
		return Unavailable
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		c.logger.Error("spam check returned no content, allowing submission to proceed")
		return Unavailable
	}

	var verdict struct {
		Spam bool `json:"spam"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &verdict); err != nil {
		c.logger.Error("spam check returned unparseable verdict, allowing submission to proceed",
			slog.String("error", err.Error()))
		return Unavailable
	}

	if verdict.Spam {
		return Spam
	}
	return Ham
}

// FormatFields renders the field list as the user message the classifier sees.
func FormatFields(fields []domain.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Name + ": " + f.Value + "\n"
	}
	return strings.Join(parts, " ")
}
