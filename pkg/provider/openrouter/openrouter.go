// Package openrouter implements the generation backend against
// OpenRouter's OpenAI-compatible chat completions API.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"concierge/pkg/config"
	"concierge/pkg/prompt"
	"concierge/pkg/provider"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client calls OpenRouter and parses its structured JSON replies.
type Client struct {
	client openai.Client
	model  string
	log    *slog.Logger
}

var _ provider.Generator = (*Client)(nil)

// New validates generation settings and builds the OpenRouter client.
func New(cfg config.GenerationConfig, log *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("OPENROUTER_API_KEY is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("OPENROUTER_MODEL_NAME is required")
	}
	if log == nil {
		log = slog.Default()
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		client: openai.NewClient(
			option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
			option.WithBaseURL(baseURL),
		),
		model: strings.TrimSpace(cfg.Model),
		log:   log.With("component", "provider.openrouter"),
	}, nil
}

// Generate issues one chat completion requesting a JSON object response,
// then parses the structured reply. Only the message field is returned;
// confidence, source, and detected language are logged as diagnostics.
func (c *Client) Generate(ctx context.Context, req prompt.Request) (string, error) {
	startedAt := time.Now()
	c.log.Debug("Generation request started", "model", c.model, "user_turn_length", len(req.User))

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	})
	if err != nil {
		c.log.Error("Generation request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	raw := completion.Choices[0].Message.Content
	reply, err := provider.ParseStructuredReply(raw)
	if err != nil {
		c.log.Error("Generation reply unparseable", "raw_length", len(raw), "error", err)
		return "", err
	}

	c.log.Info("Generation completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"confidence", reply.Confidence,
		"source", reply.Source,
		"detected_language", reply.DetectedLanguage,
	)

	return reply.Message, nil
}
