// Package openai calls an OpenAI-compatible chat completion endpoint for the
// built-in answer backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	hcotel "github.com/syltwerk/hotelchat/internal/adapter/otel"
	"github.com/syltwerk/hotelchat/internal/config"
	"github.com/syltwerk/hotelchat/internal/domain/chat"
)

// ErrNoAnswer is returned when the model replies without usable content.
var ErrNoAnswer = errors.New("no answer from model")

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("model api key not configured")

// Client wraps go-openai with the configured model and temperature.
type Client struct {
	c           *goopenai.Client
	model       string
	temperature float32
	configured  bool
}

// New creates a Client for cfg. The HTTP client is instrumented with
// OpenTelemetry and bounded by cfg.Timeout.
func New(cfg config.Model) *Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{
		Timeout:   cfg.Timeout,
		Transport: hcotel.Transport(http.DefaultTransport),
	}
	return &Client{
		c:           goopenai.NewClientWithConfig(oc),
		model:       cfg.Name,
		temperature: cfg.Temperature,
		configured:  cfg.APIKey != "",
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Complete sends msgs and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, msgs []chat.Message) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}

	req := goopenai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    make([]goopenai.ChatCompletionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}

	resp, err := c.c.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoAnswer
	}
	slog.DebugContext(ctx, "model answered", "model", c.model, "finish_reason", resp.Choices[0].FinishReason)

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrNoAnswer
	}
	return content, nil
}

// StatusCode extracts the HTTP status from a go-openai error, or 0.
func StatusCode(err error) int {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
