package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements Completer for the Anthropic Messages API.
type AnthropicClient struct {
	client  anthropic.Client
	model   string
	hasKey  bool
	timeout time.Duration
}

// NewAnthropic creates a new Anthropic client.
func NewAnthropic(baseURL, apiKey, modelName string, timeout time.Duration) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AnthropicClient{
		client:  anthropic.NewClient(opts...),
		model:   modelName,
		hasKey:  apiKey != "",
		timeout: timeout,
	}
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return ProviderAnthropic
}

// Model returns the model name sent with each request.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Ping sends a one-token request.
func (c *AnthropicClient) Ping(ctx context.Context) error {
	_, err := c.Complete(ctx, Request{Prompt: "ping", MaxTokens: 1})
	return err
}

// Complete sends one system+user exchange and returns the first text block.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.hasKey {
		return "", ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	for _, block := range resp.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			return v.Text, nil
		}
	}
	return "", ErrNoChoices
}
