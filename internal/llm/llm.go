package llm

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Provider names accepted by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Models used when Config.Model is empty.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

var (
	ErrMissingAPIKey   = errors.New("LLM API key is not configured")
	ErrNoChoices       = errors.New("LLM returned no choices")
	ErrInvalidProvider = errors.New("invalid LLM provider")
)

// Request is a single system+user exchange.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer generates text for a Request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
	Ping(ctx context.Context) error
	Name() string
	Model() string
}

// Config selects and configures a Completer.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// NewCompleter creates the Completer named by cfg.Provider. An empty
// cfg.Model selects the provider's default model.
func NewCompleter(cfg Config) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderOpenAI:
		return New(cfg.BaseURL, cfg.APIKey, cmp.Or(cfg.Model, DefaultOpenAIModel), cfg.Timeout), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg.BaseURL, cfg.APIKey, cmp.Or(cfg.Model, DefaultAnthropicModel), cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidProvider, cfg.Provider)
	}
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	hasKey  bool
	timeout time.Duration
}

// New creates a new OpenAI-compatible client. An empty apiKey is accepted;
// calls then fail with ErrMissingAPIKey.
func New(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		hasKey:  apiKey != "",
		timeout: timeout,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderOpenAI
}

// Model returns the model name sent with each request.
func (c *Client) Model() string {
	return c.model
}

// Ping checks that the endpoint is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	if !c.hasKey {
		return ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Complete sends one system+user exchange and returns the first choice.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if !c.hasKey {
		return "", ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", c.model, "raw", raw)
	return raw, nil
}
