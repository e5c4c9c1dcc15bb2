package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type chatRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeChoice(w http.ResponseWriter, content string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 0,
		"model":   "test-model",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
}

func TestComplete(t *testing.T) {
	var got chatRequest
	srv := chatServer(t, func(w http.ResponseWriter, req chatRequest) {
		got = req
		writeChoice(w, "Hallo Welt")
	})

	c := New(srv.URL+"/v1", "key", "test-model", time.Second)
	out, err := c.Complete(context.Background(), Request{
		System:      "system text",
		Prompt:      "user text",
		MaxTokens:   1000,
		Temperature: 0.3,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "Hallo Welt" {
		t.Errorf("Complete() = %q, want 'Hallo Welt'", out)
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	if got.MaxTokens != 1000 {
		t.Errorf("max_tokens = %d, want 1000", got.MaxTokens)
	}
	if got.Temperature < 0.29 || got.Temperature > 0.31 {
		t.Errorf("temperature = %v, want 0.3", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages: %+v", got.Messages)
	}
	if got.Messages[0].Content != "system text" || got.Messages[1].Content != "user text" {
		t.Errorf("unexpected message contents: %+v", got.Messages)
	}
}

func TestCompleteErrors(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c := New("http://127.0.0.1:1/v1", "", "m", time.Second)
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("expected ErrMissingAPIKey, got %v", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
			http.Error(w, `{"error":{"message":"boom","type":"server_error"}}`, http.StatusInternalServerError)
		})
		c := New(srv.URL+"/v1", "key", "m", time.Second)
		if _, err := c.Complete(context.Background(), Request{Prompt: "x"}); err == nil {
			t.Error("expected error for 500 response")
		}
	})

	t.Run("no choices", func(t *testing.T) {
		srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
		})
		c := New(srv.URL+"/v1", "key", "m", time.Second)
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		if !errors.Is(err, ErrNoChoices) {
			t.Errorf("expected ErrNoChoices, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := chatServer(t, func(w http.ResponseWriter, _ chatRequest) {
			<-release
			writeChoice(w, "late")
		})
		defer close(release)

		c := New(srv.URL+"/v1", "key", "m", 50*time.Millisecond)
		start := time.Now()
		_, err := c.Complete(context.Background(), Request{Prompt: "x"})
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if elapsed := time.Since(start); elapsed > 2*time.Second {
			t.Errorf("timeout not enforced, call took %v", elapsed)
		}
	})
}

func TestNewCompleter(t *testing.T) {
	tests := []struct {
		provider  string
		model     string
		want      string
		wantModel string
		wantErr   bool
	}{
		{"", "", ProviderOpenAI, DefaultOpenAIModel, false},
		{"openai", "m", ProviderOpenAI, "m", false},
		{"Anthropic", "", ProviderAnthropic, DefaultAnthropicModel, false},
		{"anthropic", "claude-sonnet-4-5", ProviderAnthropic, "claude-sonnet-4-5", false},
		{"gemini", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.provider+"/"+tt.model, func(t *testing.T) {
			c, err := NewCompleter(Config{Provider: tt.provider, APIKey: "k", Model: tt.model})
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidProvider) {
					t.Errorf("expected ErrInvalidProvider, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCompleter: %v", err)
			}
			if c.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.want)
			}
			if c.Model() != tt.wantModel {
				t.Errorf("Model() = %q, want %q", c.Model(), tt.wantModel)
			}
		})
	}
}

func TestMissingKey(t *testing.T) {
	ctx := context.Background()
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic} {
		t.Run(provider, func(t *testing.T) {
			c, err := NewCompleter(Config{Provider: provider, BaseURL: "http://127.0.0.1:1"})
			if err != nil {
				t.Fatalf("NewCompleter: %v", err)
			}
			if err := c.Ping(ctx); !errors.Is(err, ErrMissingAPIKey) {
				t.Errorf("Ping: expected ErrMissingAPIKey, got %v", err)
			}
			if _, err := c.Complete(ctx, Request{Prompt: "x"}); !errors.Is(err, ErrMissingAPIKey) {
				t.Errorf("Complete: expected ErrMissingAPIKey, got %v", err)
			}
		})
	}
}
