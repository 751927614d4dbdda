package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/reliability"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	maxErrorBodySize   = 4 << 10
)

type GroqConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// Groq is the fast client. Groq serves an OpenAI-compatible chat completions API.
type Groq struct {
	caller
	cfg         GroqConfig
	endpoint    string
	client      *http.Client
	unavailable error
}

func NewGroq(cfg GroqConfig, logger *zap.Logger, metrics *observability.Metrics) *Groq {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGroqBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	g := &Groq{
		caller: newCaller("fast", repliesFor("Groq", "Groq API key not set (set GROQ_API_KEY in your environment or .env)."), cfg.Timeout, logger, metrics),
		cfg:    cfg,
		client: cfg.HTTPClient,
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: cfg.Timeout}
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	switch {
	case err != nil:
		g.unavailable = fmt.Errorf("invalid base url: %w", err)
	case u.Scheme != "http" && u.Scheme != "https":
		g.unavailable = fmt.Errorf("invalid base url %q", cfg.BaseURL)
	default:
		g.endpoint = u.String() + "/chat/completions"
	}
	return g
}

func (g *Groq) Name() string { return "groq" }

func (g *Groq) Generate(ctx context.Context, req Request) string {
	return g.generate(ctx, req, strings.TrimSpace(g.cfg.APIKey) != "", g.unavailable, func(ctx context.Context) (string, error) {
		return g.chat(ctx, req.Prompt)
	})
}

func (g *Groq) chat(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(groqChatRequest{
		Model:     g.cfg.Model,
		Messages:  []groqMessage{{Role: "user", Content: prompt}},
		MaxTokens: g.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return "", &reliability.StatusError{Provider: "groq", Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out groqChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type groqChatRequest struct {
	Model     string        `json:"model"`
	Messages  []groqMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      groqMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}
