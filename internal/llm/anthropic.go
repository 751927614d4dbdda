package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/reliability"
)

type AnthropicConfig struct {
	APIKey     string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	HTTPClient *http.Client
	BaseURL    string
}

// Anthropic is the alternate deep client, selected with DEEP_PROVIDER=anthropic.
type Anthropic struct {
	caller
	cfg    AnthropicConfig
	client anthropic.Client
}

func NewAnthropic(cfg AnthropicConfig, logger *zap.Logger, metrics *observability.Metrics) *Anthropic {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Anthropic{
		caller: newCaller("deep", repliesFor("Claude", "Anthropic API key not set (set ANTHROPIC_API_KEY in your environment or .env)."), cfg.Timeout, logger, metrics),
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Generate(ctx context.Context, req Request) string {
	return a.generate(ctx, req, strings.TrimSpace(a.cfg.APIKey) != "", nil, func(ctx context.Context) (string, error) {
		return a.message(ctx, req.Prompt)
	})
}

func (a *Anthropic) message(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &reliability.StatusError{Provider: "anthropic", Code: apiErr.StatusCode, Body: strings.TrimSpace(apiErr.RawJSON())}
		}
		return "", fmt.Errorf("create message: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}
