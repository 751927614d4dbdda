package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/reliability"
)

type GeminiConfig struct {
	APIKey string
	// CredentialsFile is a service-account file; without an API key the
	// client talks to Vertex AI using Project and Location.
	CredentialsFile string
	Project         string
	Location        string
	Model           string
	MaxTokens       int
	Timeout         time.Duration
	HTTPClient      *http.Client
	BaseURL         string
}

// Gemini is the deep client.
type Gemini struct {
	caller
	cfg         GeminiConfig
	client      *genai.Client
	unavailable error
}

func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger, metrics *observability.Metrics) *Gemini {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	g := &Gemini{
		caller: newCaller("deep", repliesFor("Gemini", "Google API credentials not found. Set GOOGLE_API_KEY or GOOGLE_APPLICATION_CREDENTIALS."), cfg.Timeout, logger, metrics),
		cfg:    cfg,
	}
	if !g.hasCredential() {
		return g
	}

	cc := &genai.ClientConfig{HTTPClient: cfg.HTTPClient}
	if strings.TrimSpace(cfg.APIKey) != "" {
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	} else {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		g.unavailable = err
		g.logger.Warn("gemini client init failed", zap.Error(err))
		return g
	}
	g.client = client
	return g
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) hasCredential() bool {
	return strings.TrimSpace(g.cfg.APIKey) != "" || strings.TrimSpace(g.cfg.CredentialsFile) != ""
}

func (g *Gemini) Generate(ctx context.Context, req Request) string {
	return g.generate(ctx, req, g.hasCredential(), g.unavailable, func(ctx context.Context) (string, error) {
		return g.content(ctx, req.Prompt)
	})
}

func (g *Gemini) content(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(g.cfg.MaxTokens),
	})
	if err != nil {
		return "", geminiError(err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// geminiError lifts genai API errors into StatusError so they classify
// the same way as every other provider.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &reliability.StatusError{Provider: "gemini", Code: apiErr.Code, Body: strings.TrimSpace(apiErr.Message)}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &reliability.StatusError{Provider: "gemini", Code: apiErrPtr.Code, Body: strings.TrimSpace(apiErrPtr.Message)}
	}
	return fmt.Errorf("generate content: %w", err)
}
