package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/config"
	"github.com/ent0n29/jarvis/internal/httpapi"
	"github.com/ent0n29/jarvis/internal/llm"
	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/orchestrator"
	"github.com/ent0n29/jarvis/internal/session"
)

const embeddingCacheEntries = 4096

type BuildResult struct {
	Config       config.Config
	Logger       *zap.Logger
	Metrics      *observability.Metrics
	Session      *session.Session
	Memory       *memory.Adapter
	Orchestrator *orchestrator.Orchestrator
	Fast         llm.Client
	Deep         llm.Client

	// Requests feeds the orchestrator's Serve loop. Every front-end submits turns here.
	Requests chan orchestrator.Request

	// Cleanup should be called on shutdown to release the memory store and caches.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	embedder, closeEmbedder, err := buildEmbedder(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opener := memory.NewOpener(memory.Options{
		Backend:     cfg.MemoryBackend,
		DatabaseURL: cfg.DatabaseURL,
		Collection:  cfg.Collection,
		Embedder:    embedder,
	})
	mem := memory.NewAdapter(ctx, opener, cfg.MemoryStorePath, logger, metrics)

	fast := llm.NewGroq(llm.GroqConfig{
		APIKey:    cfg.GroqAPIKey,
		BaseURL:   cfg.GroqBaseURL,
		Model:     cfg.GroqModel,
		MaxTokens: cfg.GroqMaxTokens,
		Timeout:   cfg.RequestTimeout,
	}, logger, metrics)
	deep := buildDeep(ctx, cfg, logger, metrics)

	sess := session.New(cfg.Runtime())
	orch := orchestrator.New(orchestrator.Config{TopK: cfg.TopK}, sess, mem, fast, deep, logger, metrics)

	logger.Info("assistant built",
		zap.String("session_id", sess.ID),
		zap.String("memory_backend", cfg.MemoryBackend),
		zap.String("embeddings", cfg.EmbeddingProvider),
		zap.String("fast", fast.Name()),
		zap.String("deep", deep.Name()),
		zap.Bool("dry_run", cfg.SimulateResponses),
	)

	cleanup := func() error {
		var errs []string
		if err := mem.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if closeEmbedder != nil {
			if err := closeEmbedder(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Session:      sess,
		Memory:       mem,
		Orchestrator: orch,
		Fast:         fast,
		Deep:         deep,
		Requests:     make(chan orchestrator.Request),
		Cleanup:      cleanup,
	}, nil
}

// API returns the HTTP server bound to this build's orchestrator loop.
func (b *BuildResult) API() *httpapi.Server {
	return httpapi.New(b.Config, b.Orchestrator, b.Requests, b.Metrics, b.Logger)
}

func buildDeep(ctx context.Context, cfg config.Config, logger *zap.Logger, metrics *observability.Metrics) llm.Client {
	if cfg.DeepProvider == "anthropic" {
		return llm.NewAnthropic(llm.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			MaxTokens: cfg.MaxOutputTokens,
			Timeout:   cfg.RequestTimeout,
		}, logger, metrics)
	}
	return llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:          cfg.GoogleAPIKey,
		CredentialsFile: cfg.GoogleCredentialsFile,
		Project:         cfg.GoogleProject,
		Location:        cfg.GoogleLocation,
		Model:           cfg.GeminiModel,
		MaxTokens:       cfg.MaxOutputTokens,
		Timeout:         cfg.RequestTimeout,
	}, logger, metrics)
}

// buildEmbedder picks the chromem embedding function. genai without a key
// falls back to hashing so memory keeps working offline.
func buildEmbedder(ctx context.Context, cfg config.Config, logger *zap.Logger) (memory.Embedder, func() error, error) {
	if cfg.MemoryBackend != "chromem" {
		return nil, nil, nil
	}
	if cfg.EmbeddingProvider == "genai" {
		if strings.TrimSpace(cfg.GoogleAPIKey) == "" {
			logger.Warn("JARVIS_EMBEDDINGS=genai needs GOOGLE_API_KEY; using hash embeddings")
		} else {
			inner, err := memory.NewGenAIEmbedder(ctx, cfg.GoogleAPIKey, cfg.GenAIEmbeddingModel)
			if err != nil {
				return nil, nil, fmt.Errorf("genai embedder init failed: %w", err)
			}
			cached, err := memory.NewCachedEmbedder(inner, embeddingCacheEntries)
			if err != nil {
				return nil, nil, fmt.Errorf("embedding cache init failed: %w", err)
			}
			return cached, cached.Close, nil
		}
	}
	return memory.NewHashEmbedder(cfg.EmbeddingDim), nil, nil
}
