package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ent0n29/jarvis/internal/session"
)

// Config contains all runtime settings for the assistant.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	AudioEnabled      bool
	SimulateResponses bool
	TTSCommand        []string

	MemoryBackend       string
	MemoryStorePath     string
	DatabaseURL         string
	Collection          string
	TopK                int
	EmbeddingProvider   string
	EmbeddingDim        int
	GenAIEmbeddingModel string

	LogLevel string
	LogFile  string

	WakeWord         string
	WakePollInterval time.Duration

	RequestTimeout  time.Duration
	MaxOutputTokens int

	GroqAPIKey    string
	GroqBaseURL   string
	GroqModel     string
	GroqMaxTokens int

	DeepProvider          string
	GoogleAPIKey          string
	GoogleCredentialsFile string
	GoogleProject         string
	GoogleLocation        string
	GeminiModel           string
	AnthropicAPIKey       string
	AnthropicModel        string
}

// Option documents one recognized setting and what it changes.
type Option struct {
	Key    string
	Effect string
}

var options = []Option{
	{"JARVIS_AUDIO", "speak responses through the audio output (false prints them instead)"},
	{"JARVIS_DRY_RUN", "return simulated backend responses without network calls"},
	{"JARVIS_TTS_COMMAND", "external text-to-speech program fed each reply on stdin, e.g. espeak"},
	{"JARVIS_CHROMA_DIR", "storage location of the memory vector store"},
	{"JARVIS_MEMORY_BACKEND", "memory backend: chromem, postgres, memory or none"},
	{"DATABASE_URL", "postgres DSN used by the postgres memory backend"},
	{"JARVIS_COLLECTION", "memory collection name"},
	{"JARVIS_TOP_K", "number of memories retrieved per turn"},
	{"JARVIS_EMBEDDINGS", "embedding function for the chromem backend: hash or genai"},
	{"MEMORY_EMBEDDING_DIM", "dimension of hash embeddings"},
	{"JARVIS_EMBEDDING_MODEL", "model used by genai embeddings"},
	{"LOG_LEVEL", "log verbosity: debug, info, warn or error"},
	{"LOG_FILE", "append logs to this file in addition to stderr"},
	{"JARVIS_WAKE_WORD", "token that wakes the assistant in background mode"},
	{"JARVIS_WAKE_POLL_INTERVAL", "pause between wake-word listens"},
	{"REQUEST_TIMEOUT", "per-call timeout for both backends (seconds or duration)"},
	{"LLM_MAX_TOKENS", "maximum output tokens requested from the deep backend"},
	{"GROQ_MAX_TOKENS", "maximum output tokens requested from the fast backend"},
	{"GROQ_API_KEY", "credential for the fast backend"},
	{"GROQ_BASE_URL", "OpenAI-compatible endpoint of the fast backend"},
	{"GROQ_MODEL", "fast backend model"},
	{"JARVIS_DEEP_PROVIDER", "deep backend: gemini or anthropic"},
	{"GOOGLE_API_KEY", "Gemini API key"},
	{"GOOGLE_APPLICATION_CREDENTIALS", "service account file, selects Vertex AI when no API key is set"},
	{"GOOGLE_CLOUD_PROJECT", "Vertex AI project"},
	{"GOOGLE_CLOUD_LOCATION", "Vertex AI location"},
	{"GEMINI_MODEL", "deep backend model for gemini"},
	{"ANTHROPIC_API_KEY", "credential for the anthropic deep backend"},
	{"ANTHROPIC_MODEL", "deep backend model for anthropic"},
	{"APP_BIND_ADDR", "HTTP listen address for serve"},
	{"APP_SHUTDOWN_TIMEOUT", "graceful shutdown deadline"},
	{"APP_METRICS_NAMESPACE", "prometheus namespace"},
	{"APP_ALLOW_ANY_ORIGIN", "accept websocket upgrades from any origin"},
	{"JARVIS_CONFIG_FILE", "YAML file with defaults for any of the keys above"},
}

// Describe returns the recognized options in a stable order.
func Describe() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// Load reads .env, the optional YAML file and the environment, then applies safe defaults.
// Real environment variables always win over .env and the YAML file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if path := stringsTrimSpace("JARVIS_CONFIG_FILE"); path != "" {
		if err := applyFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		BindAddr:              envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:      envOrDefault("APP_METRICS_NAMESPACE", "jarvis"),
		ShutdownTimeout:       15 * time.Second,
		AudioEnabled:          true,
		TTSCommand:            strings.Fields(os.Getenv("JARVIS_TTS_COMMAND")),
		MemoryBackend:         strings.ToLower(envOrDefault("JARVIS_MEMORY_BACKEND", "chromem")),
		MemoryStorePath:       envOrDefault("JARVIS_CHROMA_DIR", "./.chroma"),
		DatabaseURL:           stringsTrimSpace("DATABASE_URL"),
		Collection:            envOrDefault("JARVIS_COLLECTION", "jarvis_memories"),
		TopK:                  4,
		EmbeddingProvider:     strings.ToLower(envOrDefault("JARVIS_EMBEDDINGS", "hash")),
		EmbeddingDim:          384,
		GenAIEmbeddingModel:   envOrDefault("JARVIS_EMBEDDING_MODEL", "gemini-embedding-001"),
		LogLevel:              strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFile:               stringsTrimSpace("LOG_FILE"),
		WakeWord:              strings.ToLower(envOrDefault("JARVIS_WAKE_WORD", "jarvis")),
		WakePollInterval:      300 * time.Millisecond,
		RequestTimeout:        10 * time.Second,
		MaxOutputTokens:       1024,
		GroqAPIKey:            stringsTrimSpace("GROQ_API_KEY"),
		GroqBaseURL:           envOrDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:             envOrDefault("GROQ_MODEL", "llama-3.1-8b-instant"),
		GroqMaxTokens:         512,
		DeepProvider:          strings.ToLower(envOrDefault("JARVIS_DEEP_PROVIDER", "gemini")),
		GoogleAPIKey:          stringsTrimSpace("GOOGLE_API_KEY"),
		GoogleCredentialsFile: stringsTrimSpace("GOOGLE_APPLICATION_CREDENTIALS"),
		GoogleProject:         stringsTrimSpace("GOOGLE_CLOUD_PROJECT"),
		GoogleLocation:        envOrDefault("GOOGLE_CLOUD_LOCATION", "us-central1"),
		GeminiModel:           envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		AnthropicAPIKey:       stringsTrimSpace("ANTHROPIC_API_KEY"),
		AnthropicModel:        envOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.AudioEnabled, err = boolFromEnv("JARVIS_AUDIO", cfg.AudioEnabled)
	if err != nil {
		return Config{}, err
	}
	cfg.SimulateResponses, err = boolFromEnv("JARVIS_DRY_RUN", cfg.SimulateResponses)
	if err != nil {
		return Config{}, err
	}
	cfg.TopK, err = intFromEnv("JARVIS_TOP_K", cfg.TopK)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("MEMORY_EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.WakePollInterval, err = durationFromEnv("JARVIS_WAKE_POLL_INTERVAL", cfg.WakePollInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout, err = durationFromEnv("REQUEST_TIMEOUT", cfg.RequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxOutputTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.MaxOutputTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.GroqMaxTokens, err = intFromEnv("GROQ_MAX_TOKENS", cfg.GroqMaxTokens)
	if err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is also used after CLI flags are applied.
func (c Config) Validate() error {
	switch c.MemoryBackend {
	case "chromem", "memory", "none":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("JARVIS_MEMORY_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("invalid JARVIS_MEMORY_BACKEND: %q (expected chromem|postgres|memory|none)", c.MemoryBackend)
	}
	switch c.DeepProvider {
	case "gemini", "anthropic":
	default:
		return fmt.Errorf("invalid JARVIS_DEEP_PROVIDER: %q (expected gemini|anthropic)", c.DeepProvider)
	}
	switch c.EmbeddingProvider {
	case "hash", "genai":
	default:
		return fmt.Errorf("invalid JARVIS_EMBEDDINGS: %q (expected hash|genai)", c.EmbeddingProvider)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.LogLevel)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("JARVIS_TOP_K must be positive")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("MEMORY_EMBEDDING_DIM must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be positive")
	}
	if c.GroqMaxTokens <= 0 {
		return fmt.Errorf("GROQ_MAX_TOKENS must be positive")
	}
	if c.WakePollInterval <= 0 {
		return fmt.Errorf("JARVIS_WAKE_POLL_INTERVAL must be positive")
	}
	if strings.TrimSpace(c.WakeWord) == "" {
		return fmt.Errorf("JARVIS_WAKE_WORD must not be empty")
	}
	return nil
}

// Runtime returns the subset of settings a conversation session carries.
func (c Config) Runtime() session.RuntimeConfig {
	return session.RuntimeConfig{
		AudioEnabled:      c.AudioEnabled,
		SimulateResponses: c.SimulateResponses,
		MemoryStorePath:   c.MemoryStorePath,
	}
}

// applyFile copies flat KEY: value pairs from a YAML file into the environment
// for every key that is unset or empty.
func applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	for key, v := range values {
		if strings.TrimSpace(os.Getenv(key)) != "" {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			return fmt.Errorf("config file %s: %s must be a scalar", path, key)
		}
		if err := os.Setenv(key, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("apply config file key %s: %w", key, err)
		}
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// durationFromEnv accepts Go durations ("1500ms") and bare seconds ("10").
func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
