package orchestrator

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/llm"
	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/policy"
	"github.com/ent0n29/jarvis/internal/prompt"
	"github.com/ent0n29/jarvis/internal/routing"
	"github.com/ent0n29/jarvis/internal/session"
)

const defaultTopK = 4

// Outcome is the result of one handled turn. Response is empty only for an
// empty utterance.
type Outcome struct {
	Response string          `json:"response"`
	Backend  routing.Backend `json:"backend,omitempty"`
	Rule     routing.Rule    `json:"rule,omitempty"`
}

type Config struct {
	TopK int
}

// Orchestrator runs turns against the session. It is the only writer of the
// session history; turns are serialized under mu.
type Orchestrator struct {
	mu sync.Mutex

	session *session.Session
	memory  *memory.Adapter
	fast    llm.Client
	deep    llm.Client
	topK    int

	logger  *zap.Logger
	metrics *observability.Metrics
}

func New(cfg Config, sess *session.Session, mem *memory.Adapter, fast, deep llm.Client, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	return &Orchestrator{
		session: sess,
		memory:  mem,
		fast:    fast,
		deep:    deep,
		topK:    cfg.TopK,
		logger:  logger.Named("orchestrator"),
		metrics: metrics,
	}
}

func (o *Orchestrator) Session() *session.Session { return o.session }

func (o *Orchestrator) Memory() *memory.Adapter { return o.memory }

// Handle runs one turn and returns the response text.
func (o *Orchestrator) Handle(ctx context.Context, utterance string) string {
	return o.HandleTurn(ctx, utterance).Response
}

// HandleTurn runs one turn: record the user turn, retrieve memories, route,
// build the prompt, generate, record the reply, then store both sides as memories.
// Backend and store failures degrade the reply text; nothing is returned as an error.
func (o *Orchestrator) HandleTurn(ctx context.Context, utterance string) Outcome {
	if strings.TrimSpace(utterance) == "" {
		return Outcome{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	start := time.Now()
	cfg := o.session.Config()
	logger := o.logger.With(zap.String("session_id", o.session.ID))

	o.session.Append(session.Turn{Role: session.RoleUser, Text: utterance})

	memories := o.memory.Query(ctx, utterance, o.topK)

	backend, rule := routing.Explain(utterance, o.session.Recent(routing.Window))

	p := prompt.Build(utterance, memories, o.session.Recent(prompt.HistoryTurns))

	client := o.fast
	if backend == routing.Deep {
		client = o.deep
	}
	redacted, _ := policy.RedactPII(utterance)
	logger.Info("turn routed",
		zap.String("backend", string(backend)),
		zap.String("rule", string(rule)),
		zap.String("client", client.Name()),
		zap.Int("memories", len(memories)),
		zap.String("utterance", redacted),
	)

	response := client.Generate(ctx, llm.Request{Prompt: p, Simulate: cfg.SimulateResponses})

	o.session.Append(session.Turn{Role: session.RoleAssistant, Text: response})

	now := time.Now().UTC().Format(time.RFC3339Nano)
	o.memory.Add(ctx, utterance, memory.Metadata{"type": string(session.RoleUser), "created_at": now})
	o.memory.Add(ctx, response, memory.Metadata{"type": string(session.RoleAssistant), "created_at": now, "backend": string(backend)})
	o.memory.Persist(ctx)

	elapsed := time.Since(start)
	o.metrics.ObserveTurn(string(backend), string(rule), o.session.Len())
	o.metrics.ObserveStage("turn_total", elapsed)
	logger.Debug("turn complete", zap.Duration("elapsed", elapsed), zap.Int("response_chars", len(response)))

	return Outcome{Response: response, Backend: backend, Rule: rule}
}

// Configure replaces the session's runtime config. A new storage location
// reopens the memory store; a failed reopen leaves memory disabled and is
// returned so the host can report it.
func (o *Orchestrator) Configure(ctx context.Context, cfg session.RuntimeConfig) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	prev := o.session.SetConfig(cfg)
	o.logger.Info("runtime config updated",
		zap.Bool("audio_enabled", cfg.AudioEnabled),
		zap.Bool("simulate_responses", cfg.SimulateResponses),
		zap.String("memory_store_path", cfg.MemoryStorePath),
	)
	if prev.MemoryStorePath == cfg.MemoryStorePath {
		return nil
	}
	return o.memory.Reinit(ctx, cfg.MemoryStorePath)
}
