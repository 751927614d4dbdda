package wakeword

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/voice"
)

type State int32

const (
	Sleeping State = iota
	Triggered
)

func (s State) String() string {
	if s == Triggered {
		return "triggered"
	}
	return "sleeping"
}

type Config struct {
	WakeToken    string
	ProbeTimeout time.Duration
	PhraseLimit  time.Duration
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		WakeToken:    "jarvis",
		ProbeTimeout: 2 * time.Second,
		PhraseLimit:  3 * time.Second,
		PollInterval: 300 * time.Millisecond,
	}
}

// OnWake runs after the wake token is heard. The supervisor does not listen
// again until it returns.
type OnWake func(ctx context.Context)

// Supervisor polls a listener for the wake token and hands control to OnWake.
type Supervisor struct {
	cfg      Config
	listener voice.Listener
	onWake   OnWake
	state    atomic.Int32

	logger  *zap.Logger
	metrics *observability.Metrics
}

func New(cfg Config, listener voice.Listener, onWake OnWake, logger *zap.Logger, metrics *observability.Metrics) *Supervisor {
	def := DefaultConfig()
	cfg.WakeToken = strings.ToLower(strings.TrimSpace(cfg.WakeToken))
	if cfg.WakeToken == "" {
		cfg.WakeToken = def.WakeToken
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.PhraseLimit <= 0 {
		cfg.PhraseLimit = def.PhraseLimit
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Supervisor{
		cfg:      cfg,
		listener: listener,
		onWake:   onWake,
		logger:   logger.Named("wakeword"),
		metrics:  metrics,
	}
}

func (s *Supervisor) State() State { return State(s.state.Load()) }

// Detect reports whether text contains the wake token, ignoring case.
func (s *Supervisor) Detect(text string) bool {
	return text != "" && strings.Contains(strings.ToLower(text), s.cfg.WakeToken)
}

// Run listens until ctx is done or the listener's input ends. Stop latency is bounded by one listen plus one poll interval.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("wake-word listener started", zap.String("token", s.cfg.WakeToken))
	defer s.logger.Info("wake-word listener stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}
		heard := s.listener.Listen(ctx, s.cfg.ProbeTimeout, s.cfg.PhraseLimit)
		if ctx.Err() != nil {
			return nil
		}
		if s.Detect(heard) {
			s.trigger(ctx)
		}
		if s.exhausted() {
			return nil
		}
		if s.cfg.PollInterval > 0 {
			t := time.NewTimer(s.cfg.PollInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
	}
}

// exhausted reports whether the listener's input has ended for good.
func (s *Supervisor) exhausted() bool {
	d, ok := s.listener.(interface{ Done() <-chan struct{} })
	if !ok {
		return false
	}
	select {
	case <-d.Done():
		return true
	default:
		return false
	}
}

func (s *Supervisor) trigger(ctx context.Context) {
	s.state.Store(int32(Triggered))
	defer s.state.Store(int32(Sleeping))

	s.metrics.ObserveWakeEvent("detected")
	s.logger.Info("wake word detected")
	if err := s.invoke(ctx); err != nil {
		s.metrics.ObserveWakeEvent("callback_panic")
		s.logger.Error("wake callback failed", zap.Error(err))
	}
}

func (s *Supervisor) invoke(ctx context.Context) (err error) {
	if s.onWake == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	s.onWake(ctx)
	return nil
}

// Start runs the supervisor on its own goroutine and returns at once. stop
// cancels it and waits for Run to return; calling stop again is harmless.
func (s *Supervisor) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
