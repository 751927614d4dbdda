package wakeword

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ent0n29/jarvis/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptListener returns queued phrases, then blocks until the timeout.
type scriptListener struct {
	mu      sync.Mutex
	phrases []string
	listens atomic.Int32
}

func (l *scriptListener) Listen(ctx context.Context, timeout, _ time.Duration) string {
	l.listens.Add(1)
	l.mu.Lock()
	if len(l.phrases) > 0 {
		p := l.phrases[0]
		l.phrases = l.phrases[1:]
		l.mu.Unlock()
		return p
	}
	l.mu.Unlock()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	return ""
}

func fastConfig() Config {
	return Config{WakeToken: "Jarvis", ProbeTimeout: 20 * time.Millisecond, PhraseLimit: 20 * time.Millisecond, PollInterval: time.Millisecond}
}

func TestDetect(t *testing.T) {
	s := New(fastConfig(), &scriptListener{}, nil, nil, nil)
	cases := map[string]bool{
		"hey JARVIS are you there": true,
		"jarvis":                   true,
		"hello":                    false,
		"":                         false,
	}
	for in, want := range cases {
		assert.Equal(t, want, s.Detect(in), in)
	}
}

func TestSupervisorFiresOnWakeToken(t *testing.T) {
	l := &scriptListener{phrases: []string{"background noise", "ok jarvis", "more noise"}}
	fired := make(chan State, 4)
	var s *Supervisor
	s = New(fastConfig(), l, func(context.Context) { fired <- s.State() }, nil, observability.NewMetrics("test"))

	assert.Equal(t, Sleeping, s.State())
	stop := s.Start(context.Background())
	defer stop()

	select {
	case st := <-fired:
		assert.Equal(t, Triggered, st)
	case <-time.After(2 * time.Second):
		t.Fatal("callback not invoked")
	}
	stop()
	assert.Equal(t, Sleeping, s.State())
	assert.Len(t, fired, 0)
}

func TestSupervisorStopIsPrompt(t *testing.T) {
	cfg := fastConfig()
	cfg.ProbeTimeout = time.Hour
	s := New(cfg, &scriptListener{}, nil, nil, nil)
	stop := s.Start(context.Background())

	start := time.Now()
	stop()
	stop()
	assert.Less(t, time.Since(start), time.Second)
}

func TestSupervisorRecoversCallbackPanic(t *testing.T) {
	l := &scriptListener{phrases: []string{"jarvis", "jarvis"}}
	var calls atomic.Int32
	s := New(fastConfig(), l, func(context.Context) {
		if calls.Add(1) == 1 {
			panic("boom")
		}
	}, nil, nil)

	stop := s.Start(context.Background())
	defer stop()
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunReturnsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	s := New(fastConfig(), &scriptListener{}, nil, nil, nil)
	assert.NoError(t, s.Run(ctx))
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{}, &scriptListener{}, nil, nil, nil)
	assert.Equal(t, DefaultConfig(), s.cfg)
}

func TestNewReplacesNonPositivePollInterval(t *testing.T) {
	for _, d := range []time.Duration{0, -time.Second} {
		cfg := fastConfig()
		cfg.PollInterval = d
		s := New(cfg, &scriptListener{}, nil, nil, nil)
		assert.Equal(t, DefaultConfig().PollInterval, s.cfg.PollInterval, "poll interval %v", d)
	}
}

// emptyListener returns from every Listen call at once, as a closed microphone would.
type emptyListener struct{ listens atomic.Int32 }

func (l *emptyListener) Listen(context.Context, time.Duration, time.Duration) string {
	l.listens.Add(1)
	return ""
}

func TestRunPausesBetweenInstantListens(t *testing.T) {
	cfg := fastConfig()
	cfg.PollInterval = 0
	l := &emptyListener{}
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, New(cfg, l, nil, nil, nil).Run(ctx))
	assert.LessOrEqual(t, l.listens.Load(), int32(2))
}

// endedListener has no more input.
type endedListener struct{ done chan struct{} }

func (l endedListener) Listen(context.Context, time.Duration, time.Duration) string { return "" }
func (l endedListener) Done() <-chan struct{}                                       { return l.done }

func TestRunReturnsWhenInputEnds(t *testing.T) {
	l := endedListener{done: make(chan struct{})}
	close(l.done)
	s := New(fastConfig(), l, nil, nil, nil)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after input ended")
	}
}
