package assistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type queueListener struct {
	mu      sync.Mutex
	lines   []string
	windows []time.Duration
	done    chan struct{}
}

func newQueueListener(lines ...string) *queueListener {
	return &queueListener{lines: lines, done: make(chan struct{})}
}

func (l *queueListener) Listen(_ context.Context, timeout, _ time.Duration) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = append(l.windows, timeout)
	if len(l.lines) == 0 {
		select {
		case <-l.done:
		default:
			close(l.done)
		}
		return ""
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line
}

func (l *queueListener) Done() <-chan struct{} { return l.done }

type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *recordingSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
}

func (s *recordingSpeaker) said() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func echoHandler(got *[]string) Handler {
	return func(_ context.Context, u string) (string, error) {
		*got = append(*got, u)
		return "echo: " + u, nil
	}
}

func TestRunInteractiveStopsOnExitWord(t *testing.T) {
	var handled []string
	l := newQueueListener("", "what time is it", "  Goodbye ", "never reached")
	s := &recordingSpeaker{}
	c := NewConsole(l, s, echoHandler(&handled), nil)
	c.now = func() time.Time { return time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, c.RunInteractive(context.Background()))

	assert.Equal(t, []string{"what time is it"}, handled)
	assert.Equal(t, []string{
		"Good morning. I am Jarvis. How can I assist?",
		"echo: what time is it",
		"Goodbye, Sir.",
	}, s.said())
}

func TestRunInteractiveStopsAtEOF(t *testing.T) {
	var handled []string
	l := newQueueListener("hello")
	s := &recordingSpeaker{}
	c := NewConsole(l, s, echoHandler(&handled), nil)

	require.NoError(t, c.RunInteractive(context.Background()))
	assert.Equal(t, []string{"hello"}, handled)
	said := s.said()
	assert.Equal(t, "Shutting down.", said[len(said)-1])
}

func TestOnWake(t *testing.T) {
	var handled []string
	l := newQueueListener("turn on the lights")
	s := &recordingSpeaker{}
	c := NewConsole(l, s, echoHandler(&handled), nil)

	c.OnWake(context.Background())
	assert.Equal(t, []string{"Yes?", "echo: turn on the lights"}, s.said())
	assert.Equal(t, []time.Duration{8 * time.Second}, l.windows)

	c.OnWake(context.Background())
	assert.Equal(t, "I didn't catch that.", s.said()[3])
}

func TestAnswerSwallowsHandlerError(t *testing.T) {
	l := newQueueListener("hi")
	s := &recordingSpeaker{}
	c := NewConsole(l, s, func(context.Context, string) (string, error) {
		return "", errors.New("queue closed")
	}, nil)
	c.OnWake(context.Background())
	assert.Equal(t, []string{"Yes?"}, s.said())
}

func TestTimeGreeting(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC) }
	assert.Equal(t, "Good morning.", timeGreeting(at(6)))
	assert.Equal(t, "Good afternoon.", timeGreeting(at(12)))
	assert.Equal(t, "Good evening.", timeGreeting(at(21)))
}

func TestIsExit(t *testing.T) {
	for _, w := range []string{"exit", "QUIT", " goodbye "} {
		assert.True(t, IsExit(w), w)
	}
	assert.False(t, IsExit("exit now"))
}
