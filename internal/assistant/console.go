package assistant

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/voice"
)

const (
	commandTimeout = 8 * time.Second
	commandPhrase  = 20 * time.Second
	loopTimeout    = 6 * time.Second
	loopPhrase     = 20 * time.Second
)

// Handler answers one utterance. The orchestrator, or a Submit closure over
// its request channel, satisfies it.
type Handler func(ctx context.Context, utterance string) (string, error)

// Console drives a terminal conversation: listen, hand the utterance to the
// handler, speak the reply.
type Console struct {
	listener voice.Listener
	speaker  voice.Speaker
	handle   Handler
	logger   *zap.Logger
	now      func() time.Time
}

func NewConsole(listener voice.Listener, speaker voice.Speaker, handle Handler, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{
		listener: listener,
		speaker:  speaker,
		handle:   handle,
		logger:   logger.Named("console"),
		now:      time.Now,
	}
}

// Greeting is the opening line for the current time of day.
func (c *Console) Greeting() string {
	return timeGreeting(c.now()) + " I am Jarvis. How can I assist?"
}

func timeGreeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good morning."
	case h < 18:
		return "Good afternoon."
	default:
		return "Good evening."
	}
}

// IsExit reports whether the utterance ends the interactive loop.
func IsExit(utterance string) bool {
	switch strings.ToLower(strings.TrimSpace(utterance)) {
	case "exit", "quit", "goodbye":
		return true
	}
	return false
}

// RunInteractive greets, then loops until an exit word, input EOF, or ctx is done.
func (c *Console) RunInteractive(ctx context.Context) error {
	c.speaker.Speak(c.Greeting())

	var eof <-chan struct{}
	if d, ok := c.listener.(interface{ Done() <-chan struct{} }); ok {
		eof = d.Done()
	}

	for {
		select {
		case <-ctx.Done():
			c.speaker.Speak("Shutting down.")
			return nil
		case <-eof:
			c.speaker.Speak("Shutting down.")
			return nil
		default:
		}

		text := strings.TrimSpace(c.listener.Listen(ctx, loopTimeout, loopPhrase))
		if text == "" {
			continue
		}
		if IsExit(text) {
			c.speaker.Speak("Goodbye, Sir.")
			return nil
		}
		c.answer(ctx, text)
	}
}

// OnWake runs after the wake word: prompt, capture one command, answer it.
func (c *Console) OnWake(ctx context.Context) {
	c.speaker.Speak("Yes?")
	text := strings.TrimSpace(c.listener.Listen(ctx, commandTimeout, commandPhrase))
	if text == "" {
		c.speaker.Speak("I didn't catch that.")
		return
	}
	c.answer(ctx, text)
}

func (c *Console) answer(ctx context.Context, text string) {
	reply, err := c.handle(ctx, text)
	if err != nil {
		c.logger.Warn("turn not handled", zap.Error(err))
		return
	}
	c.speaker.Speak(reply)
}
