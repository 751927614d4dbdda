package voice

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const commandTimeout = 60 * time.Second

// ConsoleSpeaker prints "Jarvis: <text>" and, when audio is on and a TTS
// command is configured, pipes a speakable rendering of the text to that
// command's stdin. Each Speak runs on its own goroutine; consecutive calls may
// overlap or finish out of order.
type ConsoleSpeaker struct {
	out     io.Writer
	command []string
	audio   func() bool
	logger  *zap.Logger

	mu sync.Mutex // serializes writes to out
	wg sync.WaitGroup
}

type SpeakerOptions struct {
	Out io.Writer
	// Command is argv for an external TTS program such as "espeak" or "say".
	Command []string
	// AudioEnabled is consulted on every call so runtime config changes apply.
	AudioEnabled func() bool
	Logger       *zap.Logger
}

func NewConsoleSpeaker(opts SpeakerOptions) *ConsoleSpeaker {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.AudioEnabled == nil {
		opts.AudioEnabled = func() bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ConsoleSpeaker{
		out:     opts.Out,
		command: opts.Command,
		audio:   opts.AudioEnabled,
		logger:  opts.Logger.Named("speaker"),
	}
}

func (s *ConsoleSpeaker) Speak(text string) {
	if text == "" {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.mu.Lock()
		fmt.Fprintf(s.out, "Jarvis: %s\n", text)
		s.mu.Unlock()

		if len(s.command) == 0 || !s.audio() {
			return
		}
		if err := s.run(speakableText(text)); err != nil {
			s.logger.Warn("tts command failed", zap.Strings("command", s.command), zap.Error(err))
		}
	}()
}

func (s *ConsoleSpeaker) run(text string) error {
	if text == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, s.command[0], s.command[1:]...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

// Wait blocks until every detached Speak has finished. Only shutdown and tests
// call it; no turn ever waits on playback.
func (s *ConsoleSpeaker) Wait() { s.wg.Wait() }
