package voice

import (
	"context"
	"time"
)

// Listener captures one utterance. It returns "" when nothing usable was heard
// before timeout and must never block past it.
type Listener interface {
	Listen(ctx context.Context, timeout, phraseLimit time.Duration) string
}

// Speaker plays text. Speak returns immediately; playback runs detached and
// failures are logged, never returned.
type Speaker interface {
	Speak(text string)
}

// MuteSpeaker drops everything. Used when audio is disabled and nothing is
// attached to a terminal.
type MuteSpeaker struct{}

func (MuteSpeaker) Speak(string) {}
