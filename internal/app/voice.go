package app

import (
	"context"
	"io"

	"github.com/ent0n29/jarvis/internal/assistant"
	"github.com/ent0n29/jarvis/internal/orchestrator"
	"github.com/ent0n29/jarvis/internal/voice"
	"github.com/ent0n29/jarvis/internal/wakeword"
)

// Terminal is where the console front-end reads utterances and prints replies.
type Terminal struct {
	In  io.Reader
	Out io.Writer
}

// Frontend is the console conversation surface. The listener owns a reader
// goroutine, so build one per process and Close it on shutdown.
type Frontend struct {
	Console  *assistant.Console
	Listener *voice.ConsoleListener
	Speaker  *voice.ConsoleSpeaker
}

// Frontend wires a terminal to the orchestrator loop; every utterance is
// submitted on Requests.
func (b *BuildResult) Frontend(term Terminal) *Frontend {
	listener := voice.NewConsoleListener(term.In)
	speaker := voice.NewConsoleSpeaker(voice.SpeakerOptions{
		Out:          term.Out,
		Command:      b.Config.TTSCommand,
		AudioEnabled: func() bool { return b.Session.Config().AudioEnabled },
		Logger:       b.Logger,
	})
	handle := func(ctx context.Context, utterance string) (string, error) {
		out, err := orchestrator.Submit(ctx, b.Requests, utterance)
		return out.Response, err
	}
	return &Frontend{
		Console:  assistant.NewConsole(listener, speaker, handle, b.Logger),
		Listener: listener,
		Speaker:  speaker,
	}
}

// WakeSupervisor listens on the frontend for the wake word and runs one
// console command per detection.
func (b *BuildResult) WakeSupervisor(f *Frontend) *wakeword.Supervisor {
	cfg := wakeword.DefaultConfig()
	cfg.WakeToken = b.Config.WakeWord
	cfg.PollInterval = b.Config.WakePollInterval
	return wakeword.New(cfg, f.Listener, f.Console.OnWake, b.Logger, b.Metrics)
}

// Close stops reading input and waits for pending speech to finish.
func (f *Frontend) Close() {
	f.Listener.Close()
	f.Speaker.Wait()
}
