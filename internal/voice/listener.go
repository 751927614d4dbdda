package voice

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// ConsoleListener reads typed lines. A single goroutine owns the reader; Listen
// takes the next line or gives up at the timeout. phraseLimit has no meaning for
// typed input and is ignored.
type ConsoleListener struct {
	lines chan string
	eof   chan struct{}
	quit  chan struct{}
	once  sync.Once
}

func NewConsoleListener(r io.Reader) *ConsoleListener {
	l := &ConsoleListener{
		lines: make(chan string),
		eof:   make(chan struct{}),
		quit:  make(chan struct{}),
	}
	go l.read(r)
	return l
}

func (l *ConsoleListener) read(r io.Reader) {
	defer close(l.eof)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		select {
		case l.lines <- strings.TrimSpace(sc.Text()):
		case <-l.quit:
			return
		}
	}
}

// Done is closed once the input reaches EOF or the listener is closed.
func (l *ConsoleListener) Done() <-chan struct{} { return l.eof }

// Close stops handing out lines. A reader blocked inside Read stays blocked
// until the underlying input returns.
func (l *ConsoleListener) Close() {
	l.once.Do(func() { close(l.quit) })
}

func (l *ConsoleListener) Listen(ctx context.Context, timeout, _ time.Duration) string {
	select {
	case <-l.quit:
		return ""
	default:
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case line := <-l.lines:
		return line
	case <-expired:
		return ""
	case <-l.eof:
		return ""
	case <-l.quit:
		return ""
	case <-ctx.Done():
		return ""
	}
}
