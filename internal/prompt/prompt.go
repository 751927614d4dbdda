package prompt

import (
	"strings"

	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/session"
)

// HistoryTurns is how many trailing turns are rendered into a prompt.
const HistoryTurns = 6

const noMemories = "No relevant memories."

// Build renders the model prompt. Memories keep their retrieval order and only the
// last HistoryTurns turns of history are included. Nothing is truncated.
func Build(utterance string, memories []memory.RetrievalResult, history []session.Turn) string {
	var b strings.Builder

	b.WriteString("Context - Relevant memories:\n")
	if len(memories) == 0 {
		b.WriteString(noMemories)
	}
	for i, m := range memories {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(m.Text)
	}

	b.WriteString("\n\nConversation history:\n")
	if len(history) > HistoryTurns {
		history = history[len(history)-HistoryTurns:]
	}
	for i, t := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Line())
	}

	b.WriteString("\n\nUser: ")
	b.WriteString(utterance)
	b.WriteString("\nJarvis:")
	return b.String()
}
