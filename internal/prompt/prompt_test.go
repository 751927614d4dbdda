package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/session"
)

func TestBuildWithoutMemoriesOrHistory(t *testing.T) {
	got := Build("hi", nil, nil)
	want := "Context - Relevant memories:\nNo relevant memories.\n\nConversation history:\n\n\nUser: hi\nJarvis:"
	assert.Equal(t, want, got)
}

func TestBuildKeepsMemoryOrderAndLastSixTurns(t *testing.T) {
	memories := []memory.RetrievalResult{{Text: "likes tea"}, {Text: "owns a cat"}}
	var history []session.Turn
	for i := 0; i < 10; i++ {
		role := session.RoleUser
		if i%2 == 1 {
			role = session.RoleAssistant
		}
		history = append(history, session.Turn{Role: role, Text: fmt.Sprintf("t%d", i)})
	}

	got := Build("what now", memories, history)

	want := strings.Join([]string{
		"Context - Relevant memories:",
		"- likes tea",
		"- owns a cat",
		"",
		"Conversation history:",
		"User: t4",
		"Jarvis: t5",
		"User: t6",
		"Jarvis: t7",
		"User: t8",
		"Jarvis: t9",
		"",
		"User: what now",
		"Jarvis:",
	}, "\n")
	assert.Equal(t, want, got)
	assert.NotContains(t, got, "t3")
}

func TestBuildDeterministic(t *testing.T) {
	memories := []memory.RetrievalResult{{Text: "a"}}
	history := []session.Turn{{Role: session.RoleUser, Text: "x"}}
	assert.Equal(t, Build("u", memories, history), Build("u", memories, history))
}

func TestBuildDoesNotTruncateLongMemories(t *testing.T) {
	long := strings.Repeat("m", 5000)
	got := Build("u", []memory.RetrievalResult{{Text: long}}, nil)
	assert.Contains(t, got, "- "+long)
}
