package routing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/jarvis/internal/session"
)

func turns(n int) []session.Turn {
	out := make([]session.Turn, n)
	for i := range out {
		out[i] = session.Turn{Role: session.RoleUser, Text: "hi"}
	}
	return out
}

func TestExplain(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
		history   int
		want      Backend
		rule      Rule
	}{
		{"short greeting", "hello there", 0, Fast, RuleDefault},
		{"recall cue", "Do you REMEMBER my dog?", 0, Deep, RuleRecallCue},
		{"what did i", "what did I say about lunch", 0, Deep, RuleRecallCue},
		{"analytic cue", "explain recursion", 0, Deep, RuleAnalyticCue},
		{"why", "why is the sky blue", 0, Deep, RuleAnalyticCue},
		{"substring match", "I love pasta", 0, Deep, RuleRecallCue},
		{"planet contains plan", "name a planet", 0, Deep, RuleAnalyticCue},
		{"exactly 200 runes", strings.Repeat("a", 200), 0, Fast, RuleDefault},
		{"201 runes", strings.Repeat("a", 201), 0, Deep, RuleLongUtterance},
		{"history at threshold", "hello", 8, Fast, RuleDefault},
		{"history over threshold", "hello", 9, Deep, RuleLongHistory},
		{"recall beats length", "recall " + strings.Repeat("b", 300), 0, Deep, RuleRecallCue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, rule := Explain(tc.utterance, turns(tc.history))
			assert.Equal(t, tc.want, b)
			assert.Equal(t, tc.rule, rule)
			assert.Equal(t, tc.want, Decide(tc.utterance, turns(tc.history)))
		})
	}
}

func TestDecideCountsRunesNotBytes(t *testing.T) {
	// 150 two-byte runes: 300 bytes but under the rune limit.
	u := strings.Repeat("é", 150)
	assert.Equal(t, Fast, Decide(u, nil))
}

func TestDecideDeterministic(t *testing.T) {
	h := turns(3)
	first := Decide("compare these options", h)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Decide("compare these options", h))
	}
}

func TestDeepStaysDeepAsInputGrows(t *testing.T) {
	cases := []struct {
		name      string
		utterance string
		history   int
	}{
		{"recall cue", "do you remember my dog", 0},
		{"analytic cue", "explain recursion", 2},
		{"long utterance", strings.Repeat("a", 201), 0},
		{"long history", "hello", 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, Deep, Decide(tc.utterance, turns(tc.history)))
			for _, extraTurns := range []int{1, 5, 20} {
				for _, extraWords := range []int{0, 3, 60} {
					u := tc.utterance + strings.Repeat(" more", extraWords)
					assert.Equal(t, Deep, Decide(u, turns(tc.history+extraTurns)),
						"+%d turns, +%d words", extraTurns, extraWords)
				}
			}
		})
	}
}
