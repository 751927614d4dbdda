package routing

import (
	"strings"
	"unicode/utf8"

	"github.com/ent0n29/jarvis/internal/session"
)

// Backend selects which model client answers a turn.
type Backend string

const (
	Fast Backend = "fast"
	Deep Backend = "deep"
)

// Rule names the condition that decided a route.
type Rule string

const (
	RuleRecallCue     Rule = "recall_cue"
	RuleLongUtterance Rule = "long_utterance"
	RuleLongHistory   Rule = "long_history"
	RuleAnalyticCue   Rule = "analytic_cue"
	RuleDefault       Rule = "default"
)

const (
	// MaxFastRunes is the longest utterance still eligible for the fast backend.
	MaxFastRunes = 200
	// MaxFastHistory is the largest history window still eligible for the fast backend.
	MaxFastHistory = 8
	// Window is how many recent turns callers should hand to Decide.
	Window = 16
)

// Cues match as plain substrings of the lower-cased utterance, so "past" also
// matches "pasta" and "plan" matches "planet".
var (
	recallCues   = []string{"remember", "remind", "what did i", "previously", "earlier", "past", "recall"}
	analyticCues = []string{"analyze", "explain", "summarize", "plan", "optimize", "compare", "why"}
)

// Decide picks the backend for an utterance given the recent history window.
func Decide(utterance string, recent []session.Turn) Backend {
	b, _ := Explain(utterance, recent)
	return b
}

// Explain is Decide plus the rule that fired.
func Explain(utterance string, recent []session.Turn) (Backend, Rule) {
	lower := strings.ToLower(utterance)
	if containsAny(lower, recallCues) {
		return Deep, RuleRecallCue
	}
	if utf8.RuneCountInString(utterance) > MaxFastRunes {
		return Deep, RuleLongUtterance
	}
	if len(recent) > MaxFastHistory {
		return Deep, RuleLongHistory
	}
	if containsAny(lower, analyticCues) {
		return Deep, RuleAnalyticCue
	}
	return Fast, RuleDefault
}

func containsAny(s string, cues []string) bool {
	for _, c := range cues {
		if strings.Contains(s, c) {
			return true
		}
	}
	return false
}
