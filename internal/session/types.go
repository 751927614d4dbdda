package session

import "time"

// Role identifies who spoke a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Label is the speaker prefix used when a turn is rendered into a transcript.
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Jarvis"
	}
	return "User"
}

// Turn is one utterance in the rolling transcript. Turns are never mutated after Append.
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Line renders the turn as "User: ..." or "Jarvis: ...".
func (t Turn) Line() string {
	return t.Role.Label() + ": " + t.Text
}

// RuntimeConfig holds the settings that may change while the process runs.
type RuntimeConfig struct {
	AudioEnabled      bool   `json:"audio_enabled"`
	SimulateResponses bool   `json:"simulate_responses"`
	MemoryStorePath   string `json:"memory_store_path"`
}
