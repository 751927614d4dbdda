package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	SessionID     string        `json:"session_id"`
	FastProvider  string        `json:"fast_provider"`
	DeepProvider  string        `json:"deep_provider"`
	MemoryBackend string        `json:"memory_backend"`
	DryRun        bool          `json:"dry_run"`
	Checks        []statusCheck `json:"checks"`
}

// handleStatus reports what the assistant can do right now and how to fix what it cannot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	runtime := s.engine.Session().Config()
	checks := make([]statusCheck, 0, 8)

	if runtime.SimulateResponses {
		checks = append(checks, statusCheck{
			ID:     "dry_run",
			Status: "warn",
			Label:  "Simulated responses",
			Detail: "backends are not called",
			Fix:    "Unset JARVIS_DRY_RUN or PUT /v1/config {\"simulate_responses\":false}.",
		})
	}
	checks = append(checks, s.backendChecks()...)
	checks = append(checks, s.memoryChecks()...)
	checks = append(checks, s.audioChecks(runtime.AudioEnabled)...)

	respondJSON(w, http.StatusOK, statusResponse{
		SessionID:     s.engine.Session().ID,
		FastProvider:  "groq",
		DeepProvider:  s.cfg.DeepProvider,
		MemoryBackend: s.cfg.MemoryBackend,
		DryRun:        runtime.SimulateResponses,
		Checks:        checks,
	})
}

func (s *Server) backendChecks() []statusCheck {
	out := []statusCheck{credentialCheck("groq_key", "Fast backend credential", s.cfg.GroqAPIKey, "GROQ_API_KEY")}

	switch s.cfg.DeepProvider {
	case "anthropic":
		out = append(out, credentialCheck("anthropic_key", "Deep backend credential", s.cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY"))
	default:
		switch {
		case strings.TrimSpace(s.cfg.GoogleAPIKey) != "":
			out = append(out, statusCheck{ID: "google_credentials", Status: "ok", Label: "Deep backend credential", Detail: "GOOGLE_API_KEY"})
		case strings.TrimSpace(s.cfg.GoogleCredentialsFile) != "":
			check := statusCheck{ID: "google_credentials", Status: "ok", Label: "Deep backend credential", Detail: "Vertex AI service account"}
			if _, err := os.Stat(s.cfg.GoogleCredentialsFile); err != nil {
				check.Status = "error"
				check.Detail = fmt.Sprintf("GOOGLE_APPLICATION_CREDENTIALS unreadable: %v", err)
				check.Fix = "Point GOOGLE_APPLICATION_CREDENTIALS at an existing service account file."
			} else if strings.TrimSpace(s.cfg.GoogleProject) == "" {
				check.Status = "warn"
				check.Detail = "GOOGLE_CLOUD_PROJECT is not set"
				check.Fix = "Set GOOGLE_CLOUD_PROJECT for Vertex AI."
			}
			out = append(out, check)
		default:
			out = append(out, statusCheck{
				ID:     "google_credentials",
				Status: "error",
				Label:  "Deep backend credential",
				Detail: "no Google credentials configured",
				Fix:    "Set GOOGLE_API_KEY or GOOGLE_APPLICATION_CREDENTIALS.",
			})
		}
	}
	return out
}

func credentialCheck(id, label, value, env string) statusCheck {
	if strings.TrimSpace(value) == "" {
		return statusCheck{ID: id, Status: "error", Label: label, Detail: env + " is not set", Fix: "Set " + env + " in the environment or .env."}
	}
	return statusCheck{ID: id, Status: "ok", Label: label, Detail: "present"}
}

func (s *Server) memoryChecks() []statusCheck {
	c := s.engine.Memory().Capability()
	if _, ok := c.Store(); ok {
		return []statusCheck{{
			ID:     "memory_store",
			Status: "ok",
			Label:  "Long-term memory",
			Detail: fmt.Sprintf("%s at %s", s.cfg.MemoryBackend, s.engine.Memory().Location()),
		}}
	}
	check := statusCheck{
		ID:     "memory_store",
		Status: "warn",
		Label:  "Long-term memory",
		Detail: c.Reason(),
		Fix:    "Check JARVIS_MEMORY_BACKEND and JARVIS_CHROMA_DIR; turns still work without memory.",
	}
	if s.cfg.MemoryBackend == "postgres" {
		check.Fix = "Check DATABASE_URL and that postgres is reachable."
	}
	return []statusCheck{check}
}

func (s *Server) audioChecks(enabled bool) []statusCheck {
	if !enabled {
		return []statusCheck{{ID: "audio", Status: "ok", Label: "Audio output", Detail: "disabled"}}
	}
	if len(s.cfg.TTSCommand) == 0 {
		return []statusCheck{{
			ID:     "audio",
			Status: "warn",
			Label:  "Audio output",
			Detail: "no TTS command configured, replies are printed",
			Fix:    "Set JARVIS_TTS_COMMAND, e.g. espeak or say.",
		}}
	}
	if _, err := exec.LookPath(s.cfg.TTSCommand[0]); err != nil {
		return []statusCheck{{
			ID:     "audio",
			Status: "error",
			Label:  "Audio output",
			Detail: fmt.Sprintf("%s not found in PATH", s.cfg.TTSCommand[0]),
			Fix:    "Install it or change JARVIS_TTS_COMMAND.",
		}}
	}
	return []statusCheck{{ID: "audio", Status: "ok", Label: "Audio output", Detail: strings.Join(s.cfg.TTSCommand, " ")}}
}
