package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/jarvis/internal/config"
	"github.com/ent0n29/jarvis/internal/memory"
	"github.com/ent0n29/jarvis/internal/observability"
	"github.com/ent0n29/jarvis/internal/orchestrator"
	"github.com/ent0n29/jarvis/internal/protocol"
	"github.com/ent0n29/jarvis/internal/session"
)

const maxImportBytes = 32 << 20

// Engine is the part of the orchestrator the API reads and reconfigures.
// Turns never go through it directly; they are submitted on the request channel.
type Engine interface {
	Session() *session.Session
	Memory() *memory.Adapter
	Configure(ctx context.Context, cfg session.RuntimeConfig) error
}

type Server struct {
	cfg      config.Config
	engine   Engine
	requests chan<- orchestrator.Request
	metrics  *observability.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(cfg config.Config, engine Engine, requests chan<- orchestrator.Request, metrics *observability.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		cfg:      cfg,
		engine:   engine,
		requests: requests,
		metrics:  metrics,
		logger:   logger.Named("httpapi"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browsers may only connect from the same origin unless explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s.metrics.Handler().ServeHTTP(w, r)
	})

	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Delete("/v1/perf/latency", s.handleResetPerfLatency)
	r.Post("/v1/turns", s.handleTurn)
	r.Get("/v1/history", s.handleHistory)
	r.Get("/v1/config", s.handleGetConfig)
	r.Put("/v1/config", s.handlePutConfig)
	r.Get("/v1/memories/export", s.handleExportMemories)
	r.Post("/v1/memories/import", s.handleImportMemories)
	r.Get("/v1/ws", s.handleWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session_id": s.engine.Session().ID,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	_, available := s.engine.Memory().Capability().Store()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ready",
		"memory_backend":   s.cfg.MemoryBackend,
		"memory_available": available,
	})
}

type turnRequest struct {
	Text string `json:"text"`
}

type turnResponse struct {
	SessionID string `json:"session_id"`
	TurnID    string `json:"turn_id"`
	Response  string `json:"response"`
	Backend   string `json:"backend"`
	Rule      string `json:"rule"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "empty_utterance", "text is required")
		return
	}
	out, err := orchestrator.Submit(r.Context(), s.requests, req.Text)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "turn_not_handled", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, turnResponse{
		SessionID: s.engine.Session().ID,
		TurnID:    uuid.NewString(),
		Response:  out.Response,
		Backend:   string(out.Backend),
		Rule:      string(out.Rule),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.engine.Session()
	turns := sess.History()
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		turns = sess.Recent(n)
	}
	if turns == nil {
		turns = []session.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"started_at": sess.StartedAt,
		"turns":      turns,
	})
}

type configResponse struct {
	Runtime session.RuntimeConfig `json:"runtime"`
	Options []optionResponse      `json:"options"`
}

type optionResponse struct {
	Key    string `json:"key"`
	Effect string `json:"effect"`
}

// configPatch updates only the fields present in the body.
type configPatch struct {
	AudioEnabled      *bool   `json:"audio_enabled"`
	SimulateResponses *bool   `json:"simulate_responses"`
	MemoryStorePath   *string `json:"memory_store_path"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.configView())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	next := s.engine.Session().Config()
	if patch.AudioEnabled != nil {
		next.AudioEnabled = *patch.AudioEnabled
	}
	if patch.SimulateResponses != nil {
		next.SimulateResponses = *patch.SimulateResponses
	}
	if patch.MemoryStorePath != nil {
		next.MemoryStorePath = strings.TrimSpace(*patch.MemoryStorePath)
	}
	if err := s.engine.Configure(r.Context(), next); err != nil {
		// The config is applied; only the memory store failed to reopen.
		s.logger.Warn("memory store reinit failed", zap.String("location", next.MemoryStorePath), zap.Error(err))
		respondError(w, http.StatusConflict, "memory_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.configView())
}

func (s *Server) configView() configResponse {
	opts := config.Describe()
	out := configResponse{Runtime: s.engine.Session().Config(), Options: make([]optionResponse, 0, len(opts))}
	for _, o := range opts {
		out.Options = append(out.Options, optionResponse{Key: o.Key, Effect: o.Effect})
	}
	return out
}

func (s *Server) handleExportMemories(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Memory().Export(r.Context())
	if err != nil {
		respondError(w, memoryStatus(err), "export_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="memories.json"`)
	if err := memory.WriteJSON(w, records); err != nil {
		s.logger.Warn("write export", zap.Error(err))
	}
}

func (s *Server) handleImportMemories(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", errEmptyBody.Error())
		return
	}
	defer r.Body.Close()
	records, err := memory.ReadJSON(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	n, err := s.engine.Memory().Import(r.Context(), records)
	if err != nil {
		respondJSON(w, memoryStatus(err), map[string]any{
			"imported": n,
			"error":    err.Error(),
			"code":     "import_failed",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"imported": n})
}

func memoryStatus(err error) int {
	if errors.Is(err, memory.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := s.engine.Session().ID
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	outbound := make(chan any, 64)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.ObserveWSMessage("outbound", string(t))
				}
			}
		}
	}()

	send := func(msg any) {
		select {
		case outbound <- msg:
		case <-ctx.Done():
		}
	}
	send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "connected"})

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Detail:    err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.ObserveWSMessage("inbound", string(t))
		}

		switch m := parsed.(type) {
		case protocol.Utterance:
			// Turns are handled inline so replies keep the order of utterances.
			out, err := orchestrator.Submit(ctx, s.requests, m.Text)
			if err != nil {
				send(protocol.ErrorEvent{
					Type:      protocol.TypeErrorEvent,
					SessionID: sessionID,
					Code:      "turn_not_handled",
					Source:    "orchestrator",
					Retryable: true,
					Detail:    err.Error(),
				})
				continue
			}
			turnID := m.TurnID
			if turnID == "" {
				turnID = uuid.NewString()
			}
			send(protocol.AssistantResponse{
				Type:      protocol.TypeAssistantResponse,
				SessionID: sessionID,
				TurnID:    turnID,
				Text:      out.Response,
				Backend:   string(out.Backend),
				Rule:      string(out.Rule),
			})
		case protocol.ClientControl:
			if m.Action == "ping" {
				send(protocol.SystemEvent{Type: protocol.TypeSystemEvent, SessionID: sessionID, Code: "pong"})
				continue
			}
			send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "unsupported_action",
				Source:    "gateway",
				Detail:    m.Action,
			})
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-writerDone
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.Utterance:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.AssistantResponse:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
