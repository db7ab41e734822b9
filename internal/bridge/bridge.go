// Package bridge exposes the engine over a WebSocket session for trusted
// local callers that want raw token delivery without SSE framing or pacing.
package bridge

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inferd/internal/engine"
	"inferd/internal/resolver"
	"inferd/pkg/types"
)

// Command is a client-to-server frame.
type Command struct {
	Type        string              `json:"type"`
	Model       string              `json:"model,omitempty"`
	Messages    []types.ChatMessage `json:"messages,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Temperature *float64            `json:"temperature,omitempty"`
	TopP        *float64            `json:"top_p,omitempty"`
	PersonaID   string              `json:"persona_id,omitempty"`
}

// Event is a server-to-client frame. Fields are populated per event type.
type Event struct {
	Type         string `json:"type"`
	Model        string `json:"model,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	Token        string `json:"token,omitempty"`
	TextSoFar    string `json:"text_so_far,omitempty"`
	Text         string `json:"text,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Message      string `json:"message,omitempty"`

	Health *types.HealthStatus `json:"health,omitempty"`
}

// Handler upgrades HTTP requests and runs the command loop. One generation
// is in flight per connection at a time; commands are processed in order.
type Handler struct {
	engine   *engine.Engine
	resolver *resolver.Resolver
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHandler(eng *engine.Engine, res *resolver.Resolver, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   eng,
		resolver: res,
		upgrader: websocket.Upgrader{
			// The daemon binds to localhost; cross-origin pages talking to
			// it are local tooling.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "bridge").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	h.log.Info().Str("remote", r.RemoteAddr).Msg("bridge session opened")

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Warn().Err(err).Msg("bridge session closed unexpectedly")
			}
			return
		}
		switch cmd.Type {
		case "load_model":
			h.handleLoad(conn, cmd)
		case "generate":
			if err := h.handleGenerate(r, conn, cmd); err != nil {
				return
			}
		case "status":
			health := h.engine.Health()
			h.send(conn, Event{Type: "status", Model: health.CurrentModel, Health: &health})
		default:
			h.send(conn, Event{Type: "error", Message: "unknown command type '" + cmd.Type + "'"})
		}
	}
}

func (h *Handler) handleLoad(conn *websocket.Conn, cmd Command) {
	if cmd.Model == "" {
		h.send(conn, Event{Type: "error", Message: "load_model requires a model"})
		return
	}
	if !h.engine.LoadModel(cmd.Model) {
		h.send(conn, Event{Type: "error", Message: "failed to load model '" + cmd.Model + "'"})
		return
	}
	h.send(conn, Event{Type: "model_loaded", Model: cmd.Model})
}

// handleGenerate streams tokens as individual frames. A non-nil return means
// the connection is gone and the loop should stop.
func (h *Handler) handleGenerate(r *http.Request, conn *websocket.Conn, cmd Command) error {
	resolved, err := h.resolver.Resolve(types.ChatRequest{
		Model:       cmd.Model,
		Messages:    cmd.Messages,
		MaxTokens:   cmd.MaxTokens,
		Temperature: cmd.Temperature,
		TopP:        cmd.TopP,
	}, cmd.PersonaID, types.DeliveryDirect)
	if err != nil {
		h.send(conn, Event{Type: "error", Message: err.Error()})
		return nil
	}

	prompt := engine.FormatPrompt(resolved.Messages)
	ts, err := h.engine.GenerateStream(r.Context(), prompt, engine.Params{
		MaxTokens:   resolved.MaxTokens,
		Temperature: resolved.Temperature,
		TopP:        resolved.TopP,
	})
	if err != nil {
		h.send(conn, Event{Type: "error", Message: err.Error()})
		return nil
	}
	defer ts.Close()

	sessionID := uuid.NewString()
	if err := conn.WriteJSON(Event{Type: "generation_start", Model: resolved.Model, SessionID: sessionID}); err != nil {
		return err
	}

	var sb strings.Builder
	for {
		tok, ok := ts.Next()
		if !ok {
			break
		}
		sb.WriteString(tok)
		if err := conn.WriteJSON(Event{Type: "token", SessionID: sessionID, Token: tok, TextSoFar: sb.String()}); err != nil {
			// Client went away mid-generation; Close tears the stream down.
			return err
		}
	}
	if err := ts.Err(); err != nil {
		h.send(conn, Event{Type: "error", SessionID: sessionID, Message: err.Error()})
		return nil
	}
	return conn.WriteJSON(Event{
		Type:         "generation_complete",
		Model:        resolved.Model,
		SessionID:    sessionID,
		Text:         strings.TrimSpace(sb.String()),
		FinishReason: "stop",
	})
}

func (h *Handler) send(conn *websocket.Conn, ev Event) {
	if err := conn.WriteJSON(ev); err != nil {
		h.log.Warn().Err(err).Str("type", ev.Type).Msg("bridge write failed")
	}
}
