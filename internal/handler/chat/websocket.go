package chat

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	chatmodel "github.com/mirror-labs/mirror/backend/internal/model/chat"
	"github.com/mirror-labs/mirror/backend/internal/service/prompt"
	"github.com/mirror-labs/mirror/backend/internal/service/recommend"
	"github.com/mirror-labs/mirror/backend/internal/service/sanitize"
	"github.com/mirror-labs/mirror/backend/internal/service/session"
	"github.com/mirror-labs/mirror/backend/internal/store"
)

// FallbackReply is delivered whenever a turn cannot be completed. Raw
// error detail never crosses the connection.
const FallbackReply = "Oops, I had trouble thinking that through. Mind trying again?"

const (
	readWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Generator is the external text-generation capability the handler
// depends on. A nil Generator degrades every turn to the fallback.
type Generator interface {
	Generate(ctx context.Context, promptText string) (string, error)
}

// Handler owns one websocket chat channel per connection: it persists
// the user turn, builds a prompt from mood and recent history, calls
// the generation backend, sanitizes and persists the reply, and sends
// exactly one response frame per inbound message.
type Handler struct {
	history  *store.History
	registry *session.Registry
	gen      Generator
	mood     string
	upgrader websocket.Upgrader
}

// New creates the chat channel handler. mood is the process-level
// detected emotion used when a connection does not carry its own.
func New(history *store.History, registry *session.Registry, gen Generator, mood string) *Handler {
	return &Handler{
		history:  history,
		registry: registry,
		gen:      gen,
		mood:     mood,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chat/ws", h.handleWebSocket)
}

type inboundFrame struct {
	Message string `json:"message"`
}

type outboundFrame struct {
	Response string `json:"response"`
}

type helloFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Mood      string `json:"mood"`
	Playlist  string `json:"playlist,omitempty"`
}

// wsConn serializes writes and turns delivery into a no-op once the
// peer is gone, so a turn finishing after disconnect cannot error out.
type wsConn struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (c *wsConn) writeJSON(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err := c.conn.WriteJSON(v); err != nil {
		log.Printf("[chat] write failed: %v", err)
	}
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	mood := r.URL.Query().Get("mood")
	if mood == "" {
		mood = h.mood
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[chat] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	sess := h.registry.GetOrCreate(connID, mood)
	defer h.registry.Remove(connID)

	ws := &wsConn{conn: conn}
	defer ws.markClosed()

	log.Printf("[chat] connection open session=%s mood=%s", sess.ID, sess.Mood)
	defer log.Printf("[chat] connection closed session=%s turns=%d", sess.ID, sess.TurnCount())

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})
	go h.pingLoop(ctx, ws)

	ws.writeJSON(helloFrame{
		Type:      "connected",
		SessionID: sess.ID,
		Mood:      sess.Mood,
		Playlist:  recommend.PlaylistFor(sess.Mood),
	})

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[chat] read error session=%s: %v", sess.ID, err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readWait))

		if frame.Message == "" {
			continue
		}
		h.handleEvent(ws, sess, frame.Message)
	}
}

// handleEvent runs the full pipeline for one inbound message while
// holding the session's event slot, so turns of one session never
// interleave. The pipeline uses a background context on purpose: a
// disconnect mid-generation must not abort the call or the audit
// write of the assistant turn; delivery simply becomes a no-op.
func (h *Handler) handleEvent(ws *wsConn, sess *session.Session, userText string) {
	sess.Acquire()
	defer sess.Release()

	ctx := context.Background()

	if _, err := h.history.Append(ctx, sess.ID, chatmodel.RoleUser, userText, sess.Mood); err != nil {
		// The user turn never committed, so nothing downstream may run.
		log.Printf("[chat] dropping event session=%s: %v", sess.ID, err)
		return
	}
	sess.AddTurn()

	reply, err := h.respond(ctx, sess, userText)
	if err != nil {
		log.Printf("[chat] falling back session=%s: %v", sess.ID, err)
		ws.writeJSON(outboundFrame{Response: FallbackReply})
		return
	}

	ws.writeJSON(outboundFrame{Response: reply})
}

func (h *Handler) respond(ctx context.Context, sess *session.Session, userText string) (string, error) {
	if h.gen == nil {
		return "", fmt.Errorf("generation backend unavailable")
	}

	history, err := h.history.Recent(ctx, sess.ID, prompt.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	promptText := prompt.Compose(sess.Mood, history, userText)

	raw, err := h.gen.Generate(ctx, promptText)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	reply := sanitize.Clean(raw)
	if _, err := h.history.Append(ctx, sess.ID, chatmodel.RoleAssistant, reply, sess.Mood); err != nil {
		return "", fmt.Errorf("persist assistant turn: %w", err)
	}
	sess.AddTurn()

	return reply, nil
}

func (h *Handler) pingLoop(ctx context.Context, ws *wsConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.ping(); err != nil {
				return
			}
		}
	}
}
