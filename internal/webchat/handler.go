// Package webchat serves the chat over a websocket, using the same update
// and reply shapes as the HTTP updates endpoint.
package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/cosmetology-assistant/internal/chat"
	"github.com/wolfman30/cosmetology-assistant/internal/conversation"
	"github.com/wolfman30/cosmetology-assistant/pkg/logging"
)

// Channel labels updates that arrive over the websocket.
const Channel = "webchat"

// Processor turns one update into replies.
type Processor interface {
	Handle(ctx context.Context, channel string, u chat.Update) []chat.Reply
}

// HistoryStore reads logged exchanges, newest first.
type HistoryStore interface {
	Recent(ctx context.Context, userID int64, limit int) ([]conversation.Turn, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	processor Processor
	history   HistoryStore
	sessions  *Sessions
	logger    *logging.Logger

	mu    sync.RWMutex
	conns map[int64]*wsConn // user id -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "action", "ping"
	Text      string `json:"text,omitempty"`
	Action    string `json:"action,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string           `json:"type"` // "message", "session", "history", "pong", "error"
	Text      string           `json:"text,omitempty"`
	Buttons   [][]chat.Button  `json:"buttons,omitempty"`
	UserID    int64            `json:"user_id,omitempty"`
	Token     string           `json:"token,omitempty"`
	Timestamp string           `json:"timestamp,omitempty"`
	Messages  []HistoryMessage `json:"messages,omitempty"`
}

// HistoryMessage is one logged exchange.
type HistoryMessage struct {
	Message   string `json:"message"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

// NewHandler creates a web chat handler. history may be nil.
func NewHandler(processor Processor, history HistoryStore, sessions *Sessions, logger *logging.Logger) *Handler {
	if sessions == nil {
		panic("webchat: sessions cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		processor: processor,
		history:   history,
		sessions:  sessions,
		logger:    logger,
		conns:     make(map[int64]*wsConn),
	}
}

// sessionToken reads the token from the Authorization header or the
// token query parameter.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	var (
		userID int64
		err    error
	)
	token := sessionToken(r)
	if token == "" {
		userID, token, err = h.sessions.NewUser()
		if err != nil {
			h.logger.Error("webchat: failed to start session", "error", err)
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "session unavailable"})
			return
		}
	} else if userID, err = h.sessions.Verify(token); err != nil {
		h.logger.Warn("webchat: rejected session token", "remote", r.RemoteAddr)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "invalid session"})
		return
	}
	ctx := r.Context()

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	_ = wsc.send(OutboundMessage{Type: "session", UserID: userID, Token: token})
	if history := h.loadHistory(ctx, userID, 20); len(history) > 0 {
		_ = wsc.send(OutboundMessage{Type: "history", Messages: history})
	}

	h.mu.Lock()
	h.conns[userID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.conns[userID] == wsc {
			delete(h.conns, userID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	logger := h.logger.ForUser(userID)
	logger.Info("webchat: connection opened")

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			return
		}

		update := chat.Update{User: chat.User{ID: userID, Username: msg.Username, FirstName: msg.FirstName, LastName: msg.LastName}}
		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		case "action":
			if strings.TrimSpace(msg.Action) == "" {
				continue
			}
			update.Action = msg.Action
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			update.Text = msg.Text
		default:
			continue
		}

		for _, reply := range h.processor.Handle(ctx, Channel, update) {
			if err := wsc.send(replyMessage(reply)); err != nil {
				logger.Warn("webchat: failed to send reply", "error", err)
				return
			}
		}
	}
}

func replyMessage(reply chat.Reply) OutboundMessage {
	return OutboundMessage{
		Type:      "message",
		Text:      reply.Text,
		Buttons:   reply.Buttons,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func (h *Handler) loadHistory(ctx context.Context, userID int64, limit int) []HistoryMessage {
	if h.history == nil {
		return nil
	}
	turns, err := h.history.Recent(ctx, userID, limit)
	if err != nil {
		h.logger.ForUser(userID).Warn("webchat: failed to load history", "error", err)
		return nil
	}
	return toHistory(turns)
}

// toHistory reverses newest-first turns.
func toHistory(turns []conversation.Turn) []HistoryMessage {
	out := make([]HistoryMessage, 0, len(turns))
	for i := len(turns) - 1; i >= 0; i-- {
		out = append(out, HistoryMessage{
			Message:   turns[i].Message,
			Response:  turns[i].Response,
			Timestamp: turns[i].CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// Connected reports whether the user has an open websocket.
func (h *Handler) Connected(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[userID]
	return ok
}

// HandleHistory returns the logged exchanges of the session's user,
// oldest first.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := h.sessions.Verify(sessionToken(r))
	if err != nil {
		http.Error(w, "valid session token required", http.StatusUnauthorized)
		return
	}
	if h.history == nil {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []HistoryMessage{}})
		return
	}
	turns, err := h.history.Recent(r.Context(), userID, 50)
	if err != nil {
		h.logger.ForUser(userID).Error("webchat: failed to load history", "error", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	history := toHistory(turns)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": history})
}

// ErrNotConnected is returned by SendText when the user has no open socket.
var ErrNotConnected = errors.New("webchat: user not connected")
