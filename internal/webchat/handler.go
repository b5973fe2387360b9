// Package webchat is the WebSocket/HTTP front door for the booking assistant.
// Each WebSocket connection owns one session; turns are processed one at a
// time in the connection's read loop, so a session never interleaves replies.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/conversation"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

// TurnProcessor advances a conversation by one message.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, req conversation.TurnRequest) (*conversation.TurnResult, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	engine   TurnProcessor
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*websocket.Conn // conversationID -> active connection, one per session
}

// InboundMessage is what the chat client sends.
type InboundMessage struct {
	Type      string `json:"type"` // "message", "ping"
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
	PatientID string `json:"patient_id,omitempty"`
	DoctorID  string `json:"doctor_id,omitempty"`
	Slot      string `json:"slot,omitempty"` // RFC3339
}

// OutboundMessage is what we send back.
type OutboundMessage struct {
	Type          string `json:"type"` // "message", "session", "pong", "error"
	Text          string `json:"text,omitempty"`
	Role          string `json:"role,omitempty"`
	SessionID     string `json:"session_id,omitempty"`
	Status        string `json:"status,omitempty"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// NewHandler creates a web chat handler.
func NewHandler(engine TurnProcessor, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("webchat: turn processor cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*websocket.Conn),
	}
}

// ConversationID builds the canonical conversation ID for a webchat session.
func ConversationID(sessionID string) string {
	return fmt.Sprintf("webchat:%s", sessionID)
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("webchat: upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	h.serveWS(conn, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	convID := ConversationID(sessionID)

	if !h.register(convID, conn) {
		h.logger.Warn("webchat: duplicate session connection rejected", "session_id", sessionID)
		_ = conn.WriteJSON(OutboundMessage{Type: "error", Text: "session already has an active connection"})
		return
	}
	defer h.unregister(convID, conn)

	_ = conn.WriteJSON(OutboundMessage{Type: "session", SessionID: sessionID})

	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch {
		case msg.Type == "ping":
			_ = conn.WriteJSON(OutboundMessage{Type: "pong"})
		case msg.Type == "message":
			out := h.processMessage(r.Context(), sessionID, msg)
			_ = conn.WriteJSON(out)
		}
	}
}

// register claims the session for this connection. It fails when another
// connection already owns the session.
func (h *Handler) register(convID string, conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, taken := h.sessions[convID]; taken {
		return false
	}
	h.sessions[convID] = conn
	return true
}

func (h *Handler) unregister(convID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[convID] == conn {
		delete(h.sessions, convID)
	}
}

// processMessage runs one turn and maps the result to an outbound frame.
func (h *Handler) processMessage(ctx context.Context, sessionID string, msg InboundMessage) OutboundMessage {
	req := conversation.TurnRequest{
		ConversationID: ConversationID(sessionID),
		Input:          msg.Text,
		PatientID:      msg.PatientID,
		DoctorID:       msg.DoctorID,
	}
	if strings.TrimSpace(msg.Slot) != "" {
		slot, err := time.Parse(time.RFC3339, msg.Slot)
		if err != nil {
			return OutboundMessage{Type: "error", Text: "slot must be an RFC3339 timestamp, e.g. 2026-09-01T10:00:00Z"}
		}
		req.Slot = &slot
	}

	res, err := h.engine.ProcessTurn(ctx, req)
	if err != nil {
		if errors.Is(err, conversation.ErrEmptyInput) {
			return OutboundMessage{Type: "error", Text: "message text is required"}
		}
		h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		return OutboundMessage{Type: "error", Text: "Sorry, something went wrong. Please try again."}
	}

	out := OutboundMessage{
		Type:      "message",
		Role:      "assistant",
		Text:      res.Reply,
		SessionID: sessionID,
		Status:    string(res.Status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if res.Appointment != nil {
		out.AppointmentID = res.Appointment.ID.String()
	}
	return out
}

// HandleMessage is the HTTP fallback for clients without WebSocket support.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if msg.SessionID == "" {
		msg.SessionID = generateSessionID()
	}

	out := h.processMessage(r.Context(), msg.SessionID, msg)
	out.SessionID = msg.SessionID

	w.Header().Set("Content-Type", "application/json")
	if out.Type == "error" {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	_ = json.NewEncoder(w).Encode(out)
}
