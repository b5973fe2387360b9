package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/appointment"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/conversation"
)

type fakeEngine struct {
	res  *conversation.TurnResult
	err  error
	reqs []conversation.TurnRequest
}

func (f *fakeEngine) ProcessTurn(_ context.Context, req conversation.TurnRequest) (*conversation.TurnResult, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.ConversationID = req.ConversationID
	return &res, nil
}

func defaultResult() *conversation.TurnResult {
	return &conversation.TurnResult{
		Reply:  "Happy to help.",
		Status: conversation.StatusCollecting,
	}
}

func dialWS(t *testing.T, handler *Handler, session string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var out OutboundMessage
	require.NoError(t, conn.ReadJSON(&out))
	return out
}

func TestWebSocketSessionAnnounce(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	conn := dialWS(t, NewHandler(engine, nil), "s1")

	hello := readFrame(t, conn)
	assert.Equal(t, "session", hello.Type)
	assert.Equal(t, "s1", hello.SessionID)
}

func TestWebSocketMessageRoundTrip(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	conn := dialWS(t, NewHandler(engine, nil), "s1")
	readFrame(t, conn) // session frame

	require.NoError(t, conn.WriteJSON(InboundMessage{
		Type:      "message",
		Text:      "book me in",
		PatientID: "PAT-1234",
		DoctorID:  "DR-456",
		Slot:      "2026-09-01T10:00:00Z",
	}))

	reply := readFrame(t, conn)
	assert.Equal(t, "message", reply.Type)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Happy to help.", reply.Text)

	require.Len(t, engine.reqs, 1)
	req := engine.reqs[0]
	assert.Equal(t, ConversationID("s1"), req.ConversationID)
	assert.Equal(t, "PAT-1234", req.PatientID)
	require.NotNil(t, req.Slot)
	assert.Equal(t, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), req.Slot.UTC())
}

func TestWebSocketPing(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	conn := dialWS(t, NewHandler(engine, nil), "s1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, conn).Type)
	assert.Empty(t, engine.reqs)
}

func TestWebSocketBadSlot(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	conn := dialWS(t, NewHandler(engine, nil), "s1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "book", Slot: "tomorrow"}))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Text, "RFC3339")
	assert.Empty(t, engine.reqs)
}

func TestWebSocketEmptyInput(t *testing.T) {
	engine := &fakeEngine{err: conversation.ErrEmptyInput}
	conn := dialWS(t, NewHandler(engine, nil), "s1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "  "}))
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Text, "required")
}

func TestWebSocketBookedIncludesAppointmentID(t *testing.T) {
	appt := &appointment.Appointment{ID: uuid.New()}
	engine := &fakeEngine{res: &conversation.TurnResult{
		Reply:       "Done.\n\nAppointment " + appt.ID.String() + " confirmed",
		Status:      conversation.StatusBooked,
		Appointment: appt,
	}}
	conn := dialWS(t, NewHandler(engine, nil), "s1")
	readFrame(t, conn)

	require.NoError(t, conn.WriteJSON(InboundMessage{Type: "message", Text: "book"}))
	frame := readFrame(t, conn)
	assert.Equal(t, string(conversation.StatusBooked), frame.Status)
	assert.Equal(t, appt.ID.String(), frame.AppointmentID)
}

func TestWebSocketRejectsDuplicateSession(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	handler := NewHandler(engine, nil)

	first := dialWS(t, handler, "s1")
	assert.Equal(t, "session", readFrame(t, first).Type)

	second := dialWS(t, handler, "s1")
	frame := readFrame(t, second)
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, frame.Text, "active connection")

	// The original connection keeps working.
	require.NoError(t, first.WriteJSON(InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", readFrame(t, first).Type)
}

func TestHTTPFallback(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	handler := NewHandler(engine, nil)

	body, _ := json.Marshal(InboundMessage{SessionID: "s9", Text: "hours?", Type: "message"})
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/webchat/message", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var out OutboundMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "Happy to help.", out.Text)
	assert.Equal(t, "s9", out.SessionID)
}

func TestHTTPFallbackRejectsBlankText(t *testing.T) {
	handler := NewHandler(&fakeEngine{res: defaultResult()}, nil)

	body, _ := json.Marshal(InboundMessage{Text: "   "})
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/webchat/message", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPFallbackGeneratesSession(t *testing.T) {
	engine := &fakeEngine{res: defaultResult()}
	handler := NewHandler(engine, nil)

	body, _ := json.Marshal(InboundMessage{Text: "hello"})
	rec := httptest.NewRecorder()
	handler.HandleMessage(rec, httptest.NewRequest(http.MethodPost, "/webchat/message", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var out OutboundMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.NotEmpty(t, out.SessionID)
}
