// Package conversation drives the per-turn booking workflow: collect input,
// retrieve clinic knowledge, generate a reply, and when the patient asks to
// book, reserve the slot and notify the doctor. Each turn walks an explicit
// phase machine; raw errors are logged and patients only ever see the mapped
// user-facing messages.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/appointment"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/identity"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/llm"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/notify"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

var engineTracer = otel.Tracer("clinic.internal.conversation.engine")

// ErrEmptyInput is returned for blank user input; the transcript is left
// untouched.
var ErrEmptyInput = errors.New("conversation: empty input")

// User-facing replies. Raw upstream errors never reach the patient.
const (
	replyInvalidIDs    = "Invalid ID format. Patient IDs must be PAT-XXXX, Doctor IDs DR-XXX"
	replyAskForTime    = "What date and time would you like? Please pick a specific slot."
	replySlotTaken     = "That time slot is already taken. Please choose a different time."
	replyBookingFailed = "We couldn't complete your booking just now. Please try again."
	replyApology       = "Sorry, we encountered an error. Please try again later."
)

const systemPrompt = "You are a helpful medical appointment assistant for a clinic. " +
	"Answer scheduling questions using the clinic information provided. " +
	"Keep replies short and never give medical advice."

// Retriever supplies clinic documents relevant to the patient's message.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]string, error)
}

// BookingStore reserves appointment slots.
type BookingStore interface {
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
}

// Notifier tells the doctor about a new booking.
type Notifier interface {
	Notify(ctx context.Context, doctorID, message string) notify.DeliveryResult
}

// TurnRecorder observes turn outcomes for metrics. All methods must accept
// concurrent calls.
type TurnRecorder interface {
	RecordTurn(status string)
	RecordBooking(outcome string)
	RecordNotification(outcome string)
	ObserveTurnLatency(seconds float64)
}

// Engine runs conversation turns. All collaborators are injected; tests swap
// in fakes at every seam.
type Engine struct {
	client    llm.Client
	store     BookingStore
	history   HistoryStore
	retriever Retriever
	notifier  Notifier
	intent    IntentDetector
	recorder  TurnRecorder

	model      string
	topK       int
	bookStatus appointment.Status
	maxHistory int
	logger     *logging.Logger
}

// Deps carries the engine's collaborators. Client, Store, and History are
// required; the rest degrade gracefully when nil.
type Deps struct {
	Client    llm.Client
	Store     BookingStore
	History   HistoryStore
	Retriever Retriever
	Notifier  Notifier
	Intent    IntentDetector
	Recorder  TurnRecorder

	Model         string
	RetrieveTopK  int
	BookingStatus appointment.Status
	Logger        *logging.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(deps Deps) *Engine {
	if deps.Client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if deps.Store == nil {
		panic("conversation: booking store cannot be nil")
	}
	if deps.History == nil {
		panic("conversation: history store cannot be nil")
	}
	if deps.Intent == nil {
		deps.Intent = NewKeywordIntentDetector()
	}
	if deps.RetrieveTopK <= 0 {
		deps.RetrieveTopK = 3
	}
	if deps.BookingStatus == "" {
		deps.BookingStatus = appointment.StatusPending
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{
		client:     deps.Client,
		store:      deps.Store,
		history:    deps.History,
		retriever:  deps.Retriever,
		notifier:   deps.Notifier,
		intent:     deps.Intent,
		recorder:   deps.Recorder,
		model:      deps.Model,
		topK:       deps.RetrieveTopK,
		bookStatus: deps.BookingStatus,
		maxHistory: 20,
		logger:     deps.Logger,
	}
}

// TurnRequest is one user message plus any structured booking details the
// transport extracted.
type TurnRequest struct {
	ConversationID string
	Input          string
	PatientID      string
	DoctorID       string
	Slot           *time.Time
}

// TurnResult is what one turn produced.
type TurnResult struct {
	ConversationID string
	Reply          string
	Status         Status
	Phases         []Phase
	Appointment    *appointment.Appointment
	Notification   *notify.DeliveryResult
}

// ProcessTurn advances the conversation by one user message. Blank input is
// rejected with ErrEmptyInput before any state is touched. Any other problem
// is absorbed into a user-facing reply.
func (e *Engine) ProcessTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Input) == "" {
		return nil, ErrEmptyInput
	}

	ctx, span := engineTracer.Start(ctx, "conversation.process_turn")
	defer span.End()
	started := time.Now()

	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("clinic.conversation_id", req.ConversationID))

	state := e.loadState(ctx, req)
	turn := &turnContext{req: req, state: state}

	phase := PhaseCollecting
	for phase != PhaseResponding {
		turn.phases = append(turn.phases, phase)
		switch phase {
		case PhaseCollecting:
			e.collect(turn)
		case PhaseRetrieving:
			e.retrieve(ctx, turn)
		case PhaseGenerating:
			e.generate(ctx, turn)
		case PhaseBooking:
			e.book(ctx, turn)
		case PhaseNotifying:
			e.notifyDoctor(ctx, turn)
		}
		phase = nextPhase(phase, turn.sig)
	}
	turn.phases = append(turn.phases, PhaseResponding)

	state.Append(llm.RoleAssistant, turn.reply)
	if err := e.history.Save(ctx, state); err != nil {
		e.logger.Error("failed to save conversation state",
			"conversation_id", state.ConversationID,
			"error", err,
		)
	}
	if e.recorder != nil {
		e.recorder.RecordTurn(string(state.Status))
		e.recorder.ObserveTurnLatency(time.Since(started).Seconds())
	}

	return &TurnResult{
		ConversationID: state.ConversationID,
		Reply:          turn.reply,
		Status:         state.Status,
		Phases:         turn.phases,
		Appointment:    turn.booked,
		Notification:   turn.delivery,
	}, nil
}

// turnContext accumulates everything one pass through the phases produces.
type turnContext struct {
	req      TurnRequest
	state    *State
	sig      signals
	docs     []string
	draft    string
	reply    string
	booked   *appointment.Appointment
	delivery *notify.DeliveryResult
	phases   []Phase
}

func (e *Engine) loadState(ctx context.Context, req TurnRequest) *State {
	state, err := e.history.Load(ctx, req.ConversationID)
	if err != nil {
		if !errors.Is(err, ErrUnknownConversation) {
			e.logger.Error("failed to load conversation state, starting fresh",
				"conversation_id", req.ConversationID,
				"error", err,
			)
		}
		state = NewState(req.ConversationID)
	}
	return state
}

// collect merges structured request fields into the state and detects
// booking intent.
func (e *Engine) collect(t *turnContext) {
	t.sig.inputValid = true
	if t.req.PatientID != "" {
		t.state.PatientID = t.req.PatientID
	}
	if t.req.DoctorID != "" {
		t.state.DoctorID = t.req.DoctorID
	}
	if t.req.Slot != nil && !t.req.Slot.IsZero() {
		slot := t.req.Slot.UTC()
		t.state.PendingSlot = &slot
	}
	t.state.Append(llm.RoleUser, t.req.Input)
	t.state.Status = StatusCollecting
	t.sig.bookingIntent = e.intent.WantsBooking(t.req.Input)
}

// retrieve is best effort: a broken retriever degrades to an answer without
// clinic context.
func (e *Engine) retrieve(ctx context.Context, t *turnContext) {
	if e.retriever == nil {
		return
	}
	docs, err := e.retriever.Retrieve(ctx, t.req.Input, e.topK)
	if err != nil {
		e.logger.Warn("knowledge retrieval failed, continuing without context",
			"conversation_id", t.state.ConversationID,
			"error", err,
		)
		return
	}
	t.docs = docs
}

func (e *Engine) generate(ctx context.Context, t *turnContext) {
	system := []string{systemPrompt, e.patientLine(t.state)}
	if len(t.docs) > 0 {
		system = append(system, "Relevant clinic information:\n- "+strings.Join(t.docs, "\n- "))
	}

	resp, err := e.client.Complete(ctx, llm.Request{
		Model:    e.model,
		System:   system,
		Messages: t.state.Recent(e.maxHistory),
	})
	if err != nil {
		e.logger.Error("llm completion failed",
			"conversation_id", t.state.ConversationID,
			"error", err,
		)
		t.state.Status = StatusError
		t.reply = replyApology
		t.sig.bookingIntent = false
		return
	}
	t.draft = resp.Text
	t.reply = resp.Text
}

// book gates on identifier validation before the store is ever touched.
func (e *Engine) book(ctx context.Context, t *turnContext) {
	if !identity.ValidateIDs(t.state.PatientID, t.state.DoctorID) {
		t.state.Status = StatusError
		t.reply = replyInvalidIDs
		e.recordBooking("invalid_id")
		return
	}
	if t.state.PendingSlot == nil {
		t.reply = t.draft + "\n\n" + replyAskForTime
		e.recordBooking("missing_slot")
		return
	}

	appt, err := e.store.Book(ctx, appointment.BookingRequest{
		PatientID: t.state.PatientID,
		DoctorID:  t.state.DoctorID,
		Slot:      *t.state.PendingSlot,
		Status:    e.bookStatus,
		Metadata:  map[string]string{"conversation_id": t.state.ConversationID},
	})
	if err != nil {
		e.logger.Warn("booking attempt failed",
			"conversation_id", t.state.ConversationID,
			"patient_id", t.state.PatientID,
			"doctor_id", t.state.DoctorID,
			"error", err,
		)
		t.state.Status = StatusError
		if errors.Is(err, appointment.ErrSlotTaken) {
			t.reply = replySlotTaken
			e.recordBooking("slot_taken")
		} else {
			t.reply = replyBookingFailed
			e.recordBooking("failed")
		}
		return
	}

	t.booked = appt
	t.sig.booked = true
	t.state.Status = StatusBooked
	t.state.PendingSlot = nil
	t.reply = t.draft + fmt.Sprintf("\n\nAppointment %s confirmed", appt.ID)
	e.recordBooking("confirmed")
	e.logger.Info("appointment booked",
		"conversation_id", t.state.ConversationID,
		"appointment_id", appt.ID.String(),
		"patient_id", appt.PatientID,
		"doctor_id", appt.DoctorID,
	)
}

// notifyDoctor reports the booking. The delivery result is recorded but the
// patient's reply never changes because of it.
func (e *Engine) notifyDoctor(ctx context.Context, t *turnContext) {
	if e.notifier == nil || t.booked == nil {
		return
	}
	summary := fmt.Sprintf("New appointment %s: patient %s booked %s",
		t.booked.ID, t.booked.PatientID, t.booked.Slot.Format("Mon Jan 2 at 3:04 PM"))
	res := e.notifier.Notify(ctx, t.booked.DoctorID, summary)
	t.delivery = &res
	if e.recorder != nil {
		e.recorder.RecordNotification(string(res.Outcome))
	}
	if !res.Delivered() {
		e.logger.Warn("doctor notification not delivered",
			"appointment_id", t.booked.ID.String(),
			"outcome", string(res.Outcome),
			"detail", res.Detail,
		)
	}
}

func (e *Engine) patientLine(state *State) string {
	if identity.ValidPatientID(state.PatientID) {
		return fmt.Sprintf("You are speaking with patient %s.", state.PatientID)
	}
	return "You are speaking with a new patient."
}

func (e *Engine) recordBooking(outcome string) {
	if e.recorder != nil {
		e.recorder.RecordBooking(outcome)
	}
}
