package conversation

import (
	"time"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/llm"
)

// Status is the persisted lifecycle of a conversation.
type Status string

const (
	StatusCollecting Status = "collecting"
	StatusBooked     Status = "booked"
	StatusError      Status = "error"
)

// State is everything remembered about a conversation between turns.
type State struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []llm.Message `json:"messages"`
	PatientID      string        `json:"patient_id,omitempty"`
	DoctorID       string        `json:"doctor_id,omitempty"`
	PendingSlot    *time.Time    `json:"pending_slot,omitempty"`
	Status         Status        `json:"status"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// NewState creates an empty conversation.
func NewState(conversationID string) *State {
	return &State{
		ConversationID: conversationID,
		Status:         StatusCollecting,
	}
}

// Append adds a message to the transcript.
func (s *State) Append(role, content string) {
	s.Messages = append(s.Messages, llm.Message{Role: role, Content: content})
}

// Recent returns up to n of the newest messages, oldest first.
func (s *State) Recent(n int) []llm.Message {
	if n <= 0 || len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}

// Phase is one step of a single turn through the engine. Every turn starts at
// PhaseCollecting and ends at PhaseResponding.
type Phase string

const (
	PhaseCollecting Phase = "collecting"
	PhaseRetrieving Phase = "retrieving"
	PhaseGenerating Phase = "generating"
	PhaseBooking    Phase = "booking"
	PhaseNotifying  Phase = "notifying"
	PhaseResponding Phase = "responding"
)

// signals are the routing facts gathered while a turn advances.
type signals struct {
	inputValid    bool
	bookingIntent bool
	booked        bool
}

// nextPhase is the turn transition function. It is pure: the engine gathers
// signals, this decides where to go.
func nextPhase(p Phase, sig signals) Phase {
	switch p {
	case PhaseCollecting:
		if !sig.inputValid {
			return PhaseResponding
		}
		return PhaseRetrieving
	case PhaseRetrieving:
		return PhaseGenerating
	case PhaseGenerating:
		if sig.bookingIntent {
			return PhaseBooking
		}
		return PhaseResponding
	case PhaseBooking:
		if sig.booked {
			return PhaseNotifying
		}
		return PhaseResponding
	case PhaseNotifying:
		return PhaseResponding
	default:
		return PhaseResponding
	}
}
