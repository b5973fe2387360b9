package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/llm"
)

func TestNextPhase(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		sig  signals
		want Phase
	}{
		{"invalid input goes straight to responding", PhaseCollecting, signals{}, PhaseResponding},
		{"valid input retrieves", PhaseCollecting, signals{inputValid: true}, PhaseRetrieving},
		{"retrieving always generates", PhaseRetrieving, signals{inputValid: true}, PhaseGenerating},
		{"no intent responds", PhaseGenerating, signals{inputValid: true}, PhaseResponding},
		{"booking intent books", PhaseGenerating, signals{inputValid: true, bookingIntent: true}, PhaseBooking},
		{"failed booking responds", PhaseBooking, signals{inputValid: true, bookingIntent: true}, PhaseResponding},
		{"successful booking notifies", PhaseBooking, signals{inputValid: true, bookingIntent: true, booked: true}, PhaseNotifying},
		{"notifying responds", PhaseNotifying, signals{inputValid: true, bookingIntent: true, booked: true}, PhaseResponding},
		{"responding is terminal", PhaseResponding, signals{inputValid: true}, PhaseResponding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextPhase(tt.from, tt.sig))
		})
	}
}

func TestStateRecent(t *testing.T) {
	s := NewState("c1")
	for i := 0; i < 5; i++ {
		s.Append(llm.RoleUser, "msg")
	}
	assert.Len(t, s.Recent(3), 3)
	assert.Len(t, s.Recent(10), 5)
	assert.Len(t, s.Recent(0), 5)
}

func TestKeywordIntentDetector(t *testing.T) {
	d := NewKeywordIntentDetector()
	assert.True(t, d.WantsBooking("I want to book an appointment"))
	assert.True(t, d.WantsBooking("BOOK me in please"))
	assert.False(t, d.WantsBooking("what are your opening hours?"))

	custom := NewKeywordIntentDetector("schedule", "reserve")
	assert.True(t, custom.WantsBooking("please schedule me"))
	assert.False(t, custom.WantsBooking("book me"))
}
