package conversation

import "strings"

// IntentDetector decides whether a user message asks to book an appointment.
// The default is a keyword heuristic; an LLM-backed classifier can be swapped
// in without touching the engine.
type IntentDetector interface {
	WantsBooking(input string) bool
}

// KeywordIntentDetector flags any message containing one of its keywords.
type KeywordIntentDetector struct {
	keywords []string
}

// NewKeywordIntentDetector builds the default detector. With no keywords it
// matches "book".
func NewKeywordIntentDetector(keywords ...string) *KeywordIntentDetector {
	if len(keywords) == 0 {
		keywords = []string{"book"}
	}
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	return &KeywordIntentDetector{keywords: lowered}
}

var _ IntentDetector = (*KeywordIntentDetector)(nil)

// WantsBooking reports whether input contains any keyword, case-insensitively.
func (d *KeywordIntentDetector) WantsBooking(input string) bool {
	lowered := strings.ToLower(input)
	for _, k := range d.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}
