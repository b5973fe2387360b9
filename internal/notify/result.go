package notify

// Channel identifies a delivery transport.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Outcome classifies how a delivery attempt ended.
type Outcome string

const (
	// OutcomeDelivered means a channel accepted the message.
	OutcomeDelivered Outcome = "delivered"
	// OutcomeInvalidMessage means the message itself was rejected before any
	// send was attempted (empty or over the length limit).
	OutcomeInvalidMessage Outcome = "invalid_message"
	// OutcomeInvalidContact means no channel had a usable recipient address.
	OutcomeInvalidContact Outcome = "invalid_contact"
	// OutcomeFailed means every usable channel errored out.
	OutcomeFailed Outcome = "failed"
)

// DeliveryResult reports what happened to one notification. Senders never
// surface transport errors to callers; the result carries the story instead.
type DeliveryResult struct {
	Outcome  Outcome
	Channel  Channel
	FellBack bool
	Detail   string
}

// Delivered reports whether any channel accepted the message.
func (r DeliveryResult) Delivered() bool {
	return r.Outcome == OutcomeDelivered
}
