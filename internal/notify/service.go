// Package notify delivers booking confirmations to patients over SMS and
// email, preferring one channel and falling back to the other. Delivery
// problems are reported through DeliveryResult and never bubble up as errors;
// a confirmed booking stays confirmed whatever happens here.
package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/identity"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/retry"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

var serviceTracer = otel.Tracer("clinic.internal.notify.service")

const (
	// MaxMessageChars is the longest confirmation body accepted for delivery.
	MaxMessageChars = 500
	// smsPreviewChars caps fallback SMS bodies to one practical segment;
	// the preferred channel always carries the full message.
	smsPreviewChars = 160
	truncationMark  = "…[truncated]"
)

// Notification is one confirmation to deliver. Recipient is an opaque label
// used only for logging.
type Notification struct {
	Recipient string
	Phone     string
	Email     string
	Subject   string
	Body      string
}

// ContactDirectory resolves a doctor's notification contact details.
type ContactDirectory interface {
	Contact(doctorID string) (phone, email string)
}

// StaticDirectory serves one configured contact for every doctor. Small
// clinics route all booking notifications to a single front desk.
type StaticDirectory struct {
	Phone string
	Email string
}

func (d StaticDirectory) Contact(string) (string, string) {
	return d.Phone, d.Email
}

var _ ContactDirectory = StaticDirectory{}

// Service routes a notification to the preferred channel and falls back to
// the other channel when the first fails.
type Service struct {
	sms       SMSSender
	email     EmailSender
	directory ContactDirectory
	preferred Channel
	policy    retry.Policy
	logger    *logging.Logger
}

// Config holds the notification routing settings.
type Config struct {
	PreferredChannel Channel
	MaxAttempts      int
	BaseDelay        time.Duration
	Directory        ContactDirectory
}

// NewService creates the notification service. Nil senders disable their
// channel.
func NewService(sms SMSSender, email EmailSender, cfg Config, logger *logging.Logger) *Service {
	if cfg.PreferredChannel != ChannelEmail {
		cfg.PreferredChannel = ChannelSMS
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 500 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		sms:       sms,
		email:     email,
		directory: cfg.Directory,
		preferred: cfg.PreferredChannel,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    5 * time.Second,
			Retryable:   isRetryable,
		},
		logger: logger,
	}
}

// Notify delivers a booking summary to the doctor's configured contacts.
func (s *Service) Notify(ctx context.Context, doctorID, message string) DeliveryResult {
	if s.directory == nil {
		return DeliveryResult{Outcome: OutcomeInvalidContact, Detail: "no contact directory configured"}
	}
	phone, email := s.directory.Contact(doctorID)
	return s.Send(ctx, Notification{
		Recipient: doctorID,
		Phone:     phone,
		Email:     email,
		Subject:   "New Appointment Booked",
		Body:      message,
	})
}

// Send delivers the notification. It validates the message and the contact
// details, tries the preferred channel with bounded retries, then the other
// channel. The returned result is the whole story; Send never errors.
func (s *Service) Send(ctx context.Context, n Notification) DeliveryResult {
	ctx, span := serviceTracer.Start(ctx, "notify.send")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.notify.recipient", n.Recipient))

	body := strings.TrimSpace(n.Body)
	if body == "" {
		return DeliveryResult{Outcome: OutcomeInvalidMessage, Detail: "empty message body"}
	}
	if len([]rune(body)) > MaxMessageChars {
		return DeliveryResult{Outcome: OutcomeInvalidMessage, Detail: "message exceeds 500 characters"}
	}

	order := []Channel{ChannelSMS, ChannelEmail}
	if s.preferred == ChannelEmail {
		order = []Channel{ChannelEmail, ChannelSMS}
	}

	var sawUsableChannel bool
	var lastDetail string
	for i, ch := range order {
		fellBack := i > 0
		detail, usable := s.channelUsable(ch, n)
		if !usable {
			lastDetail = detail
			continue
		}
		sawUsableChannel = true

		err := s.deliver(ctx, ch, n, body, fellBack)
		if err == nil {
			s.logger.Info("notification delivered",
				"recipient", n.Recipient,
				"channel", string(ch),
				"fell_back", fellBack,
			)
			return DeliveryResult{Outcome: OutcomeDelivered, Channel: ch, FellBack: fellBack}
		}
		lastDetail = err.Error()
		s.logger.Error("notification channel failed",
			"recipient", n.Recipient,
			"channel", string(ch),
			"error", err,
			"will_fall_back", i < len(order)-1,
		)
	}

	if !sawUsableChannel {
		return DeliveryResult{Outcome: OutcomeInvalidContact, Detail: lastDetail}
	}
	return DeliveryResult{Outcome: OutcomeFailed, Detail: lastDetail}
}

// channelUsable reports whether a channel has both a sender and a valid
// recipient address.
func (s *Service) channelUsable(ch Channel, n Notification) (string, bool) {
	switch ch {
	case ChannelSMS:
		if s.sms == nil {
			return "sms sender not configured", false
		}
		if !identity.ValidPhone(n.Phone) {
			return "invalid phone number", false
		}
	case ChannelEmail:
		if s.email == nil {
			return "email sender not configured", false
		}
		if !identity.ValidEmail(n.Email) {
			return "invalid email address", false
		}
	}
	return "", true
}

func (s *Service) deliver(ctx context.Context, ch Channel, n Notification, body string, fellBack bool) error {
	switch ch {
	case ChannelSMS:
		smsBody := body
		if runes := []rune(smsBody); fellBack && len(runes) > smsPreviewChars {
			keep := smsPreviewChars - len([]rune(truncationMark))
			smsBody = string(runes[:keep]) + truncationMark
		}
		return s.policy.Do(ctx, func(ctx context.Context) error {
			return s.sms.SendSMS(ctx, n.Phone, smsBody)
		})
	case ChannelEmail:
		subject := n.Subject
		if subject == "" {
			subject = "Appointment Confirmation"
		}
		return s.policy.Do(ctx, func(ctx context.Context) error {
			return s.email.Send(ctx, EmailMessage{To: n.Email, Subject: subject, Body: body})
		})
	}
	return errors.New("notify: unknown channel")
}

// permanentError marks failures that retrying cannot fix (bad credentials,
// rejected recipients).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func isRetryable(err error) bool {
	var p *permanentError
	return !errors.As(err, &p)
}
