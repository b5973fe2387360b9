package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSlotTaken means a non-cancelled appointment already exists for the
	// (doctor, slot) pair. Never retried.
	ErrSlotTaken = errors.New("appointment: slot already booked")
	// ErrBookingFailed wraps any other failure to persist a booking.
	ErrBookingFailed = errors.New("appointment: booking failed")
	// ErrInvalidSlot rejects bookings without a usable slot time.
	ErrInvalidSlot = errors.New("appointment: slot time required")
)

// Store provides transactional booking operations. Implementations must be
// safe for concurrent use: two simultaneous Book calls for the same
// (doctor, slot) must never both succeed.
type Store interface {
	// CheckAvailability reports whether no non-cancelled appointment exists
	// for the doctor at the slot. Read-only.
	CheckAvailability(ctx context.Context, doctorID string, slot time.Time) (bool, error)
	// Book atomically re-checks availability and inserts the appointment.
	// Returns ErrSlotTaken when the slot is held, or an error wrapping
	// ErrBookingFailed on any other failure.
	Book(ctx context.Context, req BookingRequest) (*Appointment, error)
}
