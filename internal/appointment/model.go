package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a persisted appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusCancelled Status = "cancelled"
)

// Appointment is a persisted booking row.
type Appointment struct {
	ID        uuid.UUID
	PatientID string
	DoctorID  string
	Slot      time.Time
	Status    Status
	Metadata  map[string]string
	CreatedAt time.Time
}

// BookingRequest carries everything needed to create an appointment.
// Identifier formats are validated by the caller before the store is touched.
type BookingRequest struct {
	PatientID string
	DoctorID  string
	Slot      time.Time
	// Status defaults to pending when empty.
	Status   Status
	Metadata map[string]string
}
