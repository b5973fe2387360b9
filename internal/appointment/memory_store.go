package appointment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and local development.
// The mutex gives it the same cannot-double-book guarantee as the Postgres
// schema's unique index.
type MemoryStore struct {
	mu    sync.Mutex
	rows  map[slotKey]*Appointment
	byID  map[uuid.UUID]*Appointment
	clock func() time.Time
}

type slotKey struct {
	doctorID string
	slot     int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:  make(map[slotKey]*Appointment),
		byID:  make(map[uuid.UUID]*Appointment),
		clock: func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*MemoryStore)(nil)

// CheckAvailability reports whether no active appointment occupies the slot.
func (s *MemoryStore) CheckAvailability(ctx context.Context, doctorID string, slot time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.rows[slotKey{doctorID, slot.UTC().UnixNano()}]
	return !ok || appt.Status == StatusCancelled, nil
}

// Book atomically checks and inserts.
func (s *MemoryStore) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.Slot.IsZero() {
		return nil, ErrInvalidSlot
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{req.DoctorID, req.Slot.UTC().UnixNano()}
	if existing, ok := s.rows[key]; ok && existing.Status != StatusCancelled {
		return nil, ErrSlotTaken
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Slot:      req.Slot,
		Status:    status,
		Metadata:  req.Metadata,
		CreatedAt: s.clock(),
	}
	s.rows[key] = appt
	s.byID[appt.ID] = appt
	return appt, nil
}

// Get returns an appointment by ID, or nil when absent. Test helper.
func (s *MemoryStore) Get(id uuid.UUID) *Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[id]
}

// Len reports the number of stored appointments. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
