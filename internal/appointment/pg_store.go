package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/retry"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

var storeTracer = otel.Tracer("clinic.internal.appointment.store")

// uniqueViolation is the SQLSTATE raised when the partial unique index on
// (doctor_id, slot) rejects a second active booking.
const uniqueViolation = "23505"

// PgxPool is the subset of pgxpool.Pool the store needs; pgxmock implements
// it for tests.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore persists appointments in Postgres. The availability check and the
// insert run inside one transaction, and the schema carries a partial unique
// index so concurrent bookings of the same slot cannot both commit.
type PgStore struct {
	pool    PgxPool
	connect retry.Policy
	logger  *logging.Logger
}

// NewPgStore wraps a pgx pool. The retry policy governs transaction
// acquisition only; statement failures inside a transaction are never retried.
func NewPgStore(pool PgxPool, connect retry.Policy, logger *logging.Logger) *PgStore {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PgStore{pool: pool, connect: connect, logger: logger}
}

var _ Store = (*PgStore)(nil)

// CheckAvailability reports whether the doctor has no active appointment at
// the slot.
func (s *PgStore) CheckAvailability(ctx context.Context, doctorID string, slot time.Time) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND slot = $2 AND status <> 'cancelled'
		)
	`, doctorID, slot).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("appointment: availability check: %w", err)
	}
	return !taken, nil
}

// Book inserts the appointment after re-checking availability in the same
// transaction. Commits on success; rolls back on every failure path.
func (s *PgStore) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if req.Slot.IsZero() {
		return nil, ErrInvalidSlot
	}
	status := req.Status
	if status == "" {
		status = StatusPending
	}

	ctx, span := storeTracer.Start(ctx, "appointment.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.doctor_id", req.DoctorID),
		attribute.String("clinic.slot", req.Slot.UTC().Format(time.RFC3339)),
	)

	var metadata []byte
	if len(req.Metadata) > 0 {
		data, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: encode metadata: %v", ErrBookingFailed, err)
		}
		metadata = data
	}

	// Transient connectivity failures are expected; acquiring the
	// transaction is the only retried step.
	var tx pgx.Tx
	err := s.connect.Do(ctx, func(ctx context.Context) error {
		var beginErr error
		tx, beginErr = s.pool.Begin(ctx)
		return beginErr
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrBookingFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The unique partial index on (doctor_id, slot) is what actually
	// serializes concurrent inserts; this check exists to classify the
	// common case without tripping the constraint.
	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND slot = $2 AND status <> 'cancelled'
		)
	`, req.DoctorID, req.Slot).Scan(&taken)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: availability check: %v", ErrBookingFailed, err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	appt := &Appointment{
		ID:        uuid.New(),
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Slot:      req.Slot,
		Status:    status,
		Metadata:  req.Metadata,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, slot, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING created_at
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.Slot, string(status), metadata).Scan(&appt.CreatedAt)
	if err != nil {
		span.RecordError(err)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("%w: insert: %v", ErrBookingFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: commit: %v", ErrBookingFailed, err)
	}

	s.logger.Info("appointment booked",
		"appointment_id", appt.ID.String(),
		"doctor_id", appt.DoctorID,
		"slot", appt.Slot.UTC().Format(time.RFC3339),
	)
	return appt, nil
}

// Connect builds a pgx pool with conservative limits and verifies
// connectivity before returning.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("appointment: parse postgres dsn: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("appointment: create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("appointment: ping postgres: %w", err)
	}

	return pool, nil
}
