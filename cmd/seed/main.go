// Seed fills the appointments table with plausible fake bookings for local
// development. It goes through the store, so seeded rows obey the same
// no-double-booking rules as real ones.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/joho/godotenv"

	"github.com/HaolanLL/Medical-Chat-Agent/internal/appointment"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/config"
	"github.com/HaolanLL/Medical-Chat-Agent/internal/retry"
	"github.com/HaolanLL/Medical-Chat-Agent/pkg/logging"
)

func main() {
	count := flag.Int("count", 25, "number of fake appointments to create")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()
	pool, err := appointment.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	store := appointment.NewPgStore(pool, retry.Policy{MaxAttempts: 3, BaseDelay: time.Second}, logger)

	created := 0
	for i := 0; i < *count; i++ {
		req := appointment.BookingRequest{
			PatientID: fmt.Sprintf("PAT-%04d", gofakeit.Number(0, 9999)),
			DoctorID:  fmt.Sprintf("DR-%03d", gofakeit.Number(0, 999)),
			Slot:      randomSlot(),
			Status:    appointment.StatusScheduled,
			Metadata: map[string]string{
				"seeded": "true",
				"reason": gofakeit.RandomString([]string{"checkup", "follow-up", "consultation", "vaccination"}),
			},
		}
		appt, err := store.Book(ctx, req)
		if err != nil {
			if errors.Is(err, appointment.ErrSlotTaken) {
				continue // collision with an earlier fake, just move on
			}
			log.Fatalf("seed booking: %v", err)
		}
		created++
		logger.Info("seeded appointment",
			"appointment_id", appt.ID.String(),
			"doctor_id", appt.DoctorID,
			"slot", appt.Slot.Format(time.RFC3339),
		)
	}

	fmt.Printf("seeded %d appointments\n", created)
}

// randomSlot picks an on-the-hour slot in the next 30 days of clinic time.
func randomSlot() time.Time {
	day := gofakeit.Number(1, 30)
	hour := gofakeit.Number(9, 16)
	base := time.Now().UTC().Truncate(24 * time.Hour)
	return base.AddDate(0, 0, day).Add(time.Duration(hour) * time.Hour)
}
