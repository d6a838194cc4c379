package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicdesk/slot-scheduler/internal/db"
	"github.com/clinicdesk/slot-scheduler/internal/schedule"
	"github.com/clinicdesk/slot-scheduler/internal/settings"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedSettings(context.Background(), pool); err != nil {
		log.Fatalf("seed settings: %v", err)
	}

	practitioners, err := seedPractitioners(context.Background(), pool, 10)
	if err != nil {
		log.Fatalf("seed practitioners: %v", err)
	}
	patients, err := seedPatients(context.Background(), pool, 200)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	if err := seedBookings(context.Background(), pool, practitioners, patients); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedSettings(ctx context.Context, pool *pgxpool.Pool) error {
	log.Println("seeding clinic settings")
	store := settings.NewPgStore(pool)
	s := settings.Defaults()
	s.ClinicName = gofakeit.Company() + " Clinic"
	return store.Put(ctx, s)
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d practitioners", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, id, name, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		email := gofakeit.Email()
		phone := gofakeit.Phone()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, email, phone, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, email, phone)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// seedBookings fills tomorrow's day for each practitioner with
// non-overlapping appointments by walking the grid left to right and
// skipping random gaps.
func seedBookings(ctx context.Context, pool *pgxpool.Pool, practitioners, patients []uuid.UUID) error {
	grid, err := settings.Defaults().Grid()
	if err != nil {
		return err
	}

	day := schedule.Day(time.Now().UTC().AddDate(0, 0, 1))
	log.Printf("seeding bookings for %s", day.Format("2006-01-02"))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, practID := range practitioners {
		tick := 0
		for tick < grid.TotalTicks() {
			// random gap, then a 1-4 tick appointment
			tick += gofakeit.Number(0, 3)
			length := gofakeit.Number(1, 4)
			if tick+length > grid.TotalTicks() {
				break
			}

			patID := patients[gofakeit.Number(0, len(patients)-1)]
			title := gofakeit.Sentence(3)

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, patient_id, practitioner_id, date, start_tick, end_tick, status, title, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, 'booked', $7, now(), now())
			`, uuid.New(), patID, practID, day, tick, tick+length, title)
			if err != nil {
				return err
			}

			tick += length
			total++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("seeded %d bookings", total)
	return nil
}
