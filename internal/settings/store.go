package settings

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrSettingsNotFound = errors.New("clinic settings not found")

// Store is the durable home of the clinic settings row.
type Store interface {
	Get(ctx context.Context) (*ClinicSettings, error)
	Put(ctx context.Context, s ClinicSettings) error
}

// PgStore keeps the settings as a single row; the fixed id keeps upserts
// trivial.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (r *PgStore) Get(ctx context.Context) (*ClinicSettings, error) {
	var s ClinicSettings

	err := r.pool.QueryRow(ctx, `
		SELECT clinic_name, day_start_minutes, day_end_minutes, tick_minutes,
		       min_height_percent, max_height_percent, use_24_hour_clock
		FROM clinic_settings
		WHERE id = 1
	`).Scan(
		&s.ClinicName,
		&s.DayStartMinutes,
		&s.DayEndMinutes,
		&s.TickMinutes,
		&s.MinHeightPercent,
		&s.MaxHeightPercent,
		&s.Use24HourClock,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}

	return &s, nil
}

func (r *PgStore) Put(ctx context.Context, s ClinicSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinic_settings (id, clinic_name, day_start_minutes, day_end_minutes, tick_minutes,
		                             min_height_percent, max_height_percent, use_24_hour_clock, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE
		SET clinic_name = EXCLUDED.clinic_name,
		    day_start_minutes = EXCLUDED.day_start_minutes,
		    day_end_minutes = EXCLUDED.day_end_minutes,
		    tick_minutes = EXCLUDED.tick_minutes,
		    min_height_percent = EXCLUDED.min_height_percent,
		    max_height_percent = EXCLUDED.max_height_percent,
		    use_24_hour_clock = EXCLUDED.use_24_hour_clock,
		    updated_at = now()
	`, s.ClinicName, s.DayStartMinutes, s.DayEndMinutes, s.TickMinutes,
		s.MinHeightPercent, s.MaxHeightPercent, s.Use24HourClock)

	return err
}
