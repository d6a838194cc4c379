package settings

import (
	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

// ClinicSettings is the clinic-wide scheduling configuration the day view
// is built from. It is stored in Postgres and cached in Redis; nothing
// reads it through ambient global state.
type ClinicSettings struct {
	ClinicName       string  `json:"clinic_name"`
	DayStartMinutes  int     `json:"day_start_minutes"`
	DayEndMinutes    int     `json:"day_end_minutes"`
	TickMinutes      int     `json:"tick_minutes"`
	MinHeightPercent float64 `json:"min_height_percent"`
	MaxHeightPercent float64 `json:"max_height_percent"`
	Use24HourClock   bool    `json:"use_24_hour_clock"`
}

// Defaults is the configuration a fresh deployment starts with: an
// 08:00–18:00 day on a 15-minute grid.
func Defaults() ClinicSettings {
	return ClinicSettings{
		ClinicName:       "Clinic",
		DayStartMinutes:  8 * 60,
		DayEndMinutes:    18 * 60,
		TickMinutes:      15,
		MinHeightPercent: 4,
		MaxHeightPercent: 20,
		Use24HourClock:   true,
	}
}

// Grid builds the schedule grid these settings describe. Invalid bounds
// surface as a grid construction error.
func (s ClinicSettings) Grid() (schedule.TimeGrid, error) {
	return schedule.NewTimeGrid(s.DayStartMinutes, s.DayEndMinutes, s.TickMinutes)
}

// HeightPolicy returns the rendering clamp for day-view blocks.
func (s ClinicSettings) HeightPolicy() schedule.HeightPolicy {
	return schedule.HeightPolicy{
		MinPercent: s.MinHeightPercent,
		MaxPercent: s.MaxHeightPercent,
	}
}
