package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/slot-scheduler/internal/appointment"
	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

const dateLayout = "2006-01-02"

type BookAppointmentRequest struct {
	PatientID      string  `json:"patient_id" validate:"required,uuid"`
	PractitionerID string  `json:"practitioner_id" validate:"required,uuid"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTick      int     `json:"start_tick" validate:"gte=0"`
	EndTick        int     `json:"end_tick" validate:"gtfield=StartTick"`
	Title          *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Notes          *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

type RescheduleRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTick int    `json:"start_tick" validate:"gte=0"`
	EndTick   int    `json:"end_tick" validate:"gtfield=StartTick"`
}

type AppointmentResponse struct {
	ID             uuid.UUID  `json:"id"`
	PatientID      uuid.UUID  `json:"patient_id"`
	PractitionerID uuid.UUID  `json:"practitioner_id"`
	Date           string     `json:"date"`
	StartTick      int        `json:"start_tick"`
	EndTick        int        `json:"end_tick"`
	Status         string     `json:"status"`
	Title          *string    `json:"title,omitempty"`
	Notes          *string    `json:"notes,omitempty"`
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	Editable       bool       `json:"editable"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName      string `json:"patient_name,omitempty"`
	PractitionerName string `json:"practitioner_name,omitempty"`
}

// DayBlockResponse is one rendered block on the day view: the slot plus
// the presentation hints the grid derives for it.
type DayBlockResponse struct {
	AppointmentResponse
	StartLabel    string  `json:"start_label"`
	EndLabel      string  `json:"end_label"`
	HeightPercent float64 `json:"height_percent"`
}

type GridResponse struct {
	StartOfDayMinutes int `json:"start_of_day_minutes"`
	EndOfDayMinutes   int `json:"end_of_day_minutes"`
	TickMinutes       int `json:"tick_minutes"`
	TotalTicks        int `json:"total_ticks"`
}

type DayScheduleResponse struct {
	PractitionerID uuid.UUID          `json:"practitioner_id"`
	Date           string             `json:"date"`
	Grid           GridResponse       `json:"grid"`
	Appointments   []DayBlockResponse `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:             a.ID,
		PatientID:      a.PatientID,
		PractitionerID: a.PractitionerID,
		Date:           a.Date.Format(dateLayout),
		StartTick:      a.StartTick,
		EndTick:        a.EndTick,
		Status:         string(a.Status),
		Title:          a.Title,
		Notes:          a.Notes,
		ActualStart:    a.ActualStart,
		ActualEnd:      a.ActualEnd,
		Editable:       appointment.IsEditable(a.Status),
	}
}

func toGridResponse(g schedule.TimeGrid) GridResponse {
	return GridResponse{
		StartOfDayMinutes: g.StartOfDay,
		EndOfDayMinutes:   g.EndOfDay,
		TickMinutes:       g.TickMinutes,
		TotalTicks:        g.TotalTicks(),
	}
}

func toDayBlockResponse(a appointment.Appointment, g schedule.TimeGrid, policy schedule.HeightPolicy, use24h bool) DayBlockResponse {
	iv := a.Interval()
	return DayBlockResponse{
		AppointmentResponse: toAppointmentResponse(a),
		StartLabel:          g.TimeLabelForTick(iv.StartTick, use24h),
		EndLabel:            g.TimeLabelForTick(iv.EndTick, use24h),
		HeightPercent:       g.RowHeightPercent(iv.DurationMinutes(g), policy),
	}
}
