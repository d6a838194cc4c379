package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

type Status string

const (
	StatusBooked     Status = "booked"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

// IsTerminal reports whether no further lifecycle transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment is one booked slot on a practitioner's day. The slot is
// stored as grid ticks; wall-clock times are derived through the day's
// TimeGrid, never stored alongside.
type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Date           time.Time
	StartTick      int
	EndTick        int
	Status         Status
	Title          *string
	Notes          *string
	ActualStart    *time.Time
	ActualEnd      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Interval is the appointment's slot as a schedule interval.
func (a Appointment) Interval() schedule.TimeInterval {
	return schedule.NewTimeInterval(a.Date, a.StartTick, a.EndTick)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentDetail struct {
	Appointment
	Patient      *Patient
	Practitioner *Practitioner
}
