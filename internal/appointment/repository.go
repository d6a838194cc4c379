package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)

// StatusPatch carries the optional timestamp writes that accompany a
// status transition.
type StatusPatch struct {
	ActualStart *time.Time
	ActualEnd   *time.Time
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)

	// ListForDay returns every non-terminal-cancelled appointment for one
	// practitioner's calendar day, ordered by start tick. This is both the
	// day-view feed and the conflict-check snapshot.
	ListForDay(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error)

	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)

	// UpdateAppointmentStatus applies a transition compare-and-swap style:
	// the row is only updated while still in the expected `from` status.
	// A stale `from` surfaces as ErrAppointmentNotFound.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status, patch StatusPatch) (*Appointment, error)

	// UpdateAppointmentInterval moves a still-booked appointment to a new
	// slot, same CAS discipline on the booked status.
	UpdateAppointmentInterval(ctx context.Context, id uuid.UUID, date time.Time, startTick, endTick int) (*Appointment, error)

	// FindBookedThrough returns appointments still in booked status on or
	// before the given day, for the no-show sweeper.
	FindBookedThrough(ctx context.Context, day time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
