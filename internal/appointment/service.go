package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/clinicdesk/slot-scheduler/internal/redis"
	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentStarted     = "APPOINTMENT_STARTED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow      = "APPOINTMENT_NO_SHOW"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

var (
	ErrDayBeingBooked   = errors.New("this day is currently being booked, please retry")
	ErrNotReschedulable = errors.New("only booked appointments can be rescheduled")
	ErrStaleAppointment = errors.New("appointment changed underneath, reload and retry")
)

// ConflictError reports a requested slot overlapping an existing
// appointment on the same practitioner-day.
type ConflictError struct {
	Requested  schedule.TimeInterval
	Existing   schedule.TimeInterval
	ExistingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot [%d,%d) overlaps existing appointment [%d,%d) on %s",
		e.Requested.StartTick, e.Requested.EndTick,
		e.Existing.StartTick, e.Existing.EndTick,
		e.Requested.Date.Format("2006-01-02"))
}

// GridSource yields the current scheduling grid; in production it is the
// settings service, in tests a fixed grid.
type GridSource interface {
	Grid(ctx context.Context) (schedule.TimeGrid, error)
}

// BookRequest is everything needed to turn a committed drag selection
// into a stored appointment.
type BookRequest struct {
	PatientID      uuid.UUID
	PractitionerID uuid.UUID
	Interval       schedule.TimeInterval
	Title          *string
	Notes          *string
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	grids     GridSource
	lifecycle Lifecycle
	logger    *zap.Logger

	// noShowGrace is how long past its scheduled end a booked
	// appointment may linger before the sweeper marks it a no-show.
	noShowGrace time.Duration
}

func NewService(repo Repository, locker redisclient.Locker, grids GridSource, noShowGrace time.Duration, logger *zap.Logger) *Service {
	return &Service{
		repo:        repo,
		locker:      locker,
		grids:       grids,
		lifecycle:   NewLifecycle(),
		logger:      logger,
		noShowGrace: noShowGrace,
	}
}

// Book validates the requested interval against the grid and the day's
// existing appointments, then stores it as booked. The conflict check and
// the insert run under a per-practitioner-day lock so concurrent requests
// cannot both pass the check. The drag selector already validated the
// interval client-side; this is the authoritative re-check.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetPractitionerByID(ctx, req.PractitionerID); err != nil {
		if errors.Is(err, ErrPractitionerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load practitioner: %w", err)
	}

	grid, err := s.grids.Grid(ctx)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	if err := req.Interval.Validate(grid); err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.locker.WithDayLock(ctx, req.PractitionerID, req.Interval.Date, func(lockCtx context.Context) error {
		conflict, err := s.findConflict(lockCtx, req.PractitionerID, req.Interval, uuid.Nil)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			PatientID:      req.PatientID,
			PractitionerID: req.PractitionerID,
			Date:           req.Interval.Date,
			StartTick:      req.Interval.StartTick,
			EndTick:        req.Interval.EndTick,
			Status:         StatusBooked,
			Title:          req.Title,
			Notes:          req.Notes,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventAppointmentBooked, map[string]any{
			"patient_id":      req.PatientID.String(),
			"practitioner_id": req.PractitionerID.String(),
			"date":            req.Interval.Date.Format("2006-01-02"),
			"start_tick":      req.Interval.StartTick,
			"end_tick":        req.Interval.EndTick,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDayBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Reschedule moves a still-booked appointment to a new interval on the
// same conflict-check-under-lock discipline as Book.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, interval schedule.TimeInterval) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status != StatusBooked {
		return nil, ErrNotReschedulable
	}

	grid, err := s.grids.Grid(ctx)
	if err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	if err := interval.Validate(grid); err != nil {
		return nil, err
	}

	var updated *Appointment

	err = s.locker.WithDayLock(ctx, appt.PractitionerID, interval.Date, func(lockCtx context.Context) error {
		conflict, err := s.findConflict(lockCtx, appt.PractitionerID, interval, appt.ID)
		if err != nil {
			return err
		}
		if conflict != nil {
			return conflict
		}

		moved, err := s.repo.UpdateAppointmentInterval(lockCtx, appt.ID, interval.Date, interval.StartTick, interval.EndTick)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return ErrStaleAppointment
			}
			return fmt.Errorf("reschedule appointment: %w", err)
		}

		updated = moved

		s.logEvent(lockCtx, appt.ID, EventAppointmentRescheduled, map[string]any{
			"date":       interval.Date.Format("2006-01-02"),
			"start_tick": interval.StartTick,
			"end_tick":   interval.EndTick,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDayBeingBooked
		}
		return nil, err
	}

	return updated, nil
}

// Start begins the consult: Booked → InProgress with ActualStart stamped.
// The state machine runs locally, then the result is persisted with a
// compare-and-swap on the previous status, so a concurrent transition
// shows up as ErrStaleAppointment instead of silently overwriting.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, "start", EventAppointmentStarted, s.lifecycle.Start)
}

// Complete finishes the consult: InProgress → Completed with ActualEnd.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, "complete", EventAppointmentCompleted, s.lifecycle.Complete)
}

// Cancel drops a booked appointment.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, "cancel", EventAppointmentCancelled, s.lifecycle.Cancel)
}

// MarkNoShow records a patient who never arrived.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, "mark no-show", EventAppointmentNoShow, s.lifecycle.MarkNoShow)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, action, eventType string, step func(Appointment) (Appointment, error)) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	next, err := step(*appt)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, appt.Status, next.Status, StatusPatch{
		ActualStart: next.ActualStart,
		ActualEnd:   next.ActualEnd,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Row moved out of the expected status between read and write.
			return nil, ErrStaleAppointment
		}
		return nil, fmt.Errorf("%s appointment: %w", action, err)
	}

	s.logEvent(ctx, updated.ID, eventType, map[string]any{
		"from": string(appt.Status),
		"to":   string(updated.Status),
	})

	return updated, nil
}

// DaySchedule returns one practitioner-day ordered by start tick, the
// feed behind the calendar day view and the conflict snapshot for drag
// gestures.
func (s *Service) DaySchedule(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	appts, err := s.repo.ListForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list day schedule: %w", err)
	}
	return appts, nil
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointmentsByPatient retrieves appointments for a specific patient.
func (s *Service) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// SweepNoShows marks booked appointments whose scheduled end passed more
// than the grace period ago. Intended to be called by the worker
// periodically. Returns how many appointments were marked.
func (s *Service) SweepNoShows(ctx context.Context, now time.Time) (int, error) {
	grid, err := s.grids.Grid(ctx)
	if err != nil {
		return 0, fmt.Errorf("load grid: %w", err)
	}

	candidates, err := s.repo.FindBookedThrough(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find booked appointments: %w", err)
	}

	swept := 0
	for _, appt := range candidates {
		_, end := appt.Interval().Times(grid)
		if now.Sub(end) < s.noShowGrace {
			continue
		}

		if _, err := s.MarkNoShow(ctx, appt.ID); err != nil {
			if errors.Is(err, ErrStaleAppointment) || errors.Is(err, ErrInvalidTransition) {
				continue
			}
			s.logger.Error("failed to sweep appointment",
				zap.String("appointment_id", appt.ID.String()),
				zap.Error(err))
			continue
		}
		swept++
	}

	return swept, nil
}

func (s *Service) findConflict(ctx context.Context, practitionerID uuid.UUID, interval schedule.TimeInterval, excludeID uuid.UUID) (*ConflictError, error) {
	existing, err := s.repo.ListForDay(ctx, practitionerID, interval.Date)
	if err != nil {
		return nil, fmt.Errorf("list existing appointments: %w", err)
	}

	for _, e := range existing {
		if e.ID == excludeID || e.Status.IsTerminal() {
			continue
		}
		if interval.Overlaps(e.Interval()) {
			return &ConflictError{
				Requested:  interval,
				Existing:   e.Interval(),
				ExistingID: e.ID,
			}, nil
		}
	}

	return nil, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload",
			zap.String("event_type", eventType),
			zap.Error(err))
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log",
			zap.String("event_type", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err))
	}
}
