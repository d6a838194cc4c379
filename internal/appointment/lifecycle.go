package appointment

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition matches any InvalidTransitionError via errors.Is.
var ErrInvalidTransition = errors.New("invalid status transition")

// InvalidTransitionError reports a lifecycle action attempted from a
// status that does not permit it.
type InvalidTransitionError struct {
	From      Status
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment in status %q", e.Attempted, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Lifecycle runs appointment status transitions. Transitions are pure:
// they take an appointment value and return the updated value, leaving
// persistence to the caller, so a local transition is provisional until
// the service layer confirms it against the store.
type Lifecycle struct {
	// Now is injectable for tests.
	Now func() time.Time
	// MinElapsed floors Elapsed so a consult started and ended within
	// the same instant still reports a visible duration.
	MinElapsed time.Duration
}

func NewLifecycle() Lifecycle {
	return Lifecycle{
		Now:        time.Now,
		MinElapsed: time.Second,
	}
}

// Start moves a booked appointment into progress and stamps ActualStart.
func (l Lifecycle) Start(a Appointment) (Appointment, error) {
	if a.Status != StatusBooked {
		return a, &InvalidTransitionError{From: a.Status, Attempted: "start"}
	}
	now := l.Now()
	a.Status = StatusInProgress
	a.ActualStart = &now
	return a, nil
}

// Complete finishes an in-progress appointment and stamps ActualEnd.
func (l Lifecycle) Complete(a Appointment) (Appointment, error) {
	if a.Status != StatusInProgress {
		return a, &InvalidTransitionError{From: a.Status, Attempted: "complete"}
	}
	now := l.Now()
	a.Status = StatusCompleted
	a.ActualEnd = &now
	return a, nil
}

// Cancel is only allowed before the consult starts.
func (l Lifecycle) Cancel(a Appointment) (Appointment, error) {
	if a.Status != StatusBooked {
		return a, &InvalidTransitionError{From: a.Status, Attempted: "cancel"}
	}
	a.Status = StatusCancelled
	return a, nil
}

// MarkNoShow records a patient who never turned up. Allowed from Booked
// and, for the case where a consult was opened by mistake, InProgress.
func (l Lifecycle) MarkNoShow(a Appointment) (Appointment, error) {
	if a.Status != StatusBooked && a.Status != StatusInProgress {
		return a, &InvalidTransitionError{From: a.Status, Attempted: "mark no-show"}
	}
	a.Status = StatusNoShow
	return a, nil
}

// Elapsed reports how long the consult has been running (InProgress,
// measured against now) or took (Completed, measured against ActualEnd).
// The result is floored at MinElapsed so two near-identical clock reads
// never yield a zero or negative duration. Appointments that were never
// started report zero.
func (l Lifecycle) Elapsed(a Appointment, now time.Time) time.Duration {
	if a.ActualStart == nil {
		return 0
	}

	end := now
	if a.Status == StatusCompleted && a.ActualEnd != nil {
		end = *a.ActualEnd
	}

	d := end.Sub(*a.ActualStart)
	if d < l.MinElapsed {
		return l.MinElapsed
	}
	return d
}

// IsEditable reports whether consultation fields (diagnosis, vitals and
// the rest of the medical record) may be modified. Only a running
// consult is editable; the surrounding form UI consumes this predicate.
func IsEditable(s Status) bool {
	return s == StatusInProgress
}
