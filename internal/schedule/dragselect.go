package schedule

import (
	"errors"
	"fmt"
	"time"
)

var ErrGestureActive = errors.New("a drag gesture is already in progress")

// Phase is the drag selector's state tag.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseDragging  Phase = "dragging"
	PhaseCommitted Phase = "committed"
	PhaseCancelled Phase = "cancelled"
)

// Selection is the transient state of one in-progress drag gesture. It is
// owned exclusively by the DragSelector and discarded when the gesture
// ends; it is never persisted.
type Selection struct {
	Date           time.Time
	AnchorTick     int
	CurrentTick    int
	Valid          bool
	ConflictReason string
}

// Candidate is the tentative interval the gesture currently spans:
// [min(anchor,current), max(anchor,current)+1). Dragging downward or
// upward over the same ticks produces the same candidate.
func (s Selection) Candidate() TimeInterval {
	lo, hi := s.AnchorTick, s.CurrentTick
	if hi < lo {
		lo, hi = hi, lo
	}
	return NewTimeInterval(s.Date, lo, hi+1)
}

// SnapshotFunc supplies the intervals already booked on a date. It is
// called on every pointer move so the gesture always validates against
// the freshest snapshot the caller has.
type SnapshotFunc func(date time.Time) []TimeInterval

// CommitFunc receives the final, conflict-free interval when a gesture
// is committed. The selector does not wait on whatever persistence the
// callback triggers; retries and failures downstream are the caller's.
type CommitFunc func(TimeInterval)

// DragSelector turns pointer gestures over a day grid into validated,
// committable time intervals.
//
// It is a single-gesture state machine: Idle until Begin, Dragging while
// the pointer is down, then Committed or Cancelled, from which the next
// Begin starts over. All state is local to the selector; it is not safe
// for concurrent use and is not meant to be — one selector serves one
// pointer.
type DragSelector struct {
	grid     TimeGrid
	snapshot SnapshotFunc
	commit   CommitFunc
	use24h   bool

	phase Phase
	sel   Selection
}

func NewDragSelector(grid TimeGrid, snapshot SnapshotFunc, commit CommitFunc, use24Hour bool) *DragSelector {
	return &DragSelector{
		grid:     grid,
		snapshot: snapshot,
		commit:   commit,
		use24h:   use24Hour,
		phase:    PhaseIdle,
	}
}

func (d *DragSelector) Phase() Phase {
	return d.phase
}

// Selection returns the live gesture state, false when no gesture is
// active.
func (d *DragSelector) Selection() (Selection, bool) {
	if d.phase != PhaseDragging {
		return Selection{}, false
	}
	return d.sel, true
}

// Begin starts a gesture at the given tick. Allowed from any resting
// phase; beginning while another gesture is active is a programmer error
// surfaced as ErrGestureActive.
func (d *DragSelector) Begin(date time.Time, tick int) error {
	if d.phase == PhaseDragging {
		return ErrGestureActive
	}
	tick = d.grid.ClampTick(tick)
	d.sel = Selection{
		Date:        Day(date),
		AnchorTick:  tick,
		CurrentTick: tick,
	}
	d.phase = PhaseDragging
	d.revalidate()
	return nil
}

// BeginAt starts a gesture from a pixel position inside a container of
// totalHeight pixels.
func (d *DragSelector) BeginAt(date time.Time, pixelOffset, totalHeight float64) error {
	return d.Begin(date, d.grid.TickFromPosition(pixelOffset, totalHeight))
}

// Move updates the gesture's current tick and revalidates the candidate.
// A conflict does not end the gesture: the candidate is only marked
// invalid so the user can shrink the selection back to a clear range.
// Moves outside an active gesture are ignored.
func (d *DragSelector) Move(tick int) {
	if d.phase != PhaseDragging {
		return
	}
	d.sel.CurrentTick = d.grid.ClampTick(tick)
	d.revalidate()
}

// MoveTo is Move addressed by pixel position.
func (d *DragSelector) MoveTo(pixelOffset, totalHeight float64) {
	if d.phase != PhaseDragging {
		return
	}
	d.Move(d.grid.TickFromPosition(pixelOffset, totalHeight))
}

// End finishes the gesture on pointer-up. A valid candidate is handed to
// the commit callback and returned; an invalid one cancels silently. The
// returned bool reports whether a commit happened.
func (d *DragSelector) End() (TimeInterval, bool) {
	if d.phase != PhaseDragging {
		return TimeInterval{}, false
	}
	if !d.sel.Valid {
		d.phase = PhaseCancelled
		return TimeInterval{}, false
	}

	candidate := d.sel.Candidate()
	d.phase = PhaseCommitted
	if d.commit != nil {
		d.commit(candidate)
	}
	return candidate, true
}

// Cancel aborts the gesture without committing, e.g. when the pointer
// leaves the grid container. Safe to call in any phase.
func (d *DragSelector) Cancel() {
	if d.phase != PhaseDragging {
		return
	}
	d.phase = PhaseCancelled
}

// ConflictReason returns the human-readable reason the current candidate
// is invalid, empty while the candidate is clear or no gesture is active.
func (d *DragSelector) ConflictReason() string {
	if d.phase != PhaseDragging {
		return ""
	}
	return d.sel.ConflictReason
}

func (d *DragSelector) revalidate() {
	candidate := d.sel.Candidate()

	if err := candidate.Validate(d.grid); err != nil {
		d.sel.Valid = false
		d.sel.ConflictReason = "selection is outside the schedulable day"
		return
	}

	var existing []TimeInterval
	if d.snapshot != nil {
		existing = d.snapshot(d.sel.Date)
	}

	if hit, ok := FirstConflict(candidate, existing); ok {
		d.sel.Valid = false
		d.sel.ConflictReason = fmt.Sprintf("overlaps an existing appointment at %s", hit.Label(d.grid, d.use24h))
		return
	}

	d.sel.Valid = true
	d.sel.ConflictReason = ""
}
