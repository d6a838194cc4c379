package schedule

import (
	"errors"
	"fmt"
	"time"
)

var ErrIntervalOutOfRange = errors.New("interval is outside the grid")

// TimeInterval is a half-open [StartTick, EndTick) slice of one calendar
// day. Tick indexes are the source of truth; wall-clock times are always
// derived through a TimeGrid.
type TimeInterval struct {
	Date      time.Time
	StartTick int
	EndTick   int
}

// NewTimeInterval normalizes the date to midnight UTC.
func NewTimeInterval(date time.Time, startTick, endTick int) TimeInterval {
	return TimeInterval{
		Date:      Day(date),
		StartTick: startTick,
		EndTick:   endTick,
	}
}

// Day truncates a timestamp to its calendar day at midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// Overlaps is the standard half-open interval test: [a) and [b) overlap
// iff aStart < bEnd && bStart < aEnd. Intervals on different days never
// overlap; intervals that merely touch at a boundary do not overlap.
func (i TimeInterval) Overlaps(other TimeInterval) bool {
	if !SameDay(i.Date, other.Date) {
		return false
	}
	return i.StartTick < other.EndTick && other.StartTick < i.EndTick
}

// Ticks is the interval length in ticks.
func (i TimeInterval) Ticks() int {
	return i.EndTick - i.StartTick
}

// Validate checks the interval against a grid: non-empty and fully inside
// [0, TotalTicks).
func (i TimeInterval) Validate(g TimeGrid) error {
	if i.EndTick <= i.StartTick {
		return fmt.Errorf("%w: empty interval [%d,%d)", ErrIntervalOutOfRange, i.StartTick, i.EndTick)
	}
	if i.StartTick < 0 || i.EndTick > g.TotalTicks() {
		return fmt.Errorf("%w: [%d,%d) not within [0,%d)", ErrIntervalOutOfRange, i.StartTick, i.EndTick, g.TotalTicks())
	}
	return nil
}

// DurationMinutes is the interval length in wall-clock minutes on the
// given grid.
func (i TimeInterval) DurationMinutes(g TimeGrid) int {
	return i.Ticks() * g.TickMinutes
}

// Times derives the wall-clock start and end of the interval on the given
// grid, anchored to the interval's calendar day.
func (i TimeInterval) Times(g TimeGrid) (start, end time.Time) {
	day := Day(i.Date)
	start = day.Add(time.Duration(g.MinuteOfTick(i.StartTick)) * time.Minute)
	end = day.Add(time.Duration(g.MinuteOfTick(i.EndTick)) * time.Minute)
	return start, end
}

// Label renders the interval as "09:00–09:30" style text for conflict
// messages and day-view blocks.
func (i TimeInterval) Label(g TimeGrid, use24Hour bool) string {
	return g.TimeLabelForTick(i.StartTick, use24Hour) + "–" + g.TimeLabelForTick(i.EndTick, use24Hour)
}

// FirstConflict scans existing intervals in order and returns the first
// one overlapping the candidate, if any. The scan is O(n), which is fine
// for per-day appointment counts; callers with much larger n should keep
// the list sorted by start tick and binary search instead.
func FirstConflict(candidate TimeInterval, existing []TimeInterval) (TimeInterval, bool) {
	for _, e := range existing {
		if candidate.Overlaps(e) {
			return e, true
		}
	}
	return TimeInterval{}, false
}
