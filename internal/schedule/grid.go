package schedule

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrGridBounds   = errors.New("grid end of day must be after start of day")
	ErrGridTickSize = errors.New("grid tick size must be positive")
	ErrGridSpan     = errors.New("grid span must be a whole number of ticks")
)

// TimeGrid describes one schedulable day: working-hour bounds expressed as
// minutes from midnight and the tick granularity the day is divided into.
// A valid grid is immutable once constructed.
type TimeGrid struct {
	StartOfDay  int // minutes from midnight, inclusive
	EndOfDay    int // minutes from midnight, exclusive
	TickMinutes int
}

// NewTimeGrid validates the bounds and returns a usable grid. Malformed
// configuration is rejected here so every later tick computation can assume
// a well-formed grid.
func NewTimeGrid(startOfDay, endOfDay, tickMinutes int) (TimeGrid, error) {
	if tickMinutes <= 0 {
		return TimeGrid{}, ErrGridTickSize
	}
	if endOfDay <= startOfDay {
		return TimeGrid{}, ErrGridBounds
	}
	if (endOfDay-startOfDay)%tickMinutes != 0 {
		return TimeGrid{}, fmt.Errorf("%w: span %dm, tick %dm", ErrGridSpan, endOfDay-startOfDay, tickMinutes)
	}
	return TimeGrid{StartOfDay: startOfDay, EndOfDay: endOfDay, TickMinutes: tickMinutes}, nil
}

// TotalMinutes is the length of the visible day.
func (g TimeGrid) TotalMinutes() int {
	return g.EndOfDay - g.StartOfDay
}

// TotalTicks is the number of schedulable ticks in the day.
func (g TimeGrid) TotalTicks() int {
	return g.TotalMinutes() / g.TickMinutes
}

// ClampTick pins a tick index into [0, TotalTicks).
func (g TimeGrid) ClampTick(tick int) int {
	if tick < 0 {
		return 0
	}
	if max := g.TotalTicks() - 1; tick > max {
		return max
	}
	return tick
}

// TickFromPosition maps a vertical pixel offset inside a container of
// totalHeight pixels onto a tick index by linear interpolation. Inputs are
// clamped rather than rejected, the mapping is purely geometric.
func (g TimeGrid) TickFromPosition(pixelOffset, totalHeight float64) int {
	if totalHeight <= 0 {
		return 0
	}
	frac := pixelOffset / totalHeight
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	tick := int(math.Floor(frac * float64(g.TotalTicks())))
	return g.ClampTick(tick)
}

// MinuteOfTick converts a tick index to minutes from midnight.
func (g TimeGrid) MinuteOfTick(tick int) int {
	return g.StartOfDay + tick*g.TickMinutes
}

// TimeLabelForTick formats the wall-clock time a tick starts at, either
// 24-hour ("14:30") or 12-hour ("2:30 PM"). Tick TotalTicks is allowed so
// the end-of-day boundary can be labelled.
func (g TimeGrid) TimeLabelForTick(tick int, use24Hour bool) string {
	if tick < 0 {
		tick = 0
	}
	if tick > g.TotalTicks() {
		tick = g.TotalTicks()
	}
	mins := g.MinuteOfTick(tick)
	hour := mins / 60
	minute := mins % 60

	if use24Hour {
		return fmt.Sprintf("%02d:%02d", hour, minute)
	}

	suffix := "AM"
	h := hour
	if h >= 12 {
		suffix = "PM"
	}
	h = h % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}

// HeightPolicy clamps rendered block heights so short appointments stay
// visible and long ones never swallow the whole column. This is rendering
// policy rather than a scheduling rule, so the bounds are configurable.
type HeightPolicy struct {
	MinPercent float64
	MaxPercent float64
}

// DefaultHeightPolicy returns the stock 4%/20% clamp.
func DefaultHeightPolicy() HeightPolicy {
	return HeightPolicy{MinPercent: 4, MaxPercent: 20}
}

// RowHeightPercent converts an appointment duration into a percentage of
// the day column height, clamped by the policy.
func (g TimeGrid) RowHeightPercent(durationMinutes int, policy HeightPolicy) float64 {
	if durationMinutes < 0 {
		durationMinutes = 0
	}
	pct := float64(durationMinutes) / float64(g.TotalMinutes()) * 100
	if pct < policy.MinPercent {
		return policy.MinPercent
	}
	if pct > policy.MaxPercent {
		return policy.MaxPercent
	}
	return pct
}
