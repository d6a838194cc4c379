package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

func iv(start, end int) TimeInterval {
	return NewTimeInterval(testDay, start, end)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b TimeInterval
		want bool
	}{
		{"identical", iv(4, 8), iv(4, 8), true},
		{"contained", iv(4, 12), iv(6, 8), true},
		{"partial left", iv(4, 8), iv(6, 10), true},
		{"partial right", iv(6, 10), iv(4, 8), true},
		{"touching boundaries do not overlap", iv(10, 12), iv(12, 14), false},
		{"crossing a boundary overlaps", iv(10, 13), iv(12, 14), true},
		{"disjoint", iv(0, 2), iv(5, 9), false},
		{"single tick inside", iv(5, 6), iv(4, 8), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a), "overlap must be symmetric")
		})
	}

	t.Run("different days never overlap", func(t *testing.T) {
		other := NewTimeInterval(testDay.AddDate(0, 0, 1), 4, 8)
		assert.False(t, iv(4, 8).Overlaps(other))
	})
}

func TestIntervalValidate(t *testing.T) {
	g := mustGrid(t, 8*60, 18*60, 15) // 40 ticks

	assert.NoError(t, iv(0, 40).Validate(g))
	assert.NoError(t, iv(4, 6).Validate(g))
	assert.ErrorIs(t, iv(4, 4).Validate(g), ErrIntervalOutOfRange)
	assert.ErrorIs(t, iv(6, 4).Validate(g), ErrIntervalOutOfRange)
	assert.ErrorIs(t, iv(-1, 4).Validate(g), ErrIntervalOutOfRange)
	assert.ErrorIs(t, iv(38, 41).Validate(g), ErrIntervalOutOfRange)
}

func TestIntervalTimes(t *testing.T) {
	g := mustGrid(t, 8*60, 18*60, 15)

	start, end := iv(4, 6).Times(g)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC), end)

	assert.Equal(t, 30, iv(4, 6).DurationMinutes(g))
	assert.Equal(t, "09:00–09:30", iv(4, 6).Label(g, true))
}

func TestFirstConflict(t *testing.T) {
	existing := []TimeInterval{iv(4, 6), iv(10, 14)}

	t.Run("no conflict in a gap", func(t *testing.T) {
		_, found := FirstConflict(iv(6, 10), existing)
		assert.False(t, found)
	})

	t.Run("reports the overlapping interval", func(t *testing.T) {
		hit, found := FirstConflict(iv(3, 8), existing)
		require.True(t, found)
		assert.Equal(t, iv(4, 6), hit)
	})

	t.Run("empty existing list never conflicts", func(t *testing.T) {
		for start := 0; start < 39; start++ {
			_, found := FirstConflict(iv(start, start+1), nil)
			assert.False(t, found)
		}
	})
}
