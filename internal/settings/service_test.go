package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicdesk/slot-scheduler/internal/schedule"
)

type fakeStore struct {
	saved *ClinicSettings
	err   error
	puts  int
}

func (f *fakeStore) Get(context.Context) (*ClinicSettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.saved == nil {
		return nil, ErrSettingsNotFound
	}
	return f.saved, nil
}

func (f *fakeStore) Put(_ context.Context, s ClinicSettings) error {
	if f.err != nil {
		return f.err
	}
	f.puts++
	f.saved = &s
	return nil
}

// Tests run without a cache; the cache path only changes where Get reads
// from, not what it returns.
func newTestService(store Store) *Service {
	return NewService(store, nil, time.Minute, zap.NewNop())
}

func TestGetFallsBackToDefaults(t *testing.T) {
	svc := newTestService(&fakeStore{})

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestGetReturnsStoredSettings(t *testing.T) {
	stored := Defaults()
	stored.ClinicName = "Northside Physio"
	stored.TickMinutes = 30
	svc := newTestService(&fakeStore{saved: &stored})

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Northside Physio", got.ClinicName)
	assert.Equal(t, 30, got.TickMinutes)
}

func TestGetPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("pg down")
	svc := newTestService(&fakeStore{err: boom})

	_, err := svc.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestUpdateValidatesGrid(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	next := Defaults()
	next.DayEndMinutes = next.DayStartMinutes // empty day

	err := svc.Update(context.Background(), next)
	assert.ErrorIs(t, err, schedule.ErrGridBounds)
	assert.Zero(t, store.puts, "invalid settings must not reach the store")
}

func TestUpdateValidatesHeightClamp(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	next := Defaults()
	next.MinHeightPercent = 30
	next.MaxHeightPercent = 10

	err := svc.Update(context.Background(), next)
	assert.ErrorIs(t, err, ErrHeightClamp)
	assert.Zero(t, store.puts)
}

func TestUpdatePersists(t *testing.T) {
	store := &fakeStore{}
	svc := newTestService(store)

	next := Defaults()
	next.Use24HourClock = false

	require.NoError(t, svc.Update(context.Background(), next))
	require.NotNil(t, store.saved)
	assert.False(t, store.saved.Use24HourClock)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, next, got)
}

func TestGridReflectsSettings(t *testing.T) {
	stored := Defaults()
	stored.TickMinutes = 30
	svc := newTestService(&fakeStore{saved: &stored})

	grid, err := svc.Grid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, grid.TotalTicks())
}
