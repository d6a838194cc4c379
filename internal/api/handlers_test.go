package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clinicdesk/slot-scheduler/internal/appointment"
	"github.com/clinicdesk/slot-scheduler/internal/schedule"
	"github.com/clinicdesk/slot-scheduler/internal/settings"
)

// fakeScheduler lets each test script the service layer through function
// fields; unset methods fail loudly.
type fakeScheduler struct {
	bookFn       func(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	rescheduleFn func(ctx context.Context, id uuid.UUID, interval schedule.TimeInterval) (*appointment.Appointment, error)
	startFn      func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	completeFn   func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	cancelFn     func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	noShowFn     func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	dayFn        func(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]appointment.Appointment, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
	listFn       func(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.AppointmentDetail, error)
}

var errNotScripted = errors.New("not scripted in this test")

func (f *fakeScheduler) Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error) {
	if f.bookFn == nil {
		return nil, errNotScripted
	}
	return f.bookFn(ctx, req)
}

func (f *fakeScheduler) Reschedule(ctx context.Context, id uuid.UUID, interval schedule.TimeInterval) (*appointment.Appointment, error) {
	if f.rescheduleFn == nil {
		return nil, errNotScripted
	}
	return f.rescheduleFn(ctx, id, interval)
}

func (f *fakeScheduler) Start(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if f.startFn == nil {
		return nil, errNotScripted
	}
	return f.startFn(ctx, id)
}

func (f *fakeScheduler) Complete(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if f.completeFn == nil {
		return nil, errNotScripted
	}
	return f.completeFn(ctx, id)
}

func (f *fakeScheduler) Cancel(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if f.cancelFn == nil {
		return nil, errNotScripted
	}
	return f.cancelFn(ctx, id)
}

func (f *fakeScheduler) MarkNoShow(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	if f.noShowFn == nil {
		return nil, errNotScripted
	}
	return f.noShowFn(ctx, id)
}

func (f *fakeScheduler) DaySchedule(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]appointment.Appointment, error) {
	if f.dayFn == nil {
		return nil, errNotScripted
	}
	return f.dayFn(ctx, practitionerID, date)
}

func (f *fakeScheduler) GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error) {
	if f.getFn == nil {
		return nil, errNotScripted
	}
	return f.getFn(ctx, id)
}

func (f *fakeScheduler) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]appointment.AppointmentDetail, error) {
	if f.listFn == nil {
		return nil, errNotScripted
	}
	return f.listFn(ctx, patientID, limit, offset)
}

type fakeSettings struct {
	current   settings.ClinicSettings
	updateErr error
}

func (f *fakeSettings) Get(context.Context) (settings.ClinicSettings, error) {
	return f.current, nil
}

func (f *fakeSettings) Update(_ context.Context, s settings.ClinicSettings) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.current = s
	return nil
}

func newTestRouter(sched SchedulerService, cfg SettingsService) http.Handler {
	return NewRouter(RouterConfig{
		Scheduler:   sched,
		Settings:    cfg,
		Logger:      zap.NewNop(),
		Env:         "test",
		Version:     "test",
		CORSOrigins: []string{"*"},
	})
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func sampleAppointment() *appointment.Appointment {
	return &appointment.Appointment{
		ID:             uuid.New(),
		PatientID:      uuid.New(),
		PractitionerID: uuid.New(),
		Date:           time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTick:      4,
		EndTick:        6,
		Status:         appointment.StatusBooked,
	}
}

func TestBookAppointmentHandler(t *testing.T) {
	validBody := map[string]any{
		"patient_id":      uuid.New().String(),
		"practitioner_id": uuid.New().String(),
		"date":            "2026-03-10",
		"start_tick":      4,
		"end_tick":        6,
	}

	t.Run("201 on success", func(t *testing.T) {
		appt := sampleAppointment()
		sched := &fakeScheduler{
			bookFn: func(_ context.Context, req appointment.BookRequest) (*appointment.Appointment, error) {
				assert.Equal(t, 4, req.Interval.StartTick)
				assert.Equal(t, 6, req.Interval.EndTick)
				return appt, nil
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments", validBody)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp AppointmentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, appt.ID, resp.ID)
		assert.Equal(t, "booked", resp.Status)
		assert.False(t, resp.Editable)
	})

	t.Run("400 on malformed JSON", func(t *testing.T) {
		router := newTestRouter(&fakeScheduler{}, &fakeSettings{current: settings.Defaults()})

		req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{nope"))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request_body", decodeError(t, rec).Error)
	})

	t.Run("400 when end tick not after start tick", func(t *testing.T) {
		router := newTestRouter(&fakeScheduler{}, &fakeSettings{current: settings.Defaults()})

		body := map[string]any{
			"patient_id":      uuid.New().String(),
			"practitioner_id": uuid.New().String(),
			"date":            "2026-03-10",
			"start_tick":      6,
			"end_tick":        6,
		}
		rec := doJSON(t, router, http.MethodPost, "/appointments", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
	})

	t.Run("409 on slot conflict", func(t *testing.T) {
		day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
		sched := &fakeScheduler{
			bookFn: func(context.Context, appointment.BookRequest) (*appointment.Appointment, error) {
				return nil, &appointment.ConflictError{
					Requested:  schedule.NewTimeInterval(day, 3, 8),
					Existing:   schedule.NewTimeInterval(day, 4, 6),
					ExistingID: uuid.New(),
				}
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments", validBody)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "slot_conflict", decodeError(t, rec).Error)
	})

	t.Run("409 when the day lock is held", func(t *testing.T) {
		sched := &fakeScheduler{
			bookFn: func(context.Context, appointment.BookRequest) (*appointment.Appointment, error) {
				return nil, appointment.ErrDayBeingBooked
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments", validBody)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "day_being_booked", decodeError(t, rec).Error)
	})

	t.Run("404 on unknown patient", func(t *testing.T) {
		sched := &fakeScheduler{
			bookFn: func(context.Context, appointment.BookRequest) (*appointment.Appointment, error) {
				return nil, appointment.ErrPatientNotFound
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments", validBody)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "patient_not_found", decodeError(t, rec).Error)
	})

	t.Run("400 when interval falls outside the grid", func(t *testing.T) {
		sched := &fakeScheduler{
			bookFn: func(context.Context, appointment.BookRequest) (*appointment.Appointment, error) {
				return nil, fmt.Errorf("validate interval: %w", schedule.ErrIntervalOutOfRange)
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments", validBody)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "interval_out_of_range", decodeError(t, rec).Error)
	})
}

func TestTransitionHandlers(t *testing.T) {
	t.Run("200 on start", func(t *testing.T) {
		appt := sampleAppointment()
		appt.Status = appointment.StatusInProgress
		now := time.Now()
		appt.ActualStart = &now

		sched := &fakeScheduler{
			startFn: func(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
				assert.Equal(t, appt.ID, id)
				return appt, nil
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments/"+appt.ID.String()+"/start", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp AppointmentResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "in_progress", resp.Status)
		assert.True(t, resp.Editable)
		assert.NotNil(t, resp.ActualStart)
	})

	t.Run("409 on invalid transition", func(t *testing.T) {
		sched := &fakeScheduler{
			completeFn: func(context.Context, uuid.UUID) (*appointment.Appointment, error) {
				return nil, &appointment.InvalidTransitionError{From: appointment.StatusBooked, Attempted: "complete"}
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments/"+uuid.New().String()+"/complete", nil)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "invalid_status_transition", decodeError(t, rec).Error)
	})

	t.Run("404 on unknown appointment", func(t *testing.T) {
		sched := &fakeScheduler{
			cancelFn: func(context.Context, uuid.UUID) (*appointment.Appointment, error) {
				return nil, appointment.ErrAppointmentNotFound
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments/"+uuid.New().String()+"/cancel", nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("400 on bad id", func(t *testing.T) {
		router := newTestRouter(&fakeScheduler{}, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPost, "/appointments/not-a-uuid/start", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_appointment_id", decodeError(t, rec).Error)
	})
}

func TestRescheduleHandler(t *testing.T) {
	body := map[string]any{"date": "2026-03-10", "start_tick": 10, "end_tick": 12}

	t.Run("200 on success", func(t *testing.T) {
		appt := sampleAppointment()
		appt.StartTick, appt.EndTick = 10, 12
		sched := &fakeScheduler{
			rescheduleFn: func(_ context.Context, _ uuid.UUID, interval schedule.TimeInterval) (*appointment.Appointment, error) {
				assert.Equal(t, 10, interval.StartTick)
				return appt, nil
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPatch, "/appointments/"+appt.ID.String()+"/reschedule", body)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("409 when no longer booked", func(t *testing.T) {
		sched := &fakeScheduler{
			rescheduleFn: func(context.Context, uuid.UUID, schedule.TimeInterval) (*appointment.Appointment, error) {
				return nil, appointment.ErrNotReschedulable
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodPatch, "/appointments/"+uuid.New().String()+"/reschedule", body)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "not_reschedulable", decodeError(t, rec).Error)
	})
}

func TestDayScheduleHandler(t *testing.T) {
	practID := uuid.New()

	t.Run("200 with rendered blocks", func(t *testing.T) {
		appt := *sampleAppointment()
		appt.PractitionerID = practID
		appt.StartTick, appt.EndTick = 4, 8 // 09:00-10:00 on the default grid

		sched := &fakeScheduler{
			dayFn: func(_ context.Context, id uuid.UUID, date time.Time) ([]appointment.Appointment, error) {
				assert.Equal(t, practID, id)
				return []appointment.Appointment{appt}, nil
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodGet, "/schedule/"+practID.String()+"/2026-03-10", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp DayScheduleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 40, resp.Grid.TotalTicks)
		require.Len(t, resp.Appointments, 1)
		block := resp.Appointments[0]
		assert.Equal(t, "09:00", block.StartLabel)
		assert.Equal(t, "10:00", block.EndLabel)
		assert.InDelta(t, 10.0, block.HeightPercent, 0.001)
	})

	t.Run("400 on bad date", func(t *testing.T) {
		router := newTestRouter(&fakeScheduler{}, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodGet, "/schedule/"+practID.String()+"/10-03-2026", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_date", decodeError(t, rec).Error)
	})
}

func TestListAppointmentsHandler(t *testing.T) {
	patientID := uuid.New()

	t.Run("200 passes paging through", func(t *testing.T) {
		sched := &fakeScheduler{
			listFn: func(_ context.Context, id uuid.UUID, limit, offset int) ([]appointment.AppointmentDetail, error) {
				assert.Equal(t, patientID, id)
				assert.Equal(t, 5, limit)
				assert.Equal(t, 10, offset)
				return []appointment.AppointmentDetail{
					{Appointment: *sampleAppointment(), Patient: &appointment.Patient{Name: "Ada Osei"}},
				}, nil
			},
		}
		router := newTestRouter(sched, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodGet,
			"/appointments?patient_id="+patientID.String()+"&limit=5&offset=10", nil)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp []AppointmentDetailResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp, 1)
		assert.Equal(t, "Ada Osei", resp[0].PatientName)
	})

	t.Run("400 without patient_id", func(t *testing.T) {
		router := newTestRouter(&fakeScheduler{}, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodGet, "/appointments", nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestSettingsHandlers(t *testing.T) {
	t.Run("GET returns current settings", func(t *testing.T) {
		router := newTestRouter(&fakeScheduler{}, &fakeSettings{current: settings.Defaults()})

		rec := doJSON(t, router, http.MethodGet, "/settings", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp settings.ClinicSettings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 15, resp.TickMinutes)
	})

	t.Run("PUT applies and echoes", func(t *testing.T) {
		cfg := &fakeSettings{current: settings.Defaults()}
		router := newTestRouter(&fakeScheduler{}, cfg)

		next := settings.Defaults()
		next.TickMinutes = 30
		rec := doJSON(t, router, http.MethodPut, "/settings", next)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, 30, cfg.current.TickMinutes)
	})

	t.Run("PUT rejects a broken grid", func(t *testing.T) {
		cfg := &fakeSettings{
			current:   settings.Defaults(),
			updateErr: fmt.Errorf("validate settings: %w", schedule.ErrGridSpan),
		}
		router := newTestRouter(&fakeScheduler{}, cfg)

		rec := doJSON(t, router, http.MethodPut, "/settings", settings.Defaults())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_grid_config", decodeError(t, rec).Error)
	})
}
