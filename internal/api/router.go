package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Scheduler      SchedulerService
	Settings       SettingsService
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	Logger         *zap.Logger
	Env            string
	Version        string
	CORSOrigins    []string
	BookRatePerMin int
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Day view
	r.Get("/schedule/{practitionerID}/{date}", dayScheduleHandler(cfg.Scheduler, cfg.Settings))

	// Appointments
	r.Group(func(r chi.Router) {
		if cfg.BookRatePerMin > 0 {
			r.Use(httprate.LimitByIP(cfg.BookRatePerMin, time.Minute))
		}
		r.Post("/appointments", bookAppointmentHandler(cfg.Scheduler))
		r.Patch("/appointments/{id}/reschedule", rescheduleAppointmentHandler(cfg.Scheduler))
	})
	r.Get("/appointments", listAppointmentsHandler(cfg.Scheduler))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Scheduler))
	r.Post("/appointments/{id}/start", transitionHandler(cfg.Scheduler.Start))
	r.Post("/appointments/{id}/complete", transitionHandler(cfg.Scheduler.Complete))
	r.Post("/appointments/{id}/cancel", transitionHandler(cfg.Scheduler.Cancel))
	r.Post("/appointments/{id}/no-show", transitionHandler(cfg.Scheduler.MarkNoShow))

	// Clinic settings
	r.Get("/settings", getSettingsHandler(cfg.Settings))
	r.Put("/settings", updateSettingsHandler(cfg.Settings))

	return r
}
