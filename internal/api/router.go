package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hackgods/doctor-appointment-booking/internal/accounts"
	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/auth"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
	"github.com/hackgods/doctor-appointment-booking/internal/payment"
	"github.com/hackgods/doctor-appointment-booking/internal/waitlist"
)

type AccountService interface {
	Register(ctx context.Context, reg accounts.Registration) (*accounts.Account, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error)
	Me(ctx context.Context, p auth.Principal) (*accounts.Account, error)
	UpdateMe(ctx context.Context, p auth.Principal, upd accounts.UserUpdate) (*accounts.Account, error)
}

type AppointmentService interface {
	CreateAppointment(ctx context.Context, p auth.Principal, doctorID uuid.UUID, at time.Time) (*appointment.Appointment, error)
	CancelByPatient(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error)
	CancelByDoctor(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error)
	BulkCancelByDoctor(ctx context.Context, p auth.Principal, f appointment.BulkCancelFilter) (int, error)
	Reschedule(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (*appointment.Appointment, error)
	RescheduleByDoctor(ctx context.Context, p auth.Principal, id uuid.UUID, at time.Time) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, p auth.Principal, id uuid.UUID) (*appointment.Appointment, error)
	ListAppointments(ctx context.Context, p auth.Principal, limit, offset int) ([]appointment.Appointment, error)
}

type WaitlistService interface {
	Register(ctx context.Context, p auth.Principal, doctorID uuid.UUID, desired time.Time) (*waitlist.Entry, error)
	ListMine(ctx context.Context, p auth.Principal) ([]waitlist.Entry, error)
}

type PaymentService interface {
	Create(ctx context.Context, p auth.Principal, in payment.CreateInput) (*payment.Payment, string, error)
	Execute(ctx context.Context, transactionID, payerID string) (*payment.Payment, error)
	Cancel(ctx context.Context, token string) (*payment.Payment, error)
}

type RouterConfig struct {
	Accounts     AccountService
	Appointments AppointmentService
	Waitlist     WaitlistService
	Payments     PaymentService

	Tokens   *auth.TokenManager
	Health   *HealthHandler
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Log      *zap.Logger

	Location       *time.Location
	RateLimitRPS   int
	AllowedOrigins []string
}

// Handlers binds HTTP requests to the services.
type Handlers struct {
	accounts     AccountService
	appointments AppointmentService
	waitlist     WaitlistService
	payments     PaymentService
	validate     *validator.Validate
	loc          *time.Location
	log          *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	h := &Handlers{
		accounts:     cfg.Accounts,
		appointments: cfg.Appointments,
		waitlist:     cfg.Waitlist,
		payments:     cfg.Payments,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		loc:          loc,
		log:          cfg.Log,
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cfg.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, time.Second))
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(cfg.Gatherer))
	}

	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Get("/payments/cancel", h.cancelPayment)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Tokens))

		r.Get("/users/me", h.me)
		r.Patch("/users/me", h.updateMe)

		r.Route("/appointments", func(r chi.Router) {
			r.Get("/", h.listAppointments)
			r.Post("/", h.createAppointment)
			r.Post("/doctor_bulk_cancel", h.bulkCancel)
			r.Get("/{id}", h.getAppointment)
			r.Post("/{id}/cancel", h.cancelAppointment)
			r.Post("/{id}/reschedule", h.reschedule)
			r.Post("/{id}/doctor_cancel", h.doctorCancel)
			r.Post("/{id}/doctor_reschedule", h.doctorReschedule)
		})

		r.Get("/waitlist", h.listWaitlist)
		r.Post("/waitlist", h.joinWaitlist)

		r.Post("/payments/create", h.createPayment)
		r.Post("/payments/execute", h.executePayment)
	})

	return r
}

// principal returns the caller set by auth.Middleware.
func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}
