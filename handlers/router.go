package handlers

import (
	"fmt"
	"net/http"
	"time"

	"cityreport/auth"
	"cityreport/logging"
	"cityreport/metrics"
	"cityreport/middleware"
	"cityreport/models"
	"cityreport/repository"
	"cityreport/session"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Deps are the services the HTTP surface is built on. Events, Limiter and
// Metrics are optional.
type Deps struct {
	Gateway  *auth.Gateway
	Sessions *session.Manager
	Issuer   *auth.TokenIssuer
	Hasher   *auth.Hasher

	Reports  *repository.ReportRepository
	Alerts   *repository.AlertRepository
	Contacts *repository.ContactRepository
	Accounts *repository.AccountRepository

	Events         EventSource
	Limiter        *middleware.RateLimiter
	Metrics        *metrics.Metrics
	AllowedOrigins []string
	RequestTimeout time.Duration
	Log            logrus.FieldLogger
}

// NewRouter wires every route
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	authHandler := NewAuthHandler(d.Gateway, d.Sessions, d.Issuer, log)
	reportHandler := NewReportHandler(d.Reports, log)
	alertHandler := NewAlertHandler(d.Alerts, log)
	contactHandler := NewContactHandler(d.Contacts, log)
	adminHandler := NewAdminHandler(d.Accounts, d.Gateway, d.Hasher, d.Events, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(middleware.CORS(d.AllowedOrigins))
	r.Use(chimiddleware.Timeout(d.RequestTimeout))

	limited := func(h http.HandlerFunc) http.Handler {
		if d.Limiter == nil {
			return h
		}
		return d.Limiter.Middleware(h)
	}

	r.Get("/health", handleHealth)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Method(http.MethodPost, "/auth/login", limited(authHandler.Login))
		r.Method(http.MethodPost, "/reports", limited(reportHandler.Create))
		r.Get("/alerts/active", alertHandler.ListActive)
		r.Get("/contacts/active", contactHandler.ListActive)

		// Session-protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(d.Issuer, d.Sessions))
			r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))

			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/session", authHandler.Session)
			r.Post("/auth/change-password", authHandler.ChangePassword)
			r.Post("/auth/change-email", authHandler.ChangeEmail)

			r.Get("/reports", reportHandler.List)
			r.Get("/reports/export", reportHandler.Export)
			r.Get("/reports/stats", reportHandler.Stats)
			r.Get("/reports/{id}", reportHandler.Get)
			r.Patch("/reports/{id}", reportHandler.Update)
			r.Delete("/reports/{id}", reportHandler.Delete)

			r.Get("/alerts", alertHandler.List)
			r.Post("/alerts", alertHandler.Create)
			r.Get("/alerts/{id}", alertHandler.Get)
			r.Patch("/alerts/{id}", alertHandler.Update)
			r.Delete("/alerts/{id}", alertHandler.Delete)

			r.Get("/contacts", contactHandler.List)
			r.Post("/contacts", contactHandler.Create)
			r.Get("/contacts/{id}", contactHandler.Get)
			r.Patch("/contacts/{id}", contactHandler.Update)
			r.Delete("/contacts/{id}", contactHandler.Delete)

			// Super-admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleSuperAdmin))

				r.Get("/accounts", adminHandler.ListAccounts)
				r.Post("/accounts", adminHandler.CreateAccount)
				r.Patch("/accounts/{id}", adminHandler.UpdateAccount)
				r.Post("/reset-password", adminHandler.ResetPassword)
				r.Get("/security-events", adminHandler.SecurityEvents)
			})
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":%q}`, time.Now().Unix(), Version)
}
