package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/digitalnextlvl/agenda/internal/auth"
	"github.com/digitalnextlvl/agenda/internal/calendar"
	"github.com/digitalnextlvl/agenda/internal/config"
	"github.com/digitalnextlvl/agenda/internal/google"
	"github.com/digitalnextlvl/agenda/internal/http/csrf"
	"github.com/digitalnextlvl/agenda/internal/http/ratelimit"
	"github.com/digitalnextlvl/agenda/internal/httpapi"
	"github.com/digitalnextlvl/agenda/internal/metrics"
	"github.com/digitalnextlvl/agenda/internal/store"
)

// NewRouter wires all HTTP routes.
func NewRouter(cfg *config.Config, stor *store.Store, authService *auth.Service, provider *google.Client, calendars *calendar.Service) http.Handler {
	r := chi.NewRouter()

	// Auth endpoints: 5 requests per second, burst of 10
	authLimiter := ratelimit.New(rate.Limit(5), 10, 5*time.Minute, cfg.TrustedProxies)
	// API endpoints: 20 requests per second, burst of 50
	apiLimiter := ratelimit.New(rate.Limit(20), 50, 5*time.Minute, cfg.TrustedProxies)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := stor.HealthCheck(ctx); err != nil {
			http.Error(w, "unready", http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.PrometheusEnabled {
		r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.Handler().ServeHTTP(w, r)
		})
	}

	apiHandler := httpapi.NewHandler(cfg, stor, authService, provider, calendars)

	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware())
		r.Get("/login", authService.BeginOAuth)
		r.Get("/callback", authService.HandleOAuthCallback)
	})

	r.With(authService.RequireAuth, csrf.Middleware(cfg)).Post("/auth/logout", apiHandler.Logout)

	r.Group(func(r chi.Router) {
		r.Use(authService.RequireAuth)
		r.Use(csrf.Middleware(cfg))

		r.Get("/sessions", apiHandler.ListSessions)
		r.Post("/sessions/{id}/revoke", apiHandler.RevokeSession)
		r.Post("/sessions/revoke-all", apiHandler.RevokeAllSessions)

		// Google account linking (consent flow needs a logged-in user)
		r.Get("/auth/google/connect", apiHandler.GoogleConnect)
		r.Get("/auth/google/callback", apiHandler.GoogleCallback)

		r.Route("/api", func(r chi.Router) {
			r.Use(apiLimiter.Middleware())

			// Provider proxy: method selects the operation
			r.Get("/google-calendar", apiHandler.ProxyList)
			r.Post("/google-calendar", apiHandler.ProxyCreate)
			r.Put("/google-calendar", apiHandler.ProxyUpdate)
			r.Delete("/google-calendar", apiHandler.ProxyDelete)
			r.Get("/google-calendar/status", apiHandler.ProxyStatus)
			r.Delete("/google-calendar/connection", apiHandler.GoogleDisconnect)

			// Unified timeline
			r.Get("/events", apiHandler.ListEvents)
			r.Post("/events", apiHandler.CreateEvent)
			r.Get("/events/today", apiHandler.TodayEvents)
			r.Get("/events/upcoming", apiHandler.UpcomingEvents)
			r.Get("/events/feed.ics", apiHandler.Feed)
			r.Put("/events/{id}", apiHandler.UpdateEvent)
			r.Delete("/events/{id}", apiHandler.DeleteEvent)

			// API tokens
			r.Get("/tokens", apiHandler.ListAPITokens)
			r.Post("/tokens", apiHandler.CreateAPIToken)
			r.Delete("/tokens/{id}", apiHandler.RevokeAPIToken)
		})
	})

	return r
}
