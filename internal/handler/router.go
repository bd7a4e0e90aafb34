package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds the cross-cutting settings of the HTTP surface.
type RouterConfig struct {
	JWTSecret string
	// RateLimit is a limiter rate such as "100-M". Empty disables limiting.
	RateLimit string
	Logger    *slog.Logger
}

// NewRouter builds the chi router with the global middleware stack.
func NewRouter(api *API, cfg RouterConfig) (http.Handler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))          // structured access log
	r.Use(CORS)
	if cfg.RateLimit != "" {
		limit, err := RateLimit(cfg.RateLimit)
		if err != nil {
			return nil, err
		}
		r.Use(limit)
	}

	// Health
	r.Get("/health", HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.JWTSecret))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", api.CreateEvent)
			r.Get("/", api.ListEvents)
			r.Get("/{id}", api.GetEvent)
			r.Patch("/{id}", api.EditEvent)
			r.Delete("/{id}", api.DeleteEvent)
			r.Post("/{id}/attendees", api.Join)
			r.Delete("/{id}/attendees", api.Withdraw)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", api.CreateUser)
			r.Get("/{id}", api.GetUser)
		})

		r.Route("/notifications/{userId}", func(r chi.Router) {
			r.Get("/", api.ListNotifications)
			r.Patch("/{notificationId}/read", api.MarkNotificationRead)
			r.Delete("/{notificationId}", api.RemoveNotification)
		})
	})

	return r, nil
}
