package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/agenda-api/internal/agenda"
	"github.com/redmonkez12/agenda-api/internal/auth"
	"github.com/redmonkez12/agenda-api/internal/cleanup"
	"github.com/redmonkez12/agenda-api/internal/config"
	"github.com/redmonkez12/agenda-api/internal/health"
	"github.com/redmonkez12/agenda-api/internal/logging"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth    *auth.Handler
	Agenda  *agenda.Handler
	Cleanup *cleanup.Handler
	Health  *health.Checker
	Gate    *auth.Gate
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.APIKeyHeader},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/", health.Root)
	r.Get("/status", h.Health.Handler)

	// Swagger UI - only in development
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	// Client routes that only need an API key
	r.Group(func(r chi.Router) {
		r.Use(h.Gate.RequireAPIKey)
		r.Post("/register", h.Auth.Register)
		r.Post("/login", h.Auth.Login)
		r.Post("/accessToken", h.Auth.AccessToken)
		r.Post("/killToken", h.Auth.KillToken)
	})

	// Operator routes
	r.Group(func(r chi.Router) {
		r.Use(h.Gate.RequireAdmin)
		r.Post("/apiKey", h.Auth.CreateAPIKey)
		r.Post("/cleanup", h.Cleanup.Cleanup)
	})

	// Routes acting on behalf of a signed-in user
	r.Group(func(r chi.Router) {
		r.Use(h.Gate.RequireJWT)

		r.Get("/authenticate", h.Auth.Authenticate)
		r.Get("/logout", h.Auth.Logout)

		r.Post("/event", h.Agenda.CreateEvent)
		r.Get("/event", h.Agenda.GetEvent)
		r.Put("/event", h.Agenda.UpdateEvent)
		r.Delete("/event", h.Agenda.DeleteEvent)

		r.Get("/attendee", h.Agenda.CheckAttendee)
		r.Delete("/attendee", h.Agenda.LeaveEvent)

		r.Get("/agenda", h.Agenda.GetAgenda)
		r.Get("/fullAgenda", h.Agenda.GetFullAgenda)
		r.Post("/syncAgenda", h.Agenda.SyncAgenda)

		r.Post("/task", h.Agenda.CreateTask)
		r.Get("/task", h.Agenda.GetTask)
		r.Put("/task", h.Agenda.UpdateTask)
		r.Delete("/task", h.Agenda.DeleteTask)

		r.Post("/reminder", h.Agenda.CreateReminder)
		r.Get("/reminder", h.Agenda.GetReminder)
		r.Put("/reminder", h.Agenda.UpdateReminder)
		r.Delete("/reminder", h.Agenda.DeleteReminder)
	})

	return r
}
