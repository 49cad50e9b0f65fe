package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"care-scheduler/internal/http/handler"
)

// NewRouter builds the HTTP surface. loc is the owners' time zone; "today" on
// the timeline is the calendar date in loc.
func NewRouter(tasks handler.TaskAPI, notifications handler.NotificationLister, loc *time.Location, allowedOrigins []string, log *zap.Logger) http.Handler {
	if loc == nil {
		loc = time.Local
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	th := &handler.TaskHandler{Tasks: tasks, Log: log, Now: func() time.Time { return time.Now().In(loc) }}
	nh := &handler.NotificationHandler{Notifications: notifications, Log: log}

	r.Route("/api/users/{userID}", func(r chi.Router) {
		r.Get("/tasks", th.Timeline)
		r.Post("/tasks/{instanceID}/toggle", th.Toggle)
		r.Post("/medications", th.CreateMedication)
		r.Delete("/medications/{medicationID}", th.DeactivateMedication)
		r.Post("/events", th.CreateEvent)
		r.Delete("/events/{eventID}", th.DeleteEvent)
		r.Get("/notifications", nh.List)
	})

	return r
}
