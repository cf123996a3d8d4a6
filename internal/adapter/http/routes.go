package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/tasktimer/internal/logger"
)

// MountRoutes registers the task API routes on the given chi router.
// A non-nil idempotency middleware is applied to the mutating routes.
func MountRoutes(r chi.Router, h *Handlers, idempotency func(http.Handler) http.Handler) {
	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"1"}`))
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(tagOrigin)
			if idempotency != nil {
				r.Use(idempotency)
			}

			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Get("/summary", h.Summary)

			r.Get("/{id}", h.GetTask)
			r.Delete("/{id}", h.DeleteTask)
			r.Post("/{id}/start", h.StartTask)
			r.Post("/{id}/stop", h.StopTask)
			r.Post("/{id}/reset", h.ResetTask)
			r.Post("/{id}/move-up", h.MoveTaskUp)
			r.Post("/{id}/move-down", h.MoveTaskDown)
		})
	})
}

func tagOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logger.WithOrigin(r.Context(), logger.OriginHTTP)))
	})
}
