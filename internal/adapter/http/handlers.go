package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/service"
)

// Handlers holds the service dependencies for HTTP handlers.
type Handlers struct {
	Tasks *service.TaskService
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	views, err := h.Tasks.Views(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// CreateTask handles POST /api/v1/tasks
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}
	t, err := h.Tasks.Add(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.Tasks.View(t))
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	v, err := h.Tasks.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// Summary handles GET /api/v1/tasks/summary
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Tasks.Summary(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	if err := h.Tasks.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartTask handles POST /api/v1/tasks/{id}/start
func (h *Handlers) StartTask(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Tasks.Start)
}

// StopTask handles POST /api/v1/tasks/{id}/stop
func (h *Handlers) StopTask(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Tasks.Stop)
}

// ResetTask handles POST /api/v1/tasks/{id}/reset
func (h *Handlers) ResetTask(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Tasks.Reset)
}

// MoveTaskUp handles POST /api/v1/tasks/{id}/move-up
func (h *Handlers) MoveTaskUp(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Tasks.MoveUp)
}

// MoveTaskDown handles POST /api/v1/tasks/{id}/move-down
func (h *Handlers) MoveTaskDown(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.Tasks.MoveDown)
}

func (h *Handlers) action(w http.ResponseWriter, r *http.Request, fn func(context.Context, int64) (*task.Task, error)) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	t, err := fn(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Tasks.View(t))
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type healthStatus struct {
		Status  string `json:"status"`
		Storage string `json:"storage"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.Tasks.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "degraded", Storage: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthStatus{Status: "ok", Storage: "ok"})
}
