package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/port/notifier"
)

const notifyTimeout = 5 * time.Second

// SetNotifiers enables over-estimate alerts. Each running task alerts once
// per crossing; a reset re-arms it.
func (s *TaskService) SetNotifiers(ns ...notifier.Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = ns
	s.alerted = make(map[int64]struct{})
}

// dueAlerts returns alerts for running tasks that crossed their estimate
// since the last tick. Tasks back under their estimate, or gone, are
// forgotten. Must be called with s.mu held.
func (s *TaskService) dueAlerts(tasks []task.Task, now time.Time) []notifier.Alert {
	if len(s.notifiers) == 0 {
		return nil
	}

	var due []notifier.Alert
	next := make(map[int64]struct{}, len(s.alerted))
	for i := range tasks {
		v := task.NewView(&tasks[i], now)
		if !v.OverEstimate {
			continue
		}
		if _, sent := s.alerted[v.ID]; !sent {
			if !v.Running {
				continue
			}
			due = append(due, notifier.OverEstimate(&v, now))
		}
		next[v.ID] = struct{}{}
	}
	s.alerted = next
	return due
}

// notify delivers alerts to every notifier. Failures are logged only.
func (s *TaskService) notify(ctx context.Context, alerts []notifier.Alert) {
	if len(alerts) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	for i := range alerts {
		a := alerts[i]
		slog.InfoContext(ctx, "task over estimate", "task_id", a.TaskID, "tracked_seconds", a.TrackedSeconds, "estimated_minutes", a.EstimatedMinutes)
		for _, n := range s.notifiers {
			if err := n.Notify(ctx, a); err != nil {
				slog.WarnContext(ctx, "alert delivery failed", "notifier", n.Name(), "task_id", a.TaskID, "error", err)
			}
		}
	}
}
