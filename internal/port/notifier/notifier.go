// Package notifier defines the port for pushing task alerts to chat webhooks.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain/task"
)

// ErrNotConfigured is returned when a notifier has no destination.
var ErrNotConfigured = errors.New("notifier: not configured")

// KindOverEstimate is raised once when a running task passes its estimate.
const KindOverEstimate = "task.over_estimate"

// Alert describes a task event worth interrupting the user for.
type Alert struct {
	Kind             string    `json:"kind"`
	TaskID           int64     `json:"task_id"`
	TaskName         string    `json:"task_name"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	TrackedSeconds   int64     `json:"tracked_seconds"`
	At               time.Time `json:"at"`
}

// OverEstimate builds the alert for v.
func OverEstimate(v *task.View, at time.Time) Alert {
	return Alert{
		Kind:             KindOverEstimate,
		TaskID:           v.ID,
		TaskName:         v.Name,
		EstimatedMinutes: v.EstimatedMinutes,
		TrackedSeconds:   v.DisplaySeconds,
		At:               at,
	}
}

// Title is a one-line headline for the alert.
func (a *Alert) Title() string {
	return "Over estimate: " + a.TaskName
}

// Summary describes tracked time against the estimate.
func (a *Alert) Summary() string {
	return fmt.Sprintf("Tracked %s against an estimate of %d min.", task.FormatClock(a.TrackedSeconds), a.EstimatedMinutes)
}

// Notifier delivers alerts to one destination.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack").
	Name() string

	// Notify delivers an alert.
	Notify(ctx context.Context, alert Alert) error
}
