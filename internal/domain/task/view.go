package task

import "time"

// View is a task as rendered at a given instant.
type View struct {
	Task
	State            State  `json:"state"`
	DisplaySeconds   int64  `json:"display_seconds"`
	Display          string `json:"display"`
	RemainingSeconds int64  `json:"remaining_seconds"`
	OverEstimate     bool   `json:"over_estimate"`
}

// NewView computes the display fields of t at now.
func NewView(t *Task, now time.Time) View {
	shown := DisplaySeconds(t, now)
	remaining := int64(t.EstimatedMinutes)*60 - shown
	return View{
		Task:             *t,
		State:            t.State(),
		DisplaySeconds:   shown,
		Display:          FormatClock(shown),
		RemainingSeconds: max(remaining, 0),
		OverEstimate:     remaining < 0,
	}
}

// NewViews maps NewView over an ordered task list.
func NewViews(tasks []Task, now time.Time) []View {
	views := make([]View, 0, len(tasks))
	for i := range tasks {
		views = append(views, NewView(&tasks[i], now))
	}
	return views
}

// Summary aggregates the task list at a given instant.
type Summary struct {
	Tasks            int   `json:"tasks"`
	Running          int   `json:"running"`
	TrackedSeconds   int64 `json:"tracked_seconds"`
	EstimatedSeconds int64 `json:"estimated_seconds"`
	OverEstimate     int   `json:"over_estimate"`
}

// Summarize builds a Summary of tasks at now.
func Summarize(tasks []Task, now time.Time) Summary {
	var s Summary
	for i := range tasks {
		v := NewView(&tasks[i], now)
		s.Tasks++
		if v.Running {
			s.Running++
		}
		if v.OverEstimate {
			s.OverEstimate++
		}
		s.TrackedSeconds += v.DisplaySeconds
		s.EstimatedSeconds += int64(v.EstimatedMinutes) * 60
	}
	return s
}
