// Package task defines the Task domain entity and the pure timer and
// ordering rules that operate on it.
package task

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/tasktimer/internal/domain"
)

// MaxNameLength is the maximum task name length in runes.
const MaxNameLength = 200

// State is the timer state of a task.
type State string

const (
	StateStopped State = "stopped"
	StateRunning State = "running"
)

// Task is a named item with an estimate and an elapsed-time counter.
type Task struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	ElapsedSeconds   int64     `json:"elapsed_seconds"`
	Running          bool      `json:"is_running"`
	StartedAt        time.Time `json:"start_time,omitzero"` // meaningful only while Running
	Position         int       `json:"sort_position"`
}

// State reports whether the task is running or stopped.
func (t *Task) State() State {
	if t.Running {
		return StateRunning
	}
	return StateStopped
}

// CreateRequest holds the fields needed to create a new task.
type CreateRequest struct {
	Name             string `json:"name"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// Validate normalizes the name and checks the request.
func (r *CreateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if utf8.RuneCountInString(r.Name) > MaxNameLength {
		return fmt.Errorf("%w: name too long (max %d chars)", domain.ErrValidation, MaxNameLength)
	}
	if r.EstimatedMinutes < 1 {
		return fmt.Errorf("%w: estimated_minutes must be >= 1", domain.ErrValidation)
	}
	return nil
}

// Update is a partial update. Only non-nil fields are written.
type Update struct {
	ElapsedSeconds *int64
	Running        *bool
	StartedAt      *time.Time
	Position       *int
}

// IsEmpty reports whether the update writes nothing.
func (u Update) IsEmpty() bool {
	return u.ElapsedSeconds == nil && u.Running == nil && u.StartedAt == nil && u.Position == nil
}

// Apply returns a copy of t with the update applied.
func (u Update) Apply(t Task) Task {
	if u.ElapsedSeconds != nil {
		t.ElapsedSeconds = *u.ElapsedSeconds
	}
	if u.Running != nil {
		t.Running = *u.Running
	}
	if u.StartedAt != nil {
		t.StartedAt = *u.StartedAt
	}
	if u.Position != nil {
		t.Position = *u.Position
	}
	return t
}

// EpochSeconds converts a time to fractional seconds since the Unix epoch,
// the representation used by the start_time column.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

// StartPrecision is the resolution at which start times are stored. A
// float64 near the current epoch holds well under a microsecond, so a time
// truncated to StartPrecision survives EpochSeconds and FromEpochSeconds
// exactly.
const StartPrecision = time.Microsecond

// FromEpochSeconds is the inverse of EpochSeconds. The result is rounded to
// StartPrecision so that float64 error never moves a start time later.
func FromEpochSeconds(s float64) time.Time {
	us := int64(math.Round(s * float64(time.Second/StartPrecision)))
	return time.UnixMicro(us)
}
