package task

import (
	"fmt"
	"time"
)

// Accrued returns the whole seconds a running task has accumulated since
// StartedAt. A stopped task, or a clock that moved backwards, accrues 0.
func Accrued(t *Task, now time.Time) int64 {
	if !t.Running || t.StartedAt.IsZero() {
		return 0
	}
	d := now.Sub(t.StartedAt)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// DisplaySeconds is the elapsed time to show for t at now:
// the persisted counter plus whatever has accrued while running.
func DisplaySeconds(t *Task, now time.Time) int64 {
	return t.ElapsedSeconds + Accrued(t, now)
}

// FormatClock renders seconds as MM:SS. Minutes are not capped at 59.
func FormatClock(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// StartUpdate transitions Stopped -> Running. It reports false when the task
// is already running; in that case nothing must be written so that the
// original start time, and therefore the accrued time, is preserved.
// A running task without a start time has nothing to preserve and is
// restarted at now.
func StartUpdate(t *Task, now time.Time) (Update, bool) {
	if t.Running && !t.StartedAt.IsZero() {
		return Update{}, false
	}
	running := true
	started := now.Truncate(StartPrecision)
	return Update{Running: &running, StartedAt: &started}, true
}

// StopUpdate transitions Running -> Stopped, folding the accrued whole
// seconds into the counter. It reports false when the task is already stopped.
func StopUpdate(t *Task, now time.Time) (Update, bool) {
	if !t.Running {
		return Update{}, false
	}
	elapsed := t.ElapsedSeconds + Accrued(t, now)
	running := false
	return Update{ElapsedSeconds: &elapsed, Running: &running}, true
}

// ResetUpdate zeroes the counter and stops the timer. It is legal in every
// state and discards any time accrued but not yet committed.
func ResetUpdate() Update {
	var zero int64
	running := false
	return Update{ElapsedSeconds: &zero, Running: &running}
}

// CommitUpdate is the periodic checkpoint of a running task: the accrued
// whole seconds move into the counter and StartedAt advances by exactly that
// amount, so the sub-second remainder keeps counting. It reports false when
// there is nothing to commit.
func CommitUpdate(t *Task, now time.Time) (Update, bool) {
	accrued := Accrued(t, now)
	if accrued == 0 {
		return Update{}, false
	}
	elapsed := t.ElapsedSeconds + accrued
	started := t.StartedAt.Add(time.Duration(accrued) * time.Second).Truncate(StartPrecision)
	return Update{ElapsedSeconds: &elapsed, StartedAt: &started}, true
}
