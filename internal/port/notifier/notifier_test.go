package notifier_test

import (
	"testing"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/port/notifier"
)

func TestOverEstimate(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	v := task.NewView(&task.Task{ID: 4, Name: "Write report", EstimatedMinutes: 1, ElapsedSeconds: 65}, at)

	a := notifier.OverEstimate(&v, at)
	if a.Kind != notifier.KindOverEstimate || a.TaskID != 4 || a.TrackedSeconds != 65 {
		t.Fatalf("unexpected alert: %+v", a)
	}
	if got := a.Title(); got != "Over estimate: Write report" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := a.Summary(); got != "Tracked 01:05 against an estimate of 1 min." {
		t.Fatalf("unexpected summary %q", got)
	}
}
