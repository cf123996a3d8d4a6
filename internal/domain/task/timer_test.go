package task_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     task.CreateRequest
		wantErr bool
		errMsg  string
	}{
		{"valid", task.CreateRequest{Name: "Write report", EstimatedMinutes: 30}, false, ""},
		{"trimmed", task.CreateRequest{Name: "  Write  ", EstimatedMinutes: 1}, false, ""},
		{"empty name", task.CreateRequest{Name: "", EstimatedMinutes: 30}, true, "name is required"},
		{"blank name", task.CreateRequest{Name: "   ", EstimatedMinutes: 30}, true, "name is required"},
		{"zero minutes", task.CreateRequest{Name: "A", EstimatedMinutes: 0}, true, "estimated_minutes"},
		{"negative minutes", task.CreateRequest{Name: "A", EstimatedMinutes: -5}, true, "estimated_minutes"},
		{"long name", task.CreateRequest{Name: strings.Repeat("x", task.MaxNameLength+1), EstimatedMinutes: 5}, true, "too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error containing %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestCreateRequestValidateTrimsName(t *testing.T) {
	req := task.CreateRequest{Name: "  Write  ", EstimatedMinutes: 1}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.Name != "Write" {
		t.Fatalf("expected trimmed name, got %q", req.Name)
	}
}

func TestStartThenStopAccruesWholeSeconds(t *testing.T) {
	tk := task.Task{ID: 1, Name: "A", EstimatedMinutes: 30, Position: 1}

	u, ok := task.StartUpdate(&tk, t0)
	if !ok {
		t.Fatal("expected start to apply")
	}
	tk = u.Apply(tk)
	if !tk.Running || !tk.StartedAt.Equal(t0) {
		t.Fatalf("unexpected task after start: %+v", tk)
	}
	if tk.ElapsedSeconds != 0 {
		t.Fatalf("start must not alter elapsed, got %d", tk.ElapsedSeconds)
	}

	u, ok = task.StopUpdate(&tk, t0.Add(65*time.Second+900*time.Millisecond))
	if !ok {
		t.Fatal("expected stop to apply")
	}
	tk = u.Apply(tk)
	if tk.Running {
		t.Fatal("expected stopped task")
	}
	if tk.ElapsedSeconds != 65 {
		t.Fatalf("expected 65 elapsed seconds, got %d", tk.ElapsedSeconds)
	}
}

func TestStartIsIdempotent(t *testing.T) {
	tk := task.Task{ID: 1, Running: true, StartedAt: t0, ElapsedSeconds: 10}

	u, ok := task.StartUpdate(&tk, t0.Add(30*time.Second))
	if ok || !u.IsEmpty() {
		t.Fatalf("start on running task must be a no-op, got %+v", u)
	}

	// The original start time still drives the display.
	if got := task.DisplaySeconds(&tk, t0.Add(30*time.Second)); got != 40 {
		t.Fatalf("expected 40, got %d", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	tk := task.Task{ID: 1, ElapsedSeconds: 10}
	u, ok := task.StopUpdate(&tk, t0)
	if ok || !u.IsEmpty() {
		t.Fatalf("stop on stopped task must be a no-op, got %+v", u)
	}
}

func TestResetFromAnyState(t *testing.T) {
	states := []task.Task{
		{ID: 1, ElapsedSeconds: 0},
		{ID: 2, ElapsedSeconds: 300},
		{ID: 3, ElapsedSeconds: 300, Running: true, StartedAt: t0},
	}
	for _, tk := range states {
		got := task.ResetUpdate().Apply(tk)
		if got.ElapsedSeconds != 0 || got.Running {
			t.Fatalf("task %d: expected zeroed and stopped, got %+v", tk.ID, got)
		}
		if d := task.DisplaySeconds(&got, t0.Add(time.Hour)); d != 0 {
			t.Fatalf("task %d: reset must discard accrued time, display=%d", tk.ID, d)
		}
	}
}

func TestAccruedClampsBackwardsClock(t *testing.T) {
	tk := task.Task{Running: true, StartedAt: t0}
	if got := task.Accrued(&tk, t0.Add(-5*time.Second)); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestCommitUpdateKeepsFraction(t *testing.T) {
	tk := task.Task{ID: 1, Running: true, StartedAt: t0}

	// Ten ticks of 1.3s: a commit that reset the start to "now" would lose
	// 0.3s per tick, this one must not.
	now := t0
	for range 10 {
		now = now.Add(1300 * time.Millisecond)
		if u, ok := task.CommitUpdate(&tk, now); ok {
			tk = u.Apply(tk)
		}
	}
	u, _ := task.StopUpdate(&tk, now)
	tk = u.Apply(tk)
	if tk.ElapsedSeconds != 13 {
		t.Fatalf("expected 13 seconds after 13s wall time, got %d", tk.ElapsedSeconds)
	}
}

func TestCommitUpdateNothingAccrued(t *testing.T) {
	tk := task.Task{Running: true, StartedAt: t0}
	if _, ok := task.CommitUpdate(&tk, t0.Add(400*time.Millisecond)); ok {
		t.Fatal("expected no commit below one second")
	}
	stopped := task.Task{ElapsedSeconds: 5}
	if _, ok := task.CommitUpdate(&stopped, t0.Add(time.Hour)); ok {
		t.Fatal("expected no commit for a stopped task")
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{0, "00:00"},
		{5, "00:05"},
		{65, "01:05"},
		{3599, "59:59"},
		{3600, "60:00"},
		{6000 * 60, "6000:00"},
		{-3, "00:00"},
	}
	for _, tt := range tests {
		if got := task.FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestEpochSecondsRoundTrip(t *testing.T) {
	for i := range 1000 {
		ts := time.Unix(1767225600+int64(i)*7919, int64(i)*4999991+123).Truncate(task.StartPrecision)
		got := task.FromEpochSeconds(task.EpochSeconds(ts))
		if !got.Equal(ts) {
			t.Fatalf("round trip of %v drifted by %v", ts, got.Sub(ts))
		}
	}
}

func TestStoredStartNeverLosesASecond(t *testing.T) {
	tk := task.Task{ID: 1, Name: "A", EstimatedMinutes: 30, Position: 1}
	for i := range 500 {
		start := time.Date(2026, 3, 1, 9, 0, 0, i*4999991+123, time.UTC)
		u, ok := task.StartUpdate(&tk, start)
		if !ok {
			t.Fatal("expected start to apply")
		}
		running := u.Apply(tk)
		// What a store hands back after writing start_time as epoch seconds.
		running.StartedAt = task.FromEpochSeconds(task.EpochSeconds(running.StartedAt))

		stop, _ := task.StopUpdate(&running, start.Add(65*time.Second))
		if got := *stop.ElapsedSeconds; got != 65 {
			t.Fatalf("start %v: expected 65 elapsed seconds, got %d", start, got)
		}
	}
}

func TestStartUpdateTruncatesToStoredPrecision(t *testing.T) {
	tk := task.Task{ID: 1}
	u, _ := task.StartUpdate(&tk, t0.Add(1234567*time.Nanosecond))
	if want := t0.Add(1234 * time.Microsecond); !u.StartedAt.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, *u.StartedAt)
	}
}

func TestStartRepairsRunningTaskWithoutStartTime(t *testing.T) {
	tk := task.Task{ID: 1, Running: true, ElapsedSeconds: 12}
	u, ok := task.StartUpdate(&tk, t0)
	if !ok {
		t.Fatal("expected start to set the missing start time")
	}
	tk = u.Apply(tk)
	if !tk.StartedAt.Equal(t0) || tk.ElapsedSeconds != 12 {
		t.Fatalf("unexpected task after start: %+v", tk)
	}
	if got := task.DisplaySeconds(&tk, t0.Add(3*time.Second)); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
}
