// Package storetest holds the behavioural test suite shared by every
// database.Store implementation.
package storetest

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/port/database"
)

// Opener returns an empty store. It is called once per subtest.
type Opener func(t *testing.T) database.Store

// Run runs the store suite against stores returned by open.
func Run(t *testing.T, open Opener) {
	t.Helper()

	t.Run("CreateAppendsAtEnd", func(t *testing.T) { testCreateAppends(t, open(t)) })
	t.Run("CreateDefaults", func(t *testing.T) { testCreateDefaults(t, open(t)) })
	t.Run("GetNotFound", func(t *testing.T) { testGetNotFound(t, open(t)) })
	t.Run("TaskAtPosition", func(t *testing.T) { testTaskAtPosition(t, open(t)) })
	t.Run("UpdatePartial", func(t *testing.T) { testUpdatePartial(t, open(t)) })
	t.Run("UpdateNotFound", func(t *testing.T) { testUpdateNotFound(t, open(t)) })
	t.Run("StartTimeRoundTrip", func(t *testing.T) { testStartTimeRoundTrip(t, open(t)) })
	t.Run("StopAfterWholeSeconds", func(t *testing.T) { testStopAfterWholeSeconds(t, open(t)) })
	t.Run("CommitOnSecondBoundaries", func(t *testing.T) { testCommitOnSecondBoundaries(t, open(t)) })
	t.Run("DeleteCompacts", func(t *testing.T) { testDeleteCompacts(t, open(t)) })
	t.Run("DeleteNotFound", func(t *testing.T) { testDeleteNotFound(t, open(t)) })
	t.Run("Swap", func(t *testing.T) { testSwap(t, open(t)) })
	t.Run("SwapNotFound", func(t *testing.T) { testSwapNotFound(t, open(t)) })
	t.Run("IDsNotReused", func(t *testing.T) { testIDsNotReused(t, open(t)) })
	t.Run("RandomSequenceKeepsPositions", func(t *testing.T) { testRandomSequence(t, open(t)) })
}

func create(t *testing.T, s database.Store, name string, minutes int) *task.Task {
	t.Helper()
	tk, err := s.CreateTask(context.Background(), task.CreateRequest{Name: name, EstimatedMinutes: minutes})
	if err != nil {
		t.Fatalf("create %q: %v", name, err)
	}
	return tk
}

// names lists task names in display order and checks the positions are dense.
func names(t *testing.T, s database.Store) []string {
	t.Helper()
	tasks, err := s.ListTasks(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := task.ValidatePositions(tasks); err != nil {
		t.Fatalf("positions: %v", err)
	}
	out := make([]string, len(tasks))
	for i := range tasks {
		if tasks[i].Position != i+1 {
			t.Fatalf("task %q at index %d has position %d", tasks[i].Name, i, tasks[i].Position)
		}
		out[i] = tasks[i].Name
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func testCreateAppends(t *testing.T, s database.Store) {
	for i, n := range []string{"A", "B", "C"} {
		tk := create(t, s, n, 10)
		if tk.Position != i+1 {
			t.Fatalf("%s: expected position %d, got %d", n, i+1, tk.Position)
		}
	}
	if got := names(t, s); !equal(got, []string{"A", "B", "C"}) {
		t.Fatalf("unexpected order %v", got)
	}
}

func testCreateDefaults(t *testing.T, s database.Store) {
	tk := create(t, s, "Write report", 30)
	if tk.ID == 0 {
		t.Fatal("expected generated id")
	}
	if tk.ElapsedSeconds != 0 || tk.Running || !tk.StartedAt.IsZero() {
		t.Fatalf("new task must be stopped with zero elapsed, got %+v", tk)
	}
	got, err := s.GetTask(context.Background(), tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Write report" || got.EstimatedMinutes != 30 {
		t.Fatalf("unexpected stored task %+v", got)
	}
}

func testGetNotFound(t *testing.T, s database.Store) {
	if _, err := s.GetTask(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testTaskAtPosition(t *testing.T, s database.Store) {
	create(t, s, "A", 1)
	b := create(t, s, "B", 1)
	got, err := s.TaskAtPosition(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != b.ID {
		t.Fatalf("expected B at position 2, got %+v", got)
	}
	if _, err := s.TaskAtPosition(context.Background(), 3); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func testUpdatePartial(t *testing.T, s database.Store) {
	ctx := context.Background()
	tk := create(t, s, "A", 5)

	elapsed := int64(42)
	if err := s.UpdateTask(ctx, tk.ID, task.Update{ElapsedSeconds: &elapsed}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ElapsedSeconds != 42 || got.Running || got.Name != "A" || got.Position != 1 {
		t.Fatalf("update touched unrelated fields: %+v", got)
	}

	if err := s.UpdateTask(ctx, tk.ID, task.Update{}); err != nil {
		t.Fatalf("empty update on existing task: %v", err)
	}
}

func testUpdateNotFound(t *testing.T, s database.Store) {
	ctx := context.Background()
	elapsed := int64(1)
	if err := s.UpdateTask(ctx, 999, task.Update{ElapsedSeconds: &elapsed}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.UpdateTask(ctx, 999, task.Update{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty update, got %v", err)
	}
}

func testStartTimeRoundTrip(t *testing.T, s database.Store) {
	ctx := context.Background()
	tk := create(t, s, "A", 5)

	started := time.Date(2026, 3, 1, 9, 0, 0, 500_123_000, time.UTC)
	running := true
	if err := s.UpdateTask(ctx, tk.ID, task.Update{Running: &running, StartedAt: &started}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Running {
		t.Fatal("expected running task")
	}
	if !got.StartedAt.Equal(started) {
		t.Fatalf("start time drifted by %v", got.StartedAt.Sub(started))
	}

	running = false
	if err := s.UpdateTask(ctx, tk.ID, task.Update{Running: &running}); err != nil {
		t.Fatal(err)
	}
	got, err = s.GetTask(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Running || !got.StartedAt.IsZero() {
		t.Fatalf("stopped task must not expose a start time, got %+v", got)
	}
}

func testDeleteCompacts(t *testing.T, s database.Store) {
	ctx := context.Background()
	create(t, s, "A", 1)
	b := create(t, s, "B", 1)
	create(t, s, "C", 1)
	create(t, s, "D", 1)

	if err := s.DeleteTask(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if got := names(t, s); !equal(got, []string{"A", "C", "D"}) {
		t.Fatalf("unexpected order after delete %v", got)
	}

	e := create(t, s, "E", 1)
	if e.Position != 4 {
		t.Fatalf("expected E appended at 4, got %d", e.Position)
	}
}

func testDeleteNotFound(t *testing.T, s database.Store) {
	create(t, s, "A", 1)
	if err := s.DeleteTask(context.Background(), 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := names(t, s); !equal(got, []string{"A"}) {
		t.Fatalf("failed delete must not change tasks, got %v", got)
	}
}

func testSwap(t *testing.T, s database.Store) {
	ctx := context.Background()
	a := create(t, s, "A", 1)
	create(t, s, "B", 1)
	c := create(t, s, "C", 1)

	if err := s.SwapTaskPositions(ctx, a.ID, c.ID); err != nil {
		t.Fatal(err)
	}
	if got := names(t, s); !equal(got, []string{"C", "B", "A"}) {
		t.Fatalf("unexpected order after swap %v", got)
	}
}

func testSwapNotFound(t *testing.T, s database.Store) {
	a := create(t, s, "A", 1)
	create(t, s, "B", 1)
	if err := s.SwapTaskPositions(context.Background(), a.ID, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := names(t, s); !equal(got, []string{"A", "B"}) {
		t.Fatalf("failed swap must not change order, got %v", got)
	}
}

func testIDsNotReused(t *testing.T, s database.Store) {
	ctx := context.Background()
	create(t, s, "A", 1)
	b := create(t, s, "B", 1)
	if err := s.DeleteTask(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	c := create(t, s, "C", 1)
	if c.ID == b.ID {
		t.Fatalf("id %d reused after delete", b.ID)
	}
}

// apply writes u to the store and returns the task as read back.
func apply(t *testing.T, s database.Store, id int64, u task.Update) *task.Task {
	t.Helper()
	ctx := context.Background()
	if err := s.UpdateTask(ctx, id, u); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetTask(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func testStopAfterWholeSeconds(t *testing.T, s database.Store) {
	tk := create(t, s, "Write report", 30)
	for i := range 50 {
		start := time.Date(2026, 3, 1, 9, 0, 0, i*19999991+123, time.UTC)
		u, ok := task.StartUpdate(tk, start)
		if !ok {
			t.Fatalf("start %v: expected start to apply", start)
		}
		running := apply(t, s, tk.ID, u)

		u, ok = task.StopUpdate(running, start.Add(65*time.Second))
		if !ok {
			t.Fatalf("start %v: expected stop to apply", start)
		}
		stopped := apply(t, s, tk.ID, u)
		if stopped.Running || stopped.ElapsedSeconds != 65 {
			t.Fatalf("start %v: expected 65s stopped, got %+v", start, stopped)
		}
		tk = apply(t, s, tk.ID, task.ResetUpdate())
	}
}

func testCommitOnSecondBoundaries(t *testing.T, s database.Store) {
	tk := create(t, s, "A", 30)
	start := time.Date(2026, 3, 1, 9, 0, 0, 987_654_321, time.UTC)
	u, _ := task.StartUpdate(tk, start)
	tk = apply(t, s, tk.ID, u)

	for k := int64(1); k <= 30; k++ {
		u, ok := task.CommitUpdate(tk, start.Add(time.Duration(k)*time.Second))
		if !ok {
			t.Fatalf("tick %d: expected a commit", k)
		}
		tk = apply(t, s, tk.ID, u)
		if tk.ElapsedSeconds != k {
			t.Fatalf("tick %d: expected %d committed seconds, got %d", k, k, tk.ElapsedSeconds)
		}
	}
}

func testRandomSequence(t *testing.T, s database.Store) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(1, 2))
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for step := range 200 {
		tasks, err := s.ListTasks(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(tasks) == 0 || rng.IntN(4) == 0 {
			create(t, s, "T", 1+rng.IntN(60))
		} else {
			pick := &tasks[rng.IntN(len(tasks))]
			switch rng.IntN(4) {
			case 0:
				if err := s.DeleteTask(ctx, pick.ID); err != nil {
					t.Fatalf("step %d delete: %v", step, err)
				}
			case 1:
				other := tasks[rng.IntN(len(tasks))]
				if other.ID != pick.ID {
					if err := s.SwapTaskPositions(ctx, pick.ID, other.ID); err != nil {
						t.Fatalf("step %d swap: %v", step, err)
					}
				}
			case 2:
				if u, ok := task.StartUpdate(pick, now); ok {
					apply(t, s, pick.ID, u)
				}
			default:
				if u, ok := task.StopUpdate(pick, now); ok {
					apply(t, s, pick.ID, u)
				}
			}
		}
		now = now.Add(time.Duration(rng.IntN(3000)) * time.Millisecond)

		tasks, err = s.ListTasks(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if err := task.ValidatePositions(tasks); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
	}
}
