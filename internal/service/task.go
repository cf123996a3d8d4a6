// Package service wires the pure timer and ordering rules to the task store
// and fans out change notifications.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	appotel "github.com/Strob0t/tasktimer/internal/adapter/otel"
	"github.com/Strob0t/tasktimer/internal/adapter/ws"
	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/port/broadcast"
	"github.com/Strob0t/tasktimer/internal/port/database"
	"github.com/Strob0t/tasktimer/internal/port/messagequeue"
	"github.com/Strob0t/tasktimer/internal/port/notifier"
	"github.com/Strob0t/tasktimer/internal/resilience"
)

// TaskService applies user actions and scheduled ticks to tasks.
//
// Actions are serialized: every read-modify-write runs under one lock so a
// tick can never interleave with a stop or reset of the same task.
type TaskService struct {
	store   database.Store
	hub     broadcast.Broadcaster
	queue   messagequeue.Queue
	breaker *resilience.Breaker
	metrics *appotel.Metrics

	notifiers []notifier.Notifier
	alerted   map[int64]struct{} // guarded by mu

	mu  sync.Mutex
	now func() time.Time
}

// NewTaskService creates a new TaskService.
func NewTaskService(store database.Store, hub broadcast.Broadcaster) *TaskService {
	return &TaskService{store: store, hub: hub, now: time.Now}
}

// SetQueue enables lifecycle event publishing. A nil breaker publishes unguarded.
func (s *TaskService) SetQueue(q messagequeue.Queue, b *resilience.Breaker) {
	s.queue = q
	s.breaker = b
}

// SetMetrics enables metric recording.
func (s *TaskService) SetMetrics(m *appotel.Metrics) {
	s.metrics = m
}

// List returns all tasks in display order.
func (s *TaskService) List(ctx context.Context) ([]task.Task, error) {
	return s.store.ListTasks(ctx)
}

// Views returns all tasks in display order as rendered now.
func (s *TaskService) Views(ctx context.Context) ([]task.View, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	return task.NewViews(tasks, s.now()), nil
}

// Get returns one task as rendered now.
func (s *TaskService) Get(ctx context.Context, id int64) (*task.View, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	v := task.NewView(t, s.now())
	return &v, nil
}

// View renders t as of now.
func (s *TaskService) View(t *task.Task) task.View {
	return task.NewView(t, s.now())
}

// Ping checks that the store is reachable.
func (s *TaskService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Summary aggregates all tasks as of now.
func (s *TaskService) Summary(ctx context.Context) (task.Summary, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return task.Summary{}, err
	}
	return task.Summarize(tasks, s.now()), nil
}

// Snapshot builds the greeting sent to a newly connected WebSocket client.
func (s *TaskService) Snapshot(ctx context.Context) (ws.Message, error) {
	views, err := s.Views(ctx)
	if err != nil {
		return ws.Message{}, err
	}
	return ws.NewMessage(ws.EventSnapshot, ws.TasksEvent{
		At:    task.EpochSeconds(s.now()),
		Tasks: views,
	})
}

// Add creates a stopped task at the end of the list.
func (s *TaskService) Add(ctx context.Context, req task.CreateRequest) (_ *task.Task, err error) {
	ctx, span := appotel.StartActionSpan(ctx, "add", 0)
	defer func() { endSpan(span, err) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	t, err := s.store.CreateTask(ctx, req)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	}

	slog.InfoContext(ctx, "task added", "task_id", t.ID, "name", t.Name, "position", t.Position)
	s.count(ctx, func(m *appotel.Metrics) metric.Int64Counter { return m.TasksAdded })
	s.publishTask(ctx, messagequeue.SubjectTaskAdded, t)
	s.changed(ctx, "add", t.ID)
	return t, nil
}

// Start sets the task running from now. Starting a running task changes
// nothing and is not an error.
func (s *TaskService) Start(ctx context.Context, id int64) (*task.Task, error) {
	return s.transition(ctx, transition{
		name:    "start",
		subject: messagequeue.SubjectTaskStarted,
		counter: func(m *appotel.Metrics) metric.Int64Counter { return m.TimersStarted },
		update:  task.StartUpdate,
	}, id)
}

// Stop folds the accrued running time into the counter. Stopping a stopped
// task changes nothing and is not an error.
func (s *TaskService) Stop(ctx context.Context, id int64) (*task.Task, error) {
	return s.transition(ctx, transition{
		name:    "stop",
		subject: messagequeue.SubjectTaskStopped,
		counter: func(m *appotel.Metrics) metric.Int64Counter { return m.TimersStopped },
		update:  task.StopUpdate,
	}, id)
}

// Reset zeroes the counter and stops the task, whatever its state.
func (s *TaskService) Reset(ctx context.Context, id int64) (*task.Task, error) {
	return s.transition(ctx, transition{
		name:    "reset",
		subject: messagequeue.SubjectTaskReset,
		counter: func(m *appotel.Metrics) metric.Int64Counter { return m.TimersReset },
		update:  func(*task.Task, time.Time) (task.Update, bool) { return task.ResetUpdate(), true },
	}, id)
}

type transition struct {
	name    string
	subject string
	counter func(*appotel.Metrics) metric.Int64Counter
	update  func(t *task.Task, now time.Time) (task.Update, bool)
}

func (s *TaskService) transition(ctx context.Context, tr transition, id int64) (_ *task.Task, err error) {
	ctx, span := appotel.StartActionSpan(ctx, tr.name, id)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s task: %w", tr.name, err)
	}
	u, ok := tr.update(t, s.now())
	if ok {
		err = s.store.UpdateTask(ctx, id, u)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%s task %d: %w", tr.name, id, err)
	}
	if !ok {
		return t, nil
	}

	updated := u.Apply(*t)
	slog.InfoContext(ctx, "task "+tr.name, "task_id", id, "elapsed_seconds", updated.ElapsedSeconds)
	s.count(ctx, tr.counter)
	if folded := updated.ElapsedSeconds - t.ElapsedSeconds; folded > 0 {
		s.add(ctx, func(m *appotel.Metrics) metric.Int64Counter { return m.TrackedSeconds }, folded)
	}
	s.publishTask(ctx, tr.subject, &updated)
	s.changed(ctx, tr.name, id)
	return &updated, nil
}

// MoveUp swaps the task with the one displayed above it. The first task
// does not move.
func (s *TaskService) MoveUp(ctx context.Context, id int64) (*task.Task, error) {
	return s.move(ctx, id, task.Up)
}

// MoveDown swaps the task with the one displayed below it. The last task
// does not move.
func (s *TaskService) MoveDown(ctx context.Context, id int64) (*task.Task, error) {
	return s.move(ctx, id, task.Down)
}

// Move dispatches to MoveUp or MoveDown.
func (s *TaskService) Move(ctx context.Context, id int64, d task.Direction) (*task.Task, error) {
	return s.move(ctx, id, d)
}

func (s *TaskService) move(ctx context.Context, id int64, d task.Direction) (_ *task.Task, err error) {
	ctx, span := appotel.StartActionSpan(ctx, "move_"+d.String(), id)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	moved, err := s.swapWithNeighbor(ctx, id, d)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("move task %d %s: %w", id, d, err)
	}
	if moved == nil {
		t, err := s.store.GetTask(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("move task %d %s: %w", id, d, err)
		}
		return t, nil
	}

	slog.InfoContext(ctx, "task moved", "task_id", id, "direction", d.String(), "position", moved.Position)
	s.count(ctx, func(m *appotel.Metrics) metric.Int64Counter { return m.TasksMoved })
	s.publishTask(ctx, messagequeue.SubjectTaskMoved, moved)
	s.changed(ctx, "move_"+d.String(), id)
	return moved, nil
}

// swapWithNeighbor returns the moved task, or nil when it sits at the
// boundary. Must be called with s.mu held.
func (s *TaskService) swapWithNeighbor(ctx context.Context, id int64, d task.Direction) (*task.Task, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	if err := task.ValidatePositions(tasks); err != nil {
		return nil, err
	}

	var t *task.Task
	for i := range tasks {
		if tasks[i].ID == id {
			t = &tasks[i]
			break
		}
	}
	if t == nil {
		return nil, fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}

	next, ok := task.Neighbor(t.Position, len(tasks), d)
	if !ok {
		return nil, nil
	}
	other, err := s.store.TaskAtPosition(ctx, next)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: no task at position %d", domain.ErrConflict, next)
		}
		return nil, err
	}
	if err := s.store.SwapTaskPositions(ctx, t.ID, other.ID); err != nil {
		return nil, err
	}

	moved := *t
	moved.Position = next
	return &moved, nil
}

// Delete removes the task; the tasks below it move up one position.
func (s *TaskService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := appotel.StartActionSpan(ctx, "delete", id)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	t, err := s.store.GetTask(ctx, id)
	if err == nil {
		err = s.store.DeleteTask(ctx, id)
	}
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	slog.InfoContext(ctx, "task deleted", "task_id", id, "name", t.Name)
	s.count(ctx, func(m *appotel.Metrics) metric.Int64Counter { return m.TasksDeleted })
	s.publishTask(ctx, messagequeue.SubjectTaskDeleted, t)
	s.changed(ctx, "delete", id)
	return nil
}

// Tick checkpoints every running task: accrued whole seconds move into the
// persisted counter, so an unclean shutdown loses at most one interval.
// It returns the number of tasks committed.
func (s *TaskService) Tick(ctx context.Context) (_ int, err error) {
	ctx, span := appotel.StartTickSpan(ctx)
	defer func() { endSpan(span, err) }()

	s.mu.Lock()
	now := s.now()
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("tick: %w", err)
	}

	var committed, running int
	var folded int64
	for i := range tasks {
		t := &tasks[i]
		if !t.Running {
			continue
		}
		running++
		u, ok := task.CommitUpdate(t, now)
		if !ok {
			continue
		}
		if err := s.store.UpdateTask(ctx, t.ID, u); err != nil {
			// Keep going: one unwritable task must not stall the others.
			slog.ErrorContext(ctx, "tick commit failed", "task_id", t.ID, "error", err)
			continue
		}
		folded += *u.ElapsedSeconds - t.ElapsedSeconds
		tasks[i] = u.Apply(*t)
		committed++
	}
	due := s.dueAlerts(tasks, now)
	s.mu.Unlock()

	s.notify(ctx, due)

	if committed > 0 {
		s.add(ctx, func(m *appotel.Metrics) metric.Int64Counter { return m.TickCommits }, int64(committed))
		s.add(ctx, func(m *appotel.Metrics) metric.Int64Counter { return m.TrackedSeconds }, folded)
	}
	if running == 0 {
		return 0, nil
	}

	at := task.EpochSeconds(now)
	s.hub.BroadcastEvent(ctx, ws.EventTimerTick, ws.TasksEvent{At: at, Tasks: task.NewViews(tasks, now)})
	s.publish(ctx, messagequeue.SubjectTimerTick, messagequeue.TimerTickPayload{
		Committed: committed,
		Running:   running,
		At:        at,
	})
	return committed, nil
}

// changed tells clients to re-read the list after a mutation.
func (s *TaskService) changed(ctx context.Context, action string, id int64) {
	views, err := s.Views(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "list tasks for broadcast", "action", action, "error", err)
		return
	}
	s.hub.BroadcastEvent(ctx, ws.EventTasksChanged, ws.TasksEvent{
		Action: action,
		TaskID: id,
		At:     task.EpochSeconds(s.now()),
		Tasks:  views,
	})
}

func (s *TaskService) publishTask(ctx context.Context, subject string, t *task.Task) {
	s.publish(ctx, subject, messagequeue.TaskEventPayload{
		TaskID:         t.ID,
		Name:           t.Name,
		ElapsedSeconds: t.ElapsedSeconds,
		Running:        t.Running,
		Position:       t.Position,
		At:             task.EpochSeconds(s.now()),
	})
}

// publish sends a lifecycle event. Failures are logged and never fail the
// action that produced the event.
func (s *TaskService) publish(ctx context.Context, subject string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
		return
	}

	send := func(ctx context.Context) error { return s.queue.Publish(ctx, subject, data) }
	if s.breaker != nil {
		err = s.breaker.ExecuteContext(ctx, send)
	} else {
		err = send(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}

func (s *TaskService) count(ctx context.Context, pick func(*appotel.Metrics) metric.Int64Counter) {
	s.add(ctx, pick, 1)
}

func (s *TaskService) add(ctx context.Context, pick func(*appotel.Metrics) metric.Int64Counter, n int64) {
	if s.metrics == nil {
		return
	}
	pick(s.metrics).Add(ctx, n)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
