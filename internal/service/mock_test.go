package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
	"github.com/Strob0t/tasktimer/internal/port/broadcast"
	"github.com/Strob0t/tasktimer/internal/port/database"
	"github.com/Strob0t/tasktimer/internal/port/messagequeue"
	"github.com/Strob0t/tasktimer/internal/port/notifier"
)

var (
	_ database.Store        = (*mockStore)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
	_ notifier.Notifier     = (*mockNotifier)(nil)
)

// mockStore is an in-memory database.Store with error hooks.
type mockStore struct {
	mu      sync.Mutex
	tasks   map[int64]task.Task
	nextID  int64
	updates int

	listErr   error
	updateErr error
	swapErr   error
	deleteErr error
}

func newMockStore() *mockStore {
	return &mockStore{tasks: make(map[int64]task.Task)}
}

func (m *mockStore) sorted() []task.Task {
	out := make([]task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (m *mockStore) ListTasks(_ context.Context) ([]task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.sorted(), nil
}

func (m *mockStore) GetTask(_ context.Context, id int64) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("get task %d: %w", id, domain.ErrNotFound)
	}
	return &t, nil
}

func (m *mockStore) TaskAtPosition(_ context.Context, pos int) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.Position == pos {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("task at position %d: %w", pos, domain.ErrNotFound)
}

func (m *mockStore) CreateTask(_ context.Context, req task.CreateRequest) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := task.Task{ID: m.nextID, Name: req.Name, EstimatedMinutes: req.EstimatedMinutes, Position: len(m.tasks) + 1}
	m.tasks[t.ID] = t
	return &t, nil
}

func (m *mockStore) UpdateTask(_ context.Context, id int64, u task.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("update task %d: %w", id, domain.ErrNotFound)
	}
	m.tasks[id] = u.Apply(t)
	m.updates++
	return nil
}

func (m *mockStore) DeleteTask(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	t, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("delete task %d: %w", id, domain.ErrNotFound)
	}
	delete(m.tasks, id)
	for k, other := range m.tasks {
		if other.Position > t.Position {
			other.Position--
			m.tasks[k] = other
		}
	}
	return nil
}

func (m *mockStore) SwapTaskPositions(_ context.Context, a, b int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.swapErr != nil {
		return m.swapErr
	}
	ta, okA := m.tasks[a]
	tb, okB := m.tasks[b]
	if !okA || !okB {
		return fmt.Errorf("swap tasks %d and %d: %w", a, b, domain.ErrNotFound)
	}
	ta.Position, tb.Position = tb.Position, ta.Position
	m.tasks[a], m.tasks[b] = ta, tb
	return nil
}

func (m *mockStore) Ping(context.Context) error { return nil }
func (m *mockStore) Close() error               { return nil }

// check fails the test when positions are not a permutation of 1..N.
func (m *mockStore) check(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := task.ValidatePositions(m.sorted()); err != nil {
		t.Fatalf("ordering invariant broken: %v", err)
	}
}

func (m *mockStore) order() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, t := range m.sorted() {
		names = append(names, t.Name)
	}
	return names
}

// mockBroadcaster records events.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []mockEvent
}

type mockEvent struct {
	eventType string
	payload   any
}

func (b *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, mockEvent{eventType, payload})
}

func (b *mockBroadcaster) count(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu         sync.Mutex
	published  []string
	calls      int
	publishErr error
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	if q.publishErr != nil {
		return q.publishErr
	}
	if err := messagequeue.Validate(subject, data); err != nil {
		return err
	}
	q.published = append(q.published, subject)
	return nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

var errStore = errors.New("disk unavailable")

// mockNotifier records delivered alerts.
type mockNotifier struct {
	mu     sync.Mutex
	alerts []notifier.Alert
	err    error
}

func (n *mockNotifier) Name() string { return "mock" }

func (n *mockNotifier) Notify(_ context.Context, a notifier.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.err
}

func (n *mockNotifier) sent() []notifier.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifier.Alert(nil), n.alerts...)
}
