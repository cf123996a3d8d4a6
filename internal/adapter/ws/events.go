package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/Strob0t/tasktimer/internal/domain/task"
)

// Event type constants for WebSocket messages.
const (
	EventSnapshot     = "tasks.snapshot"
	EventTasksChanged = "tasks.changed"
	EventTimerTick    = "timer.tick"
)

// TasksEvent carries the full ordered task list as rendered at At.
// Action and TaskID identify the change for tasks.changed events.
type TasksEvent struct {
	Action string      `json:"action,omitempty"`
	TaskID int64       `json:"task_id,omitempty"`
	At     float64     `json:"at"`
	Tasks  []task.View `json:"tasks"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(eventType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: eventType, Payload: data}, nil
}
