// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/tasktimer/internal/domain/task"
)

// Store is the port interface for task persistence.
//
// Every mutating method is a single transaction. Positions of the stored
// tasks always form the dense range 1..N between calls.
type Store interface {
	// ListTasks returns all tasks ordered by ascending position.
	ListTasks(ctx context.Context) ([]task.Task, error)
	GetTask(ctx context.Context, id int64) (*task.Task, error)
	// TaskAtPosition returns the task occupying pos.
	TaskAtPosition(ctx context.Context, pos int) (*task.Task, error)

	// CreateTask inserts a stopped task with zero elapsed time at position max+1.
	CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error)
	// UpdateTask writes only the non-nil fields of u.
	UpdateTask(ctx context.Context, id int64, u task.Update) error
	// DeleteTask removes the task and closes the gap it leaves in the ordering.
	DeleteTask(ctx context.Context, id int64) error
	// SwapTaskPositions exchanges the positions of two tasks atomically.
	SwapTaskPositions(ctx context.Context, a, b int64) error

	Ping(ctx context.Context) error
	Close() error
}
