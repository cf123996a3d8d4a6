// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Queue is the port interface for publishing task lifecycle events.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Drain flushes pending publishes before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for the lifecycle events published by tasktimer.
const (
	SubjectTaskAdded   = "tasks.added"
	SubjectTaskStarted = "tasks.started"
	SubjectTaskStopped = "tasks.stopped"
	SubjectTaskReset   = "tasks.reset"
	SubjectTaskMoved   = "tasks.moved"
	SubjectTaskDeleted = "tasks.deleted"
	SubjectTimerTick   = "timer.tick"
)
