package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "tasktimer"

// Metrics holds all tasktimer metric instruments.
type Metrics struct {
	TasksAdded     metric.Int64Counter
	TasksDeleted   metric.Int64Counter
	TasksMoved     metric.Int64Counter
	TimersStarted  metric.Int64Counter
	TimersStopped  metric.Int64Counter
	TimersReset    metric.Int64Counter
	TickCommits    metric.Int64Counter
	TrackedSeconds metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.TasksAdded, "tasktimer.tasks.added", "Number of tasks added", ""},
		{&m.TasksDeleted, "tasktimer.tasks.deleted", "Number of tasks deleted", ""},
		{&m.TasksMoved, "tasktimer.tasks.moved", "Number of reorder swaps applied", ""},
		{&m.TimersStarted, "tasktimer.timers.started", "Number of timers started", ""},
		{&m.TimersStopped, "tasktimer.timers.stopped", "Number of timers stopped", ""},
		{&m.TimersReset, "tasktimer.timers.reset", "Number of timers reset", ""},
		{&m.TickCommits, "tasktimer.tick.commits", "Running tasks checkpointed by the ticker", ""},
		{&m.TrackedSeconds, "tasktimer.tracked", "Whole seconds folded into task counters", "s"},
	}
	for _, c := range counters {
		opts := []metric.Int64CounterOption{metric.WithDescription(c.desc)}
		if c.unit != "" {
			opts = append(opts, metric.WithUnit(c.unit))
		}
		counter, err := meter.Int64Counter(c.name, opts...)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}
