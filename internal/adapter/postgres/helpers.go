package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

const taskColumns = `id, name, estimated_time, elapsed_time, is_running, start_time, sort_order`

// scanTask reads one row selected with taskColumns. The start time of a
// stopped task is not meaningful and is left zero.
func scanTask(row scannable) (task.Task, error) {
	var (
		t     task.Task
		start *float64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.EstimatedMinutes, &t.ElapsedSeconds, &t.Running, &start, &t.Position); err != nil {
		return task.Task{}, err
	}
	if t.Running && start != nil {
		t.StartedAt = task.FromEpochSeconds(*start)
	}
	return t, nil
}

// notFoundWrap checks whether err is pgx.ErrNoRows and, if so, wraps
// domain.ErrNotFound with the given message. Otherwise it wraps the
// original error.
func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// execExpect verifies that an Exec affected exactly n rows. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpect(n int64, tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", err)
	}
	if tag.RowsAffected() != n {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}
