package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
)

const taskColumns = `id, name, estimated_time, elapsed_time, is_running, start_time, sort_order`

type scannable interface {
	Scan(dest ...any) error
}

func scanTask(row scannable) (task.Task, error) {
	var (
		t     task.Task
		start sql.NullFloat64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.EstimatedMinutes, &t.ElapsedSeconds, &t.Running, &start, &t.Position); err != nil {
		return task.Task{}, err
	}
	if t.Running && start.Valid {
		t.StartedAt = task.FromEpochSeconds(start.Float64)
	}
	return t, nil
}

func notFoundWrap(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Store implements database.Store on a SQLite file.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open handle; see Open.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get task %d", id)
	}
	return &t, nil
}

func (s *Store) TaskAtPosition(ctx context.Context, pos int) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE sort_order = ?`, pos))
	if err != nil {
		return nil, notFoundWrap(err, "task at position %d", pos)
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	var created task.Task
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		t, err := scanTask(tx.QueryRowContext(ctx,
			`INSERT INTO tasks (name, estimated_time, elapsed_time, is_running, start_time, sort_order)
			 SELECT ?, ?, 0, 0, NULL, COALESCE(MAX(sort_order), 0) + 1 FROM tasks
			 RETURNING `+taskColumns,
			req.Name, req.EstimatedMinutes))
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateTask(ctx context.Context, id int64, u task.Update) error {
	if u.IsEmpty() {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("update task %d: %w", id, domain.ErrNotFound)
		}
		return nil
	}

	var (
		sets []string
		args []any
	)
	if u.ElapsedSeconds != nil {
		sets, args = append(sets, "elapsed_time = ?"), append(args, *u.ElapsedSeconds)
	}
	if u.Running != nil {
		sets, args = append(sets, "is_running = ?"), append(args, *u.Running)
	}
	if u.StartedAt != nil {
		sets, args = append(sets, "start_time = ?"), append(args, task.EpochSeconds(*u.StartedAt))
	}
	if u.Position != nil {
		sets, args = append(sets, "sort_order = ?"), append(args, *u.Position)
	}
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return expectRows(res, err, 1, "update task %d", id)
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var pos int
		if err := tx.QueryRowContext(ctx,
			`DELETE FROM tasks WHERE id = ? RETURNING sort_order`, id).Scan(&pos); err != nil {
			return notFoundWrap(err, "delete task %d", id)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET sort_order = sort_order - 1 WHERE sort_order > ?`, pos); err != nil {
			return fmt.Errorf("compact positions after %d: %w", pos, err)
		}
		return nil
	})
}

func (s *Store) SwapTaskPositions(ctx context.Context, a, b int64) error {
	if a == b {
		return fmt.Errorf("%w: cannot swap task %d with itself", domain.ErrValidation, a)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var posA, posB int
		if err := tx.QueryRowContext(ctx, `SELECT sort_order FROM tasks WHERE id = ?`, a).Scan(&posA); err != nil {
			return notFoundWrap(err, "swap tasks %d and %d", a, b)
		}
		if err := tx.QueryRowContext(ctx, `SELECT sort_order FROM tasks WHERE id = ?`, b).Scan(&posB); err != nil {
			return notFoundWrap(err, "swap tasks %d and %d", a, b)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET sort_order = CASE id WHEN ? THEN ? ELSE ? END WHERE id IN (?, ?)`,
			a, posB, posA, a, b)
		return expectRows(res, err, 2, "swap tasks %d and %d", a, b)
	})
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func expectRows(res sql.Result, err error, n int64, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	got, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}
	if got != n {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	return nil
}
