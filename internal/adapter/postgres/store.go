package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/tasktimer/internal/domain"
	"github.com/Strob0t/tasktimer/internal/domain/task"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// lockOrder serializes transactions that change the position sequence.
// Row locks are not enough: an insert reads MAX(sort_order) of rows it
// cannot lock.
func lockOrder(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `LOCK TABLE tasks IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock tasks: %w", err)
	}
	return nil
}

func (s *Store) ListTasks(ctx context.Context) ([]task.Task, error) {
	rows, err := s.pool.Query(ctx,
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
	t, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get task %d", id)
	}
	return &t, nil
}

func (s *Store) TaskAtPosition(ctx context.Context, pos int) (*task.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE sort_order = $1`, pos))
	if err != nil {
		return nil, notFoundWrap(err, "task at position %d", pos)
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, req task.CreateRequest) (*task.Task, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := lockOrder(ctx, tx); err != nil {
		return nil, err
	}

	t, err := scanTask(tx.QueryRow(ctx,
		`INSERT INTO tasks (name, estimated_time, elapsed_time, is_running, start_time, sort_order)
		 SELECT $1, $2, 0, FALSE, NULL, COALESCE(MAX(sort_order), 0) + 1 FROM tasks
		 RETURNING `+taskColumns,
		req.Name, req.EstimatedMinutes))
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &t, nil
}

func (s *Store) UpdateTask(ctx context.Context, id int64, u task.Update) error {
	if u.IsEmpty() {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("update task %d: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("update task %d: %w", id, domain.ErrNotFound)
		}
		return nil
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if u.ElapsedSeconds != nil {
		add("elapsed_time", *u.ElapsedSeconds)
	}
	if u.Running != nil {
		add("is_running", *u.Running)
	}
	if u.StartedAt != nil {
		add("start_time", task.EpochSeconds(*u.StartedAt))
	}
	if u.Position != nil {
		add("sort_order", *u.Position)
	}
	args = append(args, id)

	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args)),
		args...)
	return execExpect(1, tag, err, "update task %d", id)
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := lockOrder(ctx, tx); err != nil {
		return err
	}

	var pos int
	if err := tx.QueryRow(ctx, `DELETE FROM tasks WHERE id = $1 RETURNING sort_order`, id).Scan(&pos); err != nil {
		return notFoundWrap(err, "delete task %d", id)
	}
	if _, err := tx.Exec(ctx, `UPDATE tasks SET sort_order = sort_order - 1 WHERE sort_order > $1`, pos); err != nil {
		return fmt.Errorf("compact positions after %d: %w", pos, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) SwapTaskPositions(ctx context.Context, a, b int64) error {
	if a == b {
		return fmt.Errorf("%w: cannot swap task %d with itself", domain.ErrValidation, a)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := lockOrder(ctx, tx); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE tasks SET sort_order = CASE id
		     WHEN $1 THEN (SELECT sort_order FROM tasks WHERE id = $2)
		     WHEN $2 THEN (SELECT sort_order FROM tasks WHERE id = $1)
		 END
		 WHERE id IN ($1, $2)
		   AND (SELECT COUNT(*) FROM tasks WHERE id IN ($1, $2)) = 2`,
		a, b)
	if err := execExpect(2, tag, err, "swap tasks %d and %d", a, b); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
