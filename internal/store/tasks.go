package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sadopc/focusdo/internal/live"
	"go.uber.org/zap"
)

const taskColumns = `id, title, description, completed, completed_at, flagged, priority, due_date, created_at, list_id, repeat_mode`

// ListTasks returns every task, incomplete first, then by priority and
// newest creation time.
func (s *Store) ListTasks(ctx context.Context) ([]Task, error) {
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+taskColumns+` FROM tasks ORDER BY completed ASC, priority DESC, created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

// WatchTasks streams ListTasks on every task change until ctx is done.
func (s *Store) WatchTasks(ctx context.Context) <-chan live.Snapshot[[]Task] {
	return live.Watch(ctx, s.hub, s.ListTasks, TopicTasks)
}

func (s *Store) GetTask(ctx context.Context, id int64) (Task, error) {
	return getTask(ctx, s.db, id)
}

func getTask(ctx context.Context, q sqlx.QueryerContext, id int64) (Task, error) {
	var r taskRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, fmt.Errorf("get task %d: %w", id, err)
	}
	return r.task(), nil
}

// AddTask inserts t as a new task and returns it with its generated id.
func (s *Store) AddTask(ctx context.Context, t Task) (Task, error) {
	t.ID = 0
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	id, err := s.UpsertTask(ctx, t)
	if err != nil {
		return Task{}, err
	}
	t.ID = id
	return t, nil
}

// UpsertTask inserts t, or fully replaces the stored row when t.ID is set.
func (s *Store) UpsertTask(ctx context.Context, t Task) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if t.Completed && t.CompletedAt == nil {
		now := s.now()
		t.CompletedAt = &now
	}
	id, err := upsertTask(ctx, s.db, t)
	if err != nil {
		return 0, err
	}
	s.log.Debug("task saved", zap.Int64("id", id))
	s.hub.Publish(TopicTasks)
	return id, nil
}

func upsertTask(ctx context.Context, e sqlx.ExtContext, t Task) (int64, error) {
	r := newTaskRow(t)
	if r.ID == 0 {
		res, err := sqlx.NamedExecContext(ctx, e, `
			INSERT INTO tasks (title, description, completed, completed_at, flagged, priority, due_date, created_at, list_id, repeat_mode)
			VALUES (:title, :description, :completed, :completed_at, :flagged, :priority, :due_date, :created_at, :list_id, :repeat_mode)`, r)
		if err != nil {
			return 0, fmt.Errorf("insert task: %w", err)
		}
		return res.LastInsertId()
	}

	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (:id, :title, :description, :completed, :completed_at, :flagged, :priority, :due_date, :created_at, :list_id, :repeat_mode)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			completed = excluded.completed,
			completed_at = excluded.completed_at,
			flagged = excluded.flagged,
			priority = excluded.priority,
			due_date = excluded.due_date,
			created_at = excluded.created_at,
			list_id = excluded.list_id,
			repeat_mode = excluded.repeat_mode`, r)
	if err != nil {
		return 0, fmt.Errorf("upsert task %d: %w", r.ID, err)
	}
	return r.ID, nil
}

// DeleteTask removes the task. Deleting an unknown id is not an error.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	s.hub.Publish(TopicTasks)
	return nil
}

// ToggleTask flips completion. completed_at is set to now on completion and
// cleared when the task is reopened.
func (s *Store) ToggleTask(ctx context.Context, id int64) (Task, error) {
	var out Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		t.Completed = !t.Completed
		if t.Completed {
			now := s.now()
			t.CompletedAt = &now
		} else {
			t.CompletedAt = nil
		}
		if _, err := upsertTask(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	}, TopicTasks)
	if err != nil {
		return Task{}, fmt.Errorf("toggle task: %w", err)
	}
	return out, nil
}

func (s *Store) ToggleFlag(ctx context.Context, id int64) (Task, error) {
	var out Task
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		t, err := getTask(ctx, tx, id)
		if err != nil {
			return err
		}
		t.Flagged = !t.Flagged
		if _, err := upsertTask(ctx, tx, t); err != nil {
			return err
		}
		out = t
		return nil
	}, TopicTasks)
	if err != nil {
		return Task{}, fmt.Errorf("toggle flag: %w", err)
	}
	return out, nil
}

func (s *Store) CompletedTaskCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM tasks WHERE completed = 1`); err != nil {
		return 0, fmt.Errorf("count completed tasks: %w", err)
	}
	return n, nil
}

func (s *Store) WatchCompletedTaskCount(ctx context.Context) <-chan live.Snapshot[int] {
	return live.Watch(ctx, s.hub, s.CompletedTaskCount, TopicTasks)
}
