package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/sadopc/focusdo/internal/live"
	"go.uber.org/zap"
)

const listColumns = `id, name, folder_id, sort_order, archived`

// ListLists returns active lists ordered by sort order, or, when archived is
// true, archived lists newest first.
func (s *Store) ListLists(ctx context.Context, archived bool) ([]TaskList, error) {
	query := `SELECT ` + listColumns + ` FROM lists WHERE archived = 0 ORDER BY sort_order, id`
	if archived {
		query = `SELECT ` + listColumns + ` FROM lists WHERE archived = 1 ORDER BY id DESC`
	}
	return s.selectLists(ctx, s.db, query)
}

// AllLists returns active lists followed by archived ones.
func (s *Store) AllLists(ctx context.Context) ([]TaskList, error) {
	active, err := s.ListLists(ctx, false)
	if err != nil {
		return nil, err
	}
	archived, err := s.ListLists(ctx, true)
	if err != nil {
		return nil, err
	}
	return append(active, archived...), nil
}

func (s *Store) selectLists(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) ([]TaskList, error) {
	var rows []listRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	lists := make([]TaskList, 0, len(rows))
	for _, r := range rows {
		lists = append(lists, r.list())
	}
	return lists, nil
}

func (s *Store) WatchLists(ctx context.Context, archived bool) <-chan live.Snapshot[[]TaskList] {
	return live.Watch(ctx, s.hub, func(ctx context.Context) ([]TaskList, error) {
		return s.ListLists(ctx, archived)
	}, TopicLists)
}

func (s *Store) GetList(ctx context.Context, id int64) (TaskList, error) {
	return getList(ctx, s.db, id)
}

func getList(ctx context.Context, q sqlx.QueryerContext, id int64) (TaskList, error) {
	var r listRow
	err := sqlx.GetContext(ctx, q, &r, `SELECT `+listColumns+` FROM lists WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TaskList{}, ErrNotFound
		}
		return TaskList{}, fmt.Errorf("get list %d: %w", id, err)
	}
	return r.list(), nil
}

// WatchList streams a single list. Snapshots carry ErrNotFound once the list
// is gone; callers fall back to a default.
func (s *Store) WatchList(ctx context.Context, id int64) <-chan live.Snapshot[TaskList] {
	return live.Watch(ctx, s.hub, func(ctx context.Context) (TaskList, error) {
		return s.GetList(ctx, id)
	}, TopicLists)
}

// CreateList inserts l at the end of its sibling scope and returns the new id.
func (s *Store) CreateList(ctx context.Context, l TaskList) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		next, err := nextListOrder(ctx, tx, l.FolderID)
		if err != nil {
			return err
		}
		l.ID = 0
		l.SortOrder = next
		id, err = upsertList(ctx, tx, l)
		return err
	}, TopicLists)
	if err != nil {
		return 0, fmt.Errorf("create list: %w", err)
	}
	s.log.Info("list created", zap.Int64("id", id), zap.String("name", l.Name))
	return id, nil
}

func nextListOrder(ctx context.Context, q sqlx.QueryerContext, folderID *int64) (int, error) {
	var next int
	var err error
	if folderID == nil {
		err = sqlx.GetContext(ctx, q, &next, `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM lists WHERE folder_id IS NULL`)
	} else {
		err = sqlx.GetContext(ctx, q, &next, `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM lists WHERE folder_id = ?`, *folderID)
	}
	if err != nil {
		return 0, fmt.Errorf("next list order: %w", err)
	}
	return next, nil
}

// UpsertList inserts l, or fully replaces the row with the same id.
func (s *Store) UpsertList(ctx context.Context, l TaskList) (int64, error) {
	if err := l.Validate(); err != nil {
		return 0, err
	}
	id, err := upsertList(ctx, s.db, l)
	if err != nil {
		return 0, err
	}
	s.hub.Publish(TopicLists)
	return id, nil
}

func upsertList(ctx context.Context, e sqlx.ExtContext, l TaskList) (int64, error) {
	r := newListRow(l)
	if r.ID == 0 {
		res, err := sqlx.NamedExecContext(ctx, e,
			`INSERT INTO lists (name, folder_id, sort_order, archived) VALUES (:name, :folder_id, :sort_order, :archived)`, r)
		if err != nil {
			return 0, fmt.Errorf("insert list: %w", err)
		}
		return res.LastInsertId()
	}
	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO lists (`+listColumns+`) VALUES (:id, :name, :folder_id, :sort_order, :archived)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			folder_id = excluded.folder_id,
			sort_order = excluded.sort_order,
			archived = excluded.archived`, r)
	if err != nil {
		return 0, fmt.Errorf("upsert list %d: %w", r.ID, err)
	}
	return r.ID, nil
}

// UpdateList replaces an existing list.
func (s *Store) UpdateList(ctx context.Context, l TaskList) error {
	if err := l.Validate(); err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE lists SET name = :name, folder_id = :folder_id, sort_order = :sort_order, archived = :archived WHERE id = :id`,
		newListRow(l))
	if err != nil {
		return fmt.Errorf("update list %d: %w", l.ID, err)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	s.hub.Publish(TopicLists)
	return nil
}

func (s *Store) RenameList(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	res, err := s.db.ExecContext(ctx, `UPDATE lists SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename list %d: %w", id, err)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	s.hub.Publish(TopicLists)
	return nil
}

func (s *Store) ArchiveList(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, true)
}

func (s *Store) UnarchiveList(ctx context.Context, id int64) error {
	return s.setArchived(ctx, id, false)
}

func (s *Store) setArchived(ctx context.Context, id int64, archived bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE lists SET archived = ? WHERE id = ?`, archived, id)
	if err != nil {
		return fmt.Errorf("set list %d archived: %w", id, err)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	s.log.Info("list archive state changed", zap.Int64("id", id), zap.Bool("archived", archived))
	s.hub.Publish(TopicLists)
	return nil
}

// DeleteList removes only the list row; its tasks are left untouched.
func (s *Store) DeleteList(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete list %d: %w", id, err)
	}
	s.hub.Publish(TopicLists)
	return nil
}

// DeleteListWithTasks removes the list and every task in it atomically.
func (s *Store) DeleteListWithTasks(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE list_id = ?`, id); err != nil {
			return fmt.Errorf("delete list tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		return nil
	}, TopicLists, TopicTasks)
	if err != nil {
		return fmt.Errorf("delete list %d: %w", id, err)
	}
	s.log.Info("list deleted", zap.Int64("id", id))
	return nil
}

// DuplicateList copies a list and its tasks. The copy is named "<name> (Copy)",
// lands at the end of the same scope and every copied task is stamped now.
func (s *Store) DuplicateList(ctx context.Context, id int64) (int64, error) {
	var newID int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		src, err := getList(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err := nextListOrder(ctx, tx, src.FolderID)
		if err != nil {
			return err
		}
		cp := TaskList{
			Name:      src.Name + " (Copy)",
			FolderID:  src.FolderID,
			SortOrder: next,
		}
		if newID, err = upsertList(ctx, tx, cp); err != nil {
			return err
		}

		var rows []taskRow
		if err := tx.SelectContext(ctx, &rows,
			`SELECT `+taskColumns+` FROM tasks WHERE list_id = ? ORDER BY id`, id); err != nil {
			return fmt.Errorf("load list tasks: %w", err)
		}
		now := s.now()
		for _, r := range rows {
			t := r.task()
			t.ID = 0
			t.ListID = &newID
			t.CreatedAt = now
			if _, err := upsertTask(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	}, TopicLists, TopicTasks)
	if err != nil {
		return 0, fmt.Errorf("duplicate list %d: %w", id, err)
	}
	return newID, nil
}

// ReorderLists assigns sort orders 0..n-1 following ids.
func (s *Store) ReorderLists(ctx context.Context, ids []int64) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return reorder(ctx, tx, "lists", ids)
	}, TopicLists)
	if err != nil {
		return fmt.Errorf("reorder lists: %w", err)
	}
	return nil
}

// MoveList shifts an active list by delta positions within its sibling scope
// and rewrites that scope's orders densely.
func (s *Store) MoveList(ctx context.Context, id int64, delta int) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		l, err := getList(ctx, tx, id)
		if err != nil {
			return err
		}
		var siblings []TaskList
		if l.FolderID == nil {
			siblings, err = s.selectLists(ctx, tx,
				`SELECT `+listColumns+` FROM lists WHERE archived = 0 AND folder_id IS NULL ORDER BY sort_order, id`)
		} else {
			siblings, err = s.selectLists(ctx, tx,
				`SELECT `+listColumns+` FROM lists WHERE archived = 0 AND folder_id = ? ORDER BY sort_order, id`, *l.FolderID)
		}
		if err != nil {
			return err
		}
		ids := make([]int64, len(siblings))
		for i, sib := range siblings {
			ids[i] = sib.ID
		}
		return reorder(ctx, tx, "lists", move(ids, id, delta))
	}, TopicLists)
	if err != nil {
		return fmt.Errorf("move list %d: %w", id, err)
	}
	return nil
}

func reorder(ctx context.Context, tx *sqlx.Tx, table string, ids []int64) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE `+table+` SET sort_order = ? WHERE id = ?`, i, id); err != nil {
			return fmt.Errorf("set %s %d order: %w", table, id, err)
		}
	}
	return nil
}

// move returns ids with id shifted by delta, clamped to the slice bounds.
func move(ids []int64, id int64, delta int) []int64 {
	from := -1
	for i, v := range ids {
		if v == id {
			from = i
			break
		}
	}
	if from < 0 {
		return ids
	}
	to := from + delta
	if to < 0 {
		to = 0
	}
	if to > len(ids)-1 {
		to = len(ids) - 1
	}
	out := make([]int64, 0, len(ids))
	for i, v := range ids {
		if i != from {
			out = append(out, v)
		}
	}
	out = append(out[:to], append([]int64{id}, out[to:]...)...)
	return out
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
