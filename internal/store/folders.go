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

func (s *Store) ListFolders(ctx context.Context) ([]Folder, error) {
	var rows []folderRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT id, name, sort_order FROM folders ORDER BY sort_order, id`); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	folders := make([]Folder, 0, len(rows))
	for _, r := range rows {
		folders = append(folders, Folder(r))
	}
	return folders, nil
}

func (s *Store) WatchFolders(ctx context.Context) <-chan live.Snapshot[[]Folder] {
	return live.Watch(ctx, s.hub, s.ListFolders, TopicFolders)
}

func (s *Store) GetFolder(ctx context.Context, id int64) (Folder, error) {
	var r folderRow
	err := s.db.GetContext(ctx, &r, `SELECT id, name, sort_order FROM folders WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Folder{}, ErrNotFound
		}
		return Folder{}, fmt.Errorf("get folder %d: %w", id, err)
	}
	return Folder(r), nil
}

// CreateFolder appends a folder after the existing ones.
func (s *Store) CreateFolder(ctx context.Context, name string) (int64, error) {
	f := Folder{Name: strings.TrimSpace(name)}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	var id int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &f.SortOrder, `SELECT COALESCE(MAX(sort_order) + 1, 0) FROM folders`); err != nil {
			return fmt.Errorf("next folder order: %w", err)
		}
		var err error
		id, err = upsertFolder(ctx, tx, f)
		return err
	}, TopicFolders)
	if err != nil {
		return 0, fmt.Errorf("create folder: %w", err)
	}
	s.log.Info("folder created", zap.Int64("id", id), zap.String("name", f.Name))
	return id, nil
}

// UpsertFolder inserts f, or fully replaces the row with the same id.
func (s *Store) UpsertFolder(ctx context.Context, f Folder) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	id, err := upsertFolder(ctx, s.db, f)
	if err != nil {
		return 0, err
	}
	s.hub.Publish(TopicFolders)
	return id, nil
}

func upsertFolder(ctx context.Context, e sqlx.ExtContext, f Folder) (int64, error) {
	r := folderRow{ID: f.ID, Name: strings.TrimSpace(f.Name), SortOrder: f.SortOrder}
	if r.ID == 0 {
		res, err := sqlx.NamedExecContext(ctx, e, `INSERT INTO folders (name, sort_order) VALUES (:name, :sort_order)`, r)
		if err != nil {
			return 0, fmt.Errorf("insert folder: %w", err)
		}
		return res.LastInsertId()
	}
	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO folders (id, name, sort_order) VALUES (:id, :name, :sort_order)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order`, r)
	if err != nil {
		return 0, fmt.Errorf("upsert folder %d: %w", r.ID, err)
	}
	return r.ID, nil
}

func (s *Store) RenameFolder(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	res, err := s.db.ExecContext(ctx, `UPDATE folders SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename folder %d: %w", id, err)
	}
	if err := checkRowsAffected(res); err != nil {
		return err
	}
	s.hub.Publish(TopicFolders)
	return nil
}

// DeleteFolder removes the folder. Its lists go with it through the foreign
// key; the tasks of those lists are deleted in the same transaction.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE list_id IN (SELECT id FROM lists WHERE folder_id = ?)`, id); err != nil {
			return fmt.Errorf("delete folder tasks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
		return nil
	}, TopicFolders, TopicLists, TopicTasks)
	if err != nil {
		return fmt.Errorf("delete folder %d: %w", id, err)
	}
	s.log.Info("folder deleted", zap.Int64("id", id))
	return nil
}

func (s *Store) ReorderFolders(ctx context.Context, ids []int64) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return reorder(ctx, tx, "folders", ids)
	}, TopicFolders)
	if err != nil {
		return fmt.Errorf("reorder folders: %w", err)
	}
	return nil
}

// MoveFolder shifts a folder by delta positions and rewrites orders densely.
func (s *Store) MoveFolder(ctx context.Context, id int64, delta int) error {
	folders, err := s.ListFolders(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, len(folders))
	for i, f := range folders {
		ids[i] = f.ID
	}
	return s.ReorderFolders(ctx, move(ids, id, delta))
}
