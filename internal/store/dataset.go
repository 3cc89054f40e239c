package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Dataset is the full content of the store, used for backup and restore.
type Dataset struct {
	UserName  string
	UserEmail string
	Folders   []Folder
	Lists     []TaskList
	Tasks     []Task
	Sessions  []FocusSession
}

// Dump reads every entity plus the user preferences.
func (s *Store) Dump(ctx context.Context) (Dataset, error) {
	var d Dataset
	var err error
	if d.UserName, err = s.setting(ctx, KeyUserName); err != nil {
		return Dataset{}, err
	}
	if d.UserEmail, err = s.setting(ctx, KeyUserEmail); err != nil {
		return Dataset{}, err
	}
	if d.Folders, err = s.ListFolders(ctx); err != nil {
		return Dataset{}, err
	}
	if d.Lists, err = s.AllLists(ctx); err != nil {
		return Dataset{}, err
	}
	if d.Tasks, err = s.ListTasks(ctx); err != nil {
		return Dataset{}, err
	}
	if d.Sessions, err = s.AllFocusSessions(ctx); err != nil {
		return Dataset{}, err
	}
	return d, nil
}

// ClearAll deletes every task, list, folder and focus session.
func (s *Store) ClearAll(ctx context.Context) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		return clearAll(ctx, tx)
	}, TopicTasks, TopicLists, TopicFolders, TopicSessions)
	if err != nil {
		return fmt.Errorf("clear all: %w", err)
	}
	s.log.Warn("all data cleared")
	return nil
}

func clearAll(ctx context.Context, tx *sqlx.Tx) error {
	for _, table := range []string{"tasks", "lists", "folders", "focus_sessions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Replace clears the store and writes d in one transaction: user, folders,
// lists, tasks, then sessions. Ids are kept so list and folder links survive.
// On error nothing changes.
func (s *Store) Replace(ctx context.Context, d Dataset) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := clearAll(ctx, tx); err != nil {
			return err
		}
		if err := setSetting(ctx, tx, KeyUserName, d.UserName); err != nil {
			return err
		}
		if err := setSetting(ctx, tx, KeyUserEmail, d.UserEmail); err != nil {
			return err
		}
		for _, f := range d.Folders {
			if err := f.Validate(); err != nil {
				return fmt.Errorf("folder %d: %w", f.ID, err)
			}
			if _, err := upsertFolder(ctx, tx, f); err != nil {
				return err
			}
		}
		for _, l := range d.Lists {
			if err := l.Validate(); err != nil {
				return fmt.Errorf("list %d: %w", l.ID, err)
			}
			if _, err := upsertList(ctx, tx, l); err != nil {
				return err
			}
		}
		for _, t := range d.Tasks {
			if err := t.Validate(); err != nil {
				return fmt.Errorf("task %d: %w", t.ID, err)
			}
			if _, err := upsertTask(ctx, tx, t); err != nil {
				return err
			}
		}
		for _, fs := range d.Sessions {
			if _, err := insertSession(ctx, tx, fs); err != nil {
				return err
			}
		}
		return nil
	}, TopicTasks, TopicLists, TopicFolders, TopicSessions, TopicSettings)
	if err != nil {
		return fmt.Errorf("replace data: %w", err)
	}
	s.log.Info("data replaced",
		zap.Int("folders", len(d.Folders)),
		zap.Int("lists", len(d.Lists)),
		zap.Int("tasks", len(d.Tasks)),
		zap.Int("sessions", len(d.Sessions)),
	)
	return nil
}
