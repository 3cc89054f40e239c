package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sadopc/focusdo/internal/live"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// Topics published after a successful write.
const (
	TopicTasks    live.Topic = "tasks"
	TopicLists    live.Topic = "lists"
	TopicFolders  live.Topic = "folders"
	TopicSessions live.Topic = "sessions"
	TopicSettings live.Topic = "settings"
)

type Store struct {
	db  *sqlx.DB
	hub *live.Hub
	log *zap.Logger
	now func() time.Time
}

type Option func(*Store)

// WithLogger attaches a logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock overrides the time source used for completion and creation stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:  db,
		hub: live.NewHub(),
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(opts ...Option) (*Store, error) {
	return New(":memory:", opts...)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Hub exposes the change broadcaster so other components can watch the store.
func (s *Store) Hub() *live.Hub {
	return s.hub
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS folders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		sort_order  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS lists (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		folder_id   INTEGER REFERENCES folders(id) ON DELETE CASCADE,
		sort_order  INTEGER NOT NULL DEFAULT 0,
		archived    INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_lists_folder ON lists(folder_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		title         TEXT NOT NULL,
		description   TEXT,
		completed     INTEGER NOT NULL DEFAULT 0,
		completed_at  INTEGER,
		flagged       INTEGER NOT NULL DEFAULT 0,
		priority      INTEGER NOT NULL DEFAULT 0,
		due_date      INTEGER,
		created_at    INTEGER NOT NULL,
		list_id       INTEGER,
		repeat_mode   TEXT NOT NULL DEFAULT 'NONE'
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_list ON tasks(list_id);

	CREATE TABLE IF NOT EXISTS focus_sessions (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp         INTEGER NOT NULL,
		duration_minutes  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_ts ON focus_sessions(timestamp);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// withTx runs fn inside a transaction and publishes topics after commit.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error, topics ...live.Topic) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.hub.Publish(topics...)
	return nil
}

// DefaultDBPath returns ~/.config/focusdo/focusdo.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "focusdo", "focusdo.db"), nil
}
