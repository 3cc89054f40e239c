// Package backup writes the whole data set to a JSON document and restores
// it, replacing everything in the store.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sadopc/focusdo/internal/store"
	"go.uber.org/zap"
)

// Version is the document format written by Export.
const Version = 1

var (
	ErrMalformed          = errors.New("backup: malformed document")
	ErrUnreadable         = errors.New("backup: file cannot be read")
	ErrUnwritable         = errors.New("backup: file cannot be written")
	ErrUnsupportedVersion = errors.New("backup: unsupported format version")
)

// Document is the on-disk format. Timestamps are unix milliseconds.
type Document struct {
	Version       int           `json:"version,omitempty"`
	UserName      *string       `json:"userName"`
	UserEmail     *string       `json:"userEmail"`
	Folders       []folderJSON  `json:"folders"`
	Lists         []listJSON    `json:"lists"`
	Todos         []todoJSON    `json:"todos"`
	FocusSessions []sessionJSON `json:"focusSessions"`
}

type folderJSON struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

type listJSON struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FolderID   *int64 `json:"folderId"`
	SortOrder  int    `json:"sortOrder"`
	IsArchived bool   `json:"isArchived"`
}

type todoJSON struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	IsCompleted bool    `json:"isCompleted"`
	IsFlagged   bool    `json:"isFlagged"`
	Priority    int     `json:"priority"`
	DueDate     *int64  `json:"dueDate"`
	CreatedAt   int64   `json:"createdAt"`
	CompletedAt *int64  `json:"completedAt"`
	ListID      *int64  `json:"listId"`
	RepeatMode  string  `json:"repeatMode"`
}

type sessionJSON struct {
	ID              int64 `json:"id"`
	Timestamp       int64 `json:"timestamp"`
	DurationMinutes int   `json:"durationMinutes"`
}

// FromDataset converts a store dump into a document.
func FromDataset(d store.Dataset) Document {
	doc := Document{
		Version:       Version,
		UserName:      optString(d.UserName),
		UserEmail:     optString(d.UserEmail),
		Folders:       make([]folderJSON, 0, len(d.Folders)),
		Lists:         make([]listJSON, 0, len(d.Lists)),
		Todos:         make([]todoJSON, 0, len(d.Tasks)),
		FocusSessions: make([]sessionJSON, 0, len(d.Sessions)),
	}
	for _, f := range d.Folders {
		doc.Folders = append(doc.Folders, folderJSON{ID: f.ID, Name: f.Name, SortOrder: f.SortOrder})
	}
	for _, l := range d.Lists {
		doc.Lists = append(doc.Lists, listJSON{
			ID:         l.ID,
			Name:       l.Name,
			FolderID:   l.FolderID,
			SortOrder:  l.SortOrder,
			IsArchived: l.Archived,
		})
	}
	for _, t := range d.Tasks {
		doc.Todos = append(doc.Todos, todoJSON{
			ID:          t.ID,
			Title:       t.Title,
			Description: optString(t.Description),
			IsCompleted: t.Completed,
			IsFlagged:   t.Flagged,
			Priority:    t.Priority,
			DueDate:     optMillis(t.DueDate),
			CreatedAt:   t.CreatedAt.UnixMilli(),
			CompletedAt: optMillis(t.CompletedAt),
			ListID:      t.ListID,
			RepeatMode:  string(store.ParseRepeatMode(string(t.Repeat))),
		})
	}
	for _, s := range d.Sessions {
		doc.FocusSessions = append(doc.FocusSessions, sessionJSON{
			ID:              s.ID,
			Timestamp:       s.Timestamp.UnixMilli(),
			DurationMinutes: s.DurationMinutes,
		})
	}
	return doc
}

// Dataset converts the document back into store entities.
func (doc Document) Dataset() store.Dataset {
	d := store.Dataset{
		UserName:  deref(doc.UserName),
		UserEmail: deref(doc.UserEmail),
		Folders:   make([]store.Folder, 0, len(doc.Folders)),
		Lists:     make([]store.TaskList, 0, len(doc.Lists)),
		Tasks:     make([]store.Task, 0, len(doc.Todos)),
		Sessions:  make([]store.FocusSession, 0, len(doc.FocusSessions)),
	}
	for _, f := range doc.Folders {
		d.Folders = append(d.Folders, store.Folder{ID: f.ID, Name: f.Name, SortOrder: f.SortOrder})
	}
	for _, l := range doc.Lists {
		d.Lists = append(d.Lists, store.TaskList{
			ID:        l.ID,
			Name:      l.Name,
			FolderID:  l.FolderID,
			SortOrder: l.SortOrder,
			Archived:  l.IsArchived,
		})
	}
	for _, t := range doc.Todos {
		d.Tasks = append(d.Tasks, store.Task{
			ID:          t.ID,
			Title:       t.Title,
			Description: deref(t.Description),
			Completed:   t.IsCompleted,
			CompletedAt: fromMillis(t.CompletedAt),
			Flagged:     t.IsFlagged,
			Priority:    t.Priority,
			DueDate:     fromMillis(t.DueDate),
			CreatedAt:   time.UnixMilli(t.CreatedAt),
			ListID:      t.ListID,
			Repeat:      store.ParseRepeatMode(t.RepeatMode),
		})
	}
	for _, s := range doc.FocusSessions {
		d.Sessions = append(d.Sessions, store.FocusSession{
			ID:              s.ID,
			Timestamp:       time.UnixMilli(s.Timestamp),
			DurationMinutes: s.DurationMinutes,
		})
	}
	return d
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return nil
}

// Decode parses a document. A missing version is read as version 1.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.Version > Version {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc, nil
}

// FileName is the backup file name for a backup taken at t.
func FileName(t time.Time) string {
	return "focusdo_backup_" + t.Format("20060102_150405") + ".json"
}

type Service struct {
	store *store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(s *store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: s, log: log, now: time.Now}
}

// Export reads the full data set: user, folders, active and archived lists,
// tasks and sessions.
func (s *Service) Export(ctx context.Context) (Document, error) {
	d, err := s.store.Dump(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("export: %w", err)
	}
	return FromDataset(d), nil
}

// Import replaces all data with doc. A failure leaves the store unchanged.
func (s *Service) Import(ctx context.Context, doc Document) error {
	if err := s.store.Replace(ctx, doc.Dataset()); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	return nil
}

// WriteFile exports to a new timestamped file in dir and returns its path.
func (s *Service) WriteFile(ctx context.Context, dir string) (string, error) {
	doc, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	path := filepath.Join(dir, FileName(s.now()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	if err := Encode(f, doc); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	s.log.Info("backup written",
		zap.String("path", path),
		zap.Int("tasks", len(doc.Todos)),
		zap.Int("sessions", len(doc.FocusSessions)),
	)
	return path, nil
}

// ReadFile parses the document at path without touching the store.
func ReadFile(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()
	return Decode(f)
}

// Restore reads path and imports it. Parse errors abort before any data is
// cleared.
func (s *Service) Restore(ctx context.Context, path string) error {
	doc, err := ReadFile(path)
	if err != nil {
		s.log.Warn("backup rejected", zap.String("path", path), zap.Error(err))
		return err
	}
	if err := s.Import(ctx, doc); err != nil {
		return err
	}
	s.log.Info("backup restored", zap.String("path", path), zap.Int("tasks", len(doc.Todos)))
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optMillis(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillis(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}
