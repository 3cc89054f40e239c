package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound   = errors.New("store: not found")
	ErrEmptyTitle = errors.New("store: task title is empty")
	ErrEmptyName  = errors.New("store: name is empty")
)

// RepeatMode is stored with the task but never expanded into new occurrences.
type RepeatMode string

const (
	RepeatNone    RepeatMode = "NONE"
	RepeatDaily   RepeatMode = "DAILY"
	RepeatWeekly  RepeatMode = "WEEKLY"
	RepeatMonthly RepeatMode = "MONTHLY"
	RepeatYearly  RepeatMode = "YEARLY"
)

// ParseRepeatMode maps unknown values to RepeatNone.
func ParseRepeatMode(s string) RepeatMode {
	switch m := RepeatMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return m
	}
	return RepeatNone
}

type Task struct {
	ID          int64
	Title       string
	Description string
	Completed   bool
	CompletedAt *time.Time
	Flagged     bool
	Priority    int
	DueDate     *time.Time
	CreatedAt   time.Time
	ListID      *int64
	Repeat      RepeatMode
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

type TaskList struct {
	ID        int64
	Name      string
	FolderID  *int64
	SortOrder int
	Archived  bool
}

func (l TaskList) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

type Folder struct {
	ID        int64
	Name      string
	SortOrder int
}

func (f Folder) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// FocusSession is one logged block of completed focus time.
type FocusSession struct {
	ID              int64
	Timestamp       time.Time
	DurationMinutes int
}

// Rows as stored. Timestamps are unix milliseconds.

type taskRow struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	Completed   bool           `db:"completed"`
	CompletedAt sql.NullInt64  `db:"completed_at"`
	Flagged     bool           `db:"flagged"`
	Priority    int            `db:"priority"`
	DueDate     sql.NullInt64  `db:"due_date"`
	CreatedAt   int64          `db:"created_at"`
	ListID      sql.NullInt64  `db:"list_id"`
	RepeatMode  string         `db:"repeat_mode"`
}

func newTaskRow(t Task) taskRow {
	if !t.Completed {
		t.CompletedAt = nil
	}
	return taskRow{
		ID:          t.ID,
		Title:       strings.TrimSpace(t.Title),
		Description: sql.NullString{String: t.Description, Valid: t.Description != ""},
		Completed:   t.Completed,
		CompletedAt: nullMillis(t.CompletedAt),
		Flagged:     t.Flagged,
		Priority:    t.Priority,
		DueDate:     nullMillis(t.DueDate),
		CreatedAt:   t.CreatedAt.UnixMilli(),
		ListID:      nullID(t.ListID),
		RepeatMode:  string(ParseRepeatMode(string(t.Repeat))),
	}
}

func (r taskRow) task() Task {
	return Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description.String,
		Completed:   r.Completed,
		CompletedAt: timePtr(r.CompletedAt),
		Flagged:     r.Flagged,
		Priority:    r.Priority,
		DueDate:     timePtr(r.DueDate),
		CreatedAt:   time.UnixMilli(r.CreatedAt),
		ListID:      idPtr(r.ListID),
		Repeat:      ParseRepeatMode(r.RepeatMode),
	}
}

type listRow struct {
	ID        int64         `db:"id"`
	Name      string        `db:"name"`
	FolderID  sql.NullInt64 `db:"folder_id"`
	SortOrder int           `db:"sort_order"`
	Archived  bool          `db:"archived"`
}

func newListRow(l TaskList) listRow {
	return listRow{
		ID:        l.ID,
		Name:      strings.TrimSpace(l.Name),
		FolderID:  nullID(l.FolderID),
		SortOrder: l.SortOrder,
		Archived:  l.Archived,
	}
}

func (r listRow) list() TaskList {
	return TaskList{
		ID:        r.ID,
		Name:      r.Name,
		FolderID:  idPtr(r.FolderID),
		SortOrder: r.SortOrder,
		Archived:  r.Archived,
	}
}

type folderRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	SortOrder int    `db:"sort_order"`
}

type sessionRow struct {
	ID              int64 `db:"id"`
	Timestamp       int64 `db:"timestamp"`
	DurationMinutes int   `db:"duration_minutes"`
}

func (r sessionRow) session() FocusSession {
	return FocusSession{
		ID:              r.ID,
		Timestamp:       time.UnixMilli(r.Timestamp),
		DurationMinutes: r.DurationMinutes,
	}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}

func nullID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
