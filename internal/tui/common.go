package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sadopc/focusdo/internal/backup"
	"github.com/sadopc/focusdo/internal/focus"
	"github.com/sadopc/focusdo/internal/live"
	"github.com/sadopc/focusdo/internal/store"
	"github.com/sadopc/focusdo/internal/views"
	"go.uber.org/zap"
)

// viewState represents the currently active view.
type viewState int

const (
	viewMyDay viewState = iota
	viewLists
	viewFocus
	viewStats
	viewSettings
)

var viewNames = []string{"My Day", "Lists", "Focus", "Stats", "Settings"}

// Env holds the services the TUI drives.
type Env struct {
	Store       *store.Store
	Prefs       *store.Prefs
	Timer       *focus.Timer
	Completions <-chan focus.Completion
	Backup      *backup.Service
	BackupDir   string
	DBPath      string
	Log         *zap.Logger
	Now         func() time.Time
}

// env is Env bound to the program's context.
type env struct {
	Env
	ctx context.Context
}

// do runs fn as a command and reports the outcome in the status bar.
func (e *env) do(success string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(e.ctx); err != nil {
			e.Log.Warn("command failed", zap.Error(err))
			return statusMsg{text: "Error: " + err.Error(), isError: true}
		}
		if success == "" {
			return nil
		}
		return statusMsg{text: success}
	}
}

// --- Data ---

type prefsData struct {
	name      string
	email     string
	sort      views.SortOption
	durations []int
}

func loadPrefs(p *store.Prefs) func(context.Context) (prefsData, error) {
	return func(ctx context.Context) (prefsData, error) {
		var d prefsData
		var err error
		if d.name, d.email, err = p.User(ctx); err != nil {
			return prefsData{}, err
		}
		opt, err := p.SortOption(ctx)
		if err != nil {
			return prefsData{}, err
		}
		d.sort = views.ParseSortOption(opt)
		if d.durations, err = p.CustomDurations(ctx); err != nil {
			return prefsData{}, err
		}
		return d, nil
	}
}

// appData is the latest snapshot of everything the views render.
type appData struct {
	tasks    []store.Task
	lists    []store.TaskList
	archived []store.TaskList
	folders  []store.Folder
	sessions []store.FocusSession
	prefs    prefsData
	timer    focus.Snapshot
}

func (d appData) totalMinutes() int {
	total := 0
	for _, s := range d.sessions {
		total += s.DurationMinutes
	}
	return total
}

// --- Messages ---

type tasksMsg live.Snapshot[[]store.Task]
type listsMsg live.Snapshot[[]store.TaskList]
type archivedMsg live.Snapshot[[]store.TaskList]
type foldersMsg live.Snapshot[[]store.Folder]
type sessionsMsg live.Snapshot[[]store.FocusSession]
type prefsMsg live.Snapshot[prefsData]
type timerMsg focus.Snapshot
type completionMsg focus.Completion

type statusMsg struct {
	text    string
	isError bool
}

type backupDoneMsg struct {
	path string
}

func errorCmd(err error) tea.Cmd {
	return func() tea.Msg { return statusMsg{text: "Error: " + err.Error(), isError: true} }
}

// listen waits for the next value on ch. A closed channel ends the feed.
func listen[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

// --- Helpers ---

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func formatDue(due *time.Time, now time.Time) string {
	if due == nil {
		return ""
	}
	start, end := views.DayBounds(now)
	switch {
	case due.Before(start):
		return "overdue " + due.Format("Jan 02")
	case !due.After(end):
		return "today"
	}
	return due.Format("Jan 02")
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	return max(i, 0)
}
