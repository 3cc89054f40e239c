package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/focusdo/internal/focus"
	"github.com/sadopc/focusdo/internal/live"
	"github.com/sadopc/focusdo/internal/store"
	"github.com/sadopc/focusdo/internal/views"
	"go.uber.org/zap"
)

// App is the root Bubble Tea model.
type App struct {
	env    *env
	width  int
	height int

	activeView viewState
	showHelp   bool

	data           appData
	prefsLoaded    bool
	sessionsLoaded bool

	myDay    myDayModel
	lists    listsModel
	focus    focusModel
	stats    statsModel
	settings settingsModel

	help      help.Model
	status    string
	statusErr bool

	feeds feeds
}

// feeds are the live subscriptions the app renders from.
type feeds struct {
	tasks       <-chan live.Snapshot[[]store.Task]
	lists       <-chan live.Snapshot[[]store.TaskList]
	archived    <-chan live.Snapshot[[]store.TaskList]
	folders     <-chan live.Snapshot[[]store.Folder]
	sessions    <-chan live.Snapshot[[]store.FocusSession]
	prefs       <-chan live.Snapshot[prefsData]
	timer       <-chan focus.Snapshot
	completions <-chan focus.Completion
}

// NewApp subscribes to the store and builds the views. The subscriptions end
// when ctx is cancelled.
func NewApp(ctx context.Context, e Env) App {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Log == nil {
		e.Log = zap.NewNop()
	}
	en := &env{Env: e, ctx: ctx}

	h := help.New()
	h.ShowAll = false

	a := App{
		env:        en,
		activeView: viewMyDay,
		myDay:      newMyDayModel(en),
		lists:      newListsModel(en),
		focus:      newFocusModel(en),
		stats:      newStatsModel(en),
		settings:   newSettingsModel(en),
		help:       h,
		feeds: feeds{
			tasks:       e.Store.WatchTasks(ctx),
			lists:       e.Store.WatchLists(ctx, false),
			archived:    e.Store.WatchLists(ctx, true),
			folders:     e.Store.WatchFolders(ctx),
			sessions:    e.Store.WatchAllFocusSessions(ctx),
			prefs:       live.Watch(ctx, e.Store.Hub(), loadPrefs(e.Prefs), store.TopicSettings),
			completions: e.Completions,
		},
	}
	if e.Timer != nil {
		a.feeds.timer = e.Timer.Updates()
		a.data.timer = e.Timer.Snapshot()
	}
	a.sync()
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.listenTasks(),
		a.listenLists(),
		a.listenArchived(),
		a.listenFolders(),
		a.listenSessions(),
		a.listenPrefs(),
		a.listenTimer(),
		a.listenCompletions(),
	)
}

func (a App) listenTasks() tea.Cmd {
	return listen(a.feeds.tasks, func(s live.Snapshot[[]store.Task]) tea.Msg { return tasksMsg(s) })
}

func (a App) listenLists() tea.Cmd {
	return listen(a.feeds.lists, func(s live.Snapshot[[]store.TaskList]) tea.Msg { return listsMsg(s) })
}

func (a App) listenArchived() tea.Cmd {
	return listen(a.feeds.archived, func(s live.Snapshot[[]store.TaskList]) tea.Msg { return archivedMsg(s) })
}

func (a App) listenFolders() tea.Cmd {
	return listen(a.feeds.folders, func(s live.Snapshot[[]store.Folder]) tea.Msg { return foldersMsg(s) })
}

func (a App) listenSessions() tea.Cmd {
	return listen(a.feeds.sessions, func(s live.Snapshot[[]store.FocusSession]) tea.Msg { return sessionsMsg(s) })
}

func (a App) listenPrefs() tea.Cmd {
	return listen(a.feeds.prefs, func(s live.Snapshot[prefsData]) tea.Msg { return prefsMsg(s) })
}

func (a App) listenTimer() tea.Cmd {
	return listen(a.feeds.timer, func(s focus.Snapshot) tea.Msg { return timerMsg(s) })
}

func (a App) listenCompletions() tea.Cmd {
	return listen(a.feeds.completions, func(c focus.Completion) tea.Msg { return completionMsg(c) })
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.myDay.setSize(a.width, contentHeight)
		a.lists.setSize(a.width, contentHeight)
		a.focus.setSize(a.width, contentHeight)
		a.stats.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		// If a child view is capturing input (e.g. form), delegate first.
		if a.isCapturing() {
			return a.updateActiveView(msg)
		}

		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab1):
			a.activeView = viewMyDay
			return a, nil
		case key.Matches(msg, keys.Tab2):
			a.activeView = viewLists
			return a, nil
		case key.Matches(msg, keys.Tab3):
			a.activeView = viewFocus
			return a, nil
		case key.Matches(msg, keys.Tab4):
			a.activeView = viewStats
			return a, nil
		case key.Matches(msg, keys.Tab5):
			a.activeView = viewSettings
			return a, nil
		case key.Matches(msg, keys.Tab):
			a.activeView = (a.activeView + 1) % viewState(len(viewNames))
			return a, nil
		}

	case tasksMsg:
		if a.feedFailed("tasks", msg.Err) {
			return a, a.listenTasks()
		}
		a.data.tasks = msg.Value
		a.sync()
		return a, a.listenTasks()

	case listsMsg:
		if a.feedFailed("lists", msg.Err) {
			return a, a.listenLists()
		}
		a.data.lists = msg.Value
		a.sync()
		return a, a.listenLists()

	case archivedMsg:
		if a.feedFailed("archived lists", msg.Err) {
			return a, a.listenArchived()
		}
		a.data.archived = msg.Value
		a.sync()
		return a, a.listenArchived()

	case foldersMsg:
		if a.feedFailed("folders", msg.Err) {
			return a, a.listenFolders()
		}
		a.data.folders = msg.Value
		a.sync()
		return a, a.listenFolders()

	case sessionsMsg:
		if a.feedFailed("focus sessions", msg.Err) {
			return a, a.listenSessions()
		}
		before := a.data.totalMinutes()
		a.data.sessions = msg.Value
		after := a.data.totalMinutes()
		if a.sessionsLoaded && views.LeveledUp(before, after) {
			lvl := views.LevelFor(after)
			a.setStatus(fmt.Sprintf("Level up! You are now level %d, %s", lvl.Level, lvl.Title), false)
		}
		a.sessionsLoaded = true
		a.sync()
		return a, a.listenSessions()

	case prefsMsg:
		if a.feedFailed("preferences", msg.Err) {
			return a, a.listenPrefs()
		}
		a.data.prefs = msg.Value
		a.sync()
		cmds := []tea.Cmd{a.listenPrefs()}
		if !a.prefsLoaded {
			a.prefsLoaded = true
			if msg.Value.name == "" {
				a.activeView = viewSettings
				var cmd tea.Cmd
				a.settings, cmd = a.settings.showProfile(true)
				cmds = append(cmds, cmd)
			}
		}
		return a, tea.Batch(cmds...)

	case timerMsg:
		a.data.timer = focus.Snapshot(msg)
		a.sync()
		return a, a.listenTimer()

	case completionMsg:
		a.setStatus(fmt.Sprintf("Focus session complete: %s", formatMinutes(msg.Minutes)), false)
		return a, a.listenCompletions()

	case statusMsg:
		a.setStatus(msg.text, msg.isError)
		return a, nil

	case backupDoneMsg:
		a.setStatus("Backup saved to "+msg.path, false)
		return a, nil
	}

	return a.updateActiveView(msg)
}

// feedFailed reports a failed live query in the status bar.
func (a *App) feedFailed(what string, err error) bool {
	if err == nil {
		return false
	}
	a.env.Log.Error("live query failed", zap.String("feed", what), zap.Error(err))
	a.setStatus(fmt.Sprintf("Error loading %s: %v", what, err), true)
	return true
}

func (a *App) setStatus(text string, isError bool) {
	a.status = text
	a.statusErr = isError
}

// sync hands the latest data to every view.
func (a *App) sync() {
	a.myDay.setData(a.data)
	a.lists.setData(a.data)
	a.focus.setData(a.data)
	a.stats.setData(a.data)
	a.settings.setData(a.data)
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewMyDay:
		a.myDay, cmd = a.myDay.update(msg)
	case viewLists:
		a.lists, cmd = a.lists.update(msg)
	case viewFocus:
		a.focus, cmd = a.focus.update(msg)
	case viewStats:
		a.stats, cmd = a.stats.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isCapturing() bool {
	switch a.activeView {
	case viewMyDay:
		return a.myDay.formActive
	case viewLists:
		return a.lists.capturing()
	case viewFocus:
		return a.focus.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewMyDay:
		content = a.myDay.view()
	case viewLists:
		content = a.lists.view()
	case viewFocus:
		content = a.focus.view()
	case viewStats:
		content = a.stats.view()
	case viewSettings:
		content = a.settings.view()
	}

	// Calculate available height for content
	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}

	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("focusdo")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		style := mutedStyle
		if a.statusErr {
			style = errorStyle
		}
		status = style.Render(" " + a.status)
	}

	// Timer indicator in footer
	timerInfo := ""
	switch snap := a.data.timer; snap.State {
	case focus.Running:
		timerInfo = successStyle.Render(" ● " + formatClock(snap.Remaining))
	case focus.Paused:
		timerInfo = warningStyle.Render(" ⏸ " + formatClock(snap.Remaining))
	}

	left := footerStyle.Render(helpView)
	right := timerInfo + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}
