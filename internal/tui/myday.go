package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/focusdo/internal/store"
	"github.com/sadopc/focusdo/internal/views"
)

type myDayModel struct {
	env    *env
	width  int
	height int

	data   appData
	cursor int

	formActive bool
	form       *huh.Form
	taskForm   taskForm
	editing    store.Task
}

func newMyDayModel(e *env) myDayModel {
	return myDayModel{env: e, taskForm: newTaskForm()}
}

func (d *myDayModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d *myDayModel) setData(data appData) {
	d.data = data
	d.cursor = clamp(d.cursor, len(d.items()))
}

func (d myDayModel) myDay() views.MyDay {
	md := views.BuildMyDay(d.env.Now(), d.data.tasks)
	md.Overdue = views.Sort(md.Overdue, d.data.prefs.sort)
	md.Today = views.Sort(md.Today, d.data.prefs.sort)
	return md
}

func (d myDayModel) items() []store.Task {
	return d.myDay().All()
}

func (d myDayModel) selected() (store.Task, bool) {
	items := d.items()
	if d.cursor < len(items) {
		return items[d.cursor], true
	}
	return store.Task{}, false
}

func (d myDayModel) update(msg tea.Msg) (myDayModel, tea.Cmd) {
	if d.formActive && d.form != nil {
		return d.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil
	}
	switch {
	case key.Matches(km, keys.Up):
		if d.cursor > 0 {
			d.cursor--
		}
	case key.Matches(km, keys.Down):
		if d.cursor < len(d.items())-1 {
			d.cursor++
		}
	case key.Matches(km, keys.New):
		now := d.env.Now()
		return d.showForm(store.Task{DueDate: &now})
	case key.Matches(km, keys.Enter):
		if t, ok := d.selected(); ok {
			return d.showForm(t)
		}
	case key.Matches(km, keys.Toggle):
		if t, ok := d.selected(); ok {
			return d, toggleTask(d.env, t)
		}
	case key.Matches(km, keys.Flag):
		if t, ok := d.selected(); ok {
			return d, d.env.do("", func(ctx context.Context) error {
				_, err := d.env.Store.ToggleFlag(ctx, t.ID)
				return err
			})
		}
	case key.Matches(km, keys.Delete):
		if t, ok := d.selected(); ok {
			return d, deleteTask(d.env, t)
		}
	}
	return d, nil
}

func (d myDayModel) showForm(t store.Task) (myDayModel, tea.Cmd) {
	d.editing = t
	d.form = d.taskForm.build(t)
	d.formActive = true
	return d, d.form.Init()
}

func (d myDayModel) updateForm(msg tea.Msg) (myDayModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		d.formActive = false
		d.form = nil
		return d, nil
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}

	if d.form.State == huh.StateCompleted {
		d.formActive = false
		return d, saveTask(d.env, d.taskForm, d.editing, views.MyDayRef)
	}
	return d, cmd
}

func (d myDayModel) view() string {
	w := d.width - 4

	if d.formActive && d.form != nil {
		title := "New Task"
		if d.editing.ID != 0 {
			title = "Edit Task"
		}
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", d.form.View()),
		)
	}

	now := d.env.Now()
	today := views.TodayFor(now, d.data.sessions, d.data.tasks)

	greeting := "My Day"
	if d.data.prefs.name != "" {
		greeting = "Hello, " + d.data.prefs.name
	}
	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Focus today", formatMinutes(today.FocusMinutes)),
		"  ",
		statCard("Done today", fmt.Sprintf("%d", today.CompletedTasks)),
	)

	rows := []string{titleStyle.Render(greeting), subtitleStyle.Render(now.Format("Monday, January 2")), "", summary, ""}

	md := d.myDay()
	if len(md.Overdue)+len(md.Today) == 0 {
		rows = append(rows, mutedStyle.Render("Nothing due today. Press n to add a task."))
	} else {
		i := 0
		if len(md.Overdue) > 0 {
			rows = append(rows, overdueStyle.Render("Overdue"))
			for _, t := range md.Overdue {
				rows = append(rows, taskRow(t, i == d.cursor, now, d.listName(t)))
				i++
			}
			rows = append(rows, "")
		}
		if len(md.Today) > 0 {
			rows = append(rows, highlightStyle.Render("Today"))
			for _, t := range md.Today {
				rows = append(rows, taskRow(t, i == d.cursor, now, d.listName(t)))
				i++
			}
		}
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  n: new  enter: edit  space: done  f: flag  d: delete  sort: %s", d.data.prefs.sort.Label())))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d myDayModel) listName(t store.Task) string {
	if t.ListID == nil {
		return ""
	}
	return views.Real(*t.ListID).Name(d.data.lists, "")
}

// --- Shared task commands ---

func toggleTask(e *env, t store.Task) tea.Cmd {
	msg := "Completed " + t.Title
	if t.Completed {
		msg = "Reopened " + t.Title
	}
	return e.do(msg, func(ctx context.Context) error {
		_, err := e.Store.ToggleTask(ctx, t.ID)
		return err
	})
}

func deleteTask(e *env, t store.Task) tea.Cmd {
	return e.do("Deleted "+t.Title, func(ctx context.Context) error {
		return e.Store.DeleteTask(ctx, t.ID)
	})
}

// saveTask applies the form to base and writes it. A zero base ID adds a new
// task created from ref.
func saveTask(e *env, f taskForm, base store.Task, ref views.ListRef) tea.Cmd {
	now := e.Now()
	if base.ID == 0 {
		draft, err := views.NewTaskFor(ref, *f.title, now)
		if err != nil {
			return errorCmd(err)
		}
		base = draft
	}
	t, err := f.apply(base, now)
	if err != nil {
		return errorCmd(err)
	}
	if t.ID == 0 {
		return e.do("Added "+t.Title, func(ctx context.Context) error {
			_, err := e.Store.AddTask(ctx, t)
			return err
		})
	}
	return e.do("Saved "+t.Title, func(ctx context.Context) error {
		_, err := e.Store.UpsertTask(ctx, t)
		return err
	})
}

func taskRow(t store.Task, selected bool, now time.Time, list string) string {
	cursor := "  "
	style := normalItemStyle
	if selected {
		cursor = "> "
		style = selectedItemStyle
	}
	check := "[ ] "
	if t.Completed {
		check = "[x] "
		if !selected {
			style = doneStyle
		}
	}

	line := style.Render(cursor + check + t.Title)
	if t.Flagged {
		line += " " + flagStyle.Render("⚑")
	}
	if t.Priority > 0 {
		line += " " + accentStyle.Render(strings.Repeat("!", t.Priority))
	}
	if due := formatDue(t.DueDate, now); due != "" {
		dueStyle := mutedStyle
		if !t.Completed && strings.HasPrefix(due, "overdue") {
			dueStyle = overdueStyle
		}
		line += " " + dueStyle.Render(due)
	}
	if list != "" {
		line += mutedStyle.Render(" [" + list + "]")
	}
	return line
}
