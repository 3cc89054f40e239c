package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/focusdo/internal/focus"
	"github.com/sadopc/focusdo/internal/views"
)

var defaultPresets = []int{15, 25, 45, 60}

type focusModel struct {
	env    *env
	width  int
	height int

	data   appData
	cursor int

	formActive bool
	form       *huh.Form
	minutes    *string
}

func newFocusModel(e *env) focusModel {
	m := ""
	return focusModel{env: e, cursor: 1, minutes: &m}
}

func (f *focusModel) setSize(w, h int) {
	f.width = w
	f.height = h
}

func (f *focusModel) setData(data appData) {
	f.data = data
	f.cursor = clamp(f.cursor, len(f.presets()))
}

// presets merges the built-in durations with the user's custom ones.
func (f focusModel) presets() []int {
	out := slices.Clone(defaultPresets)
	for _, m := range f.data.prefs.durations {
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	slices.Sort(out)
	return out
}

func (f focusModel) isCustom(minutes int) bool {
	return slices.Contains(f.data.prefs.durations, minutes) && !slices.Contains(defaultPresets, minutes)
}

func (f focusModel) update(msg tea.Msg) (focusModel, tea.Cmd) {
	if f.formActive && f.form != nil {
		return f.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return f, nil
	}

	timer := f.env.Timer
	presets := f.presets()
	switch {
	case key.Matches(km, keys.Left):
		if f.cursor > 0 {
			f.cursor--
		}
	case key.Matches(km, keys.Right):
		if f.cursor < len(presets)-1 {
			f.cursor++
		}
	case key.Matches(km, keys.Enter):
		if f.cursor < len(presets) {
			m := presets[f.cursor]
			return f, f.env.do(fmt.Sprintf("Focus length set to %s", formatMinutes(m)), func(ctx context.Context) error {
				return timer.SetMinutes(ctx, m)
			})
		}
	case key.Matches(km, keys.Start):
		return f, f.env.do("", timer.Start)
	case key.Matches(km, keys.Pause):
		if f.data.timer.State == focus.Running {
			return f, f.env.do("", timer.Pause)
		}
		return f, f.env.do("", timer.Start)
	case key.Matches(km, keys.Reset):
		return f, f.env.do("Timer reset", timer.Reset)
	case key.Matches(km, keys.New):
		return f.showForm()
	case key.Matches(km, keys.Delete):
		if f.cursor < len(presets) && f.isCustom(presets[f.cursor]) {
			m := presets[f.cursor]
			return f, f.env.do("Removed "+formatMinutes(m), func(ctx context.Context) error {
				return f.env.Prefs.RemoveCustomDuration(ctx, m)
			})
		}
	}
	return f, nil
}

func (f focusModel) showForm() (focusModel, tea.Cmd) {
	*f.minutes = ""
	f.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Minutes").Value(f.minutes).Validate(validMinutes),
		),
	).WithShowHelp(true).WithShowErrors(true)
	f.formActive = true
	return f, f.form.Init()
}

func validMinutes(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 600 {
		return fmt.Errorf("enter 1 to 600 minutes")
	}
	return nil
}

func (f focusModel) updateForm(msg tea.Msg) (focusModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		f.formActive = false
		f.form = nil
		return f, nil
	}

	form, cmd := f.form.Update(msg)
	if fm, ok := form.(*huh.Form); ok {
		f.form = fm
	}

	if f.form.State == huh.StateCompleted {
		f.formActive = false
		n, err := strconv.Atoi(strings.TrimSpace(*f.minutes))
		if err != nil {
			return f, errorCmd(err)
		}
		return f, f.env.do("Added "+formatMinutes(n), func(ctx context.Context) error {
			return f.env.Prefs.AddCustomDuration(ctx, n)
		})
	}
	return f, cmd
}

func (f focusModel) view() string {
	w := f.width - 4

	if f.formActive && f.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render("Custom Duration"), "", f.form.View()),
		)
	}

	snap := f.data.timer
	inner := max(w-6, 10)

	var clock, label string
	switch snap.State {
	case focus.Running:
		clock = timerRunningStyle.Width(inner).Render(formatClock(snap.Remaining))
		label = successStyle.Bold(true).Render("FOCUSING")
	case focus.Paused:
		clock = timerPausedStyle.Width(inner).Render(formatClock(snap.Remaining))
		label = warningStyle.Bold(true).Render("PAUSED")
	default:
		clock = timerStyle.Width(inner).Render(formatClock(snap.Remaining))
		label = mutedStyle.Render("Ready")
	}

	barStyle := successStyle
	if snap.State == focus.Paused {
		barStyle = warningStyle
	}
	bar := progressBar(snap.Progress(), min(inner, 50), barStyle)

	ends := ""
	if snap.State == focus.Running {
		ends = mutedStyle.Render("ends at " + snap.EndTime.In(time.Local).Format("15:04"))
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		titleStyle.Render("Focus"),
		"",
		clock,
		label,
		"",
		bar,
		ends,
		"",
		f.renderPresets(),
		"",
		f.renderLevel(),
	)

	var controls string
	switch snap.State {
	case focus.Running:
		controls = "space: pause  x: reset"
	case focus.Paused:
		controls = "space: resume  x: reset"
	default:
		controls = "s: start  ←/→: choose  enter: set length  n: add  d: remove custom"
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Center, content, "", mutedStyle.Render(controls)),
	)
}

func (f focusModel) renderPresets() string {
	current := int(f.data.timer.Duration / time.Minute)
	var parts []string
	for i, m := range f.presets() {
		text := formatMinutes(m)
		if m == current {
			text = "● " + text
		}
		if f.isCustom(m) {
			text += "*"
		}
		style := inactiveTabStyle
		if i == f.cursor {
			style = selectedItemStyle.Padding(0, 2)
		}
		parts = append(parts, style.Render(text))
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, parts...)
}

func (f focusModel) renderLevel() string {
	lvl := views.LevelFor(f.data.totalMinutes())
	return lipgloss.JoinVertical(lipgloss.Center,
		highlightStyle.Render(fmt.Sprintf("Level %d · %s", lvl.Level, lvl.Title)),
		progressBar(lvl.Progress, 30, highlightStyle),
		mutedStyle.Render(fmt.Sprintf("%dh to next level", lvl.HoursToNext)),
	)
}
