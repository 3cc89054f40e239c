package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type settingsModel struct {
	env    *env
	width  int
	height int

	data       appData
	formActive bool
	form       *huh.Form
	formType   string // "profile", "import"
	// login is set while no user name exists; the form cannot be dismissed.
	login bool

	// Form values as pointers (survive value copies)
	name       *string
	email      *string
	importPath *string
	confirm    *bool
}

func newSettingsModel(e *env) settingsModel {
	name, email, path, confirm := "", "", "", false
	return settingsModel{
		env:        e,
		name:       &name,
		email:      &email,
		importPath: &path,
		confirm:    &confirm,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

func (s *settingsModel) setData(data appData) {
	s.data = data
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	switch {
	case key.Matches(km, keys.Enter):
		return s.showProfile(false)
	case key.Matches(km, keys.Export):
		return s, s.export()
	case key.Matches(km, keys.Import):
		return s.showImport()
	}
	return s, nil
}

func (s settingsModel) showProfile(login bool) (settingsModel, tea.Cmd) {
	*s.name = s.data.prefs.name
	*s.email = s.data.prefs.email
	s.login = login
	s.formType = "profile"

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(s.name).Validate(requireText("name")),
			huh.NewInput().Title("Email (optional)").Value(s.email).Validate(validEmail),
		),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func validEmail(v string) error {
	v = strings.TrimSpace(v)
	if v != "" && !strings.Contains(v, "@") {
		return errors.New("not an email address")
	}
	return nil
}

func (s settingsModel) showImport() (settingsModel, tea.Cmd) {
	*s.importPath = s.env.BackupDir + string(filepath.Separator)
	*s.confirm = false
	s.formType = "import"

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Backup file").Value(s.importPath).Validate(func(p string) error {
				info, err := os.Stat(strings.TrimSpace(p))
				if err != nil {
					return errors.New("file not found")
				}
				if info.IsDir() {
					return errors.New("choose a file, not a folder")
				}
				return nil
			}),
			huh.NewConfirm().
				Title("Replace all data with this backup?").
				Affirmative("Restore").
				Negative("Cancel").
				Value(s.confirm),
		),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" && !s.login {
		s.formActive = false
		s.form = nil
		return s, nil
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State != huh.StateCompleted {
		return s, cmd
	}
	s.formActive = false
	s.login = false

	switch s.formType {
	case "profile":
		name, email := strings.TrimSpace(*s.name), strings.TrimSpace(*s.email)
		return s, s.env.do("Profile saved", func(ctx context.Context) error {
			return s.env.Prefs.SetUser(ctx, name, email)
		})
	case "import":
		if !*s.confirm {
			return s, nil
		}
		return s, s.restore(strings.TrimSpace(*s.importPath))
	}
	return s, nil
}

func (s settingsModel) export() tea.Cmd {
	e := s.env
	return func() tea.Msg {
		path, err := e.Backup.WriteFile(e.ctx, e.BackupDir)
		if err != nil {
			e.Log.Warn("backup failed", zap.Error(err))
			return statusMsg{text: "Backup failed: " + err.Error(), isError: true}
		}
		return backupDoneMsg{path: path}
	}
}

func (s settingsModel) restore(path string) tea.Cmd {
	e := s.env
	return func() tea.Msg {
		if err := e.Backup.Restore(e.ctx, path); err != nil {
			e.Log.Warn("restore failed", zap.String("path", path), zap.Error(err))
			return statusMsg{text: "Restore failed: " + err.Error(), isError: true}
		}
		return statusMsg{text: "Restored " + filepath.Base(path)}
	}
}

func (s settingsModel) view() string {
	w := s.width - 4

	if s.formActive && s.form != nil {
		title := "Settings"
		switch {
		case s.login:
			title = "Welcome! What should we call you?"
		case s.formType == "profile":
			title = "Profile"
		case s.formType == "import":
			title = "Restore Backup"
		}
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", s.form.View()),
		)
	}

	field := func(label, value string) string {
		if value == "" {
			value = mutedStyle.Render("(not set)")
		} else {
			value = highlightStyle.Render(value)
		}
		return fmt.Sprintf("  %s %s", lipgloss.NewStyle().Width(16).Render(label), value)
	}

	p := s.data.prefs
	rows := []string{
		titleStyle.Render("Settings"),
		"",
		subtitleStyle.Render("Profile"),
		field("Name", p.name),
		field("Email", p.email),
		"",
		subtitleStyle.Render("Preferences"),
		field("Sort tasks by", p.sort.Label()),
		field("Custom presets", formatPresets(p.durations)),
		"",
		subtitleStyle.Render("Storage"),
		field("Database", s.env.DBPath),
		field("Backups", s.env.BackupDir),
		"",
		mutedStyle.Render("  enter: edit profile  e: export backup  i: restore backup"),
	}

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatPresets(durations []int) string {
	parts := make([]string, len(durations))
	for i, m := range durations {
		parts[i] = formatMinutes(m)
	}
	return strings.Join(parts, ", ")
}
