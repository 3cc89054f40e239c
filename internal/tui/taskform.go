package tui

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/sadopc/focusdo/internal/store"
)

const dueLayout = "2006-01-02"

var repeatModes = []store.RepeatMode{
	store.RepeatNone, store.RepeatDaily, store.RepeatWeekly, store.RepeatMonthly, store.RepeatYearly,
}

// taskForm holds the task form's values. Pointers survive model copies.
type taskForm struct {
	title       *string
	description *string
	priority    *string
	due         *string
	repeat      *string
}

func newTaskForm() taskForm {
	title, desc, prio, due, repeat := "", "", "0", "", string(store.RepeatNone)
	return taskForm{title: &title, description: &desc, priority: &prio, due: &due, repeat: &repeat}
}

// build resets the fields from t and returns the form.
func (f taskForm) build(t store.Task) *huh.Form {
	*f.title = t.Title
	*f.description = t.Description
	*f.priority = strconv.Itoa(t.Priority)
	*f.due = ""
	if t.DueDate != nil {
		*f.due = t.DueDate.Format(dueLayout)
	}
	*f.repeat = string(store.ParseRepeatMode(string(t.Repeat)))

	repeatOptions := make([]huh.Option[string], len(repeatModes))
	for i, m := range repeatModes {
		repeatOptions[i] = huh.NewOption(strings.ToLower(string(m)), string(m))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(f.title).Validate(requireText("title")),
			huh.NewText().Title("Description").Value(f.description).Lines(3),
			huh.NewSelect[string]().Title("Priority").Options(
				huh.NewOption("none", "0"),
				huh.NewOption("low", "1"),
				huh.NewOption("medium", "2"),
				huh.NewOption("high", "3"),
			).Value(f.priority),
			huh.NewInput().Title("Due (YYYY-MM-DD, today, tomorrow)").Value(f.due).Validate(func(s string) error {
				_, err := parseDue(s, time.Now())
				return err
			}),
			huh.NewSelect[string]().Title("Repeat").Options(repeatOptions...).Value(f.repeat),
		),
	).WithShowHelp(true).WithShowErrors(true)
}

// apply copies the form values onto t.
func (f taskForm) apply(t store.Task, now time.Time) (store.Task, error) {
	t.Title = strings.TrimSpace(*f.title)
	t.Description = strings.TrimSpace(*f.description)
	t.Priority, _ = strconv.Atoi(*f.priority)
	due, err := parseDue(*f.due, now)
	if err != nil {
		return store.Task{}, err
	}
	t.DueDate = due
	t.Repeat = store.ParseRepeatMode(*f.repeat)
	if err := t.Validate(); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// parseDue reads a due date as local midnight. Blank means no due date.
func parseDue(s string, now time.Time) (*time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var d time.Time
	switch s {
	case "":
		return nil, nil
	case "today":
		d = today
	case "tomorrow":
		d = today.AddDate(0, 0, 1)
	default:
		parsed, err := time.ParseInLocation(dueLayout, s, now.Location())
		if err != nil {
			return nil, errors.New("use YYYY-MM-DD")
		}
		d = parsed
	}
	return &d, nil
}

func requireText(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(what + " is required")
		}
		return nil
	}
}
