package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/sadopc/focusdo/internal/store"
)

// RefKind tells a stored list apart from the virtual ones.
type RefKind int

const (
	RefList RefKind = iota
	RefCompleted
	RefMyDay
)

// ListRef identifies what a task view is showing: a stored list or one of the
// virtual smart lists. The zero value is not valid; use the constructors.
type ListRef struct {
	kind RefKind
	id   int64
}

func Real(id int64) ListRef { return ListRef{kind: RefList, id: id} }

var (
	CompletedRef = ListRef{kind: RefCompleted}
	MyDayRef     = ListRef{kind: RefMyDay}
)

func (r ListRef) Kind() RefKind { return r.kind }

// ID returns the stored list id; ok is false for smart lists.
func (r ListRef) ID() (id int64, ok bool) {
	return r.id, r.kind == RefList
}

func (r ListRef) String() string {
	switch r.kind {
	case RefCompleted:
		return "completed"
	case RefMyDay:
		return "my-day"
	}
	return fmt.Sprintf("list:%d", r.id)
}

// Name resolves the display name of r. A stored list that no longer exists
// resolves to fallback.
func (r ListRef) Name(lists []store.TaskList, fallback string) string {
	switch r.kind {
	case RefCompleted:
		return "Completed"
	case RefMyDay:
		return "My Day"
	}
	for _, l := range lists {
		if l.ID == r.id {
			return l.Name
		}
	}
	return fallback
}

// TasksFor selects the tasks r shows. Stored lists show all their tasks,
// Completed shows every completed task and My Day the overdue and due-today
// incomplete ones.
func TasksFor(r ListRef, now time.Time, tasks []store.Task) []store.Task {
	switch r.kind {
	case RefCompleted:
		_, done := Split(tasks)
		return done
	case RefMyDay:
		return BuildMyDay(now, tasks).All()
	}
	out := []store.Task{}
	for _, t := range tasks {
		if t.ListID != nil && *t.ListID == r.id {
			out = append(out, t)
		}
	}
	return out
}

// NewTaskFor builds an unsaved task created from the view r: stored lists own
// it, Completed leaves it list-less, My Day leaves it list-less and due now.
func NewTaskFor(r ListRef, title string, now time.Time) (store.Task, error) {
	t := store.Task{
		Title:     strings.TrimSpace(title),
		CreatedAt: now,
		Repeat:    store.RepeatNone,
	}
	if err := t.Validate(); err != nil {
		return store.Task{}, err
	}
	switch r.kind {
	case RefList:
		id := r.id
		t.ListID = &id
	case RefMyDay:
		due := now
		t.DueDate = &due
	}
	return t, nil
}
