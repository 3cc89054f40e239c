package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/focusdo/internal/store"
	"github.com/sadopc/focusdo/internal/views"
)

type listsMode int

const (
	modeBrowse listsMode = iota
	modeTasks
	modeArchive
	modeSearch
)

type rowKind int

const (
	rowCompleted rowKind = iota
	rowFolder
	rowList
)

type treeRow struct {
	kind     rowKind
	id       int64
	name     string
	indent   bool
	open     int
	folderID *int64
}

type listsModel struct {
	env    *env
	width  int
	height int

	data appData
	mode listsMode
	back listsMode // mode to return to from the task view

	cursor        int
	taskCursor    int
	archiveCursor int
	searchCursor  int

	ref    views.ListRef
	search textinput.Model

	formActive bool
	form       *huh.Form
	formType   string // "task", "list", "folder", "rename_list", "rename_folder", "delete_list", "delete_folder"

	// Form field pointers (survive value copies)
	taskForm    taskForm
	editing     store.Task
	formName    *string
	formFolder  *int64
	formConfirm *bool
	target      int64
}

func newListsModel(e *env) listsModel {
	name, folder, confirm := "", int64(0), false
	ti := textinput.New()
	ti.Placeholder = "Search lists and tasks"
	ti.Prompt = "/ "
	return listsModel{
		env:         e,
		search:      ti,
		taskForm:    newTaskForm(),
		formName:    &name,
		formFolder:  &folder,
		formConfirm: &confirm,
	}
}

func (l *listsModel) setSize(w, h int) {
	l.width = w
	l.height = h
	l.search.Width = max(w-12, 10)
}

func (l *listsModel) setData(data appData) {
	l.data = data
	// an open stored list that disappeared falls back to the tree
	if l.mode == modeTasks {
		if id, ok := l.ref.ID(); ok && !l.listExists(id) {
			l.mode = modeBrowse
		}
	}
	l.cursor = clamp(l.cursor, len(l.rows()))
	l.taskCursor = clamp(l.taskCursor, len(l.tasks()))
	l.archiveCursor = clamp(l.archiveCursor, len(l.data.archived))
}

// capturing reports whether keys should bypass the global bindings.
func (l listsModel) capturing() bool {
	return l.formActive || l.mode == modeSearch
}

func (l listsModel) allLists() []store.TaskList {
	return append(append([]store.TaskList{}, l.data.lists...), l.data.archived...)
}

func (l listsModel) listExists(id int64) bool {
	for _, x := range l.allLists() {
		if x.ID == id {
			return true
		}
	}
	return false
}

func (l listsModel) rows() []treeRow {
	open := make(map[int64]int)
	completed := 0
	for _, t := range l.data.tasks {
		if t.Completed {
			completed++
			continue
		}
		if t.ListID != nil {
			open[*t.ListID]++
		}
	}

	tree := views.BuildTree(l.data.folders, l.data.lists)
	rows := []treeRow{{kind: rowCompleted, name: "Completed", open: completed}}
	for _, f := range tree.Folders {
		rows = append(rows, treeRow{kind: rowFolder, id: f.Folder.ID, name: f.Folder.Name})
		for _, x := range f.Lists {
			rows = append(rows, treeRow{kind: rowList, id: x.ID, name: x.Name, indent: true, open: open[x.ID], folderID: x.FolderID})
		}
	}
	for _, x := range tree.Root {
		rows = append(rows, treeRow{kind: rowList, id: x.ID, name: x.Name, open: open[x.ID]})
	}
	return rows
}

func (l listsModel) selectedRow() (treeRow, bool) {
	rows := l.rows()
	if l.cursor < len(rows) {
		return rows[l.cursor], true
	}
	return treeRow{}, false
}

// tasks returns the open view's tasks, incomplete first, each part sorted.
func (l listsModel) tasks() []store.Task {
	ts := views.Sort(views.TasksFor(l.ref, l.env.Now(), l.data.tasks), l.data.prefs.sort)
	active, done := views.Split(ts)
	return append(active, done...)
}

func (l listsModel) searchResult() views.SearchResult {
	return views.Search(l.search.Value(), l.data.lists, l.data.tasks)
}

func (l listsModel) update(msg tea.Msg) (listsModel, tea.Cmd) {
	if l.formActive && l.form != nil {
		return l.updateForm(msg)
	}

	if l.mode == modeSearch {
		return l.updateSearch(msg)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return l, nil
	}
	switch l.mode {
	case modeTasks:
		return l.updateTaskView(km)
	case modeArchive:
		return l.updateArchive(km)
	}
	return l.updateBrowse(km)
}

func (l listsModel) updateBrowse(msg tea.KeyMsg) (listsModel, tea.Cmd) {
	row, hasRow := l.selectedRow()
	switch {
	case key.Matches(msg, keys.Up):
		if l.cursor > 0 {
			l.cursor--
		}
	case key.Matches(msg, keys.Down):
		if l.cursor < len(l.rows())-1 {
			l.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if !hasRow {
			return l, nil
		}
		switch row.kind {
		case rowCompleted:
			return l.open(views.CompletedRef, modeBrowse), nil
		case rowList:
			return l.open(views.Real(row.id), modeBrowse), nil
		}
	case key.Matches(msg, keys.New):
		var folder int64
		if hasRow && row.kind == rowFolder {
			folder = row.id
		} else if hasRow && row.folderID != nil {
			folder = *row.folderID
		}
		return l.showListForm(folder)
	case key.Matches(msg, keys.NewFolder):
		return l.showNameForm("folder", 0, "")
	case key.Matches(msg, keys.Rename):
		if hasRow && row.kind == rowList {
			return l.showNameForm("rename_list", row.id, row.name)
		}
		if hasRow && row.kind == rowFolder {
			return l.showNameForm("rename_folder", row.id, row.name)
		}
	case key.Matches(msg, keys.Archive):
		if hasRow && row.kind == rowList {
			return l, l.env.do("Archived "+row.name, func(ctx context.Context) error {
				return l.env.Store.ArchiveList(ctx, row.id)
			})
		}
	case key.Matches(msg, keys.Duplicate):
		if hasRow && row.kind == rowList {
			return l, l.env.do("Duplicated "+row.name, func(ctx context.Context) error {
				_, err := l.env.Store.DuplicateList(ctx, row.id)
				return err
			})
		}
	case key.Matches(msg, keys.Delete):
		if hasRow && row.kind == rowList {
			return l.showConfirm("delete_list", row.id, fmt.Sprintf("Delete %q and all its tasks?", row.name))
		}
		if hasRow && row.kind == rowFolder {
			return l.showConfirm("delete_folder", row.id, fmt.Sprintf("Delete folder %q with its lists and tasks?", row.name))
		}
	case key.Matches(msg, keys.MoveUp), key.Matches(msg, keys.MoveDown):
		delta := 1
		if key.Matches(msg, keys.MoveUp) {
			delta = -1
		}
		if hasRow && row.kind == rowList {
			return l, l.env.do("", func(ctx context.Context) error {
				return l.env.Store.MoveList(ctx, row.id, delta)
			})
		}
		if hasRow && row.kind == rowFolder {
			return l, l.env.do("", func(ctx context.Context) error {
				return l.env.Store.MoveFolder(ctx, row.id, delta)
			})
		}
	case key.Matches(msg, keys.ShowArchive):
		l.mode = modeArchive
		l.archiveCursor = 0
	case key.Matches(msg, keys.Search):
		l.mode = modeSearch
		l.searchCursor = 0
		l.search.SetValue("")
		return l, l.search.Focus()
	}
	return l, nil
}

func (l listsModel) open(ref views.ListRef, from listsMode) listsModel {
	l.ref = ref
	l.back = from
	l.mode = modeTasks
	l.taskCursor = 0
	return l
}

func (l listsModel) updateTaskView(msg tea.KeyMsg) (listsModel, tea.Cmd) {
	tasks := l.tasks()
	var current store.Task
	hasTask := l.taskCursor < len(tasks)
	if hasTask {
		current = tasks[l.taskCursor]
	}

	switch {
	case key.Matches(msg, keys.Back):
		l.mode = l.back
		return l, nil
	case key.Matches(msg, keys.Up):
		if l.taskCursor > 0 {
			l.taskCursor--
		}
	case key.Matches(msg, keys.Down):
		if l.taskCursor < len(tasks)-1 {
			l.taskCursor++
		}
	case key.Matches(msg, keys.New):
		return l.showTaskForm(store.Task{})
	case key.Matches(msg, keys.Enter):
		if hasTask {
			return l.showTaskForm(current)
		}
	case key.Matches(msg, keys.Toggle):
		if hasTask {
			return l, toggleTask(l.env, current)
		}
	case key.Matches(msg, keys.Flag):
		if hasTask {
			return l, l.env.do("", func(ctx context.Context) error {
				_, err := l.env.Store.ToggleFlag(ctx, current.ID)
				return err
			})
		}
	case key.Matches(msg, keys.Delete):
		if hasTask {
			return l, deleteTask(l.env, current)
		}
	case key.Matches(msg, keys.Sort):
		next := l.data.prefs.sort.Next()
		return l, l.env.do("Sorted by "+next.Label(), func(ctx context.Context) error {
			return l.env.Prefs.SetSortOption(ctx, next.String())
		})
	}
	return l, nil
}

func (l listsModel) updateArchive(msg tea.KeyMsg) (listsModel, tea.Cmd) {
	archived := l.data.archived
	var current store.TaskList
	has := l.archiveCursor < len(archived)
	if has {
		current = archived[l.archiveCursor]
	}

	switch {
	case key.Matches(msg, keys.Back):
		l.mode = modeBrowse
	case key.Matches(msg, keys.Up):
		if l.archiveCursor > 0 {
			l.archiveCursor--
		}
	case key.Matches(msg, keys.Down):
		if l.archiveCursor < len(archived)-1 {
			l.archiveCursor++
		}
	case key.Matches(msg, keys.Enter):
		if has {
			return l.open(views.Real(current.ID), modeArchive), nil
		}
	case key.Matches(msg, keys.Unarchive):
		if has {
			return l, l.env.do("Restored "+current.Name, func(ctx context.Context) error {
				return l.env.Store.UnarchiveList(ctx, current.ID)
			})
		}
	case key.Matches(msg, keys.Delete):
		if has {
			return l.showConfirm("delete_list", current.ID, fmt.Sprintf("Delete %q forever?", current.Name))
		}
	}
	return l, nil
}

func (l listsModel) updateSearch(msg tea.Msg) (listsModel, tea.Cmd) {
	res := l.searchResult()
	total := len(res.Lists) + len(res.Tasks)

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyEsc:
			l.mode = modeBrowse
			l.search.Blur()
			return l, nil
		case tea.KeyUp:
			if l.searchCursor > 0 {
				l.searchCursor--
			}
			return l, nil
		case tea.KeyDown:
			if l.searchCursor < total-1 {
				l.searchCursor++
			}
			return l, nil
		case tea.KeyEnter:
			if l.searchCursor < len(res.Lists) {
				l.search.Blur()
				return l.open(views.Real(res.Lists[l.searchCursor].ID), modeBrowse), nil
			}
			if i := l.searchCursor - len(res.Lists); i < len(res.Tasks) {
				l.search.Blur()
				l.mode = modeBrowse
				return l.showTaskForm(res.Tasks[i])
			}
			return l, nil
		}
	}

	var cmd tea.Cmd
	l.search, cmd = l.search.Update(msg)
	res = l.searchResult()
	l.searchCursor = clamp(l.searchCursor, len(res.Lists)+len(res.Tasks))
	return l, cmd
}

// --- Forms ---

func (l listsModel) showTaskForm(t store.Task) (listsModel, tea.Cmd) {
	l.editing = t
	l.formType = "task"
	l.form = l.taskForm.build(t)
	l.formActive = true
	return l, l.form.Init()
}

func (l listsModel) showListForm(folder int64) (listsModel, tea.Cmd) {
	*l.formName = ""
	*l.formFolder = folder
	l.formType = "list"

	options := []huh.Option[int64]{huh.NewOption("(no folder)", int64(0))}
	for _, f := range l.data.folders {
		options = append(options, huh.NewOption(f.Name, f.ID))
	}

	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("List Name").Value(l.formName).Validate(requireText("name")),
			huh.NewSelect[int64]().Title("Folder").Options(options...).Value(l.formFolder),
		),
	).WithShowHelp(true).WithShowErrors(true)

	l.formActive = true
	return l, l.form.Init()
}

func (l listsModel) showNameForm(formType string, target int64, current string) (listsModel, tea.Cmd) {
	*l.formName = current
	l.formType = formType
	l.target = target

	title := "Folder Name"
	if formType == "rename_list" {
		title = "List Name"
	}
	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title(title).Value(l.formName).Validate(requireText("name")),
		),
	).WithShowHelp(true).WithShowErrors(true)

	l.formActive = true
	return l, l.form.Init()
}

func (l listsModel) showConfirm(formType string, target int64, question string) (listsModel, tea.Cmd) {
	*l.formConfirm = false
	l.formType = formType
	l.target = target

	l.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title(question).Affirmative("Delete").Negative("Cancel").Value(l.formConfirm),
		),
	).WithShowHelp(true)

	l.formActive = true
	return l, l.form.Init()
}

func (l listsModel) updateForm(msg tea.Msg) (listsModel, tea.Cmd) {
	// Check for escape to cancel form
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		l.formActive = false
		l.form = nil
		return l, nil
	}

	form, cmd := l.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		l.form = f
	}

	if l.form.State != huh.StateCompleted {
		return l, cmd
	}
	l.formActive = false

	name := strings.TrimSpace(*l.formName)
	target := l.target
	s := l.env.Store
	switch l.formType {
	case "task":
		return l, saveTask(l.env, l.taskForm, l.editing, l.ref)
	case "list":
		list := store.TaskList{Name: name}
		if *l.formFolder != 0 {
			folder := *l.formFolder
			list.FolderID = &folder
		}
		return l, l.env.do("Created list "+name, func(ctx context.Context) error {
			_, err := s.CreateList(ctx, list)
			return err
		})
	case "folder":
		return l, l.env.do("Created folder "+name, func(ctx context.Context) error {
			_, err := s.CreateFolder(ctx, name)
			return err
		})
	case "rename_list":
		return l, l.env.do("Renamed to "+name, func(ctx context.Context) error {
			return s.RenameList(ctx, target, name)
		})
	case "rename_folder":
		return l, l.env.do("Renamed to "+name, func(ctx context.Context) error {
			return s.RenameFolder(ctx, target, name)
		})
	case "delete_list":
		if !*l.formConfirm {
			return l, nil
		}
		return l, l.env.do("List deleted", func(ctx context.Context) error {
			return s.DeleteListWithTasks(ctx, target)
		})
	case "delete_folder":
		if !*l.formConfirm {
			return l, nil
		}
		return l, l.env.do("Folder deleted", func(ctx context.Context) error {
			return s.DeleteFolder(ctx, target)
		})
	}
	return l, nil
}

// --- View ---

func (l listsModel) view() string {
	w := l.width - 4

	if l.formActive && l.form != nil {
		titles := map[string]string{
			"task":          "New Task",
			"list":          "New List",
			"folder":        "New Folder",
			"rename_list":   "Rename List",
			"rename_folder": "Rename Folder",
			"delete_list":   "Delete List",
			"delete_folder": "Delete Folder",
		}
		title := titles[l.formType]
		if l.formType == "task" && l.editing.ID != 0 {
			title = "Edit Task"
		}
		content := lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", l.form.View())
		return activePanelStyle.Width(w).Render(content)
	}

	switch l.mode {
	case modeTasks:
		return l.renderTaskView()
	case modeArchive:
		return l.renderArchive()
	case modeSearch:
		return l.renderSearch()
	}
	return l.renderTree()
}

func (l listsModel) renderTree() string {
	w := l.width - 4
	rows := []string{titleStyle.Render("Lists"), ""}

	tree := l.rows()
	for i, r := range tree {
		cursor := "  "
		style := normalItemStyle
		if i == l.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		switch r.kind {
		case rowCompleted:
			rows = append(rows, style.Render(cursor+"✓ "+r.name)+mutedStyle.Render(fmt.Sprintf(" %d", r.open)))
			rows = append(rows, "")
		case rowFolder:
			if i != l.cursor {
				style = folderStyle
			}
			rows = append(rows, style.Render(cursor+"▸ "+r.name))
		case rowList:
			indent := ""
			if r.indent {
				indent = "   "
			}
			count := ""
			if r.open > 0 {
				count = mutedStyle.Render(fmt.Sprintf(" %d", r.open))
			}
			rows = append(rows, style.Render(cursor+indent+"• "+r.name)+count)
		}
	}
	if len(tree) == 1 {
		rows = append(rows, mutedStyle.Render("No lists yet. Press n to create one."))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: list  N: folder  r: rename  a: archive  c: duplicate  d: delete  J/K: move  A: archived  /: search"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (l listsModel) renderTaskView() string {
	w := l.width - 4
	now := l.env.Now()
	name := l.ref.Name(l.allLists(), views.DefaultGroup)
	title := titleStyle.Render(name) + mutedStyle.Render("  sorted by "+l.data.prefs.sort.Label())

	tasks := l.tasks()
	rows := []string{title, ""}
	if len(tasks) == 0 {
		rows = append(rows, mutedStyle.Render("No tasks. Press n to add one."))
	}

	showList := l.ref.Kind() != views.RefList
	doneHeader := false
	for i, t := range tasks {
		if t.Completed && !doneHeader && l.ref.Kind() != views.RefCompleted {
			rows = append(rows, "", mutedStyle.Render("Completed"))
			doneHeader = true
		}
		list := ""
		if showList && t.ListID != nil {
			list = views.Real(*t.ListID).Name(l.allLists(), "")
		}
		rows = append(rows, taskRow(t, i == l.taskCursor, now, list))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  enter: edit  space: done  f: flag  d: delete  o: sort  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (l listsModel) renderArchive() string {
	w := l.width - 4
	rows := []string{titleStyle.Render("Archived Lists"), ""}

	if len(l.data.archived) == 0 {
		rows = append(rows, mutedStyle.Render("Nothing archived."))
	}
	for i, x := range l.data.archived {
		cursor := "  "
		style := normalItemStyle
		if i == l.archiveCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+x.Name))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: open  u: unarchive  d: delete forever  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (l listsModel) renderSearch() string {
	w := l.width - 4
	rows := []string{titleStyle.Render("Search"), "", l.search.View(), ""}

	res := l.searchResult()
	if strings.TrimSpace(l.search.Value()) != "" && res.Empty() {
		rows = append(rows, mutedStyle.Render("No matches."))
	}

	i := 0
	if len(res.Lists) > 0 {
		rows = append(rows, highlightStyle.Render("Lists"))
		for _, x := range res.Lists {
			cursor, style := "  ", normalItemStyle
			if i == l.searchCursor {
				cursor, style = "> ", selectedItemStyle
			}
			rows = append(rows, style.Render(cursor+"• "+x.Name))
			i++
		}
		rows = append(rows, "")
	}
	if len(res.Tasks) > 0 {
		rows = append(rows, highlightStyle.Render("Tasks"))
		now := l.env.Now()
		for _, t := range res.Tasks {
			list := ""
			if t.ListID != nil {
				list = views.Real(*t.ListID).Name(l.allLists(), "")
			}
			rows = append(rows, taskRow(t, i == l.searchCursor, now, list))
			i++
		}
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  ↑/↓: select  enter: open  esc: close"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
