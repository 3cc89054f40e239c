// Package views derives what the UI shows from raw store snapshots. Every
// function here is pure: same input, same output.
package views

import (
	"slices"
	"strings"
	"time"

	"github.com/sadopc/focusdo/internal/store"
)

// DefaultGroup names completed tasks that belong to no list.
const DefaultGroup = "Tasks"

// Split partitions tasks by completion, keeping input order.
func Split(tasks []store.Task) (active, completed []store.Task) {
	active = []store.Task{}
	completed = []store.Task{}
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			active = append(active, t)
		}
	}
	return active, completed
}

// Group is a named bucket of tasks.
type Group struct {
	Name  string
	Tasks []store.Task
}

// GroupByList buckets tasks by owning list name, buckets ordered by name.
// Tasks without a list, or whose list is unknown, go to DefaultGroup.
func GroupByList(tasks []store.Task, lists []store.TaskList) []Group {
	names := make(map[int64]string, len(lists))
	for _, l := range lists {
		names[l.ID] = l.Name
	}
	buckets := make(map[string][]store.Task)
	for _, t := range tasks {
		name := DefaultGroup
		if t.ListID != nil {
			if n, ok := names[*t.ListID]; ok {
				name = n
			}
		}
		buckets[name] = append(buckets[name], t)
	}
	groups := make([]Group, 0, len(buckets))
	for name, ts := range buckets {
		groups = append(groups, Group{Name: name, Tasks: ts})
	}
	slices.SortFunc(groups, func(a, b Group) int { return strings.Compare(a.Name, b.Name) })
	return groups
}

// FolderNode is a folder with its active lists in sort order.
type FolderNode struct {
	Folder store.Folder
	Lists  []store.TaskList
}

// Tree is the browse hierarchy: folders first, then lists outside any folder.
type Tree struct {
	Folders []FolderNode
	Root    []store.TaskList
}

// BuildTree arranges active lists under their folders. Archived lists and
// lists pointing at unknown folders are left out.
func BuildTree(folders []store.Folder, lists []store.TaskList) Tree {
	byOrder := func(a, b store.TaskList) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return cmpInt64(a.ID, b.ID)
	}

	fs := slices.Clone(folders)
	slices.SortStableFunc(fs, func(a, b store.Folder) int {
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		return cmpInt64(a.ID, b.ID)
	})

	tree := Tree{Folders: make([]FolderNode, 0, len(fs)), Root: []store.TaskList{}}
	index := make(map[int64]int, len(fs))
	for i, f := range fs {
		index[f.ID] = i
		tree.Folders = append(tree.Folders, FolderNode{Folder: f, Lists: []store.TaskList{}})
	}
	for _, l := range lists {
		if l.Archived {
			continue
		}
		if l.FolderID == nil {
			tree.Root = append(tree.Root, l)
			continue
		}
		if i, ok := index[*l.FolderID]; ok {
			tree.Folders[i].Lists = append(tree.Folders[i].Lists, l)
		}
	}
	for i := range tree.Folders {
		slices.SortStableFunc(tree.Folders[i].Lists, byOrder)
	}
	slices.SortStableFunc(tree.Root, byOrder)
	return tree
}

// SearchResult holds the lists and tasks matching a query.
type SearchResult struct {
	Lists []store.TaskList
	Tasks []store.Task
}

// Empty reports whether nothing matched.
func (r SearchResult) Empty() bool {
	return len(r.Lists) == 0 && len(r.Tasks) == 0
}

// Search matches query case-insensitively as a substring of list names and
// task titles. A blank query matches nothing.
func Search(query string, lists []store.TaskList, tasks []store.Task) SearchResult {
	res := SearchResult{Lists: []store.TaskList{}, Tasks: []store.Task{}}
	if strings.TrimSpace(query) == "" {
		return res
	}
	q := strings.ToLower(query)
	for _, l := range lists {
		if strings.Contains(strings.ToLower(l.Name), q) {
			res.Lists = append(res.Lists, l)
		}
	}
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.Title), q) {
			res.Tasks = append(res.Tasks, t)
		}
	}
	return res
}

// DayBounds returns the first and last instant of the local day containing now.
func DayBounds(now time.Time) (start, end time.Time) {
	start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end = start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// MyDay holds the incomplete tasks needing attention today.
type MyDay struct {
	Overdue []store.Task
	Today   []store.Task
}

// BuildMyDay buckets incomplete tasks by due date relative to now's local day.
// Tasks without a due date appear in neither bucket.
func BuildMyDay(now time.Time, tasks []store.Task) MyDay {
	start, end := DayBounds(now)
	md := MyDay{Overdue: []store.Task{}, Today: []store.Task{}}
	for _, t := range tasks {
		if t.Completed || t.DueDate == nil {
			continue
		}
		due := *t.DueDate
		switch {
		case due.Before(start):
			md.Overdue = append(md.Overdue, t)
		case !due.After(end):
			md.Today = append(md.Today, t)
		}
	}
	return md
}

// All returns overdue tasks followed by today's.
func (m MyDay) All() []store.Task {
	return append(slices.Clone(m.Overdue), m.Today...)
}
