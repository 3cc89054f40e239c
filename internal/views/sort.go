package views

import (
	"slices"
	"strings"

	"github.com/sadopc/focusdo/internal/store"
)

// SortOption selects the order tasks are shown in within a list.
type SortOption int

const (
	SortCreationDate SortOption = iota
	SortImportance
	SortDueDate
	SortAlphabetical
)

var sortNames = map[SortOption]string{
	SortCreationDate: "CREATION_DATE",
	SortImportance:   "IMPORTANCE",
	SortDueDate:      "DUE_DATE",
	SortAlphabetical: "ALPHABETICAL",
}

// SortOptions lists every option in menu order.
var SortOptions = []SortOption{SortImportance, SortDueDate, SortAlphabetical, SortCreationDate}

func (o SortOption) String() string {
	if n, ok := sortNames[o]; ok {
		return n
	}
	return sortNames[SortCreationDate]
}

// Label is the human form shown in the UI.
func (o SortOption) Label() string {
	switch o {
	case SortImportance:
		return "Importance"
	case SortDueDate:
		return "Due date"
	case SortAlphabetical:
		return "Alphabetical"
	}
	return "Creation date"
}

// ParseSortOption maps a stored name back to an option; unknown names fall
// back to SortCreationDate.
func ParseSortOption(name string) SortOption {
	for o, n := range sortNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return o
		}
	}
	return SortCreationDate
}

// Next cycles through SortOptions.
func (o SortOption) Next() SortOption {
	i := slices.Index(SortOptions, o)
	return SortOptions[(i+1)%len(SortOptions)]
}

// Sort returns a sorted copy of tasks. Every mode is a total order: ties fall
// through to newest creation time and finally to descending id.
func Sort(tasks []store.Task, opt SortOption) []store.Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b store.Task) int {
		if c := compareBy(a, b, opt); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmpInt64(b.ID, a.ID)
	})
	return out
}

func compareBy(a, b store.Task, opt SortOption) int {
	switch opt {
	case SortImportance:
		switch {
		case a.Flagged && !b.Flagged:
			return -1
		case !a.Flagged && b.Flagged:
			return 1
		}
	case SortDueDate:
		switch {
		case a.DueDate == nil && b.DueDate == nil:
			return 0
		case a.DueDate == nil:
			return 1
		case b.DueDate == nil:
			return -1
		}
		return a.DueDate.Compare(*b.DueDate)
	case SortAlphabetical:
		return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
