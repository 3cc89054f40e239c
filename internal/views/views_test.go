package views

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/focusdo/internal/store"
)

var base = time.Date(2026, 6, 15, 14, 0, 0, 0, time.Local)

func ptr[T any](v T) *T { return &v }

func task(id int64, title string, created time.Duration) store.Task {
	return store.Task{ID: id, Title: title, CreatedAt: base.Add(created)}
}

func ids(tasks []store.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================
// Split / GroupByList
// ============================================================

func TestSplit(t *testing.T) {
	a := task(1, "a", 0)
	b := task(2, "b", 0)
	b.Completed = true
	active, done := Split([]store.Task{a, b})
	if len(active) != 1 || active[0].ID != 1 || len(done) != 1 || done[0].ID != 2 {
		t.Fatalf("active=%v done=%v", ids(active), ids(done))
	}

	active, done = Split(nil)
	if active == nil || done == nil || len(active)+len(done) != 0 {
		t.Fatal("empty input should give empty, non-nil slices")
	}
}

func TestGroupByList(t *testing.T) {
	lists := []store.TaskList{{ID: 1, Name: "Work"}, {ID: 2, Name: "Errands"}}
	tasks := []store.Task{
		{ID: 1, Title: "w", ListID: ptr(int64(1))},
		{ID: 2, Title: "none"},
		{ID: 3, Title: "e", ListID: ptr(int64(2))},
		{ID: 4, Title: "gone", ListID: ptr(int64(99))},
	}
	groups := GroupByList(tasks, lists)

	want := []string{"Errands", "Tasks", "Work"}
	if len(groups) != len(want) {
		t.Fatalf("got %d groups, want %d", len(groups), len(want))
	}
	for i, name := range want {
		if groups[i].Name != name {
			t.Fatalf("group %d = %q, want %q", i, groups[i].Name, name)
		}
	}
	if len(groups[1].Tasks) != 2 {
		t.Fatalf("fallback bucket should hold list-less and unknown-list tasks, got %d", len(groups[1].Tasks))
	}
}

// ============================================================
// BuildTree
// ============================================================

func TestBuildTree(t *testing.T) {
	folders := []store.Folder{{ID: 2, Name: "B", SortOrder: 1}, {ID: 1, Name: "A", SortOrder: 0}}
	lists := []store.TaskList{
		{ID: 10, Name: "a2", FolderID: ptr(int64(1)), SortOrder: 1},
		{ID: 11, Name: "a1", FolderID: ptr(int64(1)), SortOrder: 0},
		{ID: 12, Name: "root", SortOrder: 0},
		{ID: 13, Name: "archived", Archived: true},
		{ID: 14, Name: "lost", FolderID: ptr(int64(9))},
	}
	tree := BuildTree(folders, lists)

	if len(tree.Folders) != 2 || tree.Folders[0].Folder.Name != "A" {
		t.Fatalf("folders out of order: %+v", tree.Folders)
	}
	a := tree.Folders[0].Lists
	if len(a) != 2 || a[0].ID != 11 || a[1].ID != 10 {
		t.Fatalf("folder lists out of order: %+v", a)
	}
	if len(tree.Folders[1].Lists) != 0 {
		t.Fatal("empty folder should have no lists")
	}
	if len(tree.Root) != 1 || tree.Root[0].ID != 12 {
		t.Fatalf("root = %+v", tree.Root)
	}
}

// ============================================================
// Sort
// ============================================================

func sampleTasks() []store.Task {
	d1 := base.Add(24 * time.Hour)
	d2 := base.Add(48 * time.Hour)
	return []store.Task{
		{ID: 1, Title: "banana", CreatedAt: base, DueDate: &d2},
		{ID: 2, Title: "Apple", CreatedAt: base.Add(time.Hour), Flagged: true},
		{ID: 3, Title: "cherry", CreatedAt: base.Add(2 * time.Hour), DueDate: &d1},
		{ID: 4, Title: "apple", CreatedAt: base.Add(3 * time.Hour), DueDate: &d1},
		{ID: 5, Title: "date", CreatedAt: base.Add(3 * time.Hour), Flagged: true},
		{ID: 6, Title: "elder", CreatedAt: base.Add(3 * time.Hour)},
	}
}

func TestSortModes(t *testing.T) {
	tests := []struct {
		opt  SortOption
		want []int64
	}{
		// flagged first, then newest, then higher id
		{SortImportance, []int64{5, 2, 6, 4, 3, 1}},
		// due ascending, equal dues newest first, no due last
		{SortDueDate, []int64{4, 3, 1, 6, 5, 2}},
		// case-insensitive, "apple" ties with "Apple" and is newer
		{SortAlphabetical, []int64{4, 2, 1, 3, 5, 6}},
		{SortCreationDate, []int64{6, 5, 4, 3, 2, 1}},
	}
	for _, tt := range tests {
		got := ids(Sort(sampleTasks(), tt.opt))
		if !equalIDs(got, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.opt, got, tt.want)
		}
	}
}

func TestSortIdempotentAndOrderIndependent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, opt := range SortOptions {
		want := ids(Sort(sampleTasks(), opt))
		for i := 0; i < 20; i++ {
			in := sampleTasks()
			r.Shuffle(len(in), func(a, b int) { in[a], in[b] = in[b], in[a] })
			once := Sort(in, opt)
			twice := Sort(once, opt)
			if !equalIDs(ids(once), want) {
				t.Fatalf("%s: shuffled input sorted to %v, want %v", opt, ids(once), want)
			}
			if !equalIDs(ids(twice), ids(once)) {
				t.Fatalf("%s: sort not idempotent", opt)
			}
		}
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	in := sampleTasks()
	Sort(in, SortAlphabetical)
	if !equalIDs(ids(in), []int64{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("input mutated: %v", ids(in))
	}
}

func TestParseSortOption(t *testing.T) {
	tests := []struct {
		in   string
		want SortOption
	}{
		{"IMPORTANCE", SortImportance},
		{"due_date", SortDueDate},
		{"ALPHABETICAL", SortAlphabetical},
		{"CREATION_DATE", SortCreationDate},
		{"", SortCreationDate},
		{"bogus", SortCreationDate},
	}
	for _, tt := range tests {
		if got := ParseSortOption(tt.in); got != tt.want {
			t.Errorf("ParseSortOption(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	for _, o := range SortOptions {
		if ParseSortOption(o.String()) != o {
			t.Errorf("%v does not survive its own name", o)
		}
	}
}

func TestSortOptionNextCycles(t *testing.T) {
	o := SortImportance
	seen := map[SortOption]bool{}
	for i := 0; i < len(SortOptions); i++ {
		seen[o] = true
		o = o.Next()
	}
	if o != SortImportance || len(seen) != len(SortOptions) {
		t.Fatalf("Next should visit every option once, saw %v", seen)
	}
}

// ============================================================
// Search
// ============================================================

func TestSearchBlankIsEmpty(t *testing.T) {
	lists := []store.TaskList{{ID: 1, Name: "Work"}}
	tasks := sampleTasks()
	for _, q := range []string{"", "   "} {
		if res := Search(q, lists, tasks); !res.Empty() {
			t.Fatalf("Search(%q) should be empty, got %+v", q, res)
		}
	}
}

func TestSearchMatchesExactly(t *testing.T) {
	lists := []store.TaskList{{ID: 1, Name: "Apple pie"}, {ID: 2, Name: "Work"}}
	tasks := sampleTasks()

	for _, q := range []string{"app", "APPLE", "e", "an", "zzz", " a", "pie "} {
		res := Search(q, lists, tasks)
		lq := strings.ToLower(q)

		for _, l := range res.Lists {
			if !strings.Contains(strings.ToLower(l.Name), lq) {
				t.Fatalf("%q: false positive list %q", q, l.Name)
			}
		}
		for _, tk := range res.Tasks {
			if !strings.Contains(strings.ToLower(tk.Title), lq) {
				t.Fatalf("%q: false positive task %q", q, tk.Title)
			}
		}

		wantLists, wantTasks := 0, 0
		for _, l := range lists {
			if strings.Contains(strings.ToLower(l.Name), lq) {
				wantLists++
			}
		}
		for _, tk := range tasks {
			if strings.Contains(strings.ToLower(tk.Title), lq) {
				wantTasks++
			}
		}
		if len(res.Lists) != wantLists || len(res.Tasks) != wantTasks {
			t.Fatalf("%q: got %d lists %d tasks, want %d %d", q, len(res.Lists), len(res.Tasks), wantLists, wantTasks)
		}
	}
}

func TestSearchKeepsSurroundingSpaces(t *testing.T) {
	tasks := []store.Task{{ID: 1, Title: "apple"}, {ID: 2, Title: "big apple"}}
	res := Search(" a", nil, tasks)
	if len(res.Tasks) != 1 || res.Tasks[0].ID != 2 {
		t.Fatalf("Search(\" a\") = %+v, want only \"big apple\"", res.Tasks)
	}
}

// ============================================================
// My Day
// ============================================================

func TestBuildMyDay(t *testing.T) {
	now := time.Date(2026, 6, 15, 14, 0, 0, 0, time.Local)
	start, end := DayBounds(now)

	tasks := []store.Task{
		{ID: 1, Title: "yesterday", DueDate: ptr(start.Add(-time.Second))},
		{ID: 2, Title: "midnight", DueDate: ptr(start)},
		{ID: 3, Title: "late", DueDate: ptr(end)},
		{ID: 4, Title: "tomorrow", DueDate: ptr(end.Add(time.Nanosecond))},
		{ID: 5, Title: "undated"},
		{ID: 6, Title: "done overdue", DueDate: ptr(start.Add(-time.Hour)), Completed: true},
	}
	md := BuildMyDay(now, tasks)

	if !equalIDs(ids(md.Overdue), []int64{1}) {
		t.Fatalf("overdue = %v", ids(md.Overdue))
	}
	if !equalIDs(ids(md.Today), []int64{2, 3}) {
		t.Fatalf("today = %v", ids(md.Today))
	}
	if !equalIDs(ids(md.All()), []int64{1, 2, 3}) {
		t.Fatalf("all = %v", ids(md.All()))
	}
}

func TestDayBounds(t *testing.T) {
	now := time.Date(2026, 2, 28, 23, 59, 0, 0, time.Local)
	start, end := DayBounds(now)
	if start.Day() != 28 || start.Hour() != 0 {
		t.Fatalf("start = %v", start)
	}
	if end.Day() != 28 || end.Hour() != 23 || end.Minute() != 59 || end.Second() != 59 {
		t.Fatalf("end = %v", end)
	}
}

// ============================================================
// ListRef
// ============================================================

func TestListRefName(t *testing.T) {
	lists := []store.TaskList{{ID: 3, Name: "Home"}}
	tests := []struct {
		ref  ListRef
		want string
	}{
		{Real(3), "Home"},
		{Real(4), "Tasks"},
		{CompletedRef, "Completed"},
		{MyDayRef, "My Day"},
	}
	for _, tt := range tests {
		if got := tt.ref.Name(lists, "Tasks"); got != tt.want {
			t.Errorf("%v: name = %q, want %q", tt.ref, got, tt.want)
		}
	}
	if id, ok := Real(3).ID(); !ok || id != 3 {
		t.Fatal("Real ref should expose its id")
	}
	if _, ok := CompletedRef.ID(); ok {
		t.Fatal("smart list should not expose an id")
	}
}

func TestTasksFor(t *testing.T) {
	now := base
	today := now.Add(time.Hour)
	tasks := []store.Task{
		{ID: 1, Title: "in list", ListID: ptr(int64(7))},
		{ID: 2, Title: "done", Completed: true, ListID: ptr(int64(7))},
		{ID: 3, Title: "due", DueDate: &today},
		{ID: 4, Title: "other", ListID: ptr(int64(8))},
	}
	if got := ids(TasksFor(Real(7), now, tasks)); !equalIDs(got, []int64{1, 2}) {
		t.Fatalf("real = %v", got)
	}
	if got := ids(TasksFor(CompletedRef, now, tasks)); !equalIDs(got, []int64{2}) {
		t.Fatalf("completed = %v", got)
	}
	if got := ids(TasksFor(MyDayRef, now, tasks)); !equalIDs(got, []int64{3}) {
		t.Fatalf("my day = %v", got)
	}
}

func TestNewTaskFor(t *testing.T) {
	now := base

	tk, err := NewTaskFor(Real(5), " buy milk ", now)
	if err != nil {
		t.Fatal(err)
	}
	if tk.Title != "buy milk" || tk.ListID == nil || *tk.ListID != 5 || tk.DueDate != nil {
		t.Fatalf("real = %+v", tk)
	}

	tk, _ = NewTaskFor(CompletedRef, "x", now)
	if tk.ListID != nil || tk.DueDate != nil || tk.Completed {
		t.Fatalf("completed = %+v", tk)
	}

	tk, _ = NewTaskFor(MyDayRef, "x", now)
	if tk.ListID != nil || tk.DueDate == nil || !tk.DueDate.Equal(now) {
		t.Fatalf("my day = %+v", tk)
	}

	if _, err := NewTaskFor(MyDayRef, "  ", now); !errors.Is(err, store.ErrEmptyTitle) {
		t.Fatalf("err = %v, want ErrEmptyTitle", err)
	}
}
