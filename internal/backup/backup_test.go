package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/focusdo/internal/store"
)

var ctx = context.Background()

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2026, 6, 15, 9, 30, 0, 0, time.Local)

// seed fills s with one of everything and returns the list inside the folder.
func seed(t *testing.T, s *store.Store) int64 {
	t.Helper()
	if err := store.NewPrefs(s).SetUser(ctx, "Ada", ""); err != nil {
		t.Fatal(err)
	}
	fid, err := s.CreateFolder(ctx, "Work")
	if err != nil {
		t.Fatal(err)
	}
	inFolder, err := s.CreateList(ctx, store.TaskList{Name: "Reports", FolderID: &fid})
	if err != nil {
		t.Fatal(err)
	}
	archived, err := s.CreateList(ctx, store.TaskList{Name: "Old"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ArchiveList(ctx, archived); err != nil {
		t.Fatal(err)
	}

	due := base.Add(24 * time.Hour)
	done := base.Add(time.Hour)
	tasks := []store.Task{
		{Title: "Quarterly", Description: "numbers", Flagged: true, Priority: 2, DueDate: &due, CreatedAt: base, ListID: &inFolder, Repeat: store.RepeatMonthly},
		{Title: "Shipped", Completed: true, CompletedAt: &done, CreatedAt: base, ListID: &archived},
		{Title: "Loose", CreatedAt: base},
	}
	for _, tk := range tasks {
		if _, err := s.AddTask(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.AppendFocusSession(ctx, store.FocusSession{Timestamp: base, DurationMinutes: 25}); err != nil {
		t.Fatal(err)
	}
	return inFolder
}

// ============================================================
// Document
// ============================================================

func TestExportShape(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	svc := NewService(s, nil)

	doc, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if doc.Version != Version {
		t.Fatalf("version = %d", doc.Version)
	}
	if doc.UserName == nil || *doc.UserName != "Ada" || doc.UserEmail != nil {
		t.Fatalf("user = %v / %v", doc.UserName, doc.UserEmail)
	}
	if len(doc.Folders) != 1 || len(doc.Lists) != 2 || len(doc.Todos) != 3 || len(doc.FocusSessions) != 1 {
		t.Fatalf("counts: folders=%d lists=%d todos=%d sessions=%d",
			len(doc.Folders), len(doc.Lists), len(doc.Todos), len(doc.FocusSessions))
	}

	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"userName", "userEmail", "folders", "lists", "todos", "focusSessions"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q", key)
		}
	}
	todo := raw["todos"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "title", "description", "isCompleted", "isFlagged", "priority", "dueDate", "createdAt", "completedAt", "listId", "repeatMode"} {
		if _, ok := todo[key]; !ok {
			t.Errorf("todo missing key %q", key)
		}
	}
}

func TestEmptyDescriptionIsNull(t *testing.T) {
	doc := FromDataset(store.Dataset{Tasks: []store.Task{{ID: 1, Title: "x", CreatedAt: base}}})
	if doc.Todos[0].Description != nil {
		t.Fatal("empty description should encode as null")
	}
	if doc.Todos[0].RepeatMode != "NONE" {
		t.Fatalf("repeat = %q", doc.Todos[0].RepeatMode)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"no version", `{"userName":null,"folders":[],"lists":[],"todos":[],"focusSessions":[]}`, nil},
		{"version 1", `{"version":1,"todos":[]}`, nil},
		{"newer version", `{"version":2}`, ErrUnsupportedVersion},
		{"garbage", `not json`, ErrMalformed},
		{"wrong type", `{"todos":"nope"}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(strings.NewReader(tt.in))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if doc.Version != 1 {
				t.Fatalf("version = %d, want 1", doc.Version)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local))
	if got != "focusdo_backup_20260102_030405.json" {
		t.Fatalf("FileName = %q", got)
	}
}

// ============================================================
// Round trip
// ============================================================

func TestRoundTrip(t *testing.T) {
	src := newTestStore(t)
	listID := seed(t, src)
	svc := NewService(src, nil)
	svc.now = func() time.Time { return base }

	path, err := svc.WriteFile(ctx, t.TempDir())
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Base(path) != FileName(base) {
		t.Fatalf("path = %s", path)
	}

	dst := newTestStore(t)
	if _, err := dst.AddTask(ctx, store.Task{Title: "will be replaced"}); err != nil {
		t.Fatal(err)
	}
	if err := NewService(dst, nil).Restore(ctx, path); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	want, _ := src.Dump(ctx)
	got, err := dst.Dump(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.UserName != want.UserName || got.UserEmail != want.UserEmail {
		t.Fatalf("user = %q/%q", got.UserName, got.UserEmail)
	}
	if len(got.Folders) != len(want.Folders) || len(got.Lists) != len(want.Lists) ||
		len(got.Tasks) != len(want.Tasks) || len(got.Sessions) != len(want.Sessions) {
		t.Fatalf("counts differ: got %d/%d/%d/%d", len(got.Folders), len(got.Lists), len(got.Tasks), len(got.Sessions))
	}
	for i, w := range want.Tasks {
		g := got.Tasks[i]
		if g.ID != w.ID || g.Title != w.Title || g.Description != w.Description ||
			g.Completed != w.Completed || g.Flagged != w.Flagged || g.Priority != w.Priority ||
			!g.CreatedAt.Equal(w.CreatedAt) || g.Repeat != w.Repeat {
			t.Errorf("task %d: got %+v, want %+v", i, g, w)
		}
	}

	l, err := dst.GetList(ctx, listID)
	if err != nil {
		t.Fatal(err)
	}
	if l.FolderID == nil || *l.FolderID != want.Folders[0].ID {
		t.Fatalf("list lost its folder: %+v", l)
	}
	total, _ := dst.TotalFocusMinutes(ctx)
	if total != 25 {
		t.Fatalf("total minutes = %d", total)
	}
}

func TestRestoreMalformedKeepsData(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"todos": [`), 0o644); err != nil {
		t.Fatal(err)
	}

	err := NewService(s, nil).Restore(ctx, path)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	tasks, _ := s.ListTasks(ctx)
	if len(tasks) != 3 {
		t.Fatalf("tasks after failed restore = %d, want 3", len(tasks))
	}
}

func TestRestoreInvalidEntityRollsBack(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	doc := Document{Todos: []todoJSON{{ID: 1, Title: "  "}}}

	if err := NewService(s, nil).Import(ctx, doc); !errors.Is(err, store.ErrEmptyTitle) {
		t.Fatalf("err = %v, want ErrEmptyTitle", err)
	}
	tasks, _ := s.ListTasks(ctx)
	if len(tasks) != 3 {
		t.Fatalf("tasks after rolled back import = %d, want 3", len(tasks))
	}
}

func TestRestoreMissingFile(t *testing.T) {
	s := newTestStore(t)
	err := NewService(s, nil).Restore(ctx, filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, ErrUnreadable) {
		t.Fatalf("err = %v, want ErrUnreadable", err)
	}
}

func TestWriteFileUnwritable(t *testing.T) {
	s := newTestStore(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewService(s, nil).WriteFile(ctx, filepath.Join(blocker, "sub"))
	if !errors.Is(err, ErrUnwritable) {
		t.Fatalf("err = %v, want ErrUnwritable", err)
	}
}

// ============================================================
// CSV
// ============================================================

func TestWriteTasksCSV(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	tasks, _ := s.ListTasks(ctx)
	lists, _ := s.AllLists(ctx)
	path := filepath.Join(t.TempDir(), "tasks.csv")

	if err := WriteTasksCSV(path, tasks, lists); err != nil {
		t.Fatalf("WriteTasksCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(records))
	}
	if records[0][0] != "ID" || records[0][2] != "List" {
		t.Fatalf("header = %v", records[0])
	}
	byTitle := map[string][]string{}
	for _, r := range records[1:] {
		byTitle[r[1]] = r
	}
	if byTitle["Quarterly"][2] != "Reports" || byTitle["Loose"][2] != "Tasks" || byTitle["Shipped"][2] != "Old" {
		t.Fatalf("list names not resolved: %v", records)
	}
	if byTitle["Quarterly"][10] != "numbers" || byTitle["Quarterly"][9] != "MONTHLY" {
		t.Fatalf("row = %v", byTitle["Quarterly"])
	}
}
