package backup

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sadopc/focusdo/internal/store"
	"github.com/sadopc/focusdo/internal/views"
)

// WriteTasksCSV writes a flat task report with list names resolved.
func WriteTasksCSV(path string, tasks []store.Task, lists []store.TaskList) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnwritable, err)
	}
	defer f.Close()

	names := make(map[int64]string, len(lists))
	for _, l := range lists {
		names[l.ID] = l.Name
	}

	w := csv.NewWriter(f)

	// Header
	if err := w.Write([]string{"ID", "Title", "List", "Completed", "Completed At", "Flagged", "Priority", "Due", "Created", "Repeat", "Description"}); err != nil {
		return err
	}

	for _, t := range tasks {
		list := views.DefaultGroup
		if t.ListID != nil {
			if n, ok := names[*t.ListID]; ok {
				list = n
			}
		}
		row := []string{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			list,
			strconv.FormatBool(t.Completed),
			formatTime(t.CompletedAt),
			strconv.FormatBool(t.Flagged),
			strconv.Itoa(t.Priority),
			formatTime(t.DueDate),
			t.CreatedAt.Local().Format(time.RFC3339),
			string(t.Repeat),
			t.Description,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}
