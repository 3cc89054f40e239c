package views

import (
	"fmt"
	"time"

	"github.com/sadopc/focusdo/internal/store"
)

const minutesPerLevel = 600

// Level describes progress through the focus levels, one per 600 minutes.
type Level struct {
	Level       int
	Progress    float64 // fraction of the current level completed, [0,1)
	HoursToNext int
	Title       string
}

func LevelFor(totalMinutes int) Level {
	if totalMinutes < 0 {
		totalMinutes = 0
	}
	into := totalMinutes % minutesPerLevel
	lvl := totalMinutes/minutesPerLevel + 1
	return Level{
		Level:       lvl,
		Progress:    float64(into) / minutesPerLevel,
		HoursToNext: 10 - into/60,
		Title:       Title(lvl),
	}
}

func Title(level int) string {
	switch {
	case level <= 10:
		return "Novice"
	case level <= 50:
		return "Apprentice"
	case level <= 100:
		return "Adept"
	case level <= 300:
		return "Expert"
	case level <= 600:
		return "Master"
	case level <= 999:
		return "Grandmaster"
	}
	return "Legend"
}

// LeveledUp reports whether going from before to after minutes crosses into a
// higher level.
func LeveledUp(before, after int) bool {
	return LevelFor(after).Level > LevelFor(before).Level
}

// Today summarises the local day containing now.
type Today struct {
	FocusMinutes   int
	CompletedTasks int
}

func TodayFor(now time.Time, sessions []store.FocusSession, tasks []store.Task) Today {
	start, end := DayBounds(now)
	var out Today
	out.FocusMinutes = sumMinutes(sessions, start, end)
	for _, t := range tasks {
		if t.Completed && t.CompletedAt != nil && within(*t.CompletedAt, start, end) {
			out.CompletedTasks++
		}
	}
	return out
}

// Bucket is one bar of a focus histogram.
type Bucket struct {
	Label   string
	Start   time.Time
	End     time.Time
	Minutes int
	Current bool
}

// Weekly returns the last seven local days, oldest first, ending today.
func Weekly(now time.Time, sessions []store.FocusSession) []Bucket {
	today, _ := DayBounds(now)
	out := make([]Bucket, 0, 7)
	for i := 6; i >= 0; i-- {
		start := today.AddDate(0, 0, -i)
		end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
		label := start.Format("Mon")[:1]
		if i == 0 {
			label = "Today"
		}
		out = append(out, bucket(label, start, end, i == 0, sessions))
	}
	return out
}

// Monthly returns six five-day windows, oldest first. The current window
// starts today; each earlier one starts five days before the next.
func Monthly(now time.Time, sessions []store.FocusSession) []Bucket {
	today, _ := DayBounds(now)
	out := make([]Bucket, 0, 6)
	for i := 5; i >= 0; i-- {
		start := today.AddDate(0, 0, -i*5)
		end := start.AddDate(0, 0, 5).Add(-time.Nanosecond)
		label := fmt.Sprintf("%dd", i*5)
		if i == 0 {
			label = "Now"
		}
		out = append(out, bucket(label, start, end, i == 0, sessions))
	}
	return out
}

// Yearly returns the last twelve calendar months, oldest first.
func Yearly(now time.Time, sessions []store.FocusSession) []Bucket {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	out := make([]Bucket, 0, 12)
	for i := 11; i >= 0; i-- {
		start := first.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
		out = append(out, bucket(start.Format("Jan"), start, end, i == 0, sessions))
	}
	return out
}

// Lifetime returns one bucket per calendar year from the earliest session's
// year through now's year. No sessions means no buckets.
func Lifetime(now time.Time, sessions []store.FocusSession) []Bucket {
	if len(sessions) == 0 {
		return []Bucket{}
	}
	first := now.Year()
	for _, s := range sessions {
		if y := s.Timestamp.In(now.Location()).Year(); y < first {
			first = y
		}
	}
	out := make([]Bucket, 0, now.Year()-first+1)
	for y := first; y <= now.Year(); y++ {
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
		end := start.AddDate(1, 0, 0).Add(-time.Nanosecond)
		out = append(out, bucket(fmt.Sprint(y), start, end, y == now.Year(), sessions))
	}
	return out
}

func bucket(label string, start, end time.Time, current bool, sessions []store.FocusSession) Bucket {
	return Bucket{
		Label:   label,
		Start:   start,
		End:     end,
		Minutes: sumMinutes(sessions, start, end),
		Current: current,
	}
}

func sumMinutes(sessions []store.FocusSession, start, end time.Time) int {
	total := 0
	for _, s := range sessions {
		if within(s.Timestamp, start, end) {
			total += s.DurationMinutes
		}
	}
	return total
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
