package tui

import (
	"fmt"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/focusdo/internal/views"
)

type statsMode int

const (
	statsWeekly statsMode = iota
	statsMonthly
	statsYearly
	statsLifetime
)

var statsModeNames = []string{"Week", "Month", "Year", "Lifetime"}

type statsModel struct {
	env    *env
	width  int
	height int

	data appData
	mode statsMode

	chart barchart.Model
}

func newStatsModel(e *env) statsModel {
	return statsModel{
		env:   e,
		chart: barchart.New(60, 12),
	}
}

func (s *statsModel) setSize(w, h int) {
	s.width = w
	s.height = h
	s.buildChart()
}

func (s *statsModel) setData(data appData) {
	s.data = data
	s.buildChart()
}

func (s statsModel) buckets() []views.Bucket {
	now := s.env.Now()
	switch s.mode {
	case statsMonthly:
		return views.Monthly(now, s.data.sessions)
	case statsYearly:
		return views.Yearly(now, s.data.sessions)
	case statsLifetime:
		return views.Lifetime(now, s.data.sessions)
	}
	return views.Weekly(now, s.data.sessions)
}

func (s statsModel) update(msg tea.Msg) (statsModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return s, nil
	}
	switch {
	case key.Matches(km, keys.Left):
		if s.mode > statsWeekly {
			s.mode--
		}
	case key.Matches(km, keys.Right):
		if s.mode < statsLifetime {
			s.mode++
		}
	default:
		return s, nil
	}
	s.buildChart()
	return s, nil
}

func (s *statsModel) buildChart() {
	chartWidth := max(s.width-8, 20)
	chartHeight := 12
	if s.height > 30 {
		chartHeight = 16
	}

	s.chart = barchart.New(chartWidth, chartHeight)

	buckets := s.buckets()
	bars := make([]barchart.BarData, 0, len(buckets))
	for _, b := range buckets {
		style := lipgloss.NewStyle().Foreground(colorPrimary)
		if b.Current {
			style = lipgloss.NewStyle().Foreground(colorSuccess)
		}
		bars = append(bars, barchart.BarData{
			Label:  b.Label,
			Values: []barchart.BarValue{{Name: "minutes", Value: float64(b.Minutes), Style: style}},
		})
	}

	s.chart.PushAll(bars)
	s.chart.Draw()
}

func (s statsModel) view() string {
	w := s.width - 4

	now := s.env.Now()
	today := views.TodayFor(now, s.data.sessions, s.data.tasks)
	total := s.data.totalMinutes()
	lvl := views.LevelFor(total)

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		statCard("Today", formatMinutes(today.FocusMinutes)),
		"  ",
		statCard("Total focus", formatMinutes(total)),
		"  ",
		statCard("Tasks done today", fmt.Sprintf("%d", today.CompletedTasks)),
		"  ",
		statCard("Level", fmt.Sprintf("%d · %s", lvl.Level, lvl.Title)),
	)
	levelBar := lipgloss.JoinHorizontal(lipgloss.Bottom,
		progressBar(lvl.Progress, 30, highlightStyle),
		mutedStyle.Render(fmt.Sprintf("  %dh to level %d", lvl.HoursToNext, lvl.Level+1)),
	)

	var tabs []string
	for i, name := range statsModeNames {
		if statsMode(i) == s.mode {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Stats"), "  ", lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
	)

	buckets := s.buckets()
	chartView := s.chart.View()
	if len(buckets) == 0 {
		chartView = mutedStyle.Render("  No focus sessions yet")
	}

	sum := 0
	for _, b := range buckets {
		sum += b.Minutes
	}
	summary := mutedStyle.Render(fmt.Sprintf("  %s in this range", formatMinutes(sum)))

	nav := mutedStyle.Render("  ←/→: change range")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", cards, "", levelBar, "", chartView, "", summary, "", nav,
		),
	)
}
