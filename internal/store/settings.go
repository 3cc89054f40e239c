package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Preference keys.
const (
	KeyUserName        = "user_name"
	KeyUserEmail       = "user_email"
	KeySortOption      = "sort_option"
	KeyTimerEndTime    = "timer_end_time"
	KeyTimerRunning    = "timer_running"
	KeyTimerPaused     = "timer_paused_remaining"
	KeyTimerDuration   = "timer_duration"
	KeyCustomDurations = "custom_durations"
)

type Setting struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// GetSetting returns ErrNotFound for an unset key.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// setting is GetSetting with unset keys read as "".
func (s *Store) setting(ctx context.Context, key string) (string, error) {
	v, err := s.GetSetting(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if err := setSetting(ctx, s.db, key, value); err != nil {
		return err
	}
	s.hub.Publish(TopicSettings)
	return nil
}

func setSetting(ctx context.Context, e sqlx.ExecerContext, key, value string) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetAllSettings(ctx context.Context) ([]Setting, error) {
	var settings []Setting
	if err := s.db.SelectContext(ctx, &settings, `SELECT key, value FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// setMany writes several keys atomically.
func (s *Store) setMany(ctx context.Context, kv map[string]string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for k, v := range kv {
			if err := setSetting(ctx, tx, k, v); err != nil {
				return err
			}
		}
		return nil
	}, TopicSettings)
}

// Prefs is the typed preference store layered over the settings table.
type Prefs struct {
	store *Store
}

func NewPrefs(s *Store) *Prefs {
	return &Prefs{store: s}
}

func (p *Prefs) User(ctx context.Context) (name, email string, err error) {
	if name, err = p.store.setting(ctx, KeyUserName); err != nil {
		return "", "", err
	}
	if email, err = p.store.setting(ctx, KeyUserEmail); err != nil {
		return "", "", err
	}
	return name, email, nil
}

// SetUser stores the display name (required) and email (optional).
func (p *Prefs) SetUser(ctx context.Context, name, email string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	return p.store.setMany(ctx, map[string]string{
		KeyUserName:  name,
		KeyUserEmail: strings.TrimSpace(email),
	})
}

// SortOption returns the stored sort option name, or "" when never chosen.
func (p *Prefs) SortOption(ctx context.Context) (string, error) {
	return p.store.setting(ctx, KeySortOption)
}

func (p *Prefs) SetSortOption(ctx context.Context, name string) error {
	return p.store.SetSetting(ctx, KeySortOption, name)
}

// TimerState is the persisted focus timer. EndTime is only meaningful while
// Running; PausedRemaining only while paused. Duration is the length the
// countdown was started with.
type TimerState struct {
	EndTime         time.Time
	Running         bool
	PausedRemaining time.Duration
	Duration        time.Duration
}

func (p *Prefs) LoadTimer(ctx context.Context) (TimerState, error) {
	var st TimerState
	end, err := p.store.setting(ctx, KeyTimerEndTime)
	if err != nil {
		return st, err
	}
	running, err := p.store.setting(ctx, KeyTimerRunning)
	if err != nil {
		return st, err
	}
	paused, err := p.store.setting(ctx, KeyTimerPaused)
	if err != nil {
		return st, err
	}
	duration, err := p.store.setting(ctx, KeyTimerDuration)
	if err != nil {
		return st, err
	}
	if ms, err := strconv.ParseInt(end, 10, 64); err == nil && ms > 0 {
		st.EndTime = time.UnixMilli(ms)
	}
	st.Running = running == "true"
	if ms, err := strconv.ParseInt(paused, 10, 64); err == nil && ms > 0 {
		st.PausedRemaining = time.Duration(ms) * time.Millisecond
	}
	if ms, err := strconv.ParseInt(duration, 10, 64); err == nil && ms > 0 {
		st.Duration = time.Duration(ms) * time.Millisecond
	}
	return st, nil
}

func (p *Prefs) SaveTimer(ctx context.Context, st TimerState) error {
	var end int64
	if !st.EndTime.IsZero() {
		end = st.EndTime.UnixMilli()
	}
	return p.store.setMany(ctx, map[string]string{
		KeyTimerEndTime:  strconv.FormatInt(end, 10),
		KeyTimerRunning:  strconv.FormatBool(st.Running),
		KeyTimerPaused:   strconv.FormatInt(st.PausedRemaining.Milliseconds(), 10),
		KeyTimerDuration: strconv.FormatInt(st.Duration.Milliseconds(), 10),
	})
}

func (p *Prefs) ClearTimer(ctx context.Context) error {
	return p.SaveTimer(ctx, TimerState{})
}

// CustomDurations returns the user's preset minute values, ascending.
// Entries that do not parse as positive integers are skipped.
func (p *Prefs) CustomDurations(ctx context.Context) ([]int, error) {
	raw, err := p.customDurationSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (p *Prefs) customDurationSet(ctx context.Context) ([]string, error) {
	v, err := p.store.setting(ctx, KeyCustomDurations)
	if err != nil || v == "" {
		return nil, err
	}
	var set []string
	if err := json.Unmarshal([]byte(v), &set); err != nil {
		return nil, fmt.Errorf("decode custom durations: %w", err)
	}
	return set, nil
}

func (p *Prefs) AddCustomDuration(ctx context.Context, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("add custom duration: %d is not a positive number of minutes", minutes)
	}
	set, err := p.customDurationSet(ctx)
	if err != nil {
		return err
	}
	v := strconv.Itoa(minutes)
	if slices.Contains(set, v) {
		return nil
	}
	return p.saveCustomDurations(ctx, append(set, v))
}

func (p *Prefs) RemoveCustomDuration(ctx context.Context, minutes int) error {
	set, err := p.customDurationSet(ctx)
	if err != nil {
		return err
	}
	v := strconv.Itoa(minutes)
	return p.saveCustomDurations(ctx, slices.DeleteFunc(set, func(s string) bool { return s == v }))
}

func (p *Prefs) saveCustomDurations(ctx context.Context, set []string) error {
	if set == nil {
		set = []string{}
	}
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode custom durations: %w", err)
	}
	return p.store.SetSetting(ctx, KeyCustomDurations, string(data))
}
