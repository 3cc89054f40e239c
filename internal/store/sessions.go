package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sadopc/focusdo/internal/live"
	"go.uber.org/zap"
)

// AppendFocusSession logs a finished focus block. Sessions are never updated.
func (s *Store) AppendFocusSession(ctx context.Context, fs FocusSession) (int64, error) {
	if fs.DurationMinutes < 0 {
		return 0, fmt.Errorf("append focus session: negative duration %d", fs.DurationMinutes)
	}
	if fs.Timestamp.IsZero() {
		fs.Timestamp = s.now()
	}
	fs.ID = 0
	id, err := insertSession(ctx, s.db, fs)
	if err != nil {
		return 0, err
	}
	s.log.Info("focus session logged", zap.Int64("id", id), zap.Int("minutes", fs.DurationMinutes))
	s.hub.Publish(TopicSessions)
	return id, nil
}

func insertSession(ctx context.Context, e sqlx.ExtContext, fs FocusSession) (int64, error) {
	r := sessionRow{ID: fs.ID, Timestamp: fs.Timestamp.UnixMilli(), DurationMinutes: fs.DurationMinutes}
	if r.ID == 0 {
		res, err := sqlx.NamedExecContext(ctx, e,
			`INSERT INTO focus_sessions (timestamp, duration_minutes) VALUES (:timestamp, :duration_minutes)`, r)
		if err != nil {
			return 0, fmt.Errorf("insert focus session: %w", err)
		}
		return res.LastInsertId()
	}
	_, err := sqlx.NamedExecContext(ctx, e, `
		INSERT INTO focus_sessions (id, timestamp, duration_minutes) VALUES (:id, :timestamp, :duration_minutes)
		ON CONFLICT(id) DO UPDATE SET timestamp = excluded.timestamp, duration_minutes = excluded.duration_minutes`, r)
	if err != nil {
		return 0, fmt.Errorf("insert focus session %d: %w", r.ID, err)
	}
	return r.ID, nil
}

// ListFocusSessions returns sessions with start <= timestamp <= end, newest first.
func (s *Store) ListFocusSessions(ctx context.Context, start, end time.Time) ([]FocusSession, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, timestamp, duration_minutes FROM focus_sessions
		 WHERE timestamp BETWEEN ? AND ? ORDER BY timestamp DESC, id DESC`,
		start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("list focus sessions: %w", err)
	}
	return sessionsFromRows(rows), nil
}

// AllFocusSessions returns every session, newest first.
func (s *Store) AllFocusSessions(ctx context.Context) ([]FocusSession, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, timestamp, duration_minutes FROM focus_sessions ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list focus sessions: %w", err)
	}
	return sessionsFromRows(rows), nil
}

func sessionsFromRows(rows []sessionRow) []FocusSession {
	out := make([]FocusSession, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.session())
	}
	return out
}

func (s *Store) WatchFocusSessions(ctx context.Context, start, end time.Time) <-chan live.Snapshot[[]FocusSession] {
	return live.Watch(ctx, s.hub, func(ctx context.Context) ([]FocusSession, error) {
		return s.ListFocusSessions(ctx, start, end)
	}, TopicSessions)
}

func (s *Store) WatchAllFocusSessions(ctx context.Context) <-chan live.Snapshot[[]FocusSession] {
	return live.Watch(ctx, s.hub, s.AllFocusSessions, TopicSessions)
}

// TotalFocusMinutes sums every session. An empty log sums to zero.
func (s *Store) TotalFocusMinutes(ctx context.Context) (int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(duration_minutes), 0) FROM focus_sessions`); err != nil {
		return 0, fmt.Errorf("total focus minutes: %w", err)
	}
	return total, nil
}

func (s *Store) WatchTotalFocusMinutes(ctx context.Context) <-chan live.Snapshot[int] {
	return live.Watch(ctx, s.hub, s.TotalFocusMinutes, TopicSessions)
}
