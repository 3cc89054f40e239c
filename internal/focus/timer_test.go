package focus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sadopc/focusdo/internal/store"
)

var ctx = context.Background()

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 6, 15, 9, 0, 0, 0, time.Local)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memState struct {
	mu      sync.Mutex
	st      store.TimerState
	saves   int
	clears  int
	loadErr error

	// when set, ClearTimer signals clearing and then blocks until release
	// is closed
	clearing chan struct{}
	release  chan struct{}
}

func (m *memState) LoadTimer(context.Context) (store.TimerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, m.loadErr
}

func (m *memState) SaveTimer(_ context.Context, st store.TimerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
	m.saves++
	return nil
}

func (m *memState) ClearTimer(context.Context) error {
	if m.release != nil {
		m.clearing <- struct{}{}
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = store.TimerState{}
	m.clears++
	return nil
}

func (m *memState) get() store.TimerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

type memLog struct {
	mu       sync.Mutex
	sessions []store.FocusSession
}

func (l *memLog) AppendFocusSession(_ context.Context, fs store.FocusSession) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions = append(l.sessions, fs)
	return int64(len(l.sessions)), nil
}

func (l *memLog) all() []store.FocusSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]store.FocusSession(nil), l.sessions...)
}

func newTestTimer(t *testing.T, st *memState, c *clock, opts ...Option) *Timer {
	t.Helper()
	opts = append([]Option{WithClock(c.Now), WithInterval(5 * time.Millisecond)}, opts...)
	tm, err := New(ctx, st, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(tm.Close)
	return tm
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// ============================================================
// State transitions
// ============================================================

func TestNewIsIdle(t *testing.T) {
	tm := newTestTimer(t, &memState{}, newClock())
	snap := tm.Snapshot()
	if snap.State != Idle || snap.Remaining != DefaultDuration || snap.Duration != DefaultDuration {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Progress() != 0 {
		t.Fatalf("progress = %f", snap.Progress())
	}
}

func TestStartPersistsEndTime(t *testing.T) {
	st := &memState{}
	c := newClock()
	tm := newTestTimer(t, st, c)

	if err := tm.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	want := c.Now().Add(DefaultDuration)
	got := st.get()
	if !got.Running || !got.EndTime.Equal(want) || got.PausedRemaining != 0 {
		t.Fatalf("persisted = %+v, want running until %v", got, want)
	}
	if snap := tm.Snapshot(); snap.State != Running || !snap.EndTime.Equal(want) {
		t.Fatalf("snapshot = %+v", snap)
	}

	// second Start is a no-op
	saves := st.saves
	if err := tm.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if st.saves != saves {
		t.Fatal("Start while running should not persist again")
	}
}

func TestPauseAndResume(t *testing.T) {
	st := &memState{}
	c := newClock()
	tm := newTestTimer(t, st, c)

	if err := tm.Start(ctx); err != nil {
		t.Fatal(err)
	}
	c.Advance(10 * time.Minute)
	if err := tm.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	snap := tm.Snapshot()
	if snap.State != Paused || snap.Remaining != 15*time.Minute {
		t.Fatalf("paused snapshot = %+v", snap)
	}
	if got := st.get(); got.Running || got.PausedRemaining != 15*time.Minute {
		t.Fatalf("persisted = %+v", got)
	}

	// time spent paused does not count
	c.Advance(time.Hour)
	if err := tm.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if got := st.get(); !got.EndTime.Equal(c.Now().Add(15 * time.Minute)) {
		t.Fatalf("resumed end = %v", got.EndTime)
	}
}

func TestPauseWhenIdleIsNoop(t *testing.T) {
	st := &memState{}
	tm := newTestTimer(t, st, newClock())
	if err := tm.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	if tm.Snapshot().State != Idle || st.saves != 0 {
		t.Fatal("Pause on an idle timer should change nothing")
	}
}

func TestReset(t *testing.T) {
	st := &memState{}
	c := newClock()
	tm := newTestTimer(t, st, c)

	_ = tm.Start(ctx)
	c.Advance(5 * time.Minute)
	if err := tm.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	snap := tm.Snapshot()
	if snap.State != Idle || snap.Remaining != DefaultDuration {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := st.get(); got != (store.TimerState{}) {
		t.Fatalf("persisted state should be cleared, got %+v", got)
	}
}

func TestUpdateDuration(t *testing.T) {
	tm := newTestTimer(t, &memState{}, newClock())
	_ = tm.Start(ctx)

	if err := tm.SetMinutes(ctx, 50); err != nil {
		t.Fatalf("SetMinutes: %v", err)
	}
	snap := tm.Snapshot()
	if snap.State != Idle || snap.Duration != 50*time.Minute || snap.Remaining != 50*time.Minute {
		t.Fatalf("snapshot = %+v", snap)
	}

	for _, m := range []int{0, -5} {
		if err := tm.SetMinutes(ctx, m); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("SetMinutes(%d) err = %v, want ErrInvalidDuration", m, err)
		}
	}
	if tm.Snapshot().Duration != 50*time.Minute {
		t.Fatal("invalid duration should leave the timer unchanged")
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      float64
	}{
		{25 * time.Minute, 0},
		{20 * time.Minute, 0.2},
		{0, 1},
		{-time.Minute, 1},
	}
	for _, tt := range tests {
		s := Snapshot{Duration: 25 * time.Minute, Remaining: tt.remaining}
		if got := s.Progress(); got < tt.want-1e-9 || got > tt.want+1e-9 {
			t.Errorf("Progress(remaining=%v) = %f, want %f", tt.remaining, got, tt.want)
		}
	}
}

// ============================================================
// Countdown
// ============================================================

func TestTickUpdatesRemaining(t *testing.T) {
	c := newClock()
	tm := newTestTimer(t, &memState{}, c)
	_ = tm.Start(ctx)

	c.Advance(7 * time.Minute)
	waitFor(t, func() bool { return tm.Snapshot().Remaining == 18*time.Minute })
}

func TestCompletionLogsSession(t *testing.T) {
	st := &memState{}
	c := newClock()
	log := &memLog{}
	done := make(chan Completion, 1)
	tm := newTestTimer(t, st, c,
		WithSessionLog(log),
		OnComplete(func(cpl Completion) { done <- cpl }),
	)

	_ = tm.Start(ctx)
	end := c.Now().Add(DefaultDuration)
	c.Advance(DefaultDuration + time.Second)

	select {
	case cpl := <-done:
		if cpl.Minutes != 25 || !cpl.At.Equal(end) {
			t.Fatalf("completion = %+v", cpl)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never completed")
	}

	sessions := log.all()
	if len(sessions) != 1 || sessions[0].DurationMinutes != 25 || !sessions[0].Timestamp.Equal(end) {
		t.Fatalf("sessions = %+v", sessions)
	}
	snap := tm.Snapshot()
	if snap.State != Idle || snap.Remaining != DefaultDuration {
		t.Fatalf("snapshot after completion = %+v", snap)
	}
	if got := st.get(); got != (store.TimerState{}) {
		t.Fatalf("persisted state = %+v", got)
	}
}

func TestStartDuringCompletionKeepsPersistedState(t *testing.T) {
	st := &memState{clearing: make(chan struct{}, 1), release: make(chan struct{})}
	c := newClock()
	tm := newTestTimer(t, st, c)

	_ = tm.Start(ctx)
	c.Advance(DefaultDuration)

	select {
	case <-st.clearing:
	case <-time.After(2 * time.Second):
		t.Fatal("timer never completed")
	}

	started := make(chan error, 1)
	go func() { started <- tm.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	close(st.release)

	if err := <-started; err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap := tm.Snapshot(); snap.State != Running {
		t.Fatalf("snapshot = %+v, want running", snap)
	}
	want := c.Now().Add(DefaultDuration)
	if got := st.get(); !got.Running || !got.EndTime.Equal(want) {
		t.Fatalf("persisted = %+v, want running until %v", got, want)
	}
}

func TestUpdatesCoalesce(t *testing.T) {
	c := newClock()
	tm := newTestTimer(t, &memState{}, c)
	_ = tm.Start(ctx)
	c.Advance(time.Minute)
	_ = tm.Pause(ctx)

	// only the latest snapshot is buffered
	select {
	case snap := <-tm.Updates():
		if snap.State != Paused {
			t.Fatalf("latest update = %+v, want paused", snap)
		}
	default:
		t.Fatal("expected a pending update")
	}
}

func TestRestartDoesNotLeakLoops(t *testing.T) {
	c := newClock()
	log := &memLog{}
	tm := newTestTimer(t, &memState{}, c, WithSessionLog(log))

	for range 5 {
		_ = tm.Start(ctx)
		_ = tm.Pause(ctx)
	}
	_ = tm.Start(ctx)
	c.Advance(DefaultDuration)

	waitFor(t, func() bool { return len(log.all()) == 1 })
	time.Sleep(30 * time.Millisecond)
	if n := len(log.all()); n != 1 {
		t.Fatalf("sessions = %d, want exactly 1", n)
	}
}

// ============================================================
// Recovery
// ============================================================

func TestRecoverRunning(t *testing.T) {
	c := newClock()
	st := &memState{st: store.TimerState{Running: true, EndTime: c.Now().Add(5 * time.Minute)}}
	tm := newTestTimer(t, st, c)

	snap := tm.Snapshot()
	if snap.State != Running || snap.Remaining != 5*time.Minute {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRecoverKeepsStartedDuration(t *testing.T) {
	st := &memState{}
	c := newClock()
	log := &memLog{}

	first := newTestTimer(t, st, c)
	if err := first.SetMinutes(ctx, 50); err != nil {
		t.Fatal(err)
	}
	if err := first.Start(ctx); err != nil {
		t.Fatal(err)
	}
	first.Close()

	c.Advance(10 * time.Minute)
	tm := newTestTimer(t, st, c, WithDuration(DefaultDuration), WithSessionLog(log))

	snap := tm.Snapshot()
	if snap.State != Running || snap.Duration != 50*time.Minute || snap.Remaining != 40*time.Minute {
		t.Fatalf("snapshot = %+v", snap)
	}
	if p := snap.Progress(); p < 0.2-1e-9 || p > 0.2+1e-9 {
		t.Fatalf("progress = %f, want 0.2", p)
	}

	c.Advance(41 * time.Minute)
	waitFor(t, func() bool { return len(log.all()) == 1 })
	if got := log.all()[0].DurationMinutes; got != 50 {
		t.Fatalf("logged minutes = %d, want 50", got)
	}
}

func TestRecoverPausedKeepsDuration(t *testing.T) {
	c := newClock()
	st := &memState{st: store.TimerState{PausedRemaining: 30 * time.Minute, Duration: time.Hour}}
	tm := newTestTimer(t, st, c)

	snap := tm.Snapshot()
	if snap.State != Paused || snap.Duration != time.Hour || snap.Remaining != 30*time.Minute {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRecoverExpired(t *testing.T) {
	c := newClock()
	log := &memLog{}
	st := &memState{st: store.TimerState{Running: true, EndTime: c.Now().Add(-time.Minute)}}
	tm := newTestTimer(t, st, c, WithSessionLog(log))

	if snap := tm.Snapshot(); snap.State != Idle || snap.Remaining != DefaultDuration {
		t.Fatalf("snapshot = %+v", snap)
	}
	if st.clears != 1 || st.get() != (store.TimerState{}) {
		t.Fatal("expired state should be cleared")
	}
	if len(log.all()) != 0 {
		t.Fatal("a countdown that ended while away is not logged")
	}
}

func TestRecoverPaused(t *testing.T) {
	c := newClock()
	st := &memState{st: store.TimerState{PausedRemaining: 12 * time.Minute}}
	tm := newTestTimer(t, st, c)

	snap := tm.Snapshot()
	if snap.State != Paused || snap.Remaining != 12*time.Minute {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestRecoverLoadError(t *testing.T) {
	st := &memState{loadErr: errors.New("disk gone")}
	if _, err := New(ctx, st); err == nil {
		t.Fatal("expected error when persisted state cannot be read")
	}
}

func TestWithStore(t *testing.T) {
	s, err := store.NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	c := newClock()
	tm, err := New(ctx, store.NewPrefs(s), WithClock(c.Now), WithSessionLog(s), WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(tm.Close)

	_ = tm.Start(ctx)
	c.Advance(DefaultDuration)
	waitFor(t, func() bool {
		total, err := s.TotalFocusMinutes(ctx)
		return err == nil && total == 25
	})
}
