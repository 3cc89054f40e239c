// Package focus implements the focus timer. The countdown is anchored to an
// absolute end time that is persisted, so a restarted process resumes where
// the previous one left off.
package focus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sadopc/focusdo/internal/store"
	"go.uber.org/zap"
)

const (
	DefaultDuration = 25 * time.Minute
	DefaultInterval = 100 * time.Millisecond
)

var ErrInvalidDuration = errors.New("focus: duration must be at least one minute")

type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	}
	return "idle"
}

// StateStore persists the timer between runs. *store.Prefs implements it.
type StateStore interface {
	LoadTimer(ctx context.Context) (store.TimerState, error)
	SaveTimer(ctx context.Context, st store.TimerState) error
	ClearTimer(ctx context.Context) error
}

// SessionLog records finished focus blocks. *store.Store implements it.
type SessionLog interface {
	AppendFocusSession(ctx context.Context, fs store.FocusSession) (int64, error)
}

// Snapshot is a point-in-time view of the timer.
type Snapshot struct {
	State     State
	Duration  time.Duration
	Remaining time.Duration
	EndTime   time.Time
}

// Progress is the elapsed fraction of the configured duration.
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := 1 - float64(s.Remaining)/float64(s.Duration)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// Completion describes a countdown that reached zero.
type Completion struct {
	At      time.Time
	Minutes int
}

type Timer struct {
	mu sync.Mutex

	state     State
	duration  time.Duration
	remaining time.Duration
	endTime   time.Time

	gen  uint64
	stop chan struct{}
	done chan struct{}

	states   StateStore
	sessions SessionLog
	log      *zap.Logger
	now      func() time.Time
	interval time.Duration

	updates    chan Snapshot
	onComplete func(Completion)
}

type Option func(*Timer)

func WithClock(now func() time.Time) Option {
	return func(t *Timer) { t.now = now }
}

func WithInterval(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.interval = d
		}
	}
}

func WithDuration(d time.Duration) Option {
	return func(t *Timer) {
		if d > 0 {
			t.duration = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Timer) { t.log = l }
}

// WithSessionLog makes every completed countdown append a focus session.
func WithSessionLog(l SessionLog) Option {
	return func(t *Timer) { t.sessions = l }
}

// OnComplete registers a callback run after a countdown reaches zero.
func OnComplete(fn func(Completion)) Option {
	return func(t *Timer) { t.onComplete = fn }
}

// New builds an idle timer and restores any persisted state:
// a running countdown whose end is still ahead resumes, one whose end has
// passed is cleared, and a paused countdown comes back paused.
func New(ctx context.Context, states StateStore, opts ...Option) (*Timer, error) {
	t := &Timer{
		state:    Idle,
		duration: DefaultDuration,
		states:   states,
		log:      zap.NewNop(),
		now:      time.Now,
		interval: DefaultInterval,
		updates:  make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.remaining = t.duration

	if err := t.recover(ctx); err != nil {
		return nil, fmt.Errorf("recover timer: %w", err)
	}
	return t, nil
}

func (t *Timer) recover(ctx context.Context) error {
	st, err := t.states.LoadTimer(ctx)
	if err != nil {
		return err
	}
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	if st.Duration > 0 && (st.Running || st.PausedRemaining > 0) {
		t.duration = st.Duration
	}
	switch {
	case st.Running && st.EndTime.After(now):
		t.state = Running
		t.endTime = st.EndTime
		t.remaining = st.EndTime.Sub(now)
		t.startLoopLocked()
		t.log.Info("focus timer resumed", zap.Duration("remaining", t.remaining))
	case st.Running:
		t.log.Info("focus timer finished while away", zap.Time("end", st.EndTime))
		t.remaining = t.duration
		return t.states.ClearTimer(ctx)
	case st.PausedRemaining > 0:
		t.state = Paused
		t.remaining = st.PausedRemaining
		t.log.Info("focus timer restored paused", zap.Duration("remaining", t.remaining))
	}
	return nil
}

// Start begins or resumes the countdown. It is a no-op while running.
func (t *Timer) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == Running {
		return nil
	}
	end := t.now().Add(t.remaining)
	if err := t.states.SaveTimer(ctx, store.TimerState{EndTime: end, Running: true, Duration: t.duration}); err != nil {
		return fmt.Errorf("start timer: %w", err)
	}
	t.state = Running
	t.endTime = end
	t.startLoopLocked()
	t.publishLocked()
	t.log.Debug("focus timer started", zap.Time("end", end))
	return nil
}

// Pause freezes the remaining time. It is a no-op unless running.
func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return nil
	}
	remaining := t.endTime.Sub(t.now())
	if remaining < 0 {
		remaining = 0
	}
	done := t.stopLoopLocked()
	t.state = Paused
	t.remaining = remaining
	t.endTime = time.Time{}
	err := t.states.SaveTimer(ctx, store.TimerState{PausedRemaining: remaining, Duration: t.duration})
	t.publishLocked()
	t.mu.Unlock()

	<-done
	if err != nil {
		return fmt.Errorf("pause timer: %w", err)
	}
	t.log.Debug("focus timer paused", zap.Duration("remaining", remaining))
	return nil
}

// Reset stops any countdown and restores the full configured duration.
func (t *Timer) Reset(ctx context.Context) error {
	t.mu.Lock()
	done := t.stopLoopLocked()
	t.state = Idle
	t.remaining = t.duration
	t.endTime = time.Time{}
	err := t.states.ClearTimer(ctx)
	t.publishLocked()
	t.mu.Unlock()

	<-done
	if err != nil {
		return fmt.Errorf("reset timer: %w", err)
	}
	return nil
}

// UpdateDuration resets the timer and makes d the configured duration.
func (t *Timer) UpdateDuration(ctx context.Context, d time.Duration) error {
	if d < time.Minute {
		return ErrInvalidDuration
	}
	t.mu.Lock()
	t.duration = d
	t.mu.Unlock()
	return t.Reset(ctx)
}

// SetMinutes is UpdateDuration in whole minutes.
func (t *Timer) SetMinutes(ctx context.Context, minutes int) error {
	return t.UpdateDuration(ctx, time.Duration(minutes)*time.Minute)
}

func (t *Timer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Timer) snapshotLocked() Snapshot {
	return Snapshot{
		State:     t.state,
		Duration:  t.duration,
		Remaining: t.remaining,
		EndTime:   t.endTime,
	}
}

// Updates delivers the latest snapshot after every change and tick. Only the
// newest undelivered snapshot is kept.
func (t *Timer) Updates() <-chan Snapshot {
	return t.updates
}

// Close stops the tick loop without touching persisted state, so the next
// process can resume the countdown.
func (t *Timer) Close() {
	t.mu.Lock()
	done := t.stopLoopLocked()
	t.mu.Unlock()
	<-done
}

func (t *Timer) publishLocked() {
	snap := t.snapshotLocked()
	select {
	case <-t.updates:
	default:
	}
	select {
	case t.updates <- snap:
	default:
	}
}

var closedDone = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// stopLoopLocked invalidates the running loop and returns a channel closed
// once it has exited. Callers wait on it after releasing mu.
func (t *Timer) stopLoopLocked() <-chan struct{} {
	if t.stop == nil {
		return closedDone
	}
	t.gen++
	close(t.stop)
	done := t.done
	t.stop, t.done = nil, nil
	return done
}

func (t *Timer) startLoopLocked() {
	if t.stop != nil {
		return
	}
	t.gen++
	stop := make(chan struct{})
	done := make(chan struct{})
	t.stop, t.done = stop, done
	go t.loop(t.gen, stop, done)
}

func (t *Timer) loop(gen uint64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if finished := t.tick(gen); finished {
				return
			}
		}
	}
}

// tick recomputes the remaining time. It reports true when the loop should
// exit, either because it was superseded or the countdown finished.
func (t *Timer) tick(gen uint64) bool {
	t.mu.Lock()
	if gen != t.gen || t.state != Running {
		t.mu.Unlock()
		return true
	}
	now := t.now()
	t.remaining = t.endTime.Sub(now)
	if t.remaining > 0 {
		t.publishLocked()
		t.mu.Unlock()
		return false
	}

	end := t.endTime
	minutes := int(t.duration / time.Minute)
	// Cleared before mu is released so a Start racing the completion keeps
	// its persisted end time.
	if err := t.states.ClearTimer(context.Background()); err != nil {
		t.log.Error("clear timer state", zap.Error(err))
	}
	t.gen++
	t.stop, t.done = nil, nil
	t.state = Idle
	t.remaining = t.duration
	t.endTime = time.Time{}
	t.publishLocked()
	t.mu.Unlock()

	t.finish(Completion{At: end, Minutes: minutes})
	return true
}

func (t *Timer) finish(c Completion) {
	ctx := context.Background()
	if t.sessions != nil && c.Minutes > 0 {
		if _, err := t.sessions.AppendFocusSession(ctx, store.FocusSession{
			Timestamp:       c.At,
			DurationMinutes: c.Minutes,
		}); err != nil {
			t.log.Error("log focus session", zap.Error(err))
		}
	}
	t.log.Info("focus session complete", zap.Int("minutes", c.Minutes))
	if t.onComplete != nil {
		t.onComplete(c)
	}
}
