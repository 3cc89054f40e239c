// Package live fans change notifications out to subscribers and turns them
// into streams of freshly loaded snapshots.
package live

import (
	"context"
	"sync"
)

// Topic names a class of data that changed, e.g. "tasks".
type Topic string

type subscriber struct {
	topics map[Topic]struct{}
	ch     chan struct{}
}

func (s *subscriber) wants(topics []Topic) bool {
	if len(s.topics) == 0 {
		return true
	}
	for _, t := range topics {
		if _, ok := s.topics[t]; ok {
			return true
		}
	}
	return false
}

// Hub is an in-process broadcaster. Signals are coalesced: a subscriber that
// has not yet drained its previous signal does not queue a second one.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe returns a signal channel for the given topics (all topics when
// none are given) and a cancel func that must be called to release it.
func (h *Hub) Subscribe(topics ...Topic) (<-chan struct{}, func()) {
	s := &subscriber{ch: make(chan struct{}, 1)}
	if len(topics) > 0 {
		s.topics = make(map[Topic]struct{}, len(topics))
		for _, t := range topics {
			s.topics[t] = struct{}{}
		}
	}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, s)
			h.mu.Unlock()
		})
	}
}

// Publish wakes every subscriber interested in any of topics. It never blocks.
func (h *Hub) Publish(topics ...Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if !s.wants(topics) {
			continue
		}
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Snapshot is one emission of a watched value.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Watch emits load's result once immediately and again after every change
// published on topics. The channel is closed when ctx is done.
func Watch[T any](ctx context.Context, h *Hub, load func(context.Context) (T, error), topics ...Topic) <-chan Snapshot[T] {
	out := make(chan Snapshot[T])
	signal, cancel := h.Subscribe(topics...)

	go func() {
		defer close(out)
		defer cancel()
		for {
			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot[T]{Value: v, Err: err}:
			case <-ctx.Done():
				return
			}
			select {
			case <-signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
