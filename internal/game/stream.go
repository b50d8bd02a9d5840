// internal/game/stream.go
package game

import (
	"slices"
	"sync"
)

// stream fans a value out to subscribers. A new subscriber is called with the
// latest value right away and then once per publish, in order.
type stream[T any] struct {
	mu     sync.Mutex
	latest T
	nextID int
	subs   map[int]func(T)
}

func newStream[T any](initial T) *stream[T] {
	return &stream[T]{latest: initial, subs: make(map[int]func(T))}
}

// Subscribe registers fn and returns a function that removes it.
// fn runs while the session is mid-transition and must not call back into it.
func (s *stream[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	fn(s.latest)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *stream[T]) publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = v
	for _, id := range s.sortedIDs() {
		s.subs[id](v)
	}
}

// Latest returns the most recently published value.
func (s *stream[T]) Latest() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

func (s *stream[T]) sortedIDs() []int {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// LastRoundCall is the broadcast value of the last-round caller.
type LastRoundCall struct {
	Called bool `json:"called"`
	Caller int  `json:"caller"`
}
