package service

import (
	"sync"
	"sync/atomic"
	"time"
)

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	mu    sync.RWMutex
	feeds map[string]bool

	lastEventUnix   atomic.Int64 // unix seconds
	lastPublishUnix atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now(), feeds: make(map[string]bool)}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

// SetFeedConnected отмечает состояние одного WS-фида (spot / futures / depth).
func (s *State) SetFeedConnected(feed string, v bool) {
	s.mu.Lock()
	s.feeds[feed] = v
	s.mu.Unlock()
}

func (s *State) Feeds() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.feeds))
	for k, v := range s.feeds {
		out[k] = v
	}
	return out
}

// AnyFeedConnected: хотя бы один фид живой.
func (s *State) AnyFeedConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.feeds {
		if v {
			return true
		}
	}
	return false
}

func (s *State) TouchEvent(t time.Time)   { s.lastEventUnix.Store(t.Unix()) }
func (s *State) TouchPublish(t time.Time) { s.lastPublishUnix.Store(t.Unix()) }

func (s *State) LastEvent() time.Time   { return fromUnix(s.lastEventUnix.Load()) }
func (s *State) LastPublish() time.Time { return fromUnix(s.lastPublishUnix.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

func fromUnix(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}
