package service

import (
	"sort"
	"strings"
	"sync"
)

// Store: единственный владелец состояния по инструментам.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Instrument
}

func NewStore() *Store {
	return &Store{items: make(map[string]*Instrument)}
}

func (s *Store) Get(symbol string) (*Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.items[strings.ToUpper(symbol)]
	return in, ok
}

// GetOrCreate возвращает состояние символа, создавая его при первом обращении.
func (s *Store) GetOrCreate(symbol string) (*Instrument, bool) {
	symbol = strings.ToUpper(symbol)
	if in, ok := s.Get(symbol); ok {
		return in, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if in, ok := s.items[symbol]; ok {
		return in, false
	}
	in := NewInstrument(symbol)
	s.items[symbol] = in
	return in, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// All: инструменты в порядке символов.
func (s *Store) All() []*Instrument {
	s.mu.RLock()
	out := make([]*Instrument, 0, len(s.items))
	for _, in := range s.items {
		out = append(out, in)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].symbol < out[b].symbol })
	return out
}
