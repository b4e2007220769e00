package store

import (
	"context"
	"sync"

	"github.com/seeitsmanish/SongCircle/internal/core"
)

// Memory is an in-process core.KeyedStore. It backs tests and single-node
// deployments that don't want a redis dependency.
type Memory struct {
	mu      sync.RWMutex
	scalars map[string]string
	sets    map[string]map[string]struct{}
	hashes  map[string]map[string]string
	lists   map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		scalars: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
		hashes:  make(map[string]map[string]string),
		lists:   make(map[string][]string),
	}
}

func (s *Memory) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.scalars[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return val, nil
}

func (s *Memory) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scalars[key] = value
	return nil
}

func (s *Memory) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.scalars, k)
		delete(s.sets, k)
		delete(s.hashes, k)
		delete(s.lists, k)
	}
	return nil
}

func (s *Memory) SAdd(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (s *Memory) SRem(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[key]; ok {
		delete(set, member)
		if len(set) == 0 {
			delete(s.sets, key)
		}
	}
	return nil
}

func (s *Memory) SCard(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.sets[key])), nil
}

func (s *Memory) SIsMember(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

func (s *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string)
		s.hashes[key] = h
	}
	for f, v := range fields {
		h[f] = v
	}
	return nil
}

func (s *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.hashes[key]))
	for f, v := range s.hashes[key] {
		out[f] = v
	}
	return out, nil
}

func (s *Memory) RPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append(s.lists[key], value)
	return nil
}

func (s *Memory) LPush(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[key] = append([]string{value}, s.lists[key]...)
	return nil
}

func (s *Memory) LPop(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lists[key]
	if len(list) == 0 {
		return "", core.ErrNotFound
	}
	head := list[0]
	s.lists[key] = list[1:]
	if len(s.lists[key]) == 0 {
		delete(s.lists, key)
	}
	return head, nil
}

func (s *Memory) LRange(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.lists[key]))
	copy(out, s.lists[key])
	return out, nil
}
