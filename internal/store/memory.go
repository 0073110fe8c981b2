package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process KV used for smoke runs and by tests across
// the repo. Delay simulates per-operation service time so latency
// stats are non-trivial even without a real cluster.
type Memory struct {
	Delay time.Duration

	mu sync.RWMutex
	m  map[string]string
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]string)}
}

func (s *Memory) wait(ctx context.Context) error {
	if s.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(s.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Memory) Put(ctx context.Context, key, value string) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

// Get mirrors etcd semantics: a missing key is an empty value, not an
// error.
func (s *Memory) Get(ctx context.Context, key string) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	s.mu.RLock()
	v := s.m[key]
	s.mu.RUnlock()
	return v, nil
}

func (s *Memory) Close() error { return nil }

// Len returns the number of stored keys.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
