// Package ratelimit caps API requests per client key over a fixed window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result describes the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Memory is a per-process sliding-window limiter. A limit of zero or less
// disables limiting.
type Memory struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	if m.limit <= 0 {
		return Result{Allowed: true, Limit: m.limit, Remaining: -1}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)
	var valid []time.Time
	for _, t := range m.requests[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	res := Result{Limit: m.limit, ResetAt: now.Add(m.window)}
	if len(valid) > 0 {
		res.ResetAt = valid[0].Add(m.window)
	}
	if len(valid) >= m.limit {
		m.requests[key] = valid
		return res, nil
	}

	valid = append(valid, now)
	m.requests[key] = valid
	res.Allowed = true
	res.Remaining = m.limit - len(valid)
	return res, nil
}

// Prune drops keys with no requests inside the window.
func (m *Memory) Prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.window)
	for key, times := range m.requests {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(m.requests, key)
		}
	}
}
