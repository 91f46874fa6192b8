// Package cache stores analyzer results between runs.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"compliancesync/internal/domain"
)

type entry struct {
	result  domain.JurisdictionResult
	expires time.Time
}

// Memory is a process-local TTL cache. Expired entries are dropped on read.
type Memory struct {
	mu      sync.Mutex
	clock   clockwork.Clock
	entries map[string]entry
}

func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{clock: clock, entries: make(map[string]entry)}
}

func (m *Memory) Get(ctx context.Context, key string) (domain.JurisdictionResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return domain.JurisdictionResult{}, false, nil
	}
	if !e.expires.IsZero() && !m.clock.Now().Before(e.expires) {
		delete(m.entries, key)
		return domain.JurisdictionResult{}, false, nil
	}
	return e.result, true, nil
}

// Set stores result. A non-positive ttl keeps the entry until Purge.
func (m *Memory) Set(ctx context.Context, key string, result domain.JurisdictionResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = m.clock.Now().Add(ttl)
	}
	m.entries[key] = entry{result: result, expires: expires}
	return nil
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]entry)
}
