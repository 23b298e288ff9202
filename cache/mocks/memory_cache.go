package mocks

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process SessionCache for flow tests that need to read
// back what an earlier step wrote. TTLs are honored against an injectable
// clock so tests can step time past expiry.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	subs    map[string][]memorySub
	Now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memorySub struct {
	ctx     context.Context
	handler func(message []byte)
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		subs:    make(map[string][]memorySub),
		Now:     time.Now,
	}
}

func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.entries[key] = memoryEntry{value: cp, expiresAt: m.Now().Add(ttl)}
	return nil
}

func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Publish delivers to live subscribers on fresh goroutines, off the
// caller's goroutine like the redis pubsub does.
func (m *MemoryCache) Publish(ctx context.Context, channel string, message []byte) error {
	m.mu.Lock()
	subs := append([]memorySub(nil), m.subs[channel]...)
	m.mu.Unlock()

	for _, sub := range subs {
		if sub.ctx.Err() != nil {
			continue
		}
		go sub.handler(message)
	}
	return nil
}

// Subscribe registers the handler until ctx is cancelled.
func (m *MemoryCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[channel] = append(m.subs[channel], memorySub{ctx: ctx, handler: handler})
	return nil
}
