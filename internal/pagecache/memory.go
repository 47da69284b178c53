package pagecache

import (
	"context"
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock двигается только через Advance
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type entry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

// MemoryBackend - кеш в памяти процесса. Запись истекает, когда
// с момента сохранения прошло не меньше ttl.
type MemoryBackend struct {
	clock   Clock
	entries map[string]entry
	mu      sync.RWMutex
}

func NewMemoryBackend(clock Clock) *MemoryBackend {
	return &MemoryBackend{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if b.clock.Now().Sub(e.storedAt) >= e.ttl {
		b.mu.Lock()
		// запись могли перезаписать, пока не было блокировки
		if cur, ok := b.entries[key]; ok && cur.storedAt.Equal(e.storedAt) {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = entry{value: value, storedAt: b.clock.Now(), ttl: ttl}
	return nil
}

func (b *MemoryBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	clear(b.entries)
	return nil
}

func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
