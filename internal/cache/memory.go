package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	at      time.Time
	expires time.Time
}

// MemoryLedger keeps the campaign ledger in process memory. It is used when
// no Redis URL is configured, so entries do not survive a restart.
type MemoryLedger struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *MemoryLedger) Close() error {
	return nil
}

func (m *MemoryLedger) ScheduledAt(ctx context.Context, postURL string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[postURL]
	if !ok {
		return time.Time{}, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, postURL)
		return time.Time{}, false, nil
	}
	return e.at, true, nil
}

// MarkScheduled records postURL. A ttl of zero keeps it until restart.
func (m *MemoryLedger) MarkScheduled(ctx context.Context, postURL string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{at: at}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[postURL] = e
	return nil
}
