package sessioncache

import (
	"context"
	"sync"
	"time"

	"github.com/abhisek/boardprep/internal/tutor"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process Cache for single-instance deployments and
// tests. Entries are stored encoded so callers never share state.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	ttl   time.Duration
	now   func() time.Time
}

// NewMemory creates a Memory cache. A zero ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{items: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

func (m *Memory) SaveSnapshot(_ context.Context, snap *tutor.Snapshot) error {
	data, err := encode(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[snap.ID] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) LoadSnapshot(_ context.Context, id string) (*tutor.Snapshot, error) {
	m.mu.Lock()
	e, ok := m.items[id]
	now := m.now()
	if ok && now.After(e.expires) {
		delete(m.items, id)
		ok = false
	}
	if ok {
		e.expires = now.Add(m.ttl)
		m.items[id] = e
	}
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return decode(id, e.data)
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// Len returns the number of entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
