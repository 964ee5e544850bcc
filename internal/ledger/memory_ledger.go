package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger implements Ledger in process memory
type MemoryLedger struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

// NewMemoryLedger creates an empty ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{entries: make(map[uuid.UUID]Entry)}
}

// Record stores entries
func (l *MemoryLedger) Record(ctx context.Context, entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range entries {
		l.entries[e.ID] = e
	}
	return nil
}

// Pending returns up to limit entries, oldest first. limit <= 0 returns all.
func (l *MemoryLedger) Pending(ctx context.Context, limit int) ([]Entry, error) {
	l.mu.RLock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Resolve removes an entry
func (l *MemoryLedger) Resolve(ctx context.Context, id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[id]; !exists {
		return ErrEntryNotFound
	}
	delete(l.entries, id)
	return nil
}

// Ping always succeeds
func (l *MemoryLedger) Ping(ctx context.Context) error {
	return nil
}
