package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/invoicelens/invoicelens/internal/entity"
)

// MemoryStore keeps records in memory. Used by tests and the one-shot
// CLI when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]entity.AnalysisRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]entity.AnalysisRecord)}
}

func (m *MemoryStore) Put(_ context.Context, rec entity.AnalysisRecord) (string, error) {
	key := RecordKey(rec)
	m.mu.Lock()
	m.records[key] = rec
	m.mu.Unlock()
	return key, nil
}

func (m *MemoryStore) ListSince(_ context.Context, since time.Time) ([]entity.AnalysisRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.AnalysisRecord
	for _, rec := range m.records {
		if !rec.ProcessedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListRecent(ctx context.Context, since time.Time, limit int) ([]entity.AnalysisRecord, error) {
	recs, err := m.ListSince(ctx, since)
	if err != nil {
		return nil, err
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ProcessedAt.After(recs[j].ProcessedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (m *MemoryStore) Close() error { return nil }

// Len reports the number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
