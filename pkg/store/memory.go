package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It is the default backend
// and the one used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	clock   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		clock:   time.Now,
	}
}

// SetClock overrides the time source used for bookkeeping timestamps.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	rec.Extra = cloneExtra(rec.Extra)
	return &rec, nil
}

func (s *MemoryStore) GetByURL(ctx context.Context, url string) (*Record, error) {
	if url == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *Record
	for _, rec := range s.records {
		if rec.URL != url {
			continue
		}
		if found == nil || rec.UpdatedAt > found.UpdatedAt {
			r := rec
			found = &r
		}
	}
	if found != nil {
		found.Extra = cloneExtra(found.Extra)
	}
	return found, nil
}

func (s *MemoryStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	rec, err := s.GetByURL(ctx, url)
	return rec != nil, err
}

func (s *MemoryStore) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var existing *Record
	if prev, ok := s.records[rec.ID]; ok {
		existing = &prev
	}
	s.records[rec.ID] = Merge(existing, rec, s.clock())
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		rec.Extra = cloneExtra(rec.Extra)
		out = append(out, rec)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt != out[j].UpdatedAt {
			return out[i].UpdatedAt > out[j].UpdatedAt
		}
		return out[i].ID < out[j].ID
	})
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
