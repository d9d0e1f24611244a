package store

import (
	"sort"
	"sync"
)

// MemoryStore is the in-memory Store used by tests and the replay tool.
// Like the SQLite store it enforces an optional record limit so the
// compaction path can be exercised without a real flash region.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string][]byte
	maxRecords int

	// FailSets makes the next n Set calls fail with ErrNoSpace,
	// regardless of occupancy. Test hook.
	FailSets int
}

func NewMemoryStore(maxRecords int) *MemoryStore {
	return &MemoryStore{records: map[string][]byte{}, maxRecords: maxRecords}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSets > 0 {
		s.FailSets--
		return ErrNoSpace
	}
	if _, exists := s.records[key]; !exists &&
		s.maxRecords > 0 && len(s.records) >= s.maxRecords {
		return ErrNoSpace
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.records[key] = v
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Each(fn func(key string, value []byte) bool) error {
	s.mu.Lock()
	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	for _, k := range keys {
		v, err := s.Get(k)
		if err != nil {
			continue
		}
		if !fn(k, v) {
			break
		}
	}
	return nil
}

func (s *MemoryStore) RewriteFiltered(keep func(key string, value []byte) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.records {
		if !keep(k, v) {
			delete(s.records, k)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len reports the current record count. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
