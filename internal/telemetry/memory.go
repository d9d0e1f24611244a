package telemetry

import "sync"

// MemoryTransport collects appends in memory. Tests script its failure
// behavior through NextStatuses.
type MemoryTransport struct {
	mu       sync.Mutex
	sessions []*MemorySession
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{}
}

func (t *MemoryTransport) CreateSession(tag string, itemType uint16, itemSize int) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &MemorySession{Tag: tag, ItemType: itemType, ItemSize: itemSize}
	t.sessions = append(t.sessions, s)
	return s, nil
}

// Sessions returns every session created so far.
func (t *MemoryTransport) Sessions() []*MemorySession {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*MemorySession, len(t.sessions))
	copy(out, t.sessions)
	return out
}

// MemorySession records appended frames.
type MemorySession struct {
	mu       sync.Mutex
	Tag      string
	ItemType uint16
	ItemSize int

	Appends [][]byte
	Counts  []int

	// NextStatuses is drained one status per Append; empty means OK.
	NextStatuses []Status
	closed       bool
}

func (s *MemorySession) Append(data []byte, count int) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.NextStatuses) > 0 {
		st := s.NextStatuses[0]
		s.NextStatuses = s.NextStatuses[1:]
		if st != StatusOK {
			return st
		}
	}
	if s.closed {
		return StatusClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.Appends = append(s.Appends, buf)
	s.Counts = append(s.Counts, count)
	return StatusOK
}

func (s *MemorySession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// TotalCount sums the item counts of all successful appends.
func (s *MemorySession) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}
