package storage

import (
	"sync"
	"time"
)

// SearchRecord is one provider invocation as seen from the outside: the
// queried route and how the call ended. It is operational audit data, not a
// cache of offers.
type SearchRecord struct {
	ServiceID   string
	Origin      string
	Destination string
	Outcome     string // ok, http_error, unavailable
	OfferCount  int
	RequestedAt time.Time
}

// SearchLog defines persistence for provider-call audit records.
type SearchLog interface {
	Record(r SearchRecord) error
}

type MemoryLog struct {
	mu      sync.RWMutex
	records []SearchRecord
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Record(r SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

// Recent returns up to n most recent records, newest last.
func (m *MemoryLog) Recent(n int) []SearchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]SearchRecord, n)
	copy(out, m.records[len(m.records)-n:])
	return out
}
