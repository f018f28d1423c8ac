package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrLeadNotFound is returned when no record exists for the requested id.
var ErrLeadNotFound = errors.New("lead not found")

// Store fetches raw lead records. The relational database behind it is an
// external collaborator; the scoring core only sees this interface.
type Store interface {
	Get(ctx context.Context, id string) (*LeadRecord, error)
}

// MemoryStore is an in-memory Store used for fixtures and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*LeadRecord
}

// NewMemoryStore builds a store from the given records.
func NewMemoryStore(records ...*LeadRecord) *MemoryStore {
	s := &MemoryStore{records: make(map[string]*LeadRecord, len(records))}
	for _, r := range records {
		if r != nil && r.ID != "" {
			s.records[r.ID] = r
		}
	}
	return s
}

// LoadMemoryStore reads a JSON array of lead records from a file.
func LoadMemoryStore(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read leads file: %w", err)
	}
	var records []*LeadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode leads file: %w", err)
	}
	return NewMemoryStore(records...), nil
}

// Get returns a copy of the record so callers cannot mutate shared state.
func (s *MemoryStore) Get(_ context.Context, id string) (*LeadRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLeadNotFound, id)
	}
	cp := *r
	return &cp, nil
}

// Put inserts or replaces a record.
func (s *MemoryStore) Put(r *LeadRecord) {
	if r == nil || r.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// Len reports how many records the store holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
