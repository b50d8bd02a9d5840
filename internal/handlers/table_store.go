// internal/handlers/table_store.go
package handlers

import (
	"sync"

	"github.com/google/uuid"
)

// TableStore keeps the live tables of a server process.
type TableStore struct {
	mu     sync.Mutex
	tables map[uuid.UUID]*table
}

func NewTableStore() *TableStore {
	return &TableStore{
		tables: make(map[uuid.UUID]*table),
	}
}

func (s *TableStore) AddTable(t *table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.session.ID] = t
}

func (s *TableStore) GetTable(id uuid.UUID) (*table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, exists := s.tables[id]
	return t, exists
}

// DeleteTable forgets the table and returns it, if it was present.
func (s *TableStore) DeleteTable(id uuid.UUID) (*table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, exists := s.tables[id]
	delete(s.tables, id)
	return t, exists
}

// Len returns the number of live tables.
func (s *TableStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}
