package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/program-catalog/internal/catalog"
)

// ProgramStore provides an in-memory item store for development/testing.
type ProgramStore struct {
	mu   sync.RWMutex
	rows map[string]catalog.ProgramRecord
}

// NewProgramStore constructs a ProgramStore.
func NewProgramStore() *ProgramStore {
	return &ProgramStore{rows: make(map[string]catalog.ProgramRecord)}
}

// Upsert inserts or replaces the row keyed by program URL.
func (s *ProgramStore) Upsert(_ context.Context, record catalog.ProgramRecord) error {
	if record.ProgramURL == "" {
		return errors.New("program url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[record.ProgramURL] = cloneRecord(record)
	return nil
}

// Get returns the stored row for programURL.
func (s *ProgramStore) Get(programURL string) (catalog.ProgramRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rows[programURL]
	if !ok {
		return catalog.ProgramRecord{}, false
	}
	return cloneRecord(rec), true
}

// Len returns the number of stored rows.
func (s *ProgramStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

func cloneRecord(src catalog.ProgramRecord) catalog.ProgramRecord {
	cp := src
	if src.Tabs != nil {
		cp.Tabs = make(map[string]catalog.ContentSection, len(src.Tabs))
		for k, v := range src.Tabs {
			if v.Courses != nil {
				v.Courses = append([]string{}, v.Courses...)
			}
			cp.Tabs[k] = v
		}
	}
	return cp
}
