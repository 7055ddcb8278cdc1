package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/charter/pkg/evidence"
)

// MemoryStorage implements evidence.Storage with a map.
type MemoryStorage struct {
	records map[string]*evidence.Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]*evidence.Record),
	}
}

// Store implements evidence.Storage.
func (s *MemoryStorage) Store(ctx context.Context, record *evidence.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return evidence.NewStorageError("memory", "store", fmt.Errorf("record %s already exists", record.ID))
	}
	s.records[record.ID] = cloneRecord(record)
	return nil
}

// Query implements evidence.Storage.
func (s *MemoryStorage) Query(ctx context.Context, query *evidence.Query) ([]*evidence.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*evidence.Record{}
	for _, r := range s.records {
		if query.Matches(r) {
			results = append(results, cloneRecord(r))
		}
	}

	desc := query.SortOrder != "asc"
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if !a.RecordedAt.Equal(b.RecordedAt) {
			if desc {
				return a.RecordedAt.After(b.RecordedAt)
			}
			return a.RecordedAt.Before(b.RecordedAt)
		}
		return a.ID < b.ID
	})

	start := query.Offset
	if start > len(results) {
		return []*evidence.Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}
	return results, nil
}

// Count implements evidence.Storage.
func (s *MemoryStorage) Count(ctx context.Context, query *evidence.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if query.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Close implements evidence.Storage.
func (s *MemoryStorage) Close() error {
	return nil
}

func cloneRecord(r *evidence.Record) *evidence.Record {
	c := *r
	if r.Attributes != nil {
		c.Attributes = make(map[string]string, len(r.Attributes))
		for k, v := range r.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}
