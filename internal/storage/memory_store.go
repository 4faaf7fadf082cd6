package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory. Suitable for tests and
// single-instance development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]storedRecord
	seq         uint64
}

// storedRecord remembers insertion order so unordered queries are stable.
type storedRecord struct {
	seq  uint64
	data Document
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]storedRecord)}
}

// Insert implements RecordStore.
func (s *MemoryStore) Insert(_ context.Context, collection string, doc Document) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("%w: empty collection", ErrInvalidQuery)
	}
	normalized, err := normalizeDocument(doc)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]storedRecord)
		s.collections[collection] = col
	}
	s.seq++
	col[id] = storedRecord{seq: s.seq, data: normalized}
	return id, nil
}

// Get implements RecordStore.
func (s *MemoryStore) Get(_ context.Context, collection, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return Record{ID: id, Data: cloneDocument(rec.data)}, nil
}

// Query implements RecordStore.
func (s *MemoryStore) Query(_ context.Context, collection string, q Query) ([]Record, error) {
	q, err := q.validate()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	records := snapshotCollection(s.collections[collection])
	s.mu.RUnlock()

	return applyQuery(records, q), nil
}

// Update implements RecordStore.
func (s *MemoryStore) Update(_ context.Context, collection, id string, patch Document) error {
	normalized, err := normalizeDocument(patch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	merged := cloneDocument(rec.data)
	for k, v := range normalized {
		merged[k] = v
	}
	rec.data = merged
	s.collections[collection][id] = rec
	return nil
}

// Delete implements RecordStore.
func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

// Ping implements RecordStore.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements RecordStore.
func (s *MemoryStore) Close() error { return nil }

// snapshotCollection copies a collection in insertion order.
func snapshotCollection(col map[string]storedRecord) []Record {
	type entry struct {
		seq uint64
		rec Record
	}
	entries := make([]entry, 0, len(col))
	for id, r := range col {
		entries = append(entries, entry{seq: r.seq, rec: Record{ID: id, Data: cloneDocument(r.data)}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}
