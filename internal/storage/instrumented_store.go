package storage

import (
	"context"
	"errors"

	"github.com/musichub/server/internal/metrics"
)

// InstrumentedStore records per-operation latency and errors.
type InstrumentedStore struct {
	next    RecordStore
	metrics *metrics.Metrics
	backend string
}

// NewInstrumentedStore wraps next. backend labels the metrics.
func NewInstrumentedStore(next RecordStore, m *metrics.Metrics, backend string) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: m, backend: backend}
}

// observed drops ErrNotFound so lookups of absent records are not errors.
func observed(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// Insert implements RecordStore.
func (s *InstrumentedStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	done := metrics.MeasureStoreOperation(s.metrics, "insert", s.backend)
	id, err := s.next.Insert(ctx, collection, doc)
	done(err)
	return id, err
}

// Get implements RecordStore.
func (s *InstrumentedStore) Get(ctx context.Context, collection, id string) (Record, error) {
	done := metrics.MeasureStoreOperation(s.metrics, "get", s.backend)
	rec, err := s.next.Get(ctx, collection, id)
	done(observed(err))
	return rec, err
}

// Query implements RecordStore.
func (s *InstrumentedStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	done := metrics.MeasureStoreOperation(s.metrics, "query", s.backend)
	recs, err := s.next.Query(ctx, collection, q)
	done(err)
	return recs, err
}

// Update implements RecordStore.
func (s *InstrumentedStore) Update(ctx context.Context, collection, id string, patch Document) error {
	done := metrics.MeasureStoreOperation(s.metrics, "update", s.backend)
	err := s.next.Update(ctx, collection, id, patch)
	done(observed(err))
	return err
}

// Delete implements RecordStore.
func (s *InstrumentedStore) Delete(ctx context.Context, collection, id string) error {
	done := metrics.MeasureStoreOperation(s.metrics, "delete", s.backend)
	err := s.next.Delete(ctx, collection, id)
	done(observed(err))
	return err
}

// Ping implements RecordStore.
func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close implements RecordStore.
func (s *InstrumentedStore) Close() error {
	return s.next.Close()
}
