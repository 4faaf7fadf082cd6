package storage

import (
	"context"
	"errors"

	"github.com/musichub/server/internal/circuitbreaker"
)

// BreakerStore guards a remote backend with a circuit breaker. Not-found
// and invalid-query results are answers, not outages, so they never count
// as failures.
type BreakerStore struct {
	next     RecordStore
	breakers *circuitbreaker.Manager
}

// NewBreakerStore wraps next.
func NewBreakerStore(next RecordStore, breakers *circuitbreaker.Manager) *BreakerStore {
	return &BreakerStore{next: next, breakers: breakers}
}

func isStoreFailure(err error) bool {
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInvalidQuery)
}

func (s *BreakerStore) run(fn func() (interface{}, error)) (interface{}, error) {
	return s.breakers.ExecuteWithFilter(circuitbreaker.ServiceRecordStore, isStoreFailure, fn)
}

// Insert implements RecordStore.
func (s *BreakerStore) Insert(ctx context.Context, collection string, doc Document) (string, error) {
	out, err := s.run(func() (interface{}, error) { return s.next.Insert(ctx, collection, doc) })
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Get implements RecordStore.
func (s *BreakerStore) Get(ctx context.Context, collection, id string) (Record, error) {
	out, err := s.run(func() (interface{}, error) { return s.next.Get(ctx, collection, id) })
	if err != nil {
		return Record{}, err
	}
	return out.(Record), nil
}

// Query implements RecordStore.
func (s *BreakerStore) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	out, err := s.run(func() (interface{}, error) { return s.next.Query(ctx, collection, q) })
	if err != nil {
		return nil, err
	}
	return out.([]Record), nil
}

// Update implements RecordStore.
func (s *BreakerStore) Update(ctx context.Context, collection, id string, patch Document) error {
	_, err := s.run(func() (interface{}, error) { return nil, s.next.Update(ctx, collection, id, patch) })
	return err
}

// Delete implements RecordStore.
func (s *BreakerStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.run(func() (interface{}, error) { return nil, s.next.Delete(ctx, collection, id) })
	return err
}

// Ping bypasses the breaker so health checks see the real backend state.
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// Close implements RecordStore.
func (s *BreakerStore) Close() error {
	return s.next.Close()
}
