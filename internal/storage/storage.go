package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested record is missing from the store.
var ErrNotFound = errors.New("storage: not found")

// ErrInvalidQuery is returned when a filter or order clause cannot be
// compiled by a backend.
var ErrInvalidQuery = errors.New("storage: invalid query")

// Document is the schemaless body of a record. Values are normalised
// through JSON before they reach a backend, so numbers are float64,
// nested objects are map[string]any and timestamps are strings.
type Document map[string]any

// Record is a stored document together with its store-assigned ID.
type Record struct {
	ID   string
	Data Document
}

// RecordStore is the persistence contract shared by every backend.
//
// Insert assigns a fresh ID. Get returns ErrNotFound for unknown IDs.
// Update merges patch into the stored document at the top level and
// returns ErrNotFound when the record does not exist. Query returns
// records matching every filter, ordered and limited as requested.
type RecordStore interface {
	Insert(ctx context.Context, collection string, doc Document) (string, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Query(ctx context.Context, collection string, q Query) ([]Record, error)
	Update(ctx context.Context, collection, id string, patch Document) error
	Delete(ctx context.Context, collection, id string) error
	Ping(ctx context.Context) error
	Close() error
}
