package metrics

import (
	"time"
)

// MeasureStoreOperation times a record store call. The returned func takes
// the call's error so failures are counted:
//
//	done := metrics.MeasureStoreOperation(m, "insert", "postgres")
//	id, err := store.Insert(ctx, col, doc)
//	done(err)
func MeasureStoreOperation(m *Metrics, operation, backend string) func(error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	return func(err error) {
		m.ObserveStoreOperation(operation, backend, time.Since(start), err)
	}
}
