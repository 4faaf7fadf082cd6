package storage

import (
	"context"
	"time"
)

// DefaultQueryTimeout bounds backend calls whose context has no deadline.
const DefaultQueryTimeout = 5 * time.Second

// withQueryTimeout applies d (or DefaultQueryTimeout) unless the caller
// already set a deadline.
func withQueryTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}
