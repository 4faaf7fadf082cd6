// Package lifecycle tears down long-lived resources in reverse start order.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Manager closes registered resources newest first, so the HTTP server
// drains before the record store it writes to goes away.
type Manager struct {
	mu        sync.Mutex
	resources []resource
	log       zerolog.Logger
	once      sync.Once
	err       error
	done      chan struct{}
}

type resource struct {
	name   string
	closer io.Closer
}

// NewManager creates an empty manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log, done: make(chan struct{})}
}

// Register adds a resource. Registering after Close has started has no
// effect on that Close.
func (m *Manager) Register(name string, closer io.Closer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, resource{name: name, closer: closer})
}

// RegisterFunc registers fn as a closer.
func (m *Manager) RegisterFunc(name string, fn func() error) {
	m.Register(name, closerFunc(fn))
}

// Close closes every resource even when some fail and returns their
// errors joined. Later calls return the same result without closing again.
func (m *Manager) Close() error {
	m.once.Do(m.closeAll)
	<-m.done
	return m.err
}

// Shutdown is Close bounded by ctx. When ctx ends first the remaining
// closers keep running in the background and ctx's error is returned.
func (m *Manager) Shutdown(ctx context.Context) error {
	go m.once.Do(m.closeAll)
	select {
	case <-m.done:
		return m.err
	case <-ctx.Done():
		return fmt.Errorf("lifecycle: shutdown interrupted: %w", ctx.Err())
	}
}

func (m *Manager) closeAll() {
	defer close(m.done)

	m.mu.Lock()
	resources := make([]resource, len(m.resources))
	copy(resources, m.resources)
	m.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		res := resources[i]
		if err := res.closer.Close(); err != nil {
			m.log.Error().Err(err).Str("resource", res.name).Msg("lifecycle.close_failed")
			errs = append(errs, err)
			continue
		}
		m.log.Debug().Str("resource", res.name).Msg("lifecycle.closed")
	}
	m.err = errors.Join(errs...)
}

type closerFunc func() error

func (f closerFunc) Close() error {
	return f()
}
