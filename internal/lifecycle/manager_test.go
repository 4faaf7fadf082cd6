package lifecycle

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestManager_ClosesInReverseOrder(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var order []string
	for _, name := range []string{"store", "metrics", "http"} {
		name := name
		m.RegisterFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	want := []string{"http", "metrics", "store"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("close order = %v, want %v", order, want)
	}
}

func TestManager_JoinsErrorsAndClosesAll(t *testing.T) {
	m := NewManager(zerolog.Nop())

	errFirst := errors.New("first")
	errSecond := errors.New("second")
	closedStore := false

	m.RegisterFunc("store", func() error {
		closedStore = true
		return errSecond
	})
	m.RegisterFunc("http", func() error { return errFirst })

	err := m.Close()
	if !errors.Is(err, errFirst) || !errors.Is(err, errSecond) {
		t.Errorf("expected both errors, got %v", err)
	}
	if !closedStore {
		t.Error("expected store closed despite earlier failure")
	}
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	m := NewManager(zerolog.Nop())
	calls := 0
	m.RegisterFunc("store", func() error {
		calls++
		return nil
	})

	_ = m.Close()
	_ = m.Close()

	if calls != 1 {
		t.Errorf("expected closer called once, got %d", calls)
	}
}

func TestManager_ShutdownHonoursDeadline(t *testing.T) {
	m := NewManager(zerolog.Nop())
	release := make(chan struct{})
	m.RegisterFunc("slow-store", func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	close(release)
	if err := m.Close(); err != nil {
		t.Fatalf("Close after interrupted shutdown: %v", err)
	}
}

func TestManager_ShutdownCompletes(t *testing.T) {
	m := NewManager(zerolog.Nop())
	closed := false
	m.RegisterFunc("store", func() error {
		closed = true
		return nil
	})
	if err := m.Shutdown(context.Background()); err != nil || !closed {
		t.Fatalf("expected clean shutdown, err=%v closed=%v", err, closed)
	}
}
