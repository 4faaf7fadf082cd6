package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

var errBackend = errors.New("backend down")

func tripConfig() Config {
	cfg := DefaultConfig()
	cfg.RecordStore.ConsecutiveFailures = 2
	cfg.RecordStore.Timeout = time.Hour
	return cfg
}

func TestManager_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []gobreaker.State
	cfg := tripConfig()
	cfg.OnChange = func(service ServiceType, from, to gobreaker.State) {
		if service != ServiceRecordStore {
			t.Errorf("unexpected service %s", service)
		}
		transitions = append(transitions, to)
	}
	m := NewManager(cfg)

	for i := 0; i < 2; i++ {
		_, err := m.Execute(ServiceRecordStore, func() (interface{}, error) { return nil, errBackend })
		if !errors.Is(err, errBackend) {
			t.Fatalf("call %d: expected backend error, got %v", i, err)
		}
	}

	_, err := m.Execute(ServiceRecordStore, func() (interface{}, error) {
		t.Fatal("fn must not run while open")
		return nil, nil
	})
	if !IsOpen(err) {
		t.Fatalf("expected open-state error, got %v", err)
	}
	if m.State(ServiceRecordStore) != "open" {
		t.Errorf("expected open, got %s", m.State(ServiceRecordStore))
	}
	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected single transition to open, got %v", transitions)
	}
}

func TestManager_FilteredErrorsDoNotTrip(t *testing.T) {
	m := NewManager(tripConfig())
	errNotFound := errors.New("not found")

	for i := 0; i < 5; i++ {
		_, err := m.ExecuteWithFilter(ServiceRecordStore,
			func(err error) bool { return !errors.Is(err, errNotFound) },
			func() (interface{}, error) { return nil, errNotFound })
		if !errors.Is(err, errNotFound) {
			t.Fatalf("expected not-found passthrough, got %v", err)
		}
	}

	if m.State(ServiceRecordStore) != "closed" {
		t.Errorf("expected breaker to stay closed, got %s", m.State(ServiceRecordStore))
	}
	if c := m.Counts(ServiceRecordStore); c.TotalFailures != 0 {
		t.Errorf("expected no failures counted, got %d", c.TotalFailures)
	}
}

func TestManager_Disabled(t *testing.T) {
	m := NewManager(Config{Enabled: false})

	out, err := m.Execute(ServiceRecordStore, func() (interface{}, error) { return "ok", nil })
	if err != nil || out != "ok" {
		t.Fatalf("expected passthrough, got %v %v", out, err)
	}
	if m.State(ServiceRecordStore) != "disabled" {
		t.Errorf("expected disabled, got %s", m.State(ServiceRecordStore))
	}
}

func TestManager_FailureRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecordStore.ConsecutiveFailures = 0
	cfg.RecordStore.FailureRatio = 0.5
	cfg.RecordStore.MinRequests = 4
	cfg.RecordStore.Timeout = time.Hour
	m := NewManager(cfg)

	results := []error{nil, errBackend, nil, errBackend}
	for _, want := range results {
		want := want
		_, _ = m.Execute(ServiceRecordStore, func() (interface{}, error) { return nil, want })
	}

	if m.State(ServiceRecordStore) != "open" {
		t.Errorf("expected open after 50%% failures, got %s", m.State(ServiceRecordStore))
	}
}
