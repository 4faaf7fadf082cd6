package cacheutil

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTTLCache_LoadsOnceWithinTTL(t *testing.T) {
	c := New[string, int](time.Minute)
	var calls int
	load := func() (int, error) { calls++; return 42, nil }

	for i := 0; i < 3; i++ {
		v, err := c.Get("a", load)
		if err != nil || v != 42 {
			t.Fatalf("Get = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

func TestTTLCache_Expiry(t *testing.T) {
	c := New[string, int](time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	var calls int
	load := func() (int, error) { calls++; return calls, nil }

	c.Get("a", load)
	now = now.Add(2 * time.Minute)
	v, _ := c.Get("a", load)
	if v != 2 || calls != 2 {
		t.Fatalf("expected reload after expiry, got v=%d calls=%d", v, calls)
	}
}

func TestTTLCache_ErrorsNotCached(t *testing.T) {
	c := New[string, int](time.Minute)
	boom := errors.New("boom")
	if _, err := c.Get("a", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("error result was cached")
	}
}

func TestTTLCache_ZeroTTLPassesThrough(t *testing.T) {
	c := New[string, int](0)
	var calls int
	for i := 0; i < 2; i++ {
		c.Get("a", func() (int, error) { calls++; return 1, nil })
	}
	if calls != 2 || c.Len() != 0 {
		t.Fatalf("calls=%d len=%d", calls, c.Len())
	}
}

func TestTTLCache_WriteThroughInvalidates(t *testing.T) {
	c := New[string, int](time.Minute)
	c.Get("a", func() (int, error) { return 1, nil })

	if err := c.WriteThrough("a", func() error { return errors.New("fail") }); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 1 {
		t.Fatal("failed write must keep the entry")
	}
	if err := c.WriteThrough("a", func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Fatal("successful write must drop the entry")
	}
}

func TestTTLCache_ConcurrentMissLoadsOnce(t *testing.T) {
	c := New[string, int](time.Minute)
	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Get("k", func() (int, error) {
				calls.Add(1)
				time.Sleep(time.Millisecond)
				return 7, nil
			})
		}()
	}
	wg.Wait()
	if calls.Load() != 1 {
		t.Fatalf("loader called %d times, want 1", calls.Load())
	}
}
