package cache

import (
	"testing"
	"time"
)

func TestGetMissingKey(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	if _, ok := c.Get("absent"); ok {
		t.Fatalf("expected miss for absent key")
	}
}

func TestPutGet(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.Put("a", 1)
	got, ok := c.Get("a")
	if !ok || got != 1 {
		t.Fatalf("expected hit with 1, got %d/%v", got, ok)
	}
}

func TestExpiry(t *testing.T) {
	c := NewTTL[string, int](time.Millisecond)
	c.Put("a", 1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected entry expired")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := NewTTL[string, int](0)
	c.Put("a", 1)
	time.Sleep(2 * time.Millisecond)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected entry kept with expiry disabled")
	}
}

func TestInvalidateAndPurge(t *testing.T) {
	c := NewTTL[string, int](time.Minute)
	c.Put("a", 1)
	c.Put("b", 2)

	c.Invalidate("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a invalidated")
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("expected b kept")
	}

	c.Purge()
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b purged")
	}
}
