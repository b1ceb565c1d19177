package cache

import (
	"context"
	"testing"
	"time"

	"agrogestion/internal/core"
	"agrogestion/internal/ledger"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLRU(size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](size, ttl)
	c.now = clk.now
	return c, clk
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestLRU(2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a kept, got %d %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c, clk := newTestLRU(10, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	clk.t = clk.t.Add(30 * time.Second)
	c.Set("b", 3)
	clk.t = clk.t.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatal("expected a expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("expected nothing else expired, got %d", n)
	}
	if v, ok := c.Get("b"); !ok || v != 3 {
		t.Fatalf("expected refreshed b, got %d %v", v, ok)
	}
}

func TestLRUCache_DeletePrefix(t *testing.T) {
	c, _ := newTestLRU(10, time.Minute)
	c.Set("u1/2023", 1)
	c.Set("u1/2024", 2)
	c.Set("u10/2024", 3)

	if n := c.DeletePrefix("u1/"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("u10/2024"); !ok {
		t.Fatal("prefix match leaked into another owner")
	}
}

func TestSummaries_Invalidate(t *testing.T) {
	s := NewSummaries(10, time.Minute)
	for _, y := range []int{2023, 2024, 2025} {
		s.Set("u1", y, core.Annual{Year: y})
	}
	s.Set("u2", 2024, core.Annual{Year: 2024})

	_ = s.Notify(context.Background(), ledger.Change{Op: "create", OwnerID: "u1", Year: 2024})

	if _, ok := s.Get("u1", 2023); !ok {
		t.Fatal("2023 summary does not depend on 2024 data")
	}
	for _, y := range []int{2024, 2025} {
		if _, ok := s.Get("u1", y); ok {
			t.Fatalf("%d summary should be invalidated", y)
		}
	}
	if _, ok := s.Get("u2", 2024); !ok {
		t.Fatal("other owner's summary invalidated")
	}

	s.Invalidate(ledger.Change{Op: "delete", OwnerID: "u1"})
	if s.Size() != 1 {
		t.Fatalf("expected only u2 left, size=%d", s.Size())
	}
}

func TestSummaries_InvalidateYearMove(t *testing.T) {
	s := NewSummaries(10, time.Minute)
	for _, y := range []int{2021, 2022, 2023, 2024, 2025} {
		s.Set("u1", y, core.Annual{Year: y})
	}

	s.Invalidate(ledger.Change{Op: "update", OwnerID: "u1", Year: 2025, PrevYear: 2022})

	for _, y := range []int{2022, 2023, 2025} {
		if _, ok := s.Get("u1", y); ok {
			t.Errorf("%d summary should be invalidated", y)
		}
	}
	for _, y := range []int{2021, 2024} {
		if _, ok := s.Get("u1", y); !ok {
			t.Errorf("%d summary should survive", y)
		}
	}
}

func TestManager_CleanNow(t *testing.T) {
	c, clk := newTestLRU(10, time.Second)
	c.Set("a", 1)
	m := NewManager(nil)
	m.Register(c)

	clk.t = clk.t.Add(2 * time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
}
