package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func TestLRUEviction(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // a becomes most recent
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used entry not evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("Size() = %d", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Minute).WithClock(clk.Now)
	c.Set("k", "v")
	c.Set("other", "v")

	clk.t = clk.t.Add(30 * time.Second)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry expired too early")
	}

	clk.t = clk.t.Add(31 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("entry should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired() = %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("Size() = %d", c.Size())
	}
}

func TestLRUNoTTL(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := NewLRUCache[int](1, 0).WithClock(clk.Now)
	c.Set("k", 1)
	clk.t = clk.t.Add(24 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("entry without TTL expired")
	}
}

func TestLRUDeleteAndClear(t *testing.T) {
	c := NewLRUCache[int](5, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("deleted entry still present")
	}
	c.Clear()
	if c.Size() != 0 {
		t.Fatalf("Size() after Clear = %d", c.Size())
	}
	c.Set("c", 3)
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatal("cache unusable after Clear")
	}
}

func TestManagerCleanAll(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	a := NewLRUCache[int](5, time.Second).WithClock(clk.Now)
	b := NewLRUCache[int](5, time.Second).WithClock(clk.Now)
	a.Set("x", 1)
	b.Set("y", 1)
	b.Set("z", 1)

	m := NewManager(nil)
	m.Register(a)
	m.Register(b)

	clk.t = clk.t.Add(2 * time.Second)
	if n := m.CleanAll(); n != 3 {
		t.Fatalf("CleanAll() = %d", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
