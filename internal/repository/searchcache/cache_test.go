package searchcache

import (
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
)

func result(id string) domain.SearchResult {
	return domain.SearchResult{Documents: []domain.ScoredDocument{{ID: id}}}
}

func TestGetPut_RoundTrip(t *testing.T) {
	c := New(time.Minute, 10, nil)

	key := Key("business hours", 3, map[string]string{"tenant_id": "acme"})
	c.Put(key, result("d1"))

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got.Documents) != 1 || got.Documents[0].ID != "d1" {
		t.Errorf("unexpected cached value: %+v", got)
	}
}

func TestGet_MissOnUnknownKey(t *testing.T) {
	c := New(time.Minute, 10, nil)
	if _, ok := c.Get("absent"); ok {
		t.Error("expected cache miss for unknown key")
	}
}

func TestGet_ExpiredEntryIsMiss(t *testing.T) {
	c := New(30*time.Millisecond, 10, nil)

	c.Put("k", result("d1"))
	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss for expired entry")
	}
	// Expired but unswept entries still count until a put-triggered sweep.
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (expired entry not yet swept)", c.Len())
	}
}

func TestPut_SweepDropsExpiredFirst(t *testing.T) {
	c := New(30*time.Millisecond, 2, nil)

	c.Put("old1", result("a"))
	c.Put("old2", result("b"))
	time.Sleep(40 * time.Millisecond)

	// Third put exceeds the cap; both expired entries go, fresh one stays.
	c.Put("fresh", result("c"))

	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after sweep", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry evicted instead of expired ones")
	}
}

func TestPut_SweepDropsOldestWhenNothingExpired(t *testing.T) {
	c := New(time.Minute, 2, nil)

	c.Put("first", result("a"))
	c.Put("second", result("b"))
	c.Put("third", result("c"))

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after sweep", c.Len())
	}
	if _, ok := c.Get("first"); ok {
		t.Error("expected oldest entry to be evicted")
	}
	if _, ok := c.Get("second"); !ok {
		t.Error("second entry unexpectedly evicted")
	}
	if _, ok := c.Get("third"); !ok {
		t.Error("third entry unexpectedly evicted")
	}
}

func TestPut_RefreshMakesEntryYoung(t *testing.T) {
	c := New(time.Minute, 2, nil)

	c.Put("a", result("a"))
	c.Put("b", result("b"))
	c.Put("a", result("a2")) // re-put: "a" is now the youngest
	c.Put("c", result("c"))  // over cap: "b" is the oldest now

	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted after a was refreshed")
	}
	got, ok := c.Get("a")
	if !ok {
		t.Fatal("refreshed entry missing")
	}
	if got.Documents[0].ID != "a2" {
		t.Errorf("refreshed entry value = %q, want a2", got.Documents[0].ID)
	}
}

func TestPut_CapHoldsUnderManyInserts(t *testing.T) {
	c := New(time.Minute, 5, nil)

	for i := 0; i < 50; i++ {
		c.Put(fmt.Sprintf("k%d", i), result("d"))
	}
	if c.Len() != 5 {
		t.Errorf("Len() = %d, want 5", c.Len())
	}
	// The five youngest survive.
	for i := 45; i < 50; i++ {
		if _, ok := c.Get(fmt.Sprintf("k%d", i)); !ok {
			t.Errorf("expected k%d to survive", i)
		}
	}
}

func TestKey_FilterOrderIndependent(t *testing.T) {
	a := Key("query", 3, map[string]string{"x": "1", "y": "2"})
	b := Key("query", 3, map[string]string{"y": "2", "x": "1"})
	if a != b {
		t.Error("expected identical keys regardless of filter map order")
	}
}

func TestKey_Discriminates(t *testing.T) {
	base := Key("query", 3, map[string]string{"x": "1"})

	cases := map[string]string{
		"query text": Key("other", 3, map[string]string{"x": "1"}),
		"top_k":      Key("query", 4, map[string]string{"x": "1"}),
		"filter val": Key("query", 3, map[string]string{"x": "2"}),
		"filter key": Key("query", 3, map[string]string{"z": "1"}),
		"no filters": Key("query", 3, nil),
	}
	for name, k := range cases {
		if k == base {
			t.Errorf("key collision when varying %s", name)
		}
	}
}
