package planner

import (
	"math"
	"testing"
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

func TestSelectionCache(t *testing.T) {
	cache := NewSelectionCache(10, 1*time.Minute)
	d := loadShared(t)

	sel, err := d.Clone().ChooseMatViews(ModeBottomUp, 25)
	if err != nil {
		t.Fatalf("ChooseMatViews: %v", err)
	}

	// Test miss
	cached, ok := cache.Get(d, ModeBottomUp, 25)
	if ok {
		t.Error("Expected cache miss, got hit")
	}
	if cached != nil {
		t.Error("Expected nil selection on cache miss")
	}

	cache.Set(d, ModeBottomUp, 25, sel)

	// Test hit
	cached, ok = cache.Get(d, ModeBottomUp, 25)
	if !ok {
		t.Error("Expected cache hit, got miss")
	}
	if cached != sel {
		t.Error("Expected to get the same selection back")
	}

	// Mode and budget are part of the key
	if _, ok := cache.Get(d, ModeTopDown, 25); ok {
		t.Error("Expected miss for a different mode")
	}
	if _, ok := cache.Get(d, ModeBottomUp, 26); ok {
		t.Error("Expected miss for a different budget")
	}

	hits, misses, size := cache.Stats()
	if hits != 1 {
		t.Errorf("Expected 1 hit, got %d", hits)
	}
	if misses != 3 {
		t.Errorf("Expected 3 misses, got %d", misses)
	}
	if size != 1 {
		t.Errorf("Expected cache size 1, got %d", size)
	}

	cache.Clear()

	hits, misses, size = cache.Stats()
	if hits != 0 || misses != 0 || size != 0 {
		t.Errorf("Expected stats to be reset after clear, got hits=%d, misses=%d, size=%d", hits, misses, size)
	}
	if _, ok := cache.Get(d, ModeBottomUp, 25); ok {
		t.Error("Expected cache miss after clear")
	}
}

func TestSelectionCacheKeyTracksWorkload(t *testing.T) {
	cache := NewSelectionCache(10, 1*time.Minute)
	d := loadShared(t)
	cache.Set(d, ModeGreedyBenefit, 25, &Selection{Mode: ModeGreedyBenefit, Budget: 25})

	changed := []struct {
		name   string
		mutate func(*AndOrDag)
	}{
		{"frequency", func(c *AndOrDag) {
			if err := c.SetWorkloadFrequency("(<1>/<2>)*", 3); err != nil {
				t.Fatal(err)
			}
		}},
		{"estimates", func(c *AndOrDag) { c.SetEstimates(3, 51, 5, 5, 0.8) }},
		{"lookup cost", func(c *AndOrDag) { c.options.LookupCost = 2 }},
		{"new query", func(c *AndOrDag) {
			if _, err := c.RegisterQuery("<3>/<1>", 1); err != nil {
				t.Fatal(err)
			}
		}},
	}

	for _, tt := range changed {
		c := d.Clone()
		tt.mutate(c)
		if _, ok := cache.Get(c, ModeGreedyBenefit, 25); ok {
			t.Errorf("Expected miss after changing %s", tt.name)
		}
	}

	// an identical clone shares the entry
	if _, ok := cache.Get(d.Clone(), ModeGreedyBenefit, 25); !ok {
		t.Error("Expected hit for an unchanged clone")
	}
}

func TestSelectionCacheEviction(t *testing.T) {
	cache := NewSelectionCache(2, 1*time.Hour)
	d := loadShared(t)

	budgets := []uint64{5, 25, 50}
	cache.Set(d, ModeBottomUp, budgets[0], &Selection{Budget: budgets[0]})
	time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	cache.Set(d, ModeBottomUp, budgets[1], &Selection{Budget: budgets[1]})

	if _, ok := cache.Get(d, ModeBottomUp, budgets[0]); !ok {
		t.Error("Expected first budget to be cached")
	}
	if _, ok := cache.Get(d, ModeBottomUp, budgets[1]); !ok {
		t.Error("Expected second budget to be cached")
	}

	// Adding a third evicts the oldest
	cache.Set(d, ModeBottomUp, budgets[2], &Selection{Budget: budgets[2]})

	if _, ok := cache.Get(d, ModeBottomUp, budgets[0]); ok {
		t.Error("Expected first budget to be evicted")
	}
	if _, ok := cache.Get(d, ModeBottomUp, budgets[1]); !ok {
		t.Error("Expected second budget to still be cached")
	}
	if _, ok := cache.Get(d, ModeBottomUp, budgets[2]); !ok {
		t.Error("Expected third budget to be cached")
	}
}

func TestSelectionCacheTTL(t *testing.T) {
	cache := NewSelectionCache(10, 50*time.Millisecond)
	d := loadShared(t)
	cache.Set(d, ModeSharedFirst, 10, &Selection{Budget: 10})

	if _, ok := cache.Get(d, ModeSharedFirst, 10); !ok {
		t.Error("Expected selection to be cached")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := cache.Get(d, ModeSharedFirst, 10); ok {
		t.Error("Expected selection to be expired")
	}
}

func TestSelectionCacheNil(t *testing.T) {
	var cache *SelectionCache
	d := loadShared(t)

	cache.Set(d, ModeBottomUp, 1, &Selection{})
	if _, ok := cache.Get(d, ModeBottomUp, 1); ok {
		t.Error("Expected nil cache to always miss")
	}
	cache.Clear()
	if hits, misses, size := cache.Stats(); hits != 0 || misses != 0 || size != 0 {
		t.Errorf("Expected zero stats from nil cache, got %d/%d/%d", hits, misses, size)
	}
}

func TestExplore(t *testing.T) {
	c := annotations.NewCollector(nil)
	d := loadShared(t)
	d.options.Collector = c
	before := snapshot(t, d)

	cache := NewSelectionCache(10, 1*time.Minute)
	budgets := []uint64{0, 5, 25, math.MaxUint64}

	sels, err := Explore(d, ModeBottomUp, budgets, cache)
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	if len(sels) != len(budgets) {
		t.Fatalf("Expected %d selections, got %d", len(budgets), len(sels))
	}

	wantBenefit := []float64{0, 79, 226, 228}
	for i, sel := range sels {
		if sel.Budget != budgets[i] {
			t.Errorf("selection %d: budget %d, want %d", i, sel.Budget, budgets[i])
		}
		if math.Abs(sel.Benefit-wantBenefit[i]) > 1e-9 {
			t.Errorf("selection %d: benefit %v, want %v", i, sel.Benefit, wantBenefit[i])
		}
	}

	if got := snapshot(t, d); got != before {
		t.Error("Explore must not modify the DAG")
	}
	if n := len(c.Named(annotations.ExploreCacheMiss)); n != len(budgets) {
		t.Errorf("Expected %d cache misses, got %d", len(budgets), n)
	}

	// a second sweep is served from the cache
	again, err := Explore(d, ModeBottomUp, budgets, cache)
	if err != nil {
		t.Fatalf("Explore: %v", err)
	}
	for i := range again {
		if again[i] != sels[i] {
			t.Errorf("selection %d was recomputed", i)
		}
	}
	if n := len(c.Named(annotations.ExploreCacheHit)); n != len(budgets) {
		t.Errorf("Expected %d cache hits, got %d", len(budgets), n)
	}

	// without a cache every budget is computed
	if _, err := Explore(d, ModeTopDown, budgets[:2], nil); err != nil {
		t.Fatalf("Explore without cache: %v", err)
	}

	if _, err := Explore(d, SelectionMode(42), budgets, cache); err == nil {
		t.Error("Expected error for an unknown mode")
	}
}
