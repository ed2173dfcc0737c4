package planner

import (
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// Explore runs ChooseMatViews for each budget on a clone of d, so d itself is
// never modified. Selections already in cache are reused; cache may be nil.
func Explore(d *AndOrDag, mode SelectionMode, budgets []uint64, cache *SelectionCache) ([]*Selection, error) {
	out := make([]*Selection, 0, len(budgets))
	for _, budget := range budgets {
		start := time.Now()
		data := map[string]interface{}{
			"mode":   mode.String(),
			"budget": budget,
		}

		if sel, ok := cache.Get(d, mode, budget); ok {
			d.options.Collector.AddTiming(annotations.ExploreCacheHit, start, data)
			out = append(out, sel)
			continue
		}
		d.options.Collector.AddTiming(annotations.ExploreCacheMiss, start, data)

		sel, err := d.Clone().ChooseMatViews(mode, budget)
		if err != nil {
			return nil, err
		}
		cache.Set(d, mode, budget, sel)
		out = append(out, sel)
	}
	return out, nil
}
