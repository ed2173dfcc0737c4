package planner

import (
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// AnnotateLeafCostCard sets cost and cardinality of every leaf from the
// graph statistics. Non-leaf nodes are left as they are. Running it again
// with the same statistics gives the same values.
func (d *AndOrDag) AnnotateLeafCostCard() error {
	if d.stats == nil {
		return ErrNoStatistics
	}
	start := time.Now()

	leaves := 0
	for i, n := range d.nodes {
		if n.Op != OpLeaf {
			continue
		}
		leaves++

		label, ok := d.stats.LabelIndex(n.Label.ID)
		if !ok {
			d.SetEstimates(i, 0, 0, 0, 0)
			continue
		}

		edges := d.stats.EdgeCount(label)
		src, dst := d.stats.SourceCount(label), d.stats.TargetCount(label)
		if n.Label.Inverse {
			src, dst = dst, src
		}

		var prob float64
		if src > 0 && dst > 0 {
			prob = clamp01(float64(edges) / (float64(src) * float64(dst)))
		}
		d.SetEstimates(i, d.options.LeafScanCost*float64(edges), src, dst, prob)
	}

	d.options.Collector.AddTiming(annotations.LeavesAnnotated, start, map[string]interface{}{
		"leaves": leaves,
	})
	return nil
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	default:
		return x
	}
}
