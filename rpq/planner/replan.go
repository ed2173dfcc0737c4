package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// Replan is the effect of materializing a fixed set of nodes
type Replan struct {
	NodeToNewCost map[int]float64 // only nodes whose cost changes
	ReducedCost   float64         // Σ workloadFreq·(old − new) over entries
}

// Changed returns the changed node indices in ascending order
func (r *Replan) Changed() []int {
	out := make([]int, 0, len(r.NodeToNewCost))
	for v := range r.NodeToNewCost {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ReplanWithMaterialize costs the DAG as if indices were materialized in
// addition to the nodes that already are. Only indices and their ancestors
// are recomputed and TargetChild choices are kept. The DAG is not modified.
// Leaves are never materialized: a leaf index is accepted and changes
// nothing.
func (d *AndOrDag) ReplanWithMaterialize(indices []int) (*Replan, error) {
	start := time.Now()
	if err := d.validateIndices(indices); err != nil {
		return nil, err
	}

	newCost, affected, err := d.whatIf(indices)
	if err != nil {
		return nil, err
	}

	r := &Replan{NodeToNewCost: make(map[int]float64)}
	for v, ok := range affected {
		if ok && newCost[v] != d.cost[v] {
			r.NodeToNewCost[v] = newCost[v]
		}
	}
	for _, e := range d.entries() {
		if c, ok := r.NodeToNewCost[e]; ok {
			r.ReducedCost += float64(d.workloadFreq[e]) * (d.cost[e] - c)
		}
	}

	d.options.Collector.AddTiming(annotations.ReplanComplete, start, map[string]interface{}{
		"materialized": len(indices),
		"changed":      len(r.NodeToNewCost),
		"reduced":      r.ReducedCost,
	})
	return r, nil
}

// ApplyMaterialization marks indices as materialized and commits the costs
// ReplanWithMaterialize reports for them. Leaf indices are skipped.
func (d *AndOrDag) ApplyMaterialization(indices []int) error {
	if err := d.validateIndices(indices); err != nil {
		return err
	}

	newCost, affected, err := d.whatIf(indices)
	if err != nil {
		return err
	}
	for _, v := range indices {
		if d.nodes[v].Op != OpLeaf {
			d.materialized[v] = true
		}
	}
	for v, ok := range affected {
		if ok {
			d.cost[v] = newCost[v]
		}
	}
	return nil
}

// ClearMaterialization drops every materialized node and restores the
// unmaterialized costs
func (d *AndOrDag) ClearMaterialization() {
	for i := range d.materialized {
		d.materialized[i] = false
		if d.nodes[i].Op != OpLeaf {
			d.cost[i] = d.evalCost[i]
		}
	}
}

// whatIf derives costs with indices added to the materialized set and
// reports which nodes it had to recompute
func (d *AndOrDag) whatIf(indices []int) ([]float64, []bool, error) {
	order, err := d.scheduled()
	if err != nil {
		return nil, nil, err
	}

	extra := make([]bool, len(d.nodes))
	for _, v := range indices {
		extra[v] = true
	}
	newCost := d.costsUnder(order, func(i int) bool {
		return extra[i] || d.materialized[i]
	})

	// indices and every ancestor
	affected := make([]bool, len(d.nodes))
	for _, v := range indices {
		affected[v] = true
	}
	for _, v := range order {
		for _, c := range d.nodes[v].Children {
			if affected[c] {
				affected[v] = true
				break
			}
		}
	}
	return newCost, affected, nil
}

func (d *AndOrDag) validateIndices(indices []int) error {
	for _, v := range indices {
		if v < 0 || v >= len(d.nodes) {
			return fmt.Errorf("%w: node %d outside [0, %d)", ErrInvalidArgument, v, len(d.nodes))
		}
	}
	return nil
}
