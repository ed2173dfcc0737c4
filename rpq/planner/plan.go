package planner

import (
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// Plan schedules the DAG and derives cost, cardinality and selectivity of
// every non-leaf node from its children. Materialized nodes cost LookupCost
// while EvalCost keeps the figure without materialization. Each equivalence
// node takes the values of its cheapest alternative under the current
// materialization, which becomes its TargetChild. Leaf annotations are read,
// never written.
func (d *AndOrDag) Plan() error {
	start := time.Now()

	if err := d.TopoSort(); err != nil {
		return err
	}
	order, err := d.scheduled()
	if err != nil {
		return err
	}

	for _, v := range order {
		switch d.nodes[v].Op {
		case OpLeaf:
		case OpConcat:
			d.planConcat(v)
		case OpAlternation:
			d.planAlternation(v)
		case OpKleene:
			d.planKleene(v)
		case OpEquivalence:
			d.planEquivalence(v)
			continue
		}
		d.planCost(v)
	}

	d.options.Collector.AddTiming(annotations.PlanComplete, start, map[string]interface{}{
		"nodes":         len(d.nodes),
		"workload.cost": d.WorkloadCost(),
	})
	return nil
}

// planConcat folds the children left to right, joining each on the labels
// where the previous child ends and the next one starts
func (d *AndOrDag) planConcat(v int) {
	n := &d.nodes[v]
	first := n.Children[0]
	est := d.estimateOf(first)
	cost := d.evalCost[first]

	for i := 1; i < len(n.Children); i++ {
		prev, next := n.Children[i-1], n.Children[i]
		jf := d.junctionFactor(d.nodes[prev].EndLabels, d.nodes[next].StartLabels)

		var paths float64
		est, paths = concatEstimate(est, d.estimateOf(next), jf)
		cost += d.evalCost[next] + d.options.ConcatFactor*paths
	}

	d.setEstimate(v, est)
	d.evalCost[v] = cost
}

func (d *AndOrDag) planAlternation(v int) {
	n := &d.nodes[v]
	branches := make([]estimate, len(n.Children))
	cost := d.options.MergeOverhead
	for i, c := range n.Children {
		branches[i] = d.estimateOf(c)
		cost += d.evalCost[c]
	}

	var vertices uint64
	if d.stats != nil {
		vertices = d.stats.NumVertices()
	}
	d.setEstimate(v, altEstimate(branches, vertices))
	d.evalCost[v] = cost
}

func (d *AndOrDag) planKleene(v int) {
	c := d.nodes[v].Children[0]
	est, rounds := kleeneEstimate(d.estimateOf(c), d.options.KleeneMaxRounds)
	d.setEstimate(v, est)
	d.evalCost[v] = float64(rounds) * d.evalCost[c]
}

// planCost sets the cost of v once its evalCost is known. Nodes with no
// materialized descendant keep their evalCost exactly.
func (d *AndOrDag) planCost(v int) {
	n := &d.nodes[v]
	switch {
	case n.Op == OpLeaf:
	case d.materialized[v]:
		d.cost[v] = d.options.LookupCost
	case d.childCostsChanged(v):
		d.cost[v] = d.derivedCost(v, d.cost)
	default:
		d.cost[v] = d.evalCost[v]
	}
}

func (d *AndOrDag) childCostsChanged(v int) bool {
	for _, c := range d.nodes[v].Children {
		if d.cost[c] != d.evalCost[c] {
			return true
		}
	}
	return false
}

func (d *AndOrDag) planEquivalence(v int) {
	target := d.cheapestPlanned(v)
	d.nodes[v].TargetChild = target
	d.setEstimate(v, d.estimateOf(target))
	d.evalCost[v] = d.evalCost[target]
	if d.materialized[v] {
		d.cost[v] = d.options.LookupCost
	} else {
		d.cost[v] = d.cost[target]
	}
}

// cheapestPlanned is the child with the lowest cost under the current
// materialization, ties to the lowest index
func (d *AndOrDag) cheapestPlanned(v int) int {
	best := -1
	for _, c := range d.nodes[v].Children {
		if best < 0 || d.cost[c] < d.cost[best] || (d.cost[c] == d.cost[best] && c < best) {
			best = c
		}
	}
	return best
}
