package planner

import (
	"math"

	"github.com/wbrown/janus-rpq/rpq"
)

// kleeneEpsilon ends the closure series once a term stops contributing
const kleeneEpsilon = 1e-9

// estimate is the cardinality part of a node's annotation
type estimate struct {
	src, dst uint64
	prob     float64
}

// pairs is the estimated number of connected (source, destination) pairs
func (e estimate) pairs() float64 {
	return e.prob * float64(e.src) * float64(e.dst)
}

func (d *AndOrDag) estimateOf(i int) estimate {
	return estimate{src: d.srcCnt[i], dst: d.dstCnt[i], prob: d.pairProb[i]}
}

func (d *AndOrDag) setEstimate(i int, e estimate) {
	d.srcCnt[i] = e.src
	d.dstCnt[i] = e.dst
	d.pairProb[i] = e.prob
}

// concatEstimate composes a then b through junction vertices. It returns the
// composed estimate and the number of intermediate paths the join produces.
func concatEstimate(a, b estimate, jf float64) (estimate, float64) {
	junction := math.Min(float64(a.dst), float64(b.src)) * jf
	paths := a.prob * float64(a.src) * junction * b.prob * float64(b.dst)
	if !(paths > 0) {
		return estimate{}, 0
	}

	src := roundCount(float64(a.src) * math.Min(1, a.prob*junction))
	dst := roundCount(float64(b.dst) * math.Min(1, b.prob*junction))
	return estimate{
		src:  src,
		dst:  dst,
		prob: math.Min(1, paths/(float64(src)*float64(dst))),
	}, paths
}

// altEstimate unions the branches, capping the domains at the vertex count
// when it is known
func altEstimate(branches []estimate, vertices uint64) estimate {
	var src, dst uint64
	var pairs float64
	for _, b := range branches {
		src = addSat(src, b.src)
		dst = addSat(dst, b.dst)
		pairs += b.pairs()
	}
	if vertices > 0 {
		src = min(src, vertices)
		dst = min(dst, vertices)
	}

	cross := float64(src) * float64(dst)
	if cross == 0 {
		return estimate{src: src, dst: dst}
	}
	return estimate{src: src, dst: dst, prob: math.Min(pairs, cross) / cross}
}

// kleeneEstimate sums the bounded series p·(p·o)^(r-1) for r = 1..maxRounds
// and reports the number of rounds it took to saturate or converge
func kleeneEstimate(c estimate, maxRounds int) (estimate, int) {
	overlap := math.Min(float64(c.src), float64(c.dst))
	var sum float64
	rounds := 0
	term := c.prob
	for r := 1; r <= maxRounds; r++ {
		rounds = r
		sum += term
		if sum >= 1 || term < kleeneEpsilon {
			break
		}
		term *= c.prob * overlap
	}
	return estimate{src: c.src, dst: c.dst, prob: math.Min(1, sum)}, rounds
}

// junctionFactor estimates the fraction of departures through start that
// can continue a path arriving through end. Without statistics every
// junction is assumed to connect.
func (d *AndOrDag) junctionFactor(end, start rpq.LabelSet) float64 {
	if d.stats == nil {
		return 1
	}

	var weighted, total float64
	for _, y := range start {
		yi, ok := d.stats.LabelIndex(y.ID)
		if !ok {
			continue
		}
		m := float64(d.stats.EdgeCount(yi))
		if m == 0 {
			continue
		}

		var frac float64
		for _, x := range end {
			xi, ok := d.stats.LabelIndex(x.ID)
			if !ok {
				continue
			}
			frac += d.pairFraction(x, xi, y, yi)
		}
		weighted += m * math.Min(1, frac)
		total += m
	}

	if total == 0 {
		return 0
	}
	return weighted / total
}

// pairFraction is the share of y departures available at vertices reached
// through x. A forward x arrives at an edge target; a forward y leaves from
// an edge source.
func (d *AndOrDag) pairFraction(x rpq.Label, xi int, y rpq.Label, yi int) float64 {
	var hits, base uint64
	switch {
	case !x.Inverse && !y.Inverse:
		hits, base = d.stats.OutCnt(xi, yi), d.stats.EdgeCount(yi)
	case x.Inverse && y.Inverse:
		hits, base = d.stats.InCnt(xi, yi), d.stats.EdgeCount(yi)
	case !x.Inverse && y.Inverse:
		hits, base = d.stats.InCooccur(xi, yi), d.stats.TargetCount(yi)
	default:
		hits, base = d.stats.OutCooccur(xi, yi), d.stats.SourceCount(yi)
	}
	if base == 0 {
		return 0
	}
	return math.Min(1, float64(hits)/float64(base))
}

// Space is the storage a view of node i takes, max(1, ceil(pairs))
func (d *AndOrDag) Space(i int) uint64 {
	return d.space(i)
}

// space is the storage consumed by materializing node i
func (d *AndOrDag) space(i int) uint64 {
	s := math.Ceil(d.estimateOf(i).pairs())
	switch {
	case !(s >= 1):
		return 1
	case s >= math.MaxUint64:
		return math.MaxUint64
	default:
		return uint64(s)
	}
}

// costsUnder derives the cost of every node with the nodes accepted by
// materialized read at LookupCost. An operator's own work is what its
// evalCost adds over its children; targets of equivalence nodes stay fixed.
// Nodes without a materialized descendant keep their evalCost exactly.
func (d *AndOrDag) costsUnder(order []int, materialized func(int) bool) []float64 {
	cost := append([]float64(nil), d.evalCost...)
	dirty := make([]bool, len(d.nodes))

	for _, v := range order {
		n := &d.nodes[v]
		if n.Op == OpLeaf {
			cost[v] = d.cost[v]
			continue
		}
		if materialized(v) {
			cost[v] = d.options.LookupCost
			dirty[v] = true
			continue
		}
		for _, c := range n.Children {
			if dirty[c] {
				dirty[v] = true
				break
			}
		}
		if dirty[v] {
			cost[v] = d.derivedCost(v, cost)
		}
	}
	return cost
}

// derivedCost recomputes non-leaf v from the costs of its children
func (d *AndOrDag) derivedCost(v int, cost []float64) float64 {
	n := &d.nodes[v]
	switch n.Op {
	case OpConcat, OpAlternation:
		var evalChildren, children float64
		for _, c := range n.Children {
			evalChildren += d.evalCost[c]
			children += cost[c]
		}
		return math.Max(0, d.evalCost[v]-evalChildren) + children
	case OpKleene:
		c := n.Children[0]
		if d.evalCost[c] == 0 {
			return cost[c]
		}
		return d.evalCost[v] / d.evalCost[c] * cost[c]
	case OpEquivalence:
		return cost[d.targetOf(v)]
	default:
		return cost[v]
	}
}

// targetOf returns the planned alternative of equivalence node v, or the
// cheapest unmaterialized one when v has not been planned
func (d *AndOrDag) targetOf(v int) int {
	if t := d.nodes[v].TargetChild; t >= 0 {
		return t
	}
	return d.cheapestChild(v)
}

// cheapestChild is the child with the lowest evalCost, ties to the lowest index
func (d *AndOrDag) cheapestChild(v int) int {
	best := -1
	for _, c := range d.nodes[v].Children {
		if best < 0 || d.evalCost[c] < d.evalCost[best] || (d.evalCost[c] == d.evalCost[best] && c < best) {
			best = c
		}
	}
	return best
}

func roundCount(x float64) uint64 {
	switch {
	case !(x >= 1):
		return 1
	case x >= math.MaxUint64:
		return math.MaxUint64
	default:
		return uint64(math.Round(x))
	}
}

func addSat(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
