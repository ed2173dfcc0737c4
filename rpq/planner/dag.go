// Package planner compiles a workload of regular path queries into a shared
// AND-OR DAG and optimizes it.
//
// File organization:
//   - dag.go: AndOrDag store, options, accessors and Clone
//   - compiler.go: RegisterQuery and hash-consed node construction
//   - annotate.go: leaf cardinality/cost from graph statistics
//   - topo.go: topological scheduling
//   - plan.go, cost.go: bottom-up cost propagation and plan selection
//   - matviews.go: budgeted materialized view selection
//   - replan.go: what-if costing of a fixed materialization set
//   - interchange.go, fixtures.go: text formats
//   - cache.go, explore.go: memoized what-if exploration over clones
//
// The passes run in the order RegisterQuery → AnnotateLeafCostCard → Plan →
// ChooseMatViews / ReplanWithMaterialize. An AndOrDag is not safe for
// concurrent use; explore alternatives on a Clone.
package planner

import (
	"fmt"
	"sort"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// Options holds the cost model constants
type Options struct {
	LeafScanCost    float64 // cost per edge of scanning a leaf label
	ConcatFactor    float64 // cost per estimated intermediate path of a concatenation
	MergeOverhead   float64 // constant cost of merging alternation branches
	KleeneMaxRounds int     // bound on closure expansion rounds
	LookupCost      float64 // cost of reading a materialized node

	Collector *annotations.Collector // optional event sink
}

// DefaultOptions returns the default cost model
func DefaultOptions() Options {
	return Options{
		LeafScanCost:    1,
		ConcatFactor:    1,
		MergeOverhead:   1,
		KleeneMaxRounds: 16,
		LookupCost:      1,
	}
}

// AndOrDag is the node table of a workload plus its per-node estimates.
// Nodes are addressed by stable indices; they are appended by the compiler
// or the interchange loader and never removed.
type AndOrDag struct {
	nodes []Node

	cost         []float64 // current cost, materialized nodes at LookupCost
	evalCost     []float64 // cost ignoring materialization
	srcCnt       []uint64
	dstCnt       []uint64
	pairProb     []float64
	useCnt       []uint64
	workloadFreq []uint64
	materialized []bool
	nullable     []int8 // memo: 0 unknown, 1 no, 2 yes

	q2idx        map[string]int
	q2freq       map[string]uint64
	fingerprints map[string]int
	chainItems   map[int][]int
	alias        map[int]int

	stats   Statistics
	options Options
}

// NewAndOrDag creates an empty DAG. stats may be nil until annotation.
func NewAndOrDag(stats Statistics, options Options) *AndOrDag {
	if options.KleeneMaxRounds <= 0 {
		options.KleeneMaxRounds = DefaultOptions().KleeneMaxRounds
	}
	return &AndOrDag{
		q2idx:        make(map[string]int),
		q2freq:       make(map[string]uint64),
		fingerprints: make(map[string]int),
		chainItems:   make(map[int][]int),
		alias:        make(map[int]int),
		stats:        stats,
		options:      options,
	}
}

// Options returns the cost model
func (d *AndOrDag) Options() Options {
	return d.options
}

// SetStatistics installs the graph statistics used by annotation and planning
func (d *AndOrDag) SetStatistics(stats Statistics) {
	d.stats = stats
}

// Statistics returns the shared graph statistics
func (d *AndOrDag) Statistics() Statistics {
	return d.stats
}

// NumNodes returns the size of the node table
func (d *AndOrDag) NumNodes() int {
	return len(d.nodes)
}

// Node returns a copy of node i
func (d *AndOrDag) Node(i int) Node {
	return d.nodes[i].clone()
}

// Cost returns the current estimated cost of node i
func (d *AndOrDag) Cost(i int) float64 { return d.cost[i] }

// EvalCost returns the estimated cost of node i ignoring materialization
func (d *AndOrDag) EvalCost(i int) float64 { return d.evalCost[i] }

// SrcCnt returns the estimated number of distinct sources of node i
func (d *AndOrDag) SrcCnt(i int) uint64 { return d.srcCnt[i] }

// DstCnt returns the estimated number of distinct destinations of node i
func (d *AndOrDag) DstCnt(i int) uint64 { return d.dstCnt[i] }

// PairProb returns the estimated selectivity of node i
func (d *AndOrDag) PairProb(i int) float64 { return d.pairProb[i] }

// UseCnt returns the number of distinct parents of node i
func (d *AndOrDag) UseCnt(i int) uint64 { return d.useCnt[i] }

// WorkloadFreq returns the registered frequency of entry node i
func (d *AndOrDag) WorkloadFreq(i int) uint64 { return d.workloadFreq[i] }

// Materialized reports whether node i is currently materialized
func (d *AndOrDag) Materialized(i int) bool { return d.materialized[i] }

// SetEstimates overwrites the auxiliary values of node i. Both the current
// and the unmaterialized cost are set.
func (d *AndOrDag) SetEstimates(i int, cost float64, srcCnt, dstCnt uint64, pairProb float64) {
	d.cost[i] = cost
	d.evalCost[i] = cost
	d.srcCnt[i] = srcCnt
	d.dstCnt[i] = dstCnt
	d.pairProb[i] = pairProb
}

// Lookup returns the entry node of a registered query
func (d *AndOrDag) Lookup(text string) (int, error) {
	idx, ok := d.q2idx[text]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrQueryNotFound, text)
	}
	return idx, nil
}

// Frequency returns the registered frequency of a query text
func (d *AndOrDag) Frequency(text string) (uint64, error) {
	if _, ok := d.q2idx[text]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrQueryNotFound, text)
	}
	return d.q2freq[text], nil
}

// SetWorkloadFrequency replaces the frequency of a registered query
func (d *AndOrDag) SetWorkloadFrequency(text string, frequency uint64) error {
	idx, ok := d.q2idx[text]
	if !ok {
		return fmt.Errorf("%w: %q", ErrQueryNotFound, text)
	}
	d.workloadFreq[idx] -= d.q2freq[text]
	d.workloadFreq[idx] += frequency
	d.q2freq[text] = frequency
	return nil
}

// Queries returns the registered query texts in sorted order
func (d *AndOrDag) Queries() []string {
	out := make([]string, 0, len(d.q2idx))
	for q := range d.q2idx {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// NumQueries returns the number of registered query texts
func (d *AndOrDag) NumQueries() int {
	return len(d.q2idx)
}

// entries returns the distinct entry nodes in ascending order
func (d *AndOrDag) entries() []int {
	seen := make(map[int]bool, len(d.q2idx))
	var out []int
	for _, idx := range d.q2idx {
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

// WorkloadCost returns Σ workloadFreq·cost over the entry nodes
func (d *AndOrDag) WorkloadCost() float64 {
	return d.workloadCostOf(d.cost)
}

func (d *AndOrDag) workloadCostOf(cost []float64) float64 {
	var total float64
	for _, e := range d.entries() {
		total += float64(d.workloadFreq[e]) * cost[e]
	}
	return total
}

// addNode appends n and grows every auxiliary array
func (d *AndOrDag) addNode(n Node) int {
	n.TargetChild = -1
	n.TopoOrder = -1
	d.nodes = append(d.nodes, n)
	d.cost = append(d.cost, 0)
	d.evalCost = append(d.evalCost, 0)
	d.srcCnt = append(d.srcCnt, 0)
	d.dstCnt = append(d.dstCnt, 0)
	d.pairProb = append(d.pairProb, 0)
	d.useCnt = append(d.useCnt, 0)
	d.workloadFreq = append(d.workloadFreq, 0)
	d.materialized = append(d.materialized, false)
	d.nullable = append(d.nullable, 0)
	return len(d.nodes) - 1
}

// AddParentChild appends child to parent's children. The child's use count
// grows only the first time this parent references it.
func (d *AndOrDag) AddParentChild(parent, child int) error {
	if parent < 0 || parent >= len(d.nodes) || child < 0 || child >= len(d.nodes) {
		return fmt.Errorf("%w: edge %d -> %d with %d nodes", ErrInvalidArgument, parent, child, len(d.nodes))
	}
	d.addParentChild(parent, child)
	return nil
}

func (d *AndOrDag) addParentChild(parent, child int) {
	if !d.nodes[parent].hasChild(child) {
		d.useCnt[child]++
	}
	d.nodes[parent].Children = append(d.nodes[parent].Children, child)
}

// Clone returns an independent deep copy. Only the read-only statistics and
// the annotation collector are shared with the original.
func (d *AndOrDag) Clone() *AndOrDag {
	c := &AndOrDag{
		nodes:        make([]Node, len(d.nodes)),
		cost:         append([]float64(nil), d.cost...),
		evalCost:     append([]float64(nil), d.evalCost...),
		srcCnt:       append([]uint64(nil), d.srcCnt...),
		dstCnt:       append([]uint64(nil), d.dstCnt...),
		pairProb:     append([]float64(nil), d.pairProb...),
		useCnt:       append([]uint64(nil), d.useCnt...),
		workloadFreq: append([]uint64(nil), d.workloadFreq...),
		materialized: append([]bool(nil), d.materialized...),
		nullable:     append([]int8(nil), d.nullable...),
		q2idx:        make(map[string]int, len(d.q2idx)),
		q2freq:       make(map[string]uint64, len(d.q2freq)),
		fingerprints: make(map[string]int, len(d.fingerprints)),
		chainItems:   make(map[int][]int, len(d.chainItems)),
		alias:        make(map[int]int, len(d.alias)),
		stats:        d.stats,
		options:      d.options,
	}
	for i, n := range d.nodes {
		c.nodes[i] = n.clone()
	}
	for k, v := range d.q2idx {
		c.q2idx[k] = v
	}
	for k, v := range d.q2freq {
		c.q2freq[k] = v
	}
	for k, v := range d.fingerprints {
		c.fingerprints[k] = v
	}
	for k, v := range d.chainItems {
		c.chainItems[k] = append([]int(nil), v...)
	}
	for k, v := range d.alias {
		c.alias[k] = v
	}
	return c
}

// parents returns, for every node, its distinct parents in ascending order
func (d *AndOrDag) parents() [][]int {
	out := make([][]int, len(d.nodes))
	for p, n := range d.nodes {
		for i, c := range n.Children {
			if indexOf(n.Children[:i], c) < 0 {
				out[c] = append(out[c], p)
			}
		}
	}
	return out
}

func indexOf(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
