package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// SelectionMode picks the view selection heuristic
type SelectionMode int

const (
	// ModeBottomUp sweeps candidates children first and takes every node
	// whose marginal benefit is positive and that still fits
	ModeBottomUp SelectionMode = iota
	// ModeGreedyBenefit repeatedly takes the fitting node with the largest
	// marginal benefit
	ModeGreedyBenefit
	// ModeGreedyRatio is ModeGreedyBenefit ranked by benefit per unit of space
	ModeGreedyRatio
	// ModeTopDown sweeps candidates parents first
	ModeTopDown
	// ModeSharedFirst ranks candidates once by fan-in weighted savings per
	// unit of space and takes them in that order
	ModeSharedFirst
)

// String returns the string representation of SelectionMode
func (m SelectionMode) String() string {
	switch m {
	case ModeBottomUp:
		return "bottom-up"
	case ModeGreedyBenefit:
		return "greedy-benefit"
	case ModeGreedyRatio:
		return "greedy-ratio"
	case ModeTopDown:
		return "top-down"
	case ModeSharedFirst:
		return "shared-first"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseSelectionMode accepts a mode name or its number
func ParseSelectionMode(s string) (SelectionMode, error) {
	for m := ModeBottomUp; m <= ModeSharedFirst; m++ {
		if s == m.String() || s == fmt.Sprint(int(m)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// TraceEntry records the decision taken for one candidate. For
// ModeBottomUp and ModeTopDown Benefit is the marginal benefit at the time
// the node was visited; for the other modes it is the benefit realized when
// the node was taken, zero when it was not.
type TraceEntry struct {
	Node      int
	Satisfied bool
	Benefit   float64
}

// Selection is the outcome of ChooseMatViews
type Selection struct {
	Mode      SelectionMode
	Budget    uint64
	Benefit   float64 // W(∅) − W(chosen)
	UsedSpace uint64
	Chosen    []int // ascending node indices
	Trace     []TraceEntry
}

// selector evaluates workload cost under trial materialization sets
type selector struct {
	d         *AndOrDag
	order     []int
	entries   []int
	chosen    []bool
	current   float64 // workload cost under chosen
	used      uint64
	budget    uint64
	realized  map[int]float64
	evaluated int
}

func (s *selector) workload(extra int) float64 {
	s.evaluated++
	cost := s.d.costsUnder(s.order, func(i int) bool { return s.chosen[i] || i == extra })
	var total float64
	for _, e := range s.entries {
		total += float64(s.d.workloadFreq[e]) * cost[e]
	}
	return total
}

// gain is the reduction of workload cost from adding v to the chosen set
func (s *selector) gain(v int) float64 {
	return s.current - s.workload(v)
}

func (s *selector) fits(v int) bool {
	return s.d.space(v) <= s.budget-s.used
}

func (s *selector) take(v int, benefit float64) {
	s.chosen[v] = true
	s.used += s.d.space(v)
	s.current -= benefit
	s.realized[v] = benefit
}

// ChooseMatViews selects nodes to materialize within budget units of
// storage, commits the selection and returns it. Any previous
// materialization is cleared first. Run it on a Clone to explore without
// committing.
func (d *AndOrDag) ChooseMatViews(mode SelectionMode, budget uint64) (*Selection, error) {
	if mode < ModeBottomUp || mode > ModeSharedFirst {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(mode))
	}
	start := time.Now()

	order, err := d.scheduled()
	if err != nil {
		return nil, err
	}

	s := &selector{
		d:        d,
		order:    order,
		entries:  d.entries(),
		chosen:   make([]bool, len(d.nodes)),
		budget:   budget,
		realized: make(map[int]float64),
	}
	base := s.workload(-1)
	s.current = base

	var candidates []int
	for _, v := range order {
		if d.nodes[v].Op != OpLeaf {
			candidates = append(candidates, v)
		}
	}

	var trace []TraceEntry
	switch mode {
	case ModeBottomUp:
		trace = s.sweep(candidates)
	case ModeTopDown:
		reversed := make([]int, len(candidates))
		for i, v := range candidates {
			reversed[len(candidates)-1-i] = v
		}
		trace = s.sweep(reversed)
	case ModeGreedyBenefit:
		s.greedy(candidates, false)
	case ModeGreedyRatio:
		s.greedy(candidates, true)
	case ModeSharedFirst:
		s.sharedFirst(candidates)
	}
	if trace == nil {
		trace = s.decisions(candidates)
	}

	sel := &Selection{
		Mode:      mode,
		Budget:    budget,
		UsedSpace: s.used,
		Trace:     trace,
	}
	for v, ok := range s.chosen {
		if ok {
			sel.Chosen = append(sel.Chosen, v)
		}
	}

	d.materialized = s.chosen
	d.cost = d.costsUnder(order, d.Materialized)
	sel.Benefit = base - d.workloadCostOf(d.cost)

	d.options.Collector.AddTiming(annotations.MatViewSelected, start, map[string]interface{}{
		"mode":       mode.String(),
		"views":      len(sel.Chosen),
		"space.used": sel.UsedSpace,
		"budget":     budget,
		"benefit":    sel.Benefit,
		"evaluated":  s.evaluated,
	})
	return sel, nil
}

// sweep visits candidates once in the given order
func (s *selector) sweep(candidates []int) []TraceEntry {
	trace := make([]TraceEntry, 0, len(candidates))
	for _, v := range candidates {
		benefit := s.gain(v)
		ok := benefit > 0 && s.fits(v)
		if ok {
			s.take(v, benefit)
		}
		trace = append(trace, TraceEntry{Node: v, Satisfied: ok, Benefit: benefit})
	}
	return trace
}

// greedy takes the best fitting candidate until nothing improves the workload
func (s *selector) greedy(candidates []int, ratio bool) {
	for {
		best, bestScore, bestBenefit := -1, 0.0, 0.0
		for _, v := range candidates {
			if s.chosen[v] || !s.fits(v) {
				continue
			}
			benefit := s.gain(v)
			if benefit <= 0 {
				continue
			}
			score := benefit
			if ratio {
				score = benefit / float64(s.d.space(v))
			}
			if best < 0 || score > bestScore || (score == bestScore && v < best) {
				best, bestScore, bestBenefit = v, score, benefit
			}
		}
		if best < 0 {
			return
		}
		s.take(best, bestBenefit)
	}
}

// sharedFirst ranks candidates by useCnt·(evalCost − LookupCost)/space
func (s *selector) sharedFirst(candidates []int) {
	d := s.d
	score := make(map[int]float64, len(candidates))
	for _, v := range candidates {
		score[v] = float64(d.useCnt[v]) * (d.evalCost[v] - d.options.LookupCost) / float64(d.space(v))
	}
	ranked := append([]int(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		if score[ranked[i]] != score[ranked[j]] {
			return score[ranked[i]] > score[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	for _, v := range ranked {
		if !s.fits(v) {
			continue
		}
		if benefit := s.gain(v); benefit > 0 {
			s.take(v, benefit)
		}
	}
}

// decisions lists every candidate in index order with its final decision
func (s *selector) decisions(candidates []int) []TraceEntry {
	sorted := append([]int(nil), candidates...)
	sort.Ints(sorted)
	trace := make([]TraceEntry, len(sorted))
	for i, v := range sorted {
		trace[i] = TraceEntry{Node: v, Satisfied: s.chosen[v], Benefit: s.realized[v]}
	}
	return trace
}
