package planner

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// indexHeap is a min-heap of node indices
type indexHeap []int

func (h indexHeap) Len() int            { return len(h) }
func (h indexHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h indexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *indexHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *indexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopoSort assigns TopoOrder 0..n-1 so that every child precedes each of its
// parents. Among ready nodes the lowest index goes first, which makes the
// order a pure function of the node table.
func (d *AndOrDag) TopoSort() error {
	start := time.Now()

	order, err := d.topoOrder()
	if err != nil {
		d.options.Collector.AddTiming(annotations.ErrorStructure, start, map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	for pos, idx := range order {
		d.nodes[idx].TopoOrder = pos
	}

	d.options.Collector.AddTiming(annotations.TopoSorted, start, map[string]interface{}{
		"nodes": len(order),
	})
	return nil
}

// topoOrder returns node indices children first without touching the nodes
func (d *AndOrDag) topoOrder() ([]int, error) {
	parents := d.parents()

	// pending counts distinct unscheduled children
	pending := make([]int, len(d.nodes))
	for i, n := range d.nodes {
		for j, c := range n.Children {
			if indexOf(n.Children[:j], c) < 0 {
				pending[i]++
			}
		}
	}

	ready := &indexHeap{}
	for i, p := range pending {
		if p == 0 {
			*ready = append(*ready, i)
		}
	}
	heap.Init(ready)

	order := make([]int, 0, len(d.nodes))
	for ready.Len() > 0 {
		idx := heap.Pop(ready).(int)
		order = append(order, idx)
		for _, p := range parents[idx] {
			pending[p]--
			if pending[p] == 0 {
				heap.Push(ready, p)
			}
		}
	}

	if len(order) != len(d.nodes) {
		return nil, fmt.Errorf("%w: %d of %d nodes unreachable in topological order",
			ErrCycle, len(d.nodes)-len(order), len(d.nodes))
	}
	return order, nil
}

// scheduled returns node indices sorted by TopoOrder, sorting first when
// the node table has grown since the last TopoSort
func (d *AndOrDag) scheduled() ([]int, error) {
	order := make([]int, len(d.nodes))
	for i, n := range d.nodes {
		if n.TopoOrder < 0 || n.TopoOrder >= len(d.nodes) {
			if err := d.TopoSort(); err != nil {
				return nil, err
			}
			return d.scheduled()
		}
		order[n.TopoOrder] = i
	}
	return order, nil
}
