package planner

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wbrown/janus-rpq/rpq"
	"github.com/wbrown/janus-rpq/rpq/annotations"
	"github.com/wbrown/janus-rpq/rpq/parser"
)

// RegisterQuery compiles text into the DAG and adds frequency to its entry
// node. Re-registering a known text only accumulates frequency. A parse error
// leaves the DAG untouched.
func (d *AndOrDag) RegisterQuery(text string, frequency uint64) (int, error) {
	start := time.Now()

	if idx, ok := d.q2idx[text]; ok {
		d.q2freq[text] += frequency
		d.workloadFreq[idx] += frequency
		d.options.Collector.AddTiming(annotations.QueryRegistered, start, map[string]interface{}{
			"query":     text,
			"node":      idx,
			"dedup":     true,
			"frequency": d.workloadFreq[idx],
		})
		return idx, nil
	}

	expr, err := parser.Parse(text)
	if err != nil {
		d.options.Collector.AddTiming(annotations.ErrorQueryParsing, start, map[string]interface{}{
			"query": text,
			"error": err.Error(),
		})
		return -1, fmt.Errorf("failed to parse query %q: %w", text, err)
	}

	before := len(d.nodes)
	entry := d.resolve(d.build(parser.Normalize(expr)))

	d.q2idx[text] = entry
	d.q2freq[text] = frequency
	d.workloadFreq[entry] += frequency

	d.options.Collector.AddTiming(annotations.QueryRegistered, start, map[string]interface{}{
		"query":     text,
		"node":      entry,
		"nodes.new": len(d.nodes) - before,
		"frequency": d.workloadFreq[entry],
	})
	return entry, nil
}

// build returns the node computing e
func (d *AndOrDag) build(e parser.Expr) int {
	return d.chain(d.buildItems(e))
}

// buildItems flattens e into the items of a concatenation chain
func (d *AndOrDag) buildItems(e parser.Expr) []int {
	switch e := e.(type) {
	case parser.IRI:
		return []int{d.leaf(e.Label)}
	case parser.Sequence:
		var items []int
		for _, item := range e.Items {
			items = append(items, d.buildItems(item)...)
		}
		return items
	case parser.Alternation:
		branches := make([]int, len(e.Branches))
		for i, b := range e.Branches {
			branches[i] = d.build(b)
		}
		return []int{d.alternation(branches)}
	case parser.Star:
		return []int{d.kleene(d.build(e.Sub))}
	case parser.Plus:
		// x+ = x/x*
		items := d.buildItems(e.Sub)
		return append(items, d.kleene(d.chain(items)))
	case parser.Inverse:
		// Normalize pushes inversions to the labels
		return d.buildItems(parser.Normalize(e))
	default:
		panic(fmt.Sprintf("unsupported expression %T", e))
	}
}

// resolve follows alias links to the equivalence node that replaced idx
func (d *AndOrDag) resolve(idx int) int {
	for {
		next, ok := d.alias[idx]
		if !ok {
			return idx
		}
		idx = next
	}
}

// intern returns the node registered under key or creates it
func (d *AndOrDag) intern(key string, op OpType, children []int) (int, bool) {
	if idx, ok := d.fingerprints[key]; ok {
		return d.resolve(idx), false
	}

	idx := d.addNode(Node{IsEquivalence: op == OpEquivalence, Op: op})
	for _, c := range children {
		d.addParentChild(idx, c)
	}
	d.deriveLabels(idx)
	d.fingerprints[key] = idx
	return idx, true
}

func (d *AndOrDag) leaf(l rpq.Label) int {
	key := "L:" + strconv.FormatUint(uint64(l.ID), 10) + ":" + boolKey(l.Inverse)
	if idx, ok := d.fingerprints[key]; ok {
		return idx
	}
	idx := d.addNode(Node{
		Op:          OpLeaf,
		Label:       l,
		StartLabels: rpq.NewLabelSet(l),
		EndLabels:   rpq.NewLabelSet(l),
	})
	d.nullable[idx] = 1
	d.fingerprints[key] = idx
	return idx
}

// concat is the binary CONCAT(left, right)
func (d *AndOrDag) concat(left, right int) int {
	idx, _ := d.intern("C:"+joinKey([]int{left, right}), OpConcat, []int{left, right})
	return idx
}

// chain returns the node for the concatenation of items. Chains of three or
// more items become an equivalence over every binary split, so each
// parenthesization of the same sequence shares one node.
func (d *AndOrDag) chain(items []int) int {
	if len(items) == 1 {
		return d.resolve(items[0])
	}

	key := "S:" + joinKey(items)
	if idx, ok := d.fingerprints[key]; ok {
		return d.resolve(idx)
	}

	var idx int
	if len(items) == 2 {
		idx = d.concat(items[0], items[1])
	} else {
		splits := make([]int, 0, len(items)-1)
		for i := 1; i < len(items); i++ {
			splits = append(splits, d.concat(d.chain(items[:i]), d.chain(items[i:])))
		}
		idx = d.equivalence(splits)
	}

	d.fingerprints[key] = idx
	if _, ok := d.chainItems[idx]; !ok {
		d.chainItems[idx] = append([]int(nil), items...)
	}
	return idx
}

// alternation builds ALT(branches). When every branch is a chain with a
// common first or last item, the factored forms are built as well and the
// result is their equivalence node.
func (d *AndOrDag) alternation(branches []int) int {
	for i, b := range branches {
		branches[i] = d.resolve(b)
	}
	branches = sortedUnique(branches)
	if len(branches) == 1 {
		return branches[0]
	}

	alt, created := d.intern("A:"+joinKey(branches), OpAlternation, branches)
	if !created {
		return alt
	}

	forms := []int{alt}
	if f, ok := d.factor(branches, true); ok {
		forms = append(forms, f)
	}
	if f, ok := d.factor(branches, false); ok {
		forms = append(forms, f)
	}
	if len(forms) == 1 {
		return alt
	}
	return d.equivalence(forms)
}

// factor builds CONCAT(common, ALT(rests)) for a shared first item, or
// CONCAT(ALT(rests), common) for a shared last item
func (d *AndOrDag) factor(branches []int, prefix bool) (int, bool) {
	rests := make([]int, 0, len(branches))
	common := -1
	for _, b := range branches {
		items, ok := d.chainItems[b]
		if !ok || len(items) < 2 {
			return -1, false
		}
		edge, rest := items[0], items[1:]
		if !prefix {
			edge, rest = items[len(items)-1], items[:len(items)-1]
		}
		if common >= 0 && edge != common {
			return -1, false
		}
		common = edge
		rests = append(rests, d.chain(rest))
	}

	restAlt := d.alternation(rests)
	if prefix {
		return d.chain([]int{common, restAlt}), true
	}
	return d.chain([]int{restAlt, common}), true
}

func (d *AndOrDag) kleene(child int) int {
	child = d.resolve(child)
	// (x*)* = x*
	if d.nodes[child].Op == OpKleene {
		return child
	}
	idx, _ := d.intern("K:"+strconv.Itoa(child), OpKleene, []int{child})
	return idx
}

// equivalence wraps semantically equal alternatives in one EQUIVALENCE
// node. Workload entries that pointed at an alternative move to it.
func (d *AndOrDag) equivalence(alternatives []int) int {
	for i, a := range alternatives {
		alternatives[i] = d.resolve(a)
	}
	alternatives = sortedUnique(alternatives)
	if len(alternatives) == 1 {
		return alternatives[0]
	}

	eq, created := d.intern("E:"+joinKey(alternatives), OpEquivalence, alternatives)
	if !created {
		return eq
	}
	for _, a := range alternatives {
		d.alias[a] = eq
		d.repoint(a, eq)
	}
	return eq
}

// repoint moves every registry entry at from, and its frequency, to to
func (d *AndOrDag) repoint(from, to int) {
	for text, idx := range d.q2idx {
		if idx != from {
			continue
		}
		d.q2idx[text] = to
		d.workloadFreq[from] -= d.q2freq[text]
		d.workloadFreq[to] += d.q2freq[text]
		d.options.Collector.AddTiming(annotations.QueryMerged, time.Now(), map[string]interface{}{
			"query": text,
			"from":  from,
			"to":    to,
		})
	}
}

// deriveLabels sets the start/end label sets of node i from its children
func (d *AndOrDag) deriveLabels(i int) {
	n := &d.nodes[i]
	switch n.Op {
	case OpLeaf:
		n.StartLabels = rpq.NewLabelSet(n.Label)
		n.EndLabels = rpq.NewLabelSet(n.Label)
	case OpConcat:
		var start, end rpq.LabelSet
		// start labels come from the leading nullable prefix
		for _, c := range n.Children {
			start = start.Union(d.nodes[c].StartLabels)
			if !d.isNullable(c) {
				break
			}
		}
		for j := len(n.Children) - 1; j >= 0; j-- {
			c := n.Children[j]
			end = end.Union(d.nodes[c].EndLabels)
			if !d.isNullable(c) {
				break
			}
		}
		n.StartLabels, n.EndLabels = start, end
	default:
		var start, end rpq.LabelSet
		for _, c := range n.Children {
			start = start.Union(d.nodes[c].StartLabels)
			end = end.Union(d.nodes[c].EndLabels)
		}
		n.StartLabels, n.EndLabels = start, end
	}
}

// isNullable reports whether node i matches the empty path
func (d *AndOrDag) isNullable(i int) bool {
	if d.nullable[i] != 0 {
		return d.nullable[i] == 2
	}

	n := d.nodes[i]
	var result bool
	switch n.Op {
	case OpLeaf:
		result = false
	case OpKleene:
		result = true
	case OpConcat:
		result = true
		for _, c := range n.Children {
			if !d.isNullable(c) {
				result = false
				break
			}
		}
	default:
		for _, c := range n.Children {
			if d.isNullable(c) {
				result = true
				break
			}
		}
	}

	d.nullable[i] = 1
	if result {
		d.nullable[i] = 2
	}
	return result
}

// rebuildFingerprints recomputes the hash-consing table from the node table
func (d *AndOrDag) rebuildFingerprints() {
	d.fingerprints = make(map[string]int, len(d.nodes))
	for i, n := range d.nodes {
		var key string
		switch n.Op {
		case OpLeaf:
			key = "L:" + strconv.FormatUint(uint64(n.Label.ID), 10) + ":" + boolKey(n.Label.Inverse)
		case OpConcat:
			key = "C:" + joinKey(n.Children)
		case OpAlternation:
			key = "A:" + joinKey(sortedUnique(append([]int(nil), n.Children...)))
		case OpKleene:
			key = "K:" + joinKey(n.Children)
		case OpEquivalence:
			key = "E:" + joinKey(sortedUnique(append([]int(nil), n.Children...)))
		}
		if _, ok := d.fingerprints[key]; !ok {
			d.fingerprints[key] = i
		}
	}
}

func joinKey(idx []int) string {
	var b strings.Builder
	for i, v := range idx {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func sortedUnique(s []int) []int {
	sort.Ints(s)
	out := s[:0]
	for i, v := range s {
		if i == 0 || v != s[i-1] {
			out = append(out, v)
		}
	}
	return out
}
