package planner

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// LoadCostFixture seeds the per-node estimates from r: a line count equal
// to the node count, then "<cost> <srcCnt> <dstCnt> <pairProb>" per node.
// The DAG is only modified when the whole fixture is valid.
func (d *AndOrDag) LoadCostFixture(r io.Reader) error {
	t := newTokenReader(r)

	n, err := t.intIn("line count", 0, math.MaxInt32)
	if err != nil {
		return err
	}
	if n != len(d.nodes) {
		return t.errorf("fixture has %d lines for %d nodes", n, len(d.nodes))
	}

	type row struct {
		cost     float64
		src, dst uint64
		prob     float64
	}
	rows := make([]row, n)
	for i := range rows {
		if rows[i].cost, err = t.float("cost"); err != nil {
			return err
		}
		if rows[i].src, err = t.uint("srcCnt"); err != nil {
			return err
		}
		if rows[i].dst, err = t.uint("dstCnt"); err != nil {
			return err
		}
		if rows[i].prob, err = t.float("pairProb"); err != nil {
			return err
		}
		if rows[i].cost < 0 || rows[i].prob < 0 || rows[i].prob > 1 {
			return t.errorf("line %d: cost must be non-negative and pairProb in [0, 1]", i+1)
		}
	}
	if _, err := t.next(); err != io.EOF {
		if err != nil {
			return err
		}
		return t.errorf("trailing input after %d lines", n)
	}

	for i, r := range rows {
		d.SetEstimates(i, r.cost, r.src, r.dst, r.prob)
	}
	return nil
}

// WriteCostFixture writes the current per-node estimates in the format
// LoadCostFixture reads
func (d *AndOrDag) WriteCostFixture(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(d.nodes))
	for i := range d.nodes {
		fmt.Fprintf(bw, "%s %d %d %s\n",
			strconv.FormatFloat(d.cost[i], 'g', -1, 64),
			d.srcCnt[i],
			d.dstCnt[i],
			strconv.FormatFloat(d.pairProb[i], 'g', -1, 64))
	}
	return bw.Flush()
}

func (t *tokenReader) float(what string) (float64, error) {
	tok, err := t.word(what)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, t.errorf("%s %q is not a finite number", what, tok)
	}
	return f, nil
}

func (t *tokenReader) uint(what string) (uint64, error) {
	tok, err := t.word(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(tok, 10, 64)
	if err != nil {
		return 0, t.errorf("%s %q is not an unsigned integer", what, tok)
	}
	return n, nil
}
