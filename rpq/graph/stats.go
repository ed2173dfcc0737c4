package graph

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
)

// FillStats computes every label-pair matrix from the adjacencies:
//
//	OutCnt[x][y]     y edges leaving vertices with an incoming x edge
//	InCnt[x][y]      y edges entering vertices with an outgoing x edge
//	OutCooccur[x][y] vertices with both an outgoing x and an outgoing y edge
//	InCooccur[x][y]  vertices with both an incoming x and an incoming y edge
func (g *MultiLabelCSR) FillStats() {
	n := len(g.labels)
	g.stats = Stats{
		OutCnt:     newMatrix(n),
		InCnt:      newMatrix(n),
		OutCooccur: newMatrix(n),
		InCooccur:  newMatrix(n),
	}

	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			for _, v := range g.in[x].Vertices {
				g.stats.OutCnt[x][y] += uint64(g.out[y].Degree(v))
			}
			for _, v := range g.out[x].Vertices {
				g.stats.InCnt[x][y] += uint64(g.in[y].Degree(v))
			}
			g.stats.OutCooccur[x][y] = intersectCount(g.out[x].Vertices, g.out[y].Vertices)
			g.stats.InCooccur[x][y] = intersectCount(g.in[x].Vertices, g.in[y].Vertices)
		}
	}
}

// intersectCount counts the common elements of two ascending slices
func intersectCount(a, b []uint64) uint64 {
	var n uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			n++
			i++
			j++
		}
	}
	return n
}

// SetStats installs precomputed matrices. Every matrix must be
// NumLabels × NumLabels.
func (g *MultiLabelCSR) SetStats(s Stats) error {
	n := len(g.labels)
	for name, m := range map[string][][]uint64{
		"out count":   s.OutCnt,
		"in count":    s.InCnt,
		"out cooccur": s.OutCooccur,
		"in cooccur":  s.InCooccur,
	} {
		if len(m) != n {
			return fmt.Errorf("%s matrix has %d rows, want %d", name, len(m), n)
		}
		for i, row := range m {
			if len(row) != n {
				return fmt.Errorf("%s matrix row %d has %d columns, want %d", name, i, len(row), n)
			}
		}
	}
	g.stats = s
	return nil
}

// LoadStats reads a statistics fixture: a count followed by that many
// "x y value" OutCnt entries, then a count and "x y value" InCnt entries.
// Labels are external ids. The cooccurrence matrices are zeroed. Nothing
// is installed unless the whole fixture is valid.
func (g *MultiLabelCSR) LoadStats(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	tok := 0
	next := func(what string) (uint64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, fmt.Errorf("%w: %v", ErrGraphFormat, err)
			}
			return 0, fmt.Errorf("%w: token %d: unexpected end of input, expected %s", ErrGraphFormat, tok+1, what)
		}
		tok++
		v, err := strconv.ParseUint(sc.Text(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: token %d: %s %q is not an unsigned integer", ErrGraphFormat, tok, what, sc.Text())
		}
		return v, nil
	}

	n := len(g.labels)
	s := Stats{
		OutCnt:     newMatrix(n),
		InCnt:      newMatrix(n),
		OutCooccur: newMatrix(n),
		InCooccur:  newMatrix(n),
	}
	for _, m := range [][][]uint64{s.OutCnt, s.InCnt} {
		count, err := next("entry count")
		if err != nil {
			return err
		}
		for i := uint64(0); i < count; i++ {
			var xy [2]int
			for k, what := range []string{"first label", "second label"} {
				id, err := next(what)
				if err != nil {
					return err
				}
				if id > math.MaxUint32 {
					return fmt.Errorf("%w: token %d: label %d out of range", ErrGraphFormat, tok, id)
				}
				idx, ok := g.label2idx[uint32(id)]
				if !ok {
					return fmt.Errorf("%w: token %d: unknown label %d", ErrGraphFormat, tok, id)
				}
				xy[k] = idx
			}
			v, err := next("value")
			if err != nil {
				return err
			}
			m[xy[0]][xy[1]] = v
		}
	}
	if sc.Scan() {
		return fmt.Errorf("%w: token %d: trailing input %q", ErrGraphFormat, tok+1, sc.Text())
	}

	g.stats = s
	return nil
}
