package planner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// edgeStats derives Statistics from an edge list the slow, obvious way
type edgeStats struct {
	labels   map[uint32]int
	ids      []uint32
	bySrc    []map[uint64]int // per label index: edges leaving each vertex
	byDst    []map[uint64]int // per label index: edges entering each vertex
	vertices uint64
}

// newEdgeStats builds statistics from (src, dst, label) triples
func newEdgeStats(triples ...[3]uint64) *edgeStats {
	s := &edgeStats{labels: make(map[uint32]int)}
	seen := make(map[uint64]bool)
	for _, e := range triples {
		id := uint32(e[2])
		li, ok := s.labels[id]
		if !ok {
			li = len(s.ids)
			s.labels[id] = li
			s.ids = append(s.ids, id)
			s.bySrc = append(s.bySrc, make(map[uint64]int))
			s.byDst = append(s.byDst, make(map[uint64]int))
		}
		s.bySrc[li][e[0]]++
		s.byDst[li][e[1]]++
		seen[e[0]] = true
		seen[e[1]] = true
	}
	s.vertices = uint64(len(seen))
	return s
}

func (s *edgeStats) LabelIndex(label uint32) (int, bool) {
	i, ok := s.labels[label]
	return i, ok
}

func (s *edgeStats) NumLabels() int      { return len(s.ids) }
func (s *edgeStats) NumVertices() uint64 { return s.vertices }

func (s *edgeStats) EdgeCount(l int) uint64 {
	var n uint64
	for _, c := range s.bySrc[l] {
		n += uint64(c)
	}
	return n
}

func (s *edgeStats) SourceCount(l int) uint64 { return uint64(len(s.bySrc[l])) }
func (s *edgeStats) TargetCount(l int) uint64 { return uint64(len(s.byDst[l])) }

func (s *edgeStats) OutCnt(x, y int) uint64 {
	var n uint64
	for v, c := range s.bySrc[y] {
		if s.byDst[x][v] > 0 {
			n += uint64(c)
		}
	}
	return n
}

func (s *edgeStats) InCnt(x, y int) uint64 {
	var n uint64
	for v, c := range s.byDst[y] {
		if s.bySrc[x][v] > 0 {
			n += uint64(c)
		}
	}
	return n
}

func (s *edgeStats) OutCooccur(x, y int) uint64 {
	var n uint64
	for v := range s.bySrc[x] {
		if s.bySrc[y][v] > 0 {
			n++
		}
	}
	return n
}

func (s *edgeStats) InCooccur(x, y int) uint64 {
	var n uint64
	for v := range s.byDst[x] {
		if s.byDst[y][v] > 0 {
			n++
		}
	}
	return n
}

// pathGraph is 0 -<0>-> 1 -<1>-> 2 -<2>-> 3 -<3>-> 4
func pathGraph() *edgeStats {
	return newEdgeStats(
		[3]uint64{0, 1, 0},
		[3]uint64{1, 2, 1},
		[3]uint64{2, 3, 2},
		[3]uint64{3, 4, 3},
	)
}

// sharedDag has the concatenation <1>/<2> (node 3) shared by the entries
// <1>/<2>/<3> (node 4) and (<1>/<2>)* (node 5)
const sharedDag = `6
0 0 0   1 1 0   1 1 0
0 0 0   1 2 0   1 2 0
0 0 0   1 3 0   1 3 0
0 1 2 0 1   1 1 0   1 2 0
0 1 2 3 2   1 1 0   1 3 0
0 3 1 3     1 1 0   1 2 0
2
<1>/<2>/<3> 4
(<1>/<2>)* 5
`

const sharedCosts = `6
10 5 5 0.4
10 5 5 0.4
10 5 5 0.4
50 5 5 0.8
80 5 5 0.2
150 5 5 1
`

// loadShared returns sharedDag seeded with sharedCosts and frequency 1 on
// both entries
func loadShared(t *testing.T) *AndOrDag {
	t.Helper()
	d, err := LoadDag(strings.NewReader(sharedDag), nil, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, d.LoadCostFixture(strings.NewReader(sharedCosts)))
	require.NoError(t, d.SetWorkloadFrequency("<1>/<2>/<3>", 1))
	require.NoError(t, d.SetWorkloadFrequency("(<1>/<2>)*", 1))
	return d
}

// mixedWorkload compiles a workload that exercises every operator
func mixedWorkload(t *testing.T, stats Statistics) *AndOrDag {
	t.Helper()
	d := NewAndOrDag(stats, DefaultOptions())
	for _, q := range []struct {
		text string
		freq uint64
	}{
		{"<0>/<1>/<2>", 3},
		{"(<0>/<1>)/<2>/<3>", 1},
		{"<0>/<1>|<0>/<2>", 2},
		{"(<1>/<2>)*", 1},
		{"^<1>/^<0>", 1},
		{"<2>+", 4},
	} {
		_, err := d.RegisterQuery(q.text, q.freq)
		require.NoError(t, err, q.text)
	}
	return d
}

// snapshot captures everything observable about a DAG
func snapshot(t *testing.T, d *AndOrDag) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, d.WriteDag(&b))
	require.NoError(t, d.WriteCostFixture(&b))
	for i := 0; i < d.NumNodes(); i++ {
		if d.Materialized(i) {
			b.WriteString("M")
		} else {
			b.WriteString(".")
		}
		b.WriteString(strings.Repeat("|", int(d.UseCnt(i))))
	}
	for _, q := range d.Queries() {
		f, err := d.Frequency(q)
		require.NoError(t, err)
		b.WriteString(q)
		b.WriteString(strings.Repeat("+", int(f)))
	}
	return b.String()
}
