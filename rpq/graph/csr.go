// Package graph provides the statistics the optimizer needs from a labeled
// graph. A MultiLabelCSR keeps one compressed adjacency per label and
// direction; FillStats derives the label-pair statistics from it. Graphs
// come from text files (ReadGraph) or from a BadgerStore.
package graph

import (
	"sort"
	"time"

	"github.com/wbrown/janus-rpq/rpq/annotations"
	"github.com/wbrown/janus-rpq/rpq/planner"
)

// Edge is one labeled, directed edge
type Edge struct {
	Src   uint64
	Dst   uint64
	Label uint32
}

// CSR is the adjacency of one label in one direction. Vertices holds the
// distinct vertices with at least one edge, ascending; the neighbours of
// Vertices[i] are Adj[Offset[i]:Offset[i+1]].
type CSR struct {
	Vertices []uint64
	Offset   []int
	Adj      []uint64
}

// NumEdges is the number of stored edges
func (c *CSR) NumEdges() int {
	return len(c.Adj)
}

// Degree returns the number of edges of vertex v
func (c *CSR) Degree(v uint64) int {
	i, ok := c.find(v)
	if !ok {
		return 0
	}
	return c.Offset[i+1] - c.Offset[i]
}

// Neighbours returns the adjacency list of vertex v. The slice aliases the
// CSR and must not be modified.
func (c *CSR) Neighbours(v uint64) []uint64 {
	i, ok := c.find(v)
	if !ok {
		return nil
	}
	return c.Adj[c.Offset[i]:c.Offset[i+1]]
}

func (c *CSR) find(v uint64) (int, bool) {
	i := sort.Search(len(c.Vertices), func(i int) bool { return c.Vertices[i] >= v })
	return i, i < len(c.Vertices) && c.Vertices[i] == v
}

// buildCSR packs (from, to) pairs sorted by from, then to
func buildCSR(pairs [][2]uint64) CSR {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})

	var c CSR
	c.Adj = make([]uint64, len(pairs))
	for i, p := range pairs {
		if i == 0 || p[0] != pairs[i-1][0] {
			c.Vertices = append(c.Vertices, p[0])
			c.Offset = append(c.Offset, i)
		}
		c.Adj[i] = p[1]
	}
	c.Offset = append(c.Offset, len(pairs))
	return c
}

// Stats holds the label-pair matrices, indexed by internal label index
type Stats struct {
	OutCnt     [][]uint64
	InCnt      [][]uint64
	OutCooccur [][]uint64
	InCooccur  [][]uint64
}

func newMatrix(n int) [][]uint64 {
	m := make([][]uint64, n)
	for i := range m {
		m[i] = make([]uint64, n)
	}
	return m
}

// MultiLabelCSR is an immutable in-memory graph indexed per label. It
// implements planner.Statistics and may be shared by any number of DAGs.
type MultiLabelCSR struct {
	label2idx map[uint32]int
	labels    []uint32 // internal index -> external id
	out       []CSR
	in        []CSR
	vertices  uint64
	edges     uint64
	stats     Stats
}

var _ planner.Statistics = (*MultiLabelCSR)(nil)

// NewMultiLabelCSR builds the per-label adjacencies. Labels receive internal
// indices in ascending order of their ids. The label-pair statistics are
// zero until FillStats or SetStats.
func NewMultiLabelCSR(edges []Edge) *MultiLabelCSR {
	return NewMultiLabelCSRWithCollector(edges, nil)
}

// NewMultiLabelCSRWithCollector is NewMultiLabelCSR reporting a GraphLoaded
// event to collector
func NewMultiLabelCSRWithCollector(edges []Edge, collector *annotations.Collector) *MultiLabelCSR {
	start := time.Now()

	var ids []uint32
	seen := make(map[uint32]bool)
	vertices := make(map[uint64]struct{})
	for _, e := range edges {
		if !seen[e.Label] {
			seen[e.Label] = true
			ids = append(ids, e.Label)
		}
		vertices[e.Src] = struct{}{}
		vertices[e.Dst] = struct{}{}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	g := &MultiLabelCSR{
		label2idx: make(map[uint32]int, len(ids)),
		labels:    ids,
		vertices:  uint64(len(vertices)),
		edges:     uint64(len(edges)),
	}
	for i, id := range ids {
		g.label2idx[id] = i
	}

	outPairs := make([][][2]uint64, len(ids))
	inPairs := make([][][2]uint64, len(ids))
	for _, e := range edges {
		l := g.label2idx[e.Label]
		outPairs[l] = append(outPairs[l], [2]uint64{e.Src, e.Dst})
		inPairs[l] = append(inPairs[l], [2]uint64{e.Dst, e.Src})
	}
	g.out = make([]CSR, len(ids))
	g.in = make([]CSR, len(ids))
	for l := range ids {
		g.out[l] = buildCSR(outPairs[l])
		g.in[l] = buildCSR(inPairs[l])
	}
	g.stats = Stats{
		OutCnt:     newMatrix(len(ids)),
		InCnt:      newMatrix(len(ids)),
		OutCooccur: newMatrix(len(ids)),
		InCooccur:  newMatrix(len(ids)),
	}

	collector.AddTiming(annotations.GraphLoaded, start, map[string]interface{}{
		"labels":   len(ids),
		"edges":    g.edges,
		"vertices": g.vertices,
	})
	return g
}

// Labels returns the external label ids in internal index order
func (g *MultiLabelCSR) Labels() []uint32 {
	return append([]uint32(nil), g.labels...)
}

// NumEdges is the total number of edges
func (g *MultiLabelCSR) NumEdges() uint64 { return g.edges }

// Out returns the forward adjacency of internal label l
func (g *MultiLabelCSR) Out(l int) *CSR { return &g.out[l] }

// In returns the reverse adjacency of internal label l
func (g *MultiLabelCSR) In(l int) *CSR { return &g.in[l] }

// Stats returns the label-pair matrices
func (g *MultiLabelCSR) Stats() Stats { return g.stats }

// LabelIndex maps an external label id to its internal index
func (g *MultiLabelCSR) LabelIndex(label uint32) (int, bool) {
	i, ok := g.label2idx[label]
	return i, ok
}

func (g *MultiLabelCSR) NumLabels() int      { return len(g.labels) }
func (g *MultiLabelCSR) NumVertices() uint64 { return g.vertices }

func (g *MultiLabelCSR) EdgeCount(l int) uint64   { return uint64(g.out[l].NumEdges()) }
func (g *MultiLabelCSR) SourceCount(l int) uint64 { return uint64(len(g.out[l].Vertices)) }
func (g *MultiLabelCSR) TargetCount(l int) uint64 { return uint64(len(g.in[l].Vertices)) }

func (g *MultiLabelCSR) OutCnt(x, y int) uint64     { return g.stats.OutCnt[x][y] }
func (g *MultiLabelCSR) InCnt(x, y int) uint64      { return g.stats.InCnt[x][y] }
func (g *MultiLabelCSR) OutCooccur(x, y int) uint64 { return g.stats.OutCooccur[x][y] }
func (g *MultiLabelCSR) InCooccur(x, y int) uint64  { return g.stats.InCooccur[x][y] }
