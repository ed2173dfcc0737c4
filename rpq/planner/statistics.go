package planner

// Statistics is the read-only view of a loaded graph that cost estimation
// consumes. Labels are addressed by the internal index returned from
// LabelIndex. Implementations must be fully populated before annotation and
// must not change while any AndOrDag reads them; several DAGs (and their
// clones) may share one instance.
type Statistics interface {
	// LabelIndex maps an external label id to its internal index
	LabelIndex(label uint32) (int, bool)
	NumLabels() int
	// NumVertices is the number of distinct vertices, 0 when unknown
	NumVertices() uint64

	// EdgeCount is the number of edges carrying the label
	EdgeCount(label int) uint64
	// SourceCount is the number of distinct vertices with an outgoing edge of the label
	SourceCount(label int) uint64
	// TargetCount is the number of distinct vertices with an incoming edge of the label
	TargetCount(label int) uint64

	// OutCnt is the number of y edges leaving vertices that have an incoming x edge
	OutCnt(x, y int) uint64
	// InCnt is the number of y edges entering vertices that have an outgoing x edge
	InCnt(x, y int) uint64
	// OutCooccur is the number of vertices with both an outgoing x and an outgoing y edge
	OutCooccur(x, y int) uint64
	// InCooccur is the number of vertices with both an incoming x and an incoming y edge
	InCooccur(x, y int) uint64
}
