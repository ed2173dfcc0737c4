package planner

import (
	"fmt"

	"github.com/wbrown/janus-rpq/rpq"
)

// OpType is the algebraic operator of a DAG node
type OpType uint8

const (
	OpLeaf OpType = iota
	OpConcat
	OpAlternation
	OpKleene
	OpEquivalence
)

// String returns the string representation of OpType
func (op OpType) String() string {
	switch op {
	case OpLeaf:
		return "leaf"
	case OpConcat:
		return "concat"
	case OpAlternation:
		return "alt"
	case OpKleene:
		return "kleene"
	case OpEquivalence:
		return "eq"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// Node is one sub-expression of the workload's AND-OR DAG.
// Children are indices into the owning AndOrDag's node table.
type Node struct {
	IsEquivalence bool
	Op            OpType
	Children      []int
	StartLabels   rpq.LabelSet
	EndLabels     rpq.LabelSet
	Label         rpq.Label // only meaningful for OpLeaf
	TargetChild   int       // chosen alternative of an equivalence node, -1 until planned
	TopoOrder     int       // -1 until scheduled
}

func (n Node) clone() Node {
	c := n
	if n.Children != nil {
		c.Children = append([]int(nil), n.Children...)
	}
	c.StartLabels = n.StartLabels.Clone()
	c.EndLabels = n.EndLabels.Clone()
	return c
}

// hasChild reports whether idx is already one of the node's children
func (n Node) hasChild(idx int) bool {
	for _, c := range n.Children {
		if c == idx {
			return true
		}
	}
	return false
}

// String renders a compact one-line description
func (n Node) String() string {
	if n.Op == OpLeaf {
		return fmt.Sprintf("leaf %s", n.Label)
	}
	return fmt.Sprintf("%s %v", n.Op, n.Children)
}
