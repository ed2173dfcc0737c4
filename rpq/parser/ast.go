package parser

import (
	"strings"

	"github.com/wbrown/janus-rpq/rpq"
)

// Expr is a node of the RPQ syntax tree
type Expr interface {
	String() string
	exprNode()
}

// IRI is a single edge label
type IRI struct {
	Label rpq.Label
}

// Sequence is a concatenation e1/e2/.../en
type Sequence struct {
	Items []Expr
}

// Alternation is a choice e1|e2|...|en
type Alternation struct {
	Branches []Expr
}

// Star is the reflexive-transitive closure e*
type Star struct {
	Sub Expr
}

// Plus is the transitive closure e+
type Plus struct {
	Sub Expr
}

// Inverse is ^e, e traversed against edge direction
type Inverse struct {
	Sub Expr
}

func (IRI) exprNode()         {}
func (Sequence) exprNode()    {}
func (Alternation) exprNode() {}
func (Star) exprNode()        {}
func (Plus) exprNode()        {}
func (Inverse) exprNode()     {}

func (e IRI) String() string { return e.Label.String() }

func (e Sequence) String() string {
	parts := make([]string, len(e.Items))
	for i, item := range e.Items {
		if _, ok := item.(Alternation); ok {
			parts[i] = "(" + item.String() + ")"
		} else {
			parts[i] = item.String()
		}
	}
	return strings.Join(parts, "/")
}

func (e Alternation) String() string {
	parts := make([]string, len(e.Branches))
	for i, b := range e.Branches {
		parts[i] = b.String()
	}
	return strings.Join(parts, "|")
}

func (e Star) String() string { return wrapUnary(e.Sub) + "*" }

func (e Plus) String() string { return wrapUnary(e.Sub) + "+" }

func (e Inverse) String() string { return "^" + wrapUnary(e.Sub) }

func wrapUnary(e Expr) string {
	switch e.(type) {
	case IRI:
		return e.String()
	default:
		return "(" + e.String() + ")"
	}
}

// Normalize pushes inversions down to the labels and flattens nested
// sequences and alternations. Plus is kept; the compiler expands it.
func Normalize(e Expr) Expr {
	return normalize(e, false)
}

func normalize(e Expr, inverted bool) Expr {
	switch e := e.(type) {
	case IRI:
		if inverted {
			return IRI{Label: e.Label.Invert()}
		}
		return e
	case Inverse:
		return normalize(e.Sub, !inverted)
	case Star:
		return Star{Sub: normalize(e.Sub, inverted)}
	case Plus:
		return Plus{Sub: normalize(e.Sub, inverted)}
	case Sequence:
		var items []Expr
		for _, item := range e.Items {
			n := normalize(item, inverted)
			if seq, ok := n.(Sequence); ok {
				items = append(items, seq.Items...)
			} else {
				items = append(items, n)
			}
		}
		// ^(a/b) = ^b/^a
		if inverted {
			for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
				items[i], items[j] = items[j], items[i]
			}
		}
		if len(items) == 1 {
			return items[0]
		}
		return Sequence{Items: items}
	case Alternation:
		var branches []Expr
		for _, b := range e.Branches {
			n := normalize(b, inverted)
			if alt, ok := n.(Alternation); ok {
				branches = append(branches, alt.Branches...)
			} else {
				branches = append(branches, n)
			}
		}
		if len(branches) == 1 {
			return branches[0]
		}
		return Alternation{Branches: branches}
	default:
		return e
	}
}
