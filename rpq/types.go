// Package rpq holds the value types shared by the RPQ front-end, the
// optimizer and the graph statistics provider.
package rpq

import (
	"fmt"
	"sort"
	"strings"
)

// Label is an edge label as it appears in a path expression.
// Inverse marks traversal against the edge direction (^<l>).
type Label struct {
	ID      uint32
	Inverse bool
}

// String returns the label in RPQ surface syntax
func (l Label) String() string {
	if l.Inverse {
		return fmt.Sprintf("^<%d>", l.ID)
	}
	return fmt.Sprintf("<%d>", l.ID)
}

// Invert returns the same label traversed in the opposite direction
func (l Label) Invert() Label {
	return Label{ID: l.ID, Inverse: !l.Inverse}
}

// Compare orders labels by ID, forward before inverse
func (l Label) Compare(other Label) int {
	switch {
	case l.ID < other.ID:
		return -1
	case l.ID > other.ID:
		return 1
	case l.Inverse == other.Inverse:
		return 0
	case !l.Inverse:
		return -1
	default:
		return 1
	}
}

// LabelSet is a sorted, duplicate-free set of labels.
// The zero value is the empty set.
type LabelSet []Label

// NewLabelSet builds a set from arbitrary labels
func NewLabelSet(labels ...Label) LabelSet {
	var s LabelSet
	for _, l := range labels {
		s = s.Add(l)
	}
	return s
}

// Add returns the set with l inserted
func (s LabelSet) Add(l Label) LabelSet {
	i := sort.Search(len(s), func(i int) bool { return s[i].Compare(l) >= 0 })
	if i < len(s) && s[i] == l {
		return s
	}
	s = append(s, Label{})
	copy(s[i+1:], s[i:])
	s[i] = l
	return s
}

// Union returns a new set containing the labels of both sets
func (s LabelSet) Union(other LabelSet) LabelSet {
	out := make(LabelSet, 0, len(s)+len(other))
	i, j := 0, 0
	for i < len(s) && j < len(other) {
		switch c := s[i].Compare(other[j]); {
		case c < 0:
			out = append(out, s[i])
			i++
		case c > 0:
			out = append(out, other[j])
			j++
		default:
			out = append(out, s[i])
			i++
			j++
		}
	}
	out = append(out, s[i:]...)
	return append(out, other[j:]...)
}

// Invert flips the direction of every label
func (s LabelSet) Invert() LabelSet {
	out := make(LabelSet, 0, len(s))
	for _, l := range s {
		out = out.Add(l.Invert())
	}
	return out
}

// Contains reports whether l is a member
func (s LabelSet) Contains(l Label) bool {
	i := sort.Search(len(s), func(i int) bool { return s[i].Compare(l) >= 0 })
	return i < len(s) && s[i] == l
}

// Equal reports whether both sets hold the same labels
func (s LabelSet) Equal(other LabelSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy
func (s LabelSet) Clone() LabelSet {
	if s == nil {
		return nil
	}
	out := make(LabelSet, len(s))
	copy(out, s)
	return out
}

// String renders the set as {<1> ^<2>}
func (s LabelSet) String() string {
	parts := make([]string, len(s))
	for i, l := range s {
		parts[i] = l.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
