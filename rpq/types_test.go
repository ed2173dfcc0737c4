package rpq

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelSet(t *testing.T) {
	a := Label{ID: 1}
	aInv := Label{ID: 1, Inverse: true}
	b := Label{ID: 2}

	s := NewLabelSet(b, aInv, a, b)
	assert.Equal(t, LabelSet{a, aInv, b}, s)
	assert.True(t, s.Contains(aInv))
	assert.False(t, s.Contains(Label{ID: 3}))

	u := NewLabelSet(b).Union(NewLabelSet(a, Label{ID: 5}))
	assert.Equal(t, LabelSet{a, b, {ID: 5}}, u)

	assert.Equal(t, LabelSet{aInv, {ID: 2, Inverse: true}}, NewLabelSet(a, b).Invert())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(u))
	assert.Equal(t, "{<1> ^<1> <2>}", s.String())
}
