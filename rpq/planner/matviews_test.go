package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

var allModes = []SelectionMode{ModeBottomUp, ModeGreedyBenefit, ModeGreedyRatio, ModeTopDown, ModeSharedFirst}

func TestChooseMatViewsShared(t *testing.T) {
	// W(∅) = 230; node 3 saves 196 in 20 units, node 4 saves 79 in 5,
	// node 5 saves 149 in 25
	tests := []struct {
		mode    SelectionMode
		budget  uint64
		chosen  []int
		benefit float64
		used    uint64
	}{
		{ModeBottomUp, 5, []int{4}, 79, 5},
		{ModeGreedyBenefit, 5, []int{4}, 79, 5},
		{ModeTopDown, 5, []int{4}, 79, 5},
		{ModeBottomUp, 25, []int{3, 4}, 226, 25},
		{ModeGreedyBenefit, 25, []int{3, 4}, 226, 25},
		{ModeGreedyRatio, 25, []int{3, 4}, 226, 25},
		{ModeTopDown, 25, []int{5}, 149, 25},
		{ModeSharedFirst, 25, []int{3, 4}, 226, 25},
		{ModeBottomUp, math.MaxUint64, []int{3, 4, 5}, 228, 50},
		{ModeTopDown, math.MaxUint64, []int{4, 5}, 228, 30},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			d := loadShared(t)
			sel, err := d.ChooseMatViews(tt.mode, tt.budget)
			require.NoError(t, err)

			assert.Equal(t, tt.chosen, sel.Chosen)
			assert.InDelta(t, tt.benefit, sel.Benefit, 1e-9)
			assert.Equal(t, tt.used, sel.UsedSpace)
			for _, v := range tt.chosen {
				assert.True(t, d.Materialized(v))
				assert.Equal(t, 1.0, d.Cost(v))
			}
			assert.InDelta(t, 230-tt.benefit, d.WorkloadCost(), 1e-9)
		})
	}
}

func TestChooseMatViewsTrace(t *testing.T) {
	d := loadShared(t)
	sel, err := d.ChooseMatViews(ModeBottomUp, 25)
	require.NoError(t, err)
	assert.Equal(t, []TraceEntry{
		{Node: 3, Satisfied: true, Benefit: 196},
		{Node: 4, Satisfied: true, Benefit: 30},
		{Node: 5, Satisfied: false, Benefit: 2},
	}, sel.Trace)

	sel, err = d.ChooseMatViews(ModeGreedyRatio, 25)
	require.NoError(t, err)
	assert.Equal(t, []TraceEntry{
		{Node: 3, Satisfied: true, Benefit: 147},
		{Node: 4, Satisfied: true, Benefit: 79},
		{Node: 5, Satisfied: false},
	}, sel.Trace)
}

func TestChooseMatViewsBudget(t *testing.T) {
	budgets := []uint64{0, 1, 2, 3, 5, 8, 20, 25, 49, 50, math.MaxUint64}

	for _, mode := range allModes {
		for _, budget := range budgets {
			for name, d := range map[string]*AndOrDag{"shared": loadShared(t), "mixed": plannedMixed(t)} {
				sel, err := d.ChooseMatViews(mode, budget)
				require.NoError(t, err)

				var used uint64
				for _, v := range sel.Chosen {
					used += d.space(v)
					assert.NotEqual(t, OpLeaf, d.Node(v).Op)
				}
				assert.Equal(t, used, sel.UsedSpace, "%s %s budget %d", name, mode, budget)
				assert.LessOrEqual(t, sel.UsedSpace, budget, "%s %s budget %d", name, mode, budget)
				assert.GreaterOrEqual(t, sel.Benefit, 0.0)

				if budget == 0 {
					assert.Empty(t, sel.Chosen)
					assert.Equal(t, 0.0, sel.Benefit)
					assert.Equal(t, uint64(0), sel.UsedSpace)
				}
			}
		}
	}
}

func TestChooseMatViewsClearsPrevious(t *testing.T) {
	d := loadShared(t)
	_, err := d.ChooseMatViews(ModeBottomUp, math.MaxUint64)
	require.NoError(t, err)
	assert.True(t, d.Materialized(5))

	sel, err := d.ChooseMatViews(ModeBottomUp, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, sel.Chosen)
	assert.False(t, d.Materialized(3))
	assert.False(t, d.Materialized(5))
	assert.Equal(t, 150.0, d.Cost(5))
	assert.Equal(t, 50.0, d.Cost(3))

	sel, err = d.ChooseMatViews(ModeBottomUp, 0)
	require.NoError(t, err)
	assert.Empty(t, sel.Chosen)
	assert.Equal(t, 230.0, d.WorkloadCost())
}

func TestChooseMatViewsUnknownMode(t *testing.T) {
	d := loadShared(t)
	_, err := d.ChooseMatViews(SelectionMode(9), 10)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = ParseSelectionMode("sideways")
	assert.ErrorIs(t, err, ErrUnknownMode)
	m, err := ParseSelectionMode("greedy-ratio")
	require.NoError(t, err)
	assert.Equal(t, ModeGreedyRatio, m)
	m, err = ParseSelectionMode("4")
	require.NoError(t, err)
	assert.Equal(t, ModeSharedFirst, m)
}

func TestChooseMatViewsOnCloneLeavesOriginal(t *testing.T) {
	for _, mode := range allModes {
		d := plannedMixed(t)
		before := snapshot(t, d)

		c := d.Clone()
		sel, err := c.ChooseMatViews(mode, math.MaxUint64)
		require.NoError(t, err)
		require.NotEmpty(t, sel.Chosen, mode.String())

		assert.Equal(t, before, snapshot(t, d), mode.String())
		assert.NotEqual(t, before, snapshot(t, c), mode.String())
	}
}

func TestReplanWithMaterialize(t *testing.T) {
	d := loadShared(t)
	before := snapshot(t, d)

	r, err := d.ReplanWithMaterialize([]int{3})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{3: 1, 4: 31, 5: 3}, r.NodeToNewCost)
	assert.Equal(t, []int{3, 4, 5}, r.Changed())
	assert.Equal(t, 196.0, r.ReducedCost)
	assert.Equal(t, before, snapshot(t, d), "replan must not modify the DAG")

	r, err = d.ReplanWithMaterialize([]int{4})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{4: 1}, r.NodeToNewCost)
	assert.Equal(t, 79.0, r.ReducedCost)

	// leaves are never materialized
	r, err = d.ReplanWithMaterialize([]int{0})
	require.NoError(t, err)
	assert.Empty(t, r.NodeToNewCost)
	assert.Equal(t, 0.0, r.ReducedCost)

	require.NoError(t, d.ApplyMaterialization([]int{0}))
	assert.False(t, d.Materialized(0))
	assert.Equal(t, before, snapshot(t, d))
}

func TestReplanRespectsCurrentMaterialization(t *testing.T) {
	d := loadShared(t)
	require.NoError(t, d.ApplyMaterialization([]int{3}))
	assert.True(t, d.Materialized(3))
	assert.Equal(t, 31.0, d.Cost(4))
	assert.Equal(t, 3.0, d.Cost(5))
	assert.Equal(t, 34.0, d.WorkloadCost())

	r, err := d.ReplanWithMaterialize([]int{4})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{4: 1}, r.NodeToNewCost)
	assert.Equal(t, 30.0, r.ReducedCost)

	d.ClearMaterialization()
	assert.False(t, d.Materialized(3))
	assert.Equal(t, 230.0, d.WorkloadCost())
}

func TestReplanInvalidIndex(t *testing.T) {
	d := loadShared(t)
	before := snapshot(t, d)

	for _, indices := range [][]int{{6}, {-1}, {3, 100}} {
		r, err := d.ReplanWithMaterialize(indices)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Nil(t, r)
		assert.ErrorIs(t, d.ApplyMaterialization(indices), ErrInvalidArgument)
	}
	assert.Equal(t, before, snapshot(t, d))
}

func TestReplanDeltaMatchesRecomputation(t *testing.T) {
	d := plannedMixed(t)

	var candidates []int
	for i := 0; i < d.NumNodes(); i++ {
		if d.Node(i).Op != OpLeaf {
			candidates = append(candidates, i)
		}
	}
	require.NotEmpty(t, candidates)

	sets := [][]int{candidates[:1], candidates[len(candidates)/2:], candidates}
	for _, set := range sets {
		r, err := d.ReplanWithMaterialize(set)
		require.NoError(t, err)

		after := d.Clone()
		require.NoError(t, after.ApplyMaterialization(set))

		var expected float64
		for _, q := range d.Queries() {
			entry, err := d.Lookup(q)
			require.NoError(t, err)
			f, err := d.Frequency(q)
			require.NoError(t, err)
			expected += float64(f) * (d.Cost(entry) - after.Cost(entry))
		}
		assert.InDelta(t, expected, r.ReducedCost, 1e-9)

		for i := 0; i < d.NumNodes(); i++ {
			if c, ok := r.NodeToNewCost[i]; ok {
				assert.Equal(t, c, after.Cost(i))
				assert.NotEqual(t, c, d.Cost(i))
			} else {
				assert.Equal(t, d.Cost(i), after.Cost(i), "node %d", i)
			}
		}
	}
}

func TestSelectionMatchesReplan(t *testing.T) {
	for _, mode := range allModes {
		for _, budget := range []uint64{1, 3, 25, math.MaxUint64} {
			d := plannedMixed(t)
			sel, err := d.Clone().ChooseMatViews(mode, budget)
			require.NoError(t, err)

			r, err := d.ReplanWithMaterialize(sel.Chosen)
			require.NoError(t, err)
			assert.InDelta(t, sel.Benefit, r.ReducedCost, 1e-6, "%s budget %d", mode, budget)
		}
	}
}

func TestChooseMatViewsEmitsAnnotation(t *testing.T) {
	c := annotations.NewCollector(nil)
	d := loadShared(t)
	d.options.Collector = c

	_, err := d.ChooseMatViews(ModeGreedyBenefit, 25)
	require.NoError(t, err)

	events := c.Named(annotations.MatViewSelected)
	require.Len(t, events, 1)
	assert.Equal(t, "greedy-benefit", events[0].Data["mode"])
	assert.Equal(t, 2, events[0].Data["views"])
	assert.Equal(t, uint64(25), events[0].Data["space.used"])
	assert.InDelta(t, 226.0, events[0].Data["benefit"], 1e-9)
}

// plannedMixed is mixedWorkload annotated from a small graph and planned
func plannedMixed(t *testing.T) *AndOrDag {
	t.Helper()
	stats := newEdgeStats(
		[3]uint64{0, 1, 0}, [3]uint64{0, 2, 0}, [3]uint64{5, 1, 0},
		[3]uint64{1, 2, 1}, [3]uint64{2, 3, 1}, [3]uint64{1, 3, 1},
		[3]uint64{2, 4, 2}, [3]uint64{3, 4, 2}, [3]uint64{3, 5, 2},
		[3]uint64{4, 0, 3}, [3]uint64{5, 0, 3},
	)
	d := mixedWorkload(t, stats)
	require.NoError(t, d.AnnotateLeafCostCard())
	require.NoError(t, d.Plan())
	return d
}
