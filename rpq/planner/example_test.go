package planner_test

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-rpq/rpq/planner"
)

func ExampleAndOrDag_RegisterQuery() {
	d := planner.NewAndOrDag(nil, planner.DefaultOptions())

	left, _ := d.RegisterQuery("(<1>/<2>)/<3>", 1)
	right, _ := d.RegisterQuery("<1>/(<2>/<3>)", 1)

	fmt.Println(left == right, d.Node(left).Op, d.NumNodes())
	// Output: true eq 8
}

func ExampleAndOrDag_ChooseMatViews() {
	dag := `6
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
	costs := "6\n10 5 5 0.4\n10 5 5 0.4\n10 5 5 0.4\n50 5 5 0.8\n80 5 5 0.2\n150 5 5 1\n"

	d, err := planner.LoadDag(strings.NewReader(dag), nil, planner.DefaultOptions())
	if err != nil {
		panic(err)
	}
	if err := d.LoadCostFixture(strings.NewReader(costs)); err != nil {
		panic(err)
	}
	for _, q := range d.Queries() {
		_ = d.SetWorkloadFrequency(q, 1)
	}

	sel, err := d.ChooseMatViews(planner.ModeBottomUp, 25)
	if err != nil {
		panic(err)
	}
	fmt.Println(sel.Chosen, sel.UsedSpace, sel.Benefit)
	// Output: [3 4] 25 226
}
