package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
)

// TestDataDriven runs the scripts under testdata. Commands:
//
//	load                      input: a DAG in interchange format
//	costs                     input: a cost fixture
//	register                  input: "<query> <frequency>" per line
//	freq                      input: "<query> <frequency>" per line
//	show                      one line per node
//	dump                      the DAG in interchange format
//	matviews mode=<m> budget=<n|max> [trace]
//	replan nodes=(<i>,...)
//	apply nodes=(<i>,...)
//	clear
func TestDataDriven(t *testing.T) {
	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		var d *AndOrDag
		datadriven.RunTest(t, path, func(t *testing.T, td *datadriven.TestData) string {
			if td.Cmd != "load" && td.Cmd != "register" && d == nil {
				td.Fatalf(t, "%s before load or register", td.Cmd)
			}
			switch td.Cmd {
			case "load":
				var err error
				d, err = LoadDag(strings.NewReader(td.Input), nil, DefaultOptions())
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				return fmt.Sprintf("nodes=%d queries=%d", d.NumNodes(), d.NumQueries())

			case "costs":
				if err := d.LoadCostFixture(strings.NewReader(td.Input)); err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				return "ok"

			case "register":
				if d == nil {
					d = NewAndOrDag(nil, DefaultOptions())
				}
				var b strings.Builder
				for _, line := range inputLines(td.Input) {
					q, f := queryFrequency(t, td, line)
					idx, err := d.RegisterQuery(q, f)
					if err != nil {
						fmt.Fprintf(&b, "%s: error\n", q)
						continue
					}
					fmt.Fprintf(&b, "%s -> %d\n", q, idx)
				}
				fmt.Fprintf(&b, "nodes: %d\n", d.NumNodes())
				return b.String()

			case "freq":
				for _, line := range inputLines(td.Input) {
					q, f := queryFrequency(t, td, line)
					require.NoError(t, d.SetWorkloadFrequency(q, f))
				}
				return fmt.Sprintf("workload: %s", formatCost(d.WorkloadCost()))

			case "show":
				var b strings.Builder
				for i := 0; i < d.NumNodes(); i++ {
					n := d.Node(i)
					fmt.Fprintf(&b, "%d: %s start=%s end=%s", i, n, n.StartLabels, n.EndLabels)
					if d.Materialized(i) {
						b.WriteString(" materialized")
					}
					b.WriteString("\n")
				}
				return b.String()

			case "dump":
				var b strings.Builder
				require.NoError(t, d.WriteDag(&b))
				return b.String()

			case "matviews":
				var modeName, budgetText string
				td.ScanArgs(t, "mode", &modeName)
				td.ScanArgs(t, "budget", &budgetText)
				mode, err := ParseSelectionMode(modeName)
				require.NoError(t, err)
				budget := uint64(math.MaxUint64)
				if budgetText != "max" {
					budget, err = strconv.ParseUint(budgetText, 10, 64)
					require.NoError(t, err)
				}

				sel, err := d.ChooseMatViews(mode, budget)
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				var b strings.Builder
				fmt.Fprintf(&b, "chosen: %v\n", sel.Chosen)
				fmt.Fprintf(&b, "used: %d\n", sel.UsedSpace)
				fmt.Fprintf(&b, "benefit: %s\n", formatCost(sel.Benefit))
				fmt.Fprintf(&b, "workload: %s\n", formatCost(d.WorkloadCost()))
				if td.HasArg("trace") {
					for _, e := range sel.Trace {
						state := "skip"
						if e.Satisfied {
							state = "take"
						}
						fmt.Fprintf(&b, "  %d %s %s\n", e.Node, state, formatCost(e.Benefit))
					}
				}
				return b.String()

			case "replan":
				before := make([]float64, d.NumNodes())
				for i := range before {
					before[i] = d.Cost(i)
				}
				r, err := d.ReplanWithMaterialize(nodeArgs(t, td))
				if err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				var b strings.Builder
				for _, v := range r.Changed() {
					fmt.Fprintf(&b, "%d: %s -> %s\n", v, formatCost(before[v]), formatCost(r.NodeToNewCost[v]))
				}
				fmt.Fprintf(&b, "reduced: %s\n", formatCost(r.ReducedCost))
				return b.String()

			case "apply":
				if err := d.ApplyMaterialization(nodeArgs(t, td)); err != nil {
					return fmt.Sprintf("error: %v", err)
				}
				return fmt.Sprintf("workload: %s", formatCost(d.WorkloadCost()))

			case "clear":
				d.ClearMaterialization()
				return fmt.Sprintf("workload: %s", formatCost(d.WorkloadCost()))

			default:
				td.Fatalf(t, "unknown command %q", td.Cmd)
				return ""
			}
		})
	})
}

func inputLines(input string) []string {
	var out []string
	for _, line := range strings.Split(input, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func queryFrequency(t *testing.T, td *datadriven.TestData, line string) (string, uint64) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		td.Fatalf(t, "expected <query> <frequency>, got %q", line)
	}
	f, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		td.Fatalf(t, "bad frequency in %q", line)
	}
	return fields[0], f
}

func nodeArgs(t *testing.T, td *datadriven.TestData) []int {
	var out []int
	for _, arg := range td.CmdArgs {
		if arg.Key != "nodes" {
			continue
		}
		for _, v := range arg.Vals {
			n, err := strconv.Atoi(v)
			require.NoError(t, err)
			out = append(out, n)
		}
	}
	return out
}

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
