// Package report renders optimizer state as markdown tables
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/wbrown/janus-rpq/rpq/planner"
)

// Formatter renders DAGs, selections and replan deltas
type Formatter struct {
	// MaxWidth is the maximum width of a query column
	MaxWidth int
	// TruncateString is appended when a query is truncated
	TruncateString string
}

// NewFormatter creates a formatter with default settings
func NewFormatter() *Formatter {
	return &Formatter{
		MaxWidth:       50,
		TruncateString: "...",
	}
}

// table renders headers and rows as a markdown table followed by a
// row count footer
func (f *Formatter) table(headers []string, rows [][]string, noun string) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_No %s_", noun)
	}

	out := &strings.Builder{}

	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}

	t := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	t.Header(headers)
	for _, row := range rows {
		t.Append(row)
	}
	t.Render()

	out.WriteString(fmt.Sprintf("\n_%d %s_\n", len(rows), noun))
	return out.String()
}

// Plan renders one row per node with its planned estimates
func (f *Formatter) Plan(d *planner.AndOrDag) string {
	headers := []string{"node", "op", "children", "target", "src", "dst", "prob", "cost", "uses", "freq", "view"}
	rows := make([][]string, 0, d.NumNodes())
	for i := 0; i < d.NumNodes(); i++ {
		n := d.Node(i)
		children := n.Label.String()
		if n.Op != planner.OpLeaf {
			children = joinInts(n.Children)
		}
		target := ""
		if n.Op == planner.OpEquivalence && n.TargetChild >= 0 {
			target = strconv.Itoa(n.TargetChild)
		}
		view := ""
		if d.Materialized(i) {
			view = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			n.Op.String(),
			children,
			target,
			formatCount(d.SrcCnt(i)),
			formatCount(d.DstCnt(i)),
			formatProb(d.PairProb(i)),
			formatCost(d.Cost(i)),
			formatCount(d.UseCnt(i)),
			formatCount(d.WorkloadFreq(i)),
			view,
		})
	}
	return f.table(headers, rows, "nodes")
}

// Workload renders the registered queries with their entry nodes
func (f *Formatter) Workload(d *planner.AndOrDag) string {
	headers := []string{"query", "entry", "frequency", "cost"}
	var rows [][]string
	for _, q := range d.Queries() {
		entry, err := d.Lookup(q)
		if err != nil {
			continue
		}
		freq, _ := d.Frequency(q)
		rows = append(rows, []string{
			f.truncate(q),
			strconv.Itoa(entry),
			formatCount(freq),
			formatCost(d.Cost(entry)),
		})
	}
	result := f.table(headers, rows, "queries")
	if len(rows) > 0 {
		result += fmt.Sprintf("\n**Workload cost:** %s\n", formatCost(d.WorkloadCost()))
	}
	return result
}

// Selection renders the decision trace of a view selection
func (f *Formatter) Selection(sel *planner.Selection, d *planner.AndOrDag) string {
	headers := []string{"node", "op", "space", "taken", "benefit"}
	rows := make([][]string, 0, len(sel.Trace))
	for _, e := range sel.Trace {
		taken := "no"
		if e.Satisfied {
			taken = "yes"
		}
		rows = append(rows, []string{
			strconv.Itoa(e.Node),
			d.Node(e.Node).Op.String(),
			formatCount(d.Space(e.Node)),
			taken,
			formatCost(e.Benefit),
		})
	}

	var b strings.Builder
	b.WriteString(f.table(headers, rows, "candidates"))
	fmt.Fprintf(&b, "\n**Mode:** %s, **budget:** %s, **used:** %s, **views:** %s, **benefit:** %s\n",
		sel.Mode, formatBudget(sel.Budget), formatCount(sel.UsedSpace),
		joinInts(sel.Chosen), formatCost(sel.Benefit))
	return b.String()
}

// Replan renders the nodes whose cost a replan changes
func (f *Formatter) Replan(r *planner.Replan, d *planner.AndOrDag) string {
	headers := []string{"node", "op", "old cost", "new cost"}
	changed := r.Changed()
	rows := make([][]string, 0, len(changed))
	for _, v := range changed {
		rows = append(rows, []string{
			strconv.Itoa(v),
			d.Node(v).Op.String(),
			formatCost(d.Cost(v)),
			formatCost(r.NodeToNewCost[v]),
		})
	}
	return f.table(headers, rows, "changed nodes") +
		fmt.Sprintf("\n**Reduced workload cost:** %s\n", formatCost(r.ReducedCost))
}

// Explore renders one row per explored budget
func (f *Formatter) Explore(sels []*planner.Selection) string {
	headers := []string{"budget", "used", "views", "benefit"}
	rows := make([][]string, 0, len(sels))
	for _, sel := range sels {
		rows = append(rows, []string{
			formatBudget(sel.Budget),
			formatCount(sel.UsedSpace),
			joinInts(sel.Chosen),
			formatCost(sel.Benefit),
		})
	}
	return f.table(headers, rows, "budgets")
}

func (f *Formatter) truncate(s string) string {
	if f.MaxWidth <= 0 || len(s) <= f.MaxWidth {
		return s
	}
	cut := f.MaxWidth - len(f.TruncateString)
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + f.TruncateString
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, " ")
}

func formatCount(n uint64) string {
	if n > math.MaxInt64 {
		return strconv.FormatUint(n, 10)
	}
	return humanize.Comma(int64(n))
}

func formatCost(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return humanize.CommafWithDigits(v, 2)
}

func formatProb(p float64) string {
	return strconv.FormatFloat(p, 'g', 4, 64)
}

func formatBudget(b uint64) string {
	if b == math.MaxUint64 {
		return "unlimited"
	}
	return formatCount(b)
}
