package planner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/wbrown/janus-rpq/rpq"
	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// tokenReader reads whitespace separated tokens and reports positions in
// format errors
type tokenReader struct {
	scanner *bufio.Scanner
	count   int
}

func newTokenReader(r io.Reader) *tokenReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &tokenReader{scanner: sc}
}

func (t *tokenReader) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: token %d: %s", ErrFormat, t.count, fmt.Sprintf(format, args...))
}

// next returns the next token, io.EOF at a clean end of input
func (t *tokenReader) next() (string, error) {
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrFormat, err)
		}
		return "", io.EOF
	}
	t.count++
	return t.scanner.Text(), nil
}

func (t *tokenReader) word(what string) (string, error) {
	tok, err := t.next()
	if err == io.EOF {
		return "", t.errorf("unexpected end of input, expected %s", what)
	}
	return tok, err
}

// intIn reads an integer in [lo, hi]
func (t *tokenReader) intIn(what string, lo, hi int) (int, error) {
	tok, err := t.word(what)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return 0, t.errorf("%s %q is not an integer", what, tok)
	}
	if n < lo || n > hi {
		return 0, t.errorf("%s %d outside [%d, %d]", what, n, lo, hi)
	}
	return n, nil
}

func (t *tokenReader) flag(what string) (bool, error) {
	n, err := t.intIn(what, 0, 1)
	return n == 1, err
}

func (t *tokenReader) labelSet(what string) (rpq.LabelSet, error) {
	n, err := t.intIn(what+" count", 0, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	var set rpq.LabelSet
	for i := 0; i < n; i++ {
		tok, err := t.word(what)
		if err != nil {
			return nil, err
		}
		id, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return nil, t.errorf("%s %q is not a label id", what, tok)
		}
		inv, err := t.flag(what + " direction")
		if err != nil {
			return nil, err
		}
		set = set.Add(rpq.Label{ID: uint32(id), Inverse: inv})
	}
	return set, nil
}

// LoadDag reads a DAG in interchange format. Nothing is returned when the
// input is malformed.
//
// The format carries no frequencies, so every registered query starts with
// frequency 0 and contributes nothing to WorkloadCost: ChooseMatViews
// reports no benefit and ReplanWithMaterialize no reduced cost until
// SetWorkloadFrequency (or RegisterQuery of the same text) assigns one.
func LoadDag(r io.Reader, stats Statistics, options Options) (*AndOrDag, error) {
	start := time.Now()
	d, err := loadDag(newTokenReader(r), stats, options)
	if err != nil {
		options.Collector.AddTiming(annotations.ErrorFormat, start, map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	options.Collector.AddTiming(annotations.DagLoaded, start, map[string]interface{}{
		"nodes":   d.NumNodes(),
		"queries": d.NumQueries(),
	})
	return d, nil
}

func loadDag(t *tokenReader, stats Statistics, options Options) (*AndOrDag, error) {
	d := NewAndOrDag(stats, options)

	numNodes, err := t.intIn("node count", 0, math.MaxInt32)
	if err != nil {
		return nil, err
	}

	children := make([][]int, numNodes)
	for i := 0; i < numNodes; i++ {
		isEq, err := t.flag("equivalence flag")
		if err != nil {
			return nil, err
		}
		opNum, err := t.intIn("operator", int(OpLeaf), int(OpEquivalence))
		if err != nil {
			return nil, err
		}
		op := OpType(opNum)
		if isEq != (op == OpEquivalence) {
			return nil, t.errorf("node %d: equivalence flag disagrees with operator %s", i, op)
		}

		k, err := t.intIn("child count", 0, numNodes)
		if err != nil {
			return nil, err
		}
		for j := 0; j < k; j++ {
			c, err := t.intIn("child index", 0, numNodes-1)
			if err != nil {
				return nil, err
			}
			children[i] = append(children[i], c)
		}
		if err := checkArity(op, k); err != nil {
			return nil, t.errorf("node %d: %v", i, err)
		}

		startLabels, err := t.labelSet("start label")
		if err != nil {
			return nil, err
		}
		endLabels, err := t.labelSet("end label")
		if err != nil {
			return nil, err
		}

		n := Node{IsEquivalence: isEq, Op: op, StartLabels: startLabels, EndLabels: endLabels}
		if op == OpLeaf {
			if len(startLabels) != 1 || !startLabels.Equal(endLabels) {
				return nil, t.errorf("node %d: leaf needs one identical start and end label", i)
			}
			n.Label = startLabels[0]
		}
		d.addNode(n)
	}

	for p, cs := range children {
		for _, c := range cs {
			if err := d.AddParentChild(p, c); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrFormat, err)
			}
		}
	}
	if _, err := d.topoOrder(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	numQueries, err := t.intIn("query count", 0, math.MaxInt32)
	if err != nil {
		return nil, err
	}
	for i := 0; i < numQueries; i++ {
		text, err := t.word("query text")
		if err != nil {
			return nil, err
		}
		entry, err := t.intIn("entry node", 0, numNodes-1)
		if err != nil {
			return nil, err
		}
		if _, dup := d.q2idx[text]; dup {
			return nil, t.errorf("query %q listed twice", text)
		}
		d.q2idx[text] = entry
		d.q2freq[text] = 0
	}

	// equivalence overrides are optional
	tok, err := t.next()
	if err == io.EOF {
		d.rebuildFingerprints()
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	numOverrides, err := strconv.Atoi(tok)
	if err != nil || numOverrides < 0 {
		return nil, t.errorf("override count %q is not a non-negative integer", tok)
	}
	for i := 0; i < numOverrides; i++ {
		v, err := t.intIn("override node", 0, numNodes-1)
		if err != nil {
			return nil, err
		}
		target, err := t.intIn("override target", 0, numNodes-1)
		if err != nil {
			return nil, err
		}
		if d.nodes[v].Op != OpEquivalence {
			return nil, t.errorf("override of node %d which is a %s node", v, d.nodes[v].Op)
		}
		if !d.nodes[v].hasChild(target) {
			return nil, t.errorf("override target %d is not a child of node %d", target, v)
		}
		d.nodes[v].TargetChild = target
	}

	if _, err := t.next(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, t.errorf("trailing input after overrides")
	}

	d.rebuildFingerprints()
	return d, nil
}

func checkArity(op OpType, k int) error {
	switch {
	case op == OpLeaf && k != 0:
		return fmt.Errorf("leaf with %d children", k)
	case op == OpKleene && k != 1:
		return fmt.Errorf("kleene with %d children", k)
	case op != OpLeaf && k == 0:
		return fmt.Errorf("%s without children", op)
	}
	return nil
}

// WriteDag writes the DAG in interchange format, including an override for
// every planned equivalence node
func (d *AndOrDag) WriteDag(w io.Writer) error {
	queries := d.Queries()
	for _, q := range queries {
		if strings.IndexFunc(q, isSpace) >= 0 {
			return fmt.Errorf("%w: query %q contains whitespace", ErrFormat, q)
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", len(d.nodes))
	for _, n := range d.nodes {
		fmt.Fprintf(bw, "%d %d %d", boolInt(n.IsEquivalence), int(n.Op), len(n.Children))
		for _, c := range n.Children {
			fmt.Fprintf(bw, " %d", c)
		}
		bw.WriteString("\n")
		writeLabelSet(bw, n.StartLabels)
		writeLabelSet(bw, n.EndLabels)
	}

	fmt.Fprintf(bw, "%d\n", len(queries))
	for _, q := range queries {
		fmt.Fprintf(bw, "%s %d\n", q, d.q2idx[q])
	}

	var overrides [][2]int
	for i, n := range d.nodes {
		if n.Op == OpEquivalence && n.TargetChild >= 0 {
			overrides = append(overrides, [2]int{i, n.TargetChild})
		}
	}
	if len(overrides) > 0 {
		fmt.Fprintf(bw, "%d\n", len(overrides))
		for _, o := range overrides {
			fmt.Fprintf(bw, "%d %d\n", o[0], o[1])
		}
	}
	return bw.Flush()
}

func writeLabelSet(w *bufio.Writer, s rpq.LabelSet) {
	fmt.Fprintf(w, "  %d", len(s))
	for _, l := range s {
		fmt.Fprintf(w, " %d %d", l.ID, boolInt(l.Inverse))
	}
	w.WriteString("\n")
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
