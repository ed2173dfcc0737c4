package graph

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wbrown/janus-rpq/rpq/annotations"
)

// ErrGraphFormat reports a malformed graph or statistics file
var ErrGraphFormat = errors.New("malformed graph input")

// ReadGraph parses one edge per line as "src dst label". Blank lines and
// lines starting with # are skipped.
func ReadGraph(r io.Reader) ([]Edge, error) {
	var edges []Edge
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%w: line %d: expected \"src dst label\", got %d fields", ErrGraphFormat, line, len(fields))
		}
		src, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: source: %v", ErrGraphFormat, line, err)
		}
		dst, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: destination: %v", ErrGraphFormat, line, err)
		}
		label, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil || label > math.MaxUint32 {
			return nil, fmt.Errorf("%w: line %d: label %q", ErrGraphFormat, line, fields[2])
		}
		edges = append(edges, Edge{Src: src, Dst: dst, Label: uint32(label)})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrGraphFormat, line+1, err)
	}
	return edges, nil
}

// LoadGraph reads a graph file and builds its CSR. The label-pair
// statistics are left empty; call FillStats or LoadStats.
func LoadGraph(r io.Reader, collector *annotations.Collector) (*MultiLabelCSR, error) {
	edges, err := ReadGraph(r)
	if err != nil {
		return nil, err
	}
	return NewMultiLabelCSRWithCollector(edges, collector), nil
}

// WriteGraph writes edges in the format ReadGraph accepts
func WriteGraph(w io.Writer, edges []Edge) error {
	bw := bufio.NewWriter(w)
	for _, e := range edges {
		fmt.Fprintf(bw, "%d %d %d\n", e.Src, e.Dst, e.Label)
	}
	return bw.Flush()
}
