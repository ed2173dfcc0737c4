package annotations

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Add(Event{Name: PlanComplete})
	c.AddTiming(PlanComplete, time.Now(), nil)
	c.Reset()
	assert.Nil(t, c.Events())
	assert.Nil(t, c.Handler())
}

func TestCollector(t *testing.T) {
	var seen []string
	c := NewCollector(func(e Event) { seen = append(seen, e.Name) })

	c.AddTiming(QueryRegistered, time.Now(), map[string]interface{}{"query": "<1>"})
	c.AddTiming(PlanComplete, time.Now(), nil)
	c.AddTiming(QueryRegistered, time.Now(), map[string]interface{}{"query": "<2>"})

	assert.Equal(t, []string{QueryRegistered, PlanComplete, QueryRegistered}, seen)
	require.Len(t, c.Named(QueryRegistered), 2)
	assert.Equal(t, "<2>", c.Named(QueryRegistered)[1].Data["query"])

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestOutputFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	f.Handle(Event{Name: QueryRegistered, Latency: 12 * time.Microsecond, Data: map[string]interface{}{
		"query": "<1>/<2>", "node": 2, "nodes.new": 3,
	}})
	f.Handle(Event{Name: MatViewSelected, Latency: 3 * time.Millisecond, Data: map[string]interface{}{
		"mode": "greedy-ratio", "views": 2, "space.used": uint64(3), "budget": ^uint64(0), "benefit": 12.5,
	}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[12µs] Query <1>/<2> → node 2, 3 new nodes", lines[0])
	assert.Equal(t, "[3.0ms] === Mode greedy-ratio chose 2 views using 3/∞ space, benefit 12.50", lines[1])
}

func TestOutputFormatterDedup(t *testing.T) {
	f := NewOutputFormatter(&bytes.Buffer{})
	out := f.Format(Event{Name: QueryRegistered, Data: map[string]interface{}{
		"query": "<1>", "node": 0, "dedup": true, "frequency": uint64(4),
	}})
	assert.Equal(t, "[0µs] Query <1> already registered at node 0 (freq now 4)", out)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	c := NewCollector(Tee(m.Handle, nil))
	c.AddTiming(PlanComplete, time.Now(), map[string]interface{}{"nodes": 7})
	c.AddTiming(MatViewSelected, time.Now(), map[string]interface{}{"benefit": 4.5, "space.used": uint64(2)})
	c.AddTiming(MatViewSelected, time.Now(), map[string]interface{}{"benefit": 1.5, "space.used": uint64(1)})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues(PlanComplete)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues(MatViewSelected)))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.nodes))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.benefit))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.usedSpace))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice must fail")
}
