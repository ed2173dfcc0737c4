package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter with color support detection.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	// Auto-detect color support
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f.Fd()) && !color.NoColor
	}

	return &OutputFormatter{
		useColor: useColor,
		writer:   w,
	}
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)
	d := event.Data

	switch event.Name {
	case QueryRegistered:
		query := truncateQuery(stringData(d, "query"))
		if boolData(d, "dedup") {
			return fmt.Sprintf("%s Query %s already registered at node %d (freq now %d)",
				latency,
				f.colorize(query, color.FgCyan),
				intData(d, "node"),
				uintData(d, "frequency"))
		}
		return fmt.Sprintf("%s Query %s → node %d, %s",
			latency,
			f.colorize(query, color.FgCyan),
			intData(d, "node"),
			f.colorizeCount("new nodes", intData(d, "nodes.new")))

	case QueryMerged:
		return fmt.Sprintf("%s %s Query %s re-pointed %d → equivalence %d",
			latency,
			f.colorize("≡", color.FgYellow),
			truncateQuery(stringData(d, "query")),
			intData(d, "from"),
			intData(d, "to"))

	case DagLoaded:
		return fmt.Sprintf("%s Loaded DAG with %s and %s",
			latency,
			f.colorizeCount("nodes", intData(d, "nodes")),
			f.colorizeCount("queries", intData(d, "queries")))

	case GraphLoaded:
		return fmt.Sprintf("%s Loaded graph with %s, %d edges, %d vertices",
			latency,
			f.colorizeCount("labels", intData(d, "labels")),
			uintData(d, "edges"),
			uintData(d, "vertices"))

	case LeavesAnnotated:
		return fmt.Sprintf("%s Annotated %s",
			latency,
			f.colorizeCount("leaves", intData(d, "leaves")))

	case TopoSorted:
		return fmt.Sprintf("%s Scheduled %s", latency, f.colorizeCount("nodes", intData(d, "nodes")))

	case PlanComplete:
		return fmt.Sprintf("%s %s Planned %s, workload cost %.2f",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("nodes", intData(d, "nodes")),
			floatData(d, "workload.cost"))

	case MatViewSelected:
		return fmt.Sprintf("%s %s Mode %s chose %s using %d/%s space, benefit %.2f",
			latency,
			f.colorize("===", color.FgGreen),
			stringData(d, "mode"),
			f.colorizeCount("views", intData(d, "views")),
			uintData(d, "space.used"),
			formatBudget(uintData(d, "budget")),
			floatData(d, "benefit"))

	case ReplanComplete:
		return fmt.Sprintf("%s Replanned with %d materialized: %s changed, reduced cost %.2f",
			latency,
			intData(d, "materialized"),
			f.colorizeCount("nodes", intData(d, "changed")),
			floatData(d, "reduced"))

	case ExploreCacheHit, ExploreCacheMiss:
		outcome := "hit"
		if event.Name == ExploreCacheMiss {
			outcome = "miss"
		}
		return fmt.Sprintf("%s Selection cache %s for mode %s budget %s",
			latency, outcome, stringData(d, "mode"), formatBudget(uintData(d, "budget")))

	case ErrorQueryParsing, ErrorStructure, ErrorFormat:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Name,
			d["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, d)
	}
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	// Use microseconds for sub-millisecond durations
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)

	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)

	if !f.useColor {
		return text
	}

	switch strings.ToLower(label) {
	case "nodes", "new nodes":
		return color.CyanString(text)
	case "queries":
		return color.MagentaString(text)
	case "views":
		return color.BlueString(text)
	default:
		return text
	}
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncateQuery shortens long queries for display.
func truncateQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")

	const maxLen = 80
	if len(query) <= maxLen {
		return query
	}

	return query[:maxLen-3] + "..."
}

func formatBudget(b uint64) string {
	if b == ^uint64(0) {
		return "∞"
	}
	return fmt.Sprintf("%d", b)
}

func stringData(d map[string]interface{}, key string) string {
	if s, ok := d[key].(string); ok {
		return s
	}
	return ""
}

func intData(d map[string]interface{}, key string) int {
	if n, ok := d[key].(int); ok {
		return n
	}
	return 0
}

func uintData(d map[string]interface{}, key string) uint64 {
	if n, ok := d[key].(uint64); ok {
		return n
	}
	return 0
}

func floatData(d map[string]interface{}, key string) float64 {
	if n, ok := d[key].(float64); ok {
		return n
	}
	return 0
}

func boolData(d map[string]interface{}, key string) bool {
	b, _ := d[key].(bool)
	return b
}

// ConsoleHandler creates a handler that prints formatted events to stderr.
func ConsoleHandler() Handler {
	return NewOutputFormatter(os.Stderr).Handle
}

// isTerminal checks if the file descriptor is a terminal.
// This is a simplified version that only recognizes stdout and stderr.
func isTerminal(fd uintptr) bool {
	return fd == uintptr(1) || fd == uintptr(2)
}
