// Package annotations provides a clean, low-overhead annotation system for
// tracking optimizer passes and debugging information.
//
// A nil *Collector is valid and drops every event, so components can emit
// unconditionally.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Workload registration
	QueryRegistered = "dag/query.registered"
	QueryMerged     = "dag/query.merged"
	DagLoaded       = "dag/loaded"

	// Cost estimation
	LeavesAnnotated = "cost/leaves.annotated"
	TopoSorted      = "plan/topo.sorted"
	PlanComplete    = "plan/completed"

	// Materialization
	MatViewSelected  = "matview/selected"
	ReplanComplete   = "replan/completed"
	ExploreCacheHit  = "explore/cache.hit"
	ExploreCacheMiss = "explore/cache.miss"

	// Graph statistics
	GraphLoaded = "graph/loaded"

	// Errors
	ErrorQueryParsing = "error/query.parsing"
	ErrorStructure    = "error/dag.structure"
	ErrorFormat       = "error/dag.format"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events.
type Collector struct {
	handler Handler
	events  []Event
	mu      sync.Mutex
}

// NewCollector creates a new annotation collector. A nil handler still
// records events; use a nil *Collector to disable collection entirely.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		handler: handler,
		events:  make([]Event, 0, 64),
	}
}

// Handler returns the underlying event handler.
func (c *Collector) Handler() Handler {
	if c == nil {
		return nil
	}
	return c.handler
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	if c.handler != nil {
		c.handler(event)
	}
}

// AddTiming records an event that started at start and ends now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if c == nil {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// Events returns all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Named returns the collected events with the given name, oldest first.
func (c *Collector) Named(name string) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the collector for reuse.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
}

// Tee fans an event out to several handlers. Nil handlers are skipped.
func Tee(handlers ...Handler) Handler {
	return func(event Event) {
		for _, h := range handlers {
			if h != nil {
				h(event)
			}
		}
	}
}
