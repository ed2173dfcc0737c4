package planner

import "errors"

var (
	// ErrFormat reports malformed interchange or fixture input
	ErrFormat = errors.New("malformed input")

	// ErrCycle reports a cycle in the node/child relation. It can only
	// come from a corrupted DAG and is not recoverable.
	ErrCycle = errors.New("cycle in AND-OR DAG")

	// ErrInvalidArgument reports node indices outside the node table
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrQueryNotFound reports a lookup of an unregistered query text
	ErrQueryNotFound = errors.New("query not registered")

	// ErrUnknownMode reports an unsupported view selection mode
	ErrUnknownMode = errors.New("unknown selection mode")

	// ErrNoStatistics reports an operation that needs graph statistics
	ErrNoStatistics = errors.New("no graph statistics")
)
