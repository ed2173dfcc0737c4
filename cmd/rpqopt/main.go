// Command rpqopt compiles a workload of regular path queries into an AND-OR
// DAG, plans it against graph statistics and selects views to materialize.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
