package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rpq/rpq/annotations"
	"github.com/wbrown/janus-rpq/rpq/config"
	"github.com/wbrown/janus-rpq/rpq/graph"
	"github.com/wbrown/janus-rpq/rpq/planner"
)

// app carries the global flags and the state built from them
type app struct {
	configPath  string
	queriesPath string
	graphPath   string
	storePath   string
	statsPath   string
	dagPath     string
	costsPath   string
	verbose     bool
	metricsPath string

	cfg       *config.Config
	collector *annotations.Collector
	registry  *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "rpqopt",
		Short: "Optimize a workload of regular path queries",
		Long: `rpqopt compiles regular path queries into a shared AND-OR DAG,
estimates their cost from graph statistics and chooses sub-expressions to
materialize under a storage budget.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.writeMetrics()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&a.queriesPath, "queries", "q", "", "workload file, one \"query [frequency]\" per line")
	flags.StringVarP(&a.graphPath, "graph", "g", "", "graph file, one \"src dst label\" per line")
	flags.StringVar(&a.storePath, "store", "", "badger edge store directory (overrides --graph)")
	flags.StringVar(&a.statsPath, "stats", "", "label-pair statistics fixture (skips computing them)")
	flags.StringVar(&a.dagPath, "dag", "", "start from a DAG in interchange format")
	flags.StringVar(&a.costsPath, "costs", "", "cost fixture applied instead of planning")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "print optimizer events to stderr")
	flags.StringVar(&a.metricsPath, "metrics-file", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		a.planCmd(),
		a.matviewsCmd(),
		a.replanCmd(),
		a.exploreCmd(),
		a.dumpCmd(),
		a.importCmd(),
		versionCmd(),
	)
	return root
}

// setup resolves the configuration (defaults, file, environment, flags)
// and wires the event handlers
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if a.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(a.configPath); err != nil {
			return err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	if a.queriesPath != "" {
		if err := cfg.LoadWorkload(a.queriesPath); err != nil {
			return err
		}
	}
	for _, o := range []struct {
		flag  string
		field *string
	}{
		{a.graphPath, &cfg.Graph},
		{a.storePath, &cfg.Store},
		{a.statsPath, &cfg.Stats},
		{a.dagPath, &cfg.Dag},
	} {
		if o.flag != "" {
			*o.field = o.flag
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	var handlers []annotations.Handler
	if a.verbose {
		handlers = append(handlers, annotations.NewOutputFormatter(cmd.ErrOrStderr()).Handle)
	}
	if a.metricsPath != "" {
		a.registry = prometheus.NewRegistry()
		m, err := annotations.NewMetrics(a.registry)
		if err != nil {
			return err
		}
		handlers = append(handlers, m.Handle)
	}
	a.collector = annotations.NewCollector(annotations.Tee(handlers...))
	return nil
}

func (a *app) writeMetrics() error {
	if a.registry == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsPath, a.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

func (a *app) options() planner.Options {
	opts := a.cfg.Options()
	opts.Collector = a.collector
	return opts
}

// loadGraph returns the statistics provider named by the configuration,
// nil when there is none
func (a *app) loadGraph() (*graph.MultiLabelCSR, error) {
	var g *graph.MultiLabelCSR
	switch {
	case a.cfg.Store != "":
		store, err := graph.NewBadgerStore(a.cfg.Store)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		if g, err = store.LoadCSR(a.collector); err != nil {
			return nil, err
		}
	case a.cfg.Graph != "":
		f, err := os.Open(a.cfg.Graph)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if g, err = graph.LoadGraph(f, a.collector); err != nil {
			return nil, fmt.Errorf("%s: %w", a.cfg.Graph, err)
		}
		if a.cfg.Stats == "" {
			g.FillStats()
		}
	default:
		return nil, nil
	}

	if a.cfg.Stats != "" {
		f, err := os.Open(a.cfg.Stats)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := g.LoadStats(f); err != nil {
			return nil, fmt.Errorf("%s: %w", a.cfg.Stats, err)
		}
	}
	return g, nil
}

// buildDag loads or compiles the workload and plans it. With a cost
// fixture the fixture's estimates are used as the plan.
func (a *app) buildDag() (*planner.AndOrDag, error) {
	g, err := a.loadGraph()
	if err != nil {
		return nil, err
	}
	var stats planner.Statistics
	if g != nil {
		stats = g
	}

	var d *planner.AndOrDag
	if a.cfg.Dag != "" {
		f, err := os.Open(a.cfg.Dag)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if d, err = planner.LoadDag(f, stats, a.options()); err != nil {
			return nil, fmt.Errorf("%s: %w", a.cfg.Dag, err)
		}
		// the interchange format carries no frequencies
		for _, q := range d.Queries() {
			if err := d.SetWorkloadFrequency(q, 1); err != nil {
				return nil, err
			}
		}
	} else {
		d = planner.NewAndOrDag(stats, a.options())
	}

	for _, q := range a.cfg.Queries {
		if _, err := d.Lookup(q.Text); err == nil {
			if err := d.SetWorkloadFrequency(q.Text, q.Frequency); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := d.RegisterQuery(q.Text, q.Frequency); err != nil {
			return nil, err
		}
	}
	if d.NumQueries() == 0 {
		return nil, fmt.Errorf("empty workload: pass --queries, --dag or a config with queries")
	}

	if a.costsPath != "" {
		f, err := os.Open(a.costsPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := d.LoadCostFixture(f); err != nil {
			return nil, fmt.Errorf("%s: %w", a.costsPath, err)
		}
		return d, d.TopoSort()
	}

	if stats != nil {
		if err := d.AnnotateLeafCostCard(); err != nil {
			return nil, err
		}
	}
	return d, d.Plan()
}

// selectionArgs resolves --mode and --budget over the configuration
func (a *app) selectionArgs(cmd *cobra.Command) (planner.SelectionMode, uint64, error) {
	modeText := a.cfg.Selection.Mode
	if cmd.Flags().Changed("mode") {
		modeText, _ = cmd.Flags().GetString("mode")
	}
	mode, err := planner.ParseSelectionMode(modeText)
	if err != nil {
		return 0, 0, err
	}

	budget := a.cfg.Selection.Budget
	if cmd.Flags().Changed("budget") {
		text, _ := cmd.Flags().GetString("budget")
		if budget, err = config.ParseBudget(text); err != nil {
			return 0, 0, fmt.Errorf("budget %q: %w", text, err)
		}
	}
	return mode, budget, nil
}
