package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wbrown/janus-rpq/rpq/config"
	"github.com/wbrown/janus-rpq/rpq/graph"
	"github.com/wbrown/janus-rpq/rpq/planner"
	"github.com/wbrown/janus-rpq/rpq/report"
)

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", "", "selection mode: bottom-up, greedy-benefit, greedy-ratio, top-down, shared-first (or 0-4)")
	cmd.Flags().StringP("budget", "b", "", "storage budget in units, or \"max\"")
}

func (a *app) planCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Compile and cost the workload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.buildDag()
			if err != nil {
				return err
			}
			f := report.NewFormatter()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, f.Workload(d))
			fmt.Fprintln(out, f.Plan(d))
			return nil
		},
	}
}

func (a *app) matviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "matviews",
		Short: "Choose nodes to materialize within a storage budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, budget, err := a.selectionArgs(cmd)
			if err != nil {
				return err
			}
			d, err := a.buildDag()
			if err != nil {
				return err
			}
			sel, err := d.ChooseMatViews(mode, budget)
			if err != nil {
				return err
			}
			f := report.NewFormatter()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, f.Selection(sel, d))
			fmt.Fprintln(out, f.Workload(d))
			return nil
		},
	}
	addSelectionFlags(cmd)
	return cmd
}

func (a *app) replanCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "replan NODE...",
		Short: "Show the cost change of materializing the given nodes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			indices, err := parseNodes(args)
			if err != nil {
				return err
			}
			d, err := a.buildDag()
			if err != nil {
				return err
			}
			r, err := d.ReplanWithMaterialize(indices)
			if err != nil {
				return err
			}
			f := report.NewFormatter()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, f.Replan(r, d))
			if apply {
				if err := d.ApplyMaterialization(indices); err != nil {
					return err
				}
				fmt.Fprintln(out, f.Workload(d))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "commit the materialization and show the resulting workload")
	return cmd
}

func (a *app) exploreCmd() *cobra.Command {
	var budgetList string
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Run view selection for several budgets without committing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, _, err := a.selectionArgs(cmd)
			if err != nil {
				return err
			}
			budgets := a.cfg.Selection.Budgets
			if budgetList != "" {
				if budgets, err = parseBudgets(budgetList); err != nil {
					return err
				}
			}
			if len(budgets) == 0 {
				return fmt.Errorf("no budgets: pass --budgets or set selection.budgets")
			}

			d, err := a.buildDag()
			if err != nil {
				return err
			}
			cache := planner.NewSelectionCache(a.cfg.Cache.MaxSize, a.cfg.Cache.TTL)
			sels, err := planner.Explore(d, mode, budgets, cache)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.NewFormatter().Explore(sels))
			return nil
		},
	}
	addSelectionFlags(cmd)
	cmd.Flags().StringVar(&budgetList, "budgets", "", "comma separated budgets, e.g. 10,100,max")
	return cmd
}

func (a *app) dumpCmd() *cobra.Command {
	var dagOut, costsOut string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the planned DAG in interchange format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.buildDag()
			if err != nil {
				return err
			}
			if err := writeTo(cmd.OutOrStdout(), dagOut, d.WriteDag); err != nil {
				return err
			}
			if costsOut != "" {
				return writeTo(cmd.OutOrStdout(), costsOut, d.WriteCostFixture)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dagOut, "output", "o", "", "DAG file (default stdout)")
	cmd.Flags().StringVar(&costsOut, "costs-output", "", "also write the cost fixture to this file")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import GRAPH",
		Short: "Load a graph file into the badger edge store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Store == "" {
				return fmt.Errorf("import needs --store")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			edges, err := graph.ReadGraph(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			store, err := graph.NewBadgerStore(a.cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.PutEdges(edges); err != nil {
				return err
			}
			count, err := store.CountEdges()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d edges, store holds %d\n", len(edges), count)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// configuration is irrelevant here
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rpqopt %s\n", version)
		},
	}
}

// writeTo writes to path, or to stdout when path is empty
func writeTo(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parseNodes(args []string) ([]int, error) {
	var out []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", part, err)
			}
			out = append(out, n)
		}
	}
	return out, nil
}

func parseBudgets(list string) ([]uint64, error) {
	var out []uint64
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		b, err := config.ParseBudget(part)
		if err != nil {
			return nil, fmt.Errorf("budget %q: %w", part, err)
		}
		out = append(out, b)
	}
	return out, nil
}
