package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/planner"
)

func (a *app) solveCmd() *cobra.Command {
	var (
		horizon int
		planOut string
	)
	cmd := &cobra.Command{
		Use:   "solve FILE",
		Short: "Solve a problem at its horizon (or --horizon)",
		Long: `Grounds, encodes and solves the problem for a single horizon.
Exits with status 2 when no plan exists within the horizon.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			prob, err := a.load(args[0])
			if err != nil {
				return err
			}
			pl, err := a.planner()
			if err != nil {
				return err
			}
			res, err := pl.CompileAndSolve(ctx, prob, horizon)
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), res, planOut)
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", planner.NoOverride, "Horizon override (default: the problem's t_max)")
	cmd.Flags().StringVar(&planOut, "plan-out", "", "Also write the plan document to this file")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	var (
		minH, maxH int
		planOut    string
	)
	cmd := &cobra.Command{
		Use:   "search FILE",
		Short: "Find the shortest horizon with a plan",
		Long: `Grounds once and solves horizons min..max in increasing order, stopping
at the first that admits a plan. Bounds default to the search section of
the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			if !cmd.Flags().Changed("min") {
				minH = a.cfg.Search.MinHorizon
			}
			if !cmd.Flags().Changed("max") {
				maxH = a.cfg.Search.MaxHorizon
			}
			prob, err := a.load(args[0])
			if err != nil {
				return err
			}
			pl, err := a.planner()
			if err != nil {
				return err
			}
			res, err := pl.Search(ctx, prob, minH, maxH)
			if err != nil {
				return err
			}
			return a.report(cmd.OutOrStdout(), res, planOut)
		},
	}
	cmd.Flags().IntVar(&minH, "min", 0, "Smallest horizon to try")
	cmd.Flags().IntVar(&maxH, "max", 0, "Largest horizon to try")
	cmd.Flags().StringVar(&planOut, "plan-out", "", "Also write the plan document to this file")
	return cmd
}

// report prints a planner result. Infeasible results print nothing and
// return errNoPlan.
func (a *app) report(w io.Writer, res *planner.Result, planOut string) error {
	if res.Status == planner.Infeasible {
		return fmt.Errorf("%w %d", errNoPlan, res.Horizon)
	}
	doc := res.Plan.Document(res.Universe)
	if planOut != "" {
		if err := doc.Save(planOut); err != nil {
			return err
		}
		a.logger.Info("plan written", zap.String("path", planOut))
	}

	if a.output == "yaml" {
		data, err := doc.Marshal()
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	st := res.Stats
	fmt.Fprintf(w, "problem %s: solved at horizon %d (%s: %s)\n",
		res.Universe.Problem.Name, res.Horizon, st.Backend, st.SolverStatus)
	fmt.Fprint(w, res.Plan)
	fmt.Fprintf(w, "grounding: %d facts, %d actions, %d mutex pairs\n", st.Facts, st.Actions, st.MutexPairs)
	fmt.Fprintf(w, "model: %d variables, %d constraints\n", st.Variables, st.Constraints)
	fmt.Fprintf(w, "time: ground %v, encode %v, solve %v, decode %v\n",
		round(st.Ground), round(st.Encode), round(st.Solve), round(st.Decode))
	return nil
}

func round(d time.Duration) time.Duration { return d.Round(time.Microsecond) }
