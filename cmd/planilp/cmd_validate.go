package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/elektrokombinacija/planilp/internal/plan"
	"github.com/elektrokombinacija/planilp/internal/planner"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE PLAN",
		Short: "Replay a plan document against a problem",
		Long: `Grounds the problem without pruning, binds every step of the YAML plan
document to a ground action and replays it from the initial state. The
plan is valid when its horizon is within t_max, every step applies, no
two actions in a step are mutex (at most one under serial semantics) and
the final state satisfies the goal.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			prob, err := a.load(args[0])
			if err != nil {
				return err
			}
			doc, err := plan.LoadDocument(args[1])
			if err != nil {
				return err
			}
			if err := planner.Validate(ctx, prob, doc, a.cfg.EncodeOptions(a.logger).Semantics); err != nil {
				return fmt.Errorf("plan rejected: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "plan valid: %d actions, horizon %d\n", len(doc.Steps), doc.Horizon)
			return nil
		},
	}
}
