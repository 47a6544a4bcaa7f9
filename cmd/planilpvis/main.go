// Command planilpvis solves a planning problem and steps through the plan
// in a window.
package main

import (
	"context"
	"fmt"
	"os"

	"gioui.org/app"
	"gioui.org/unit"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/config"
	"github.com/elektrokombinacija/planilp/internal/loader"
	"github.com/elektrokombinacija/planilp/internal/logging"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/solver"
	"github.com/elektrokombinacija/planilp/internal/vis"
)

func main() {
	var (
		cfgPath string
		backend string
		horizon int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "planilpvis FILE",
		Short: "Solve a planning problem and step through the plan",
		Long: `Keys: space play/pause, left/right step, home/end jump, up/down change
the horizon, B switch backend, S or enter solve, escape cancel.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("solver") {
				cfg.Solver.Backend = backend
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			prob, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			solve := func(ctx context.Context, backend string, horizon int) (*planner.Result, error) {
				s, err := solver.New(backend, cfg.SolverOptions(log))
				if err != nil {
					return nil, err
				}
				pl := planner.New(s,
					planner.WithGrounding(cfg.GroundOptions(log)),
					planner.WithEncoding(cfg.EncodeOptions(log)),
					planner.WithLogger(log))
				return pl.CompileAndSolve(ctx, prob, horizon)
			}
			viewer := vis.NewApp(prob, solve, cfg.Solver.Backend, horizon, log)

			go func() {
				window := new(app.Window)
				window.Option(
					app.Title("planilp: "+prob.Name),
					app.Size(unit.Dp(1200), unit.Dp(800)),
				)
				if err := viewer.Run(context.Background(), window); err != nil {
					log.Fatal("viewer failed", zap.Error(err))
				}
				os.Exit(0)
			}()
			app.Main()
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "planilp.yaml", "Config file (missing file means defaults)")
	cmd.Flags().StringVar(&backend, "solver", "", "Solver backend: gophersat, reference")
	cmd.Flags().IntVar(&horizon, "horizon", planner.NoOverride, "Horizon (default: the problem's t_max)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
