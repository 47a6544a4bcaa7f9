// Command planilp solves bounded-horizon planning problems by compiling them
// to 0-1 integer programs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/config"
	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/loader"
	"github.com/elektrokombinacija/planilp/internal/logging"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

// errNoPlan reports an infeasible horizon; main exits with status 2.
var errNoPlan = errors.New("no plan within horizon")

// app carries global flags and what PersistentPreRunE builds from them.
type app struct {
	cfgPath    string
	solverName string
	timeout    time.Duration
	verbose    bool
	output     string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	root := &cobra.Command{
		Use:   "planilp",
		Short: "Bounded-horizon STRIPS planning via 0-1 integer programming",
		Long: `planilp grounds a planning problem, encodes it as a time-expanded 0-1
program over T steps, solves it with a pseudo-boolean backend and replays
the decoded plan against the transition model.

Problems use the line format:
  initial: At(L1) & Road(L1,L2)
  goals: At(L2)
  action: Go(x,y); At(x) & Road(x,y); At(y) & ~At(x)
  t_max: 4`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "planilp.yaml", "Config file (missing file means defaults)")
	pf.StringVar(&a.solverName, "solver", "", "Solver backend: gophersat, reference")
	pf.DurationVar(&a.timeout, "timeout", 0, "Solver timeout per horizon (overrides config)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVarP(&a.output, "output", "o", "text", "Output format: text, yaml")

	root.AddCommand(a.solveCmd(), a.searchCmd(), a.groundCmd(), a.encodeCmd(), a.validateCmd())
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("solver") {
		cfg.Solver.Backend = a.solverName
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Solver.Timeout = a.timeout.String()
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch a.output {
	case "text", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, a.verbose)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// context returns the command context, cancelled on SIGINT or SIGTERM.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func (a *app) load(path string) (*core.Problem, error) {
	p, err := loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("problem loaded",
		zap.String("problem", p.Name),
		zap.Int("objects", len(p.Domain.Objects())),
		zap.Int("schemas", len(p.Domain.Schemas())),
		zap.Int("horizon", p.Horizon))
	return p, nil
}

func (a *app) planner() (*planner.Planner, error) {
	s, err := solver.New(a.cfg.Solver.Backend, a.cfg.SolverOptions(a.logger))
	if err != nil {
		return nil, err
	}
	return planner.New(s,
		planner.WithGrounding(a.cfg.GroundOptions(a.logger)),
		planner.WithEncoding(a.cfg.EncodeOptions(a.logger)),
		planner.WithLogger(a.logger)), nil
}

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, errNoPlan):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
