package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/elektrokombinacija/planilp/internal/encode"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

type groundReport struct {
	Problem     string   `yaml:"problem"`
	Objects     int      `yaml:"objects"`
	Facts       int      `yaml:"facts"`
	Actions     int      `yaml:"actions"`
	MutexPairs  int      `yaml:"mutex_pairs"`
	Exclusive   int      `yaml:"exclusive_groups"`
	Static      []string `yaml:"static_predicates"`
	FactNames   []string `yaml:"fact_names,omitempty"`
	ActionNames []string `yaml:"action_names,omitempty"`
}

func (a *app) groundCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "ground FILE",
		Short: "Ground a problem and print the universe sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			prob, err := a.load(args[0])
			if err != nil {
				return err
			}
			u, err := ground.Ground(ctx, prob, a.cfg.GroundOptions(a.logger))
			if err != nil {
				return err
			}

			r := groundReport{
				Problem:    prob.Name,
				Objects:    len(prob.Domain.Objects()),
				Facts:      u.NumFacts(),
				Actions:    u.NumActions(),
				MutexPairs: u.Mutex.Len(),
				Exclusive:  len(u.Exclusive),
				Static:     []string{},
			}
			for _, p := range prob.Domain.Predicates() {
				if u.Static[p.ID] {
					r.Static = append(r.Static, p.Name)
				}
			}
			if list {
				for _, f := range u.Facts {
					r.FactNames = append(r.FactNames, f.String())
				}
				for _, act := range u.Actions {
					r.ActionNames = append(r.ActionNames, act.String())
				}
			}
			return a.write(cmd.OutOrStdout(), r, func(w io.Writer) {
				fmt.Fprintf(w, "problem %s: %d objects\n", r.Problem, r.Objects)
				fmt.Fprintf(w, "facts:      %d\n", r.Facts)
				fmt.Fprintf(w, "actions:    %d\n", r.Actions)
				fmt.Fprintf(w, "mutex:      %d pairs\n", r.MutexPairs)
				fmt.Fprintf(w, "exclusive:  %d groups\n", r.Exclusive)
				fmt.Fprintf(w, "static:     %v\n", r.Static)
				for _, f := range r.FactNames {
					fmt.Fprintf(w, "  fact   %s\n", f)
				}
				for _, n := range r.ActionNames {
					fmt.Fprintf(w, "  action %s\n", n)
				}
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List every ground fact and action")
	return cmd
}

type encodeReport struct {
	Problem     string         `yaml:"problem"`
	Horizon     int            `yaml:"horizon"`
	Semantics   string         `yaml:"semantics"`
	Variables   int            `yaml:"variables"`
	Constraints int            `yaml:"constraints"`
	Families    map[string]int `yaml:"families"`
	Objective   bool           `yaml:"objective"`
}

func (a *app) encodeCmd() *cobra.Command {
	var (
		horizon int
		out     string
	)
	cmd := &cobra.Command{
		Use:   "encode FILE",
		Short: "Encode a problem and print the model size, optionally writing OPB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			prob, err := a.load(args[0])
			if err != nil {
				return err
			}
			if horizon < 0 {
				horizon = prob.Horizon
			}
			u, err := ground.Ground(ctx, prob, a.cfg.GroundOptions(a.logger))
			if err != nil {
				return err
			}
			enc, err := encode.Encode(u, horizon, a.cfg.EncodeOptions(a.logger))
			if err != nil {
				return err
			}

			if out != "" {
				opb, err := solver.NewGophersat(a.cfg.SolverOptions(a.logger)).OPB(enc.Model)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, []byte(opb), 0644); err != nil {
					return fmt.Errorf("failed to write model: %w", err)
				}
				a.logger.Info("model written", zap.String("path", out))
			}

			m := enc.Model
			r := encodeReport{
				Problem:     prob.Name,
				Horizon:     horizon,
				Semantics:   enc.Semantics.String(),
				Variables:   m.NumVars,
				Constraints: len(m.Constraints),
				Families:    m.Families(),
				Objective:   m.Objective != nil,
			}
			return a.write(cmd.OutOrStdout(), r, func(w io.Writer) {
				fmt.Fprintf(w, "problem %s: horizon %d, %s\n", r.Problem, r.Horizon, r.Semantics)
				fmt.Fprintf(w, "variables:   %d\n", r.Variables)
				fmt.Fprintf(w, "constraints: %d\n", r.Constraints)
				fams := make([]string, 0, len(r.Families))
				for f := range r.Families {
					fams = append(fams, f)
				}
				sort.Strings(fams)
				for _, f := range fams {
					fmt.Fprintf(w, "  %-10s %d\n", f, r.Families[f])
				}
				fmt.Fprintf(w, "objective:   %v\n", r.Objective)
			})
		},
	}
	cmd.Flags().IntVar(&horizon, "horizon", -1, "Horizon (default: the problem's t_max)")
	cmd.Flags().StringVar(&out, "out", "", "Write the model in OPB format to this file")
	return cmd
}

// write renders v as YAML or through text.
func (a *app) write(w io.Writer, v any, text func(io.Writer)) error {
	if a.output == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	text(w)
	return nil
}
