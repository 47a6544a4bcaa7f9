package solver

import (
	"context"
	"fmt"
	"time"

	gs "github.com/crillab/gophersat/solver"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/elektrokombinacija/planilp/internal/ilp"
)

// Gophersat solves models with the gophersat pseudo-boolean CDCL solver.
// Minimization is gophersat's linear search over the cost function; every
// improving model is streamed back, so a search cut short by the context
// still reports the best plan found as Feasible.
//
// gophersat cannot be interrupted. On cancellation Solve returns at once
// and the abandoned search runs to completion in its own goroutine. A
// backend runs one search at a time: Solve waits, within its own context,
// for an abandoned search to finish before starting the next.
type Gophersat struct {
	opts Options
	sem  *semaphore.Weighted
}

// NewGophersat returns the gophersat backend.
func NewGophersat(opts Options) *Gophersat {
	return &Gophersat{opts: opts.withDefaults(), sem: semaphore.NewWeighted(1)}
}

func (g *Gophersat) Name() string { return BackendGophersat }

// Solve implements ilp.Solver.
func (g *Gophersat) Solve(ctx context.Context, m *ilp.Model) ilp.Result {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}
	start := time.Now()

	p, infeasible := compile(m)
	if infeasible {
		return ilp.Result{Status: ilp.Infeasible}
	}
	if len(p.constrs) == 0 {
		return p.trivial(m)
	}
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return ilp.Result{Status: ilp.SolverError, Err: fmt.Errorf("waiting for an earlier search: %w", err)}
	}
	s := gs.New(p.problem())
	s.Verbose = g.opts.Verbose

	results := make(chan gs.Result)
	done := make(chan ilp.Result, 1)
	go func() {
		defer g.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- ilp.Result{Status: ilp.SolverError, Err: fmt.Errorf("gophersat panicked: %v", r)}
			}
		}()
		done <- p.final(s.Optimal(results, nil), m)
	}()

	res := p.await(ctx, m, results, done)
	g.opts.Logger.Debug("gophersat finished",
		zap.Stringer("status", res.Status),
		zap.Float64("objective", res.Objective),
		zap.Error(res.Err),
		zap.Duration("elapsed", time.Since(start)))
	return res
}

// await collects improving models until the search ends or ctx is done.
// On cancellation the best model so far is reported as Feasible and the
// remaining results are drained in the background so the search can finish.
func (p *compiled) await(ctx context.Context, m *ilp.Model, results chan gs.Result, done <-chan ilp.Result) ilp.Result {
	var best []bool
	for {
		select {
		case r, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if r.Status == gs.Sat {
				best = r.Model
			}
		case res := <-done:
			return res
		case <-ctx.Done():
			if results != nil {
				go func(rs chan gs.Result) {
					for range rs {
					}
				}(results)
			}
			if best == nil {
				return ilp.Result{Status: ilp.SolverError, Err: ctx.Err()}
			}
			x := p.assignment(best, m)
			return ilp.Result{Status: ilp.Feasible, Assignment: ilp.Floats(x), Objective: float64(m.Cost(x))}
		}
	}
}

// OPB renders the model in the OPB format read by pseudo-boolean solvers.
// Variables are numbered from 1 in model order.
func (g *Gophersat) OPB(m *ilp.Model) (string, error) {
	p, infeasible := compile(m)
	if infeasible {
		return "", fmt.Errorf("model is trivially infeasible")
	}
	if len(p.constrs) == 0 {
		return "", fmt.Errorf("model has no non-trivial constraints")
	}
	return gs.New(p.problem()).PBString(), nil
}

// compiled is a model translated to gophersat constraints.
type compiled struct {
	constrs []gs.PBConstr
	nbVars  int
	obj     *ilp.PBObjective
	// cost terms over variables the constraints never mention; these are
	// set to their cheapest value directly.
	freeLits []ilp.Lit
	offset   int
	used     []bool
}

func compile(m *ilp.Model) (*compiled, bool) {
	cons, obj, infeasible := m.PseudoBoolean()
	if infeasible {
		return nil, true
	}
	p := &compiled{used: make([]bool, m.NumVars)}
	for _, c := range cons {
		lits := make([]int, len(c.Lits))
		for i, l := range c.Lits {
			lits[i] = int(l)
			v := int(l.Var())
			p.used[v] = true
			p.nbVars = max(p.nbVars, v+1)
		}
		p.constrs = append(p.constrs, gs.GtEq(lits, c.Weights, c.Min))
	}
	if obj != nil {
		p.offset = obj.Offset
		p.obj = &ilp.PBObjective{}
		for i, l := range obj.Lits {
			if p.used[l.Var()] {
				p.obj.Lits = append(p.obj.Lits, l)
				p.obj.Weights = append(p.obj.Weights, obj.Weights[i])
			} else {
				p.freeLits = append(p.freeLits, l)
			}
		}
	}
	return p, false
}

func (p *compiled) problem() *gs.Problem {
	prob := gs.ParsePBConstrs(p.constrs)
	if p.obj != nil && len(p.obj.Lits) > 0 {
		lits := make([]gs.Lit, len(p.obj.Lits))
		for i, l := range p.obj.Lits {
			lits[i] = gs.IntToLit(int32(l))
		}
		prob.SetCostFunc(lits, p.obj.Weights)
	}
	return prob
}

// final converts the answer of a search that ran to completion.
func (p *compiled) final(r gs.Result, m *ilp.Model) ilp.Result {
	switch r.Status {
	case gs.Unsat:
		return ilp.Result{Status: ilp.Infeasible}
	case gs.Indet:
		return ilp.Result{Status: ilp.SolverError, Err: fmt.Errorf("gophersat returned an indeterminate answer")}
	}
	status := ilp.Feasible
	if p.obj != nil {
		status = ilp.Optimal
	}
	x := p.assignment(r.Model, m)
	return ilp.Result{Status: status, Assignment: ilp.Floats(x), Objective: float64(m.Cost(x))}
}

func (p *compiled) assignment(model []bool, m *ilp.Model) []bool {
	x := make([]bool, m.NumVars)
	copy(x, model)
	p.fixFree(x)
	return x
}

// trivial answers a model whose constraints all normalized away.
func (p *compiled) trivial(m *ilp.Model) ilp.Result {
	x := make([]bool, m.NumVars)
	p.fixFree(x)
	status := ilp.Feasible
	if m.Objective != nil {
		status = ilp.Optimal
	}
	return ilp.Result{Status: status, Assignment: ilp.Floats(x), Objective: float64(m.Cost(x))}
}

// fixFree makes every unconstrained objective literal false.
func (p *compiled) fixFree(x []bool) {
	for _, l := range p.freeLits {
		x[l.Var()] = l.Negated()
	}
}
