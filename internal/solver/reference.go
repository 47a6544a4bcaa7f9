package solver

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/ilp"
)

var errNodeLimit = errors.New("node limit reached")

// Reference is an exhaustive depth-first branch-and-bound over the
// normalized constraints with bound propagation. It is exact and slow; it
// exists to check other backends on small models. It runs in the calling
// goroutine.
type Reference struct {
	opts Options
}

// NewReference returns the reference backend.
func NewReference(opts Options) *Reference {
	return &Reference{opts: opts.withDefaults()}
}

func (r *Reference) Name() string { return BackendReference }

// Solve implements ilp.Solver. A search cut short by the context or the
// node limit reports Feasible if it found any solution, SolverError if not.
func (r *Reference) Solve(ctx context.Context, m *ilp.Model) ilp.Result {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	start := time.Now()

	cons, obj, infeasible := m.PseudoBoolean()
	if infeasible {
		return ilp.Result{Status: ilp.Infeasible}
	}
	s := newSearch(ctx, m.NumVars, cons, obj, r.opts.NodeLimit)
	s.run()

	r.opts.Logger.Debug("reference search finished",
		zap.Int("nodes", s.nodes),
		zap.Bool("found", s.found),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case s.found && s.stopped == nil && obj != nil:
		return ilp.Result{Status: ilp.Optimal, Assignment: ilp.Floats(s.best), Objective: float64(m.Cost(s.best))}
	case s.found:
		return ilp.Result{Status: ilp.Feasible, Assignment: ilp.Floats(s.best), Objective: float64(m.Cost(s.best))}
	case s.stopped != nil:
		return ilp.Result{Status: ilp.SolverError, Err: s.stopped}
	default:
		return ilp.Result{Status: ilp.Infeasible}
	}
}

type occurrence struct {
	con    int
	weight int
	neg    bool
}

type search struct {
	ctx   context.Context
	limit int
	n     int
	cons  []ilp.PBConstraint

	occ      [][]occurrence
	possible []int // per constraint: weight of literals not yet false
	val      []int8
	trail    []ilp.Var
	queue    []int

	costOn   []int // objective weight incurred when the variable is 1
	costOff  []int // objective weight incurred when the variable is 0
	minimize bool
	cost     int

	nodes    int
	found    bool
	best     []bool
	bestCost int
	stopped  error
}

func newSearch(ctx context.Context, n int, cons []ilp.PBConstraint, obj *ilp.PBObjective, limit int) *search {
	s := &search{
		ctx:      ctx,
		limit:    limit,
		n:        n,
		cons:     cons,
		occ:      make([][]occurrence, n),
		possible: make([]int, len(cons)),
		val:      make([]int8, n),
		costOn:   make([]int, n),
		costOff:  make([]int, n),
		minimize: obj != nil,
	}
	for i := range s.val {
		s.val[i] = -1
	}
	for ci, c := range cons {
		for i, l := range c.Lits {
			s.occ[l.Var()] = append(s.occ[l.Var()], occurrence{con: ci, weight: c.Weights[i], neg: l.Negated()})
			s.possible[ci] += c.Weights[i]
		}
	}
	if obj != nil {
		for i, l := range obj.Lits {
			if l.Negated() {
				s.costOff[l.Var()] += obj.Weights[i]
			} else {
				s.costOn[l.Var()] += obj.Weights[i]
			}
		}
	}
	return s
}

func (s *search) run() {
	if err := s.ctx.Err(); err != nil {
		s.stopped = err
		return
	}
	for ci := range s.cons {
		s.queue = append(s.queue, ci)
	}
	if !s.propagate() {
		return
	}
	s.dfs(0)
}

// set assigns v and updates constraint bounds. It returns false on conflict;
// the trail is consistent either way so undo can restore it.
func (s *search) set(v ilp.Var, on bool) bool {
	if on {
		s.val[v] = 1
		s.cost += s.costOn[v]
	} else {
		s.val[v] = 0
		s.cost += s.costOff[v]
	}
	s.trail = append(s.trail, v)
	ok := true
	for _, o := range s.occ[v] {
		if o.neg != on {
			continue // literal became true
		}
		s.possible[o.con] -= o.weight
		if s.possible[o.con] < s.cons[o.con].Min {
			ok = false
		} else {
			s.queue = append(s.queue, o.con)
		}
	}
	return ok
}

func (s *search) undo(mark int) {
	for len(s.trail) > mark {
		v := s.trail[len(s.trail)-1]
		s.trail = s.trail[:len(s.trail)-1]
		on := s.val[v] == 1
		if on {
			s.cost -= s.costOn[v]
		} else {
			s.cost -= s.costOff[v]
		}
		for _, o := range s.occ[v] {
			if o.neg == on {
				s.possible[o.con] += o.weight
			}
		}
		s.val[v] = -1
	}
}

// propagate forces every unassigned literal whose weight exceeds its
// constraint's slack.
func (s *search) propagate() bool {
	for len(s.queue) > 0 {
		ci := s.queue[len(s.queue)-1]
		s.queue = s.queue[:len(s.queue)-1]
		c := &s.cons[ci]
		slack := s.possible[ci] - c.Min
		for i, l := range c.Lits {
			if s.val[l.Var()] >= 0 || c.Weights[i] <= slack {
				continue
			}
			if !s.set(l.Var(), !l.Negated()) {
				s.queue = s.queue[:0]
				return false
			}
		}
	}
	return true
}

func (s *search) done() bool {
	return s.stopped != nil || (s.found && !s.minimize)
}

func (s *search) dfs(next int) {
	s.nodes++
	if s.nodes&1023 == 0 {
		if err := s.ctx.Err(); err != nil {
			s.stopped = err
			return
		}
	}
	if s.limit > 0 && s.nodes > s.limit {
		s.stopped = errNodeLimit
		return
	}
	if s.found && s.cost >= s.bestCost {
		return
	}
	for next < s.n && s.val[next] >= 0 {
		next++
	}
	if next == s.n {
		s.found = true
		s.bestCost = s.cost
		s.best = make([]bool, s.n)
		for i, v := range s.val {
			s.best[i] = v == 1
		}
		return
	}

	v := ilp.Var(next)
	first := s.costOn[v] < s.costOff[v]
	for _, on := range [2]bool{first, !first} {
		mark := len(s.trail)
		if s.set(v, on) && s.propagate() {
			s.dfs(next + 1)
		}
		s.queue = s.queue[:0]
		s.undo(mark)
		if s.done() {
			return
		}
	}
}
