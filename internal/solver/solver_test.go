package solver

import (
	"context"
	"math/rand"
	"testing"
	"time"

	gs "github.com/crillab/gophersat/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/elektrokombinacija/planilp/internal/ilp"
)

func backends(t *testing.T) []ilp.Solver {
	t.Helper()
	var out []ilp.Solver
	for _, name := range Backends() {
		s, err := New(name, Options{Timeout: 10 * time.Second})
		require.NoError(t, err)
		out = append(out, s)
	}
	return out
}

func term(v, c int) ilp.Term { return ilp.Term{Var: ilp.Var(v), Coef: c} }

// pigeonhole places n pigeons into n-1 holes, which is impossible.
func pigeonhole(n int) *ilp.Model {
	holes := n - 1
	m := &ilp.Model{NumVars: n * holes}
	for p := 0; p < n; p++ {
		var ts []ilp.Term
		for h := 0; h < holes; h++ {
			ts = append(ts, term(p*holes+h, 1))
		}
		m.Add("pigeon", ilp.GE, 1, ts...)
	}
	for h := 0; h < holes; h++ {
		var ts []ilp.Term
		for p := 0; p < n; p++ {
			ts = append(ts, term(p*holes+h, 1))
		}
		m.Add("hole", ilp.LE, 1, ts...)
	}
	return m
}

func TestBackends(t *testing.T) {
	tests := []struct {
		name   string
		model  func() *ilp.Model
		status ilp.Status
		cost   float64
	}{
		{
			name: "cheapest two of three",
			model: func() *ilp.Model {
				m := &ilp.Model{NumVars: 3, Objective: &ilp.Objective{Terms: []ilp.Term{term(0, 1), term(1, 2), term(2, 3)}}}
				m.Add("cover", ilp.GE, 2, term(0, 1), term(1, 1), term(2, 1))
				return m
			},
			status: ilp.Optimal,
			cost:   3,
		},
		{
			name: "odd cycle",
			model: func() *ilp.Model {
				m := &ilp.Model{NumVars: 3}
				m.Add("edge", ilp.EQ, 1, term(0, 1), term(1, 1))
				m.Add("edge", ilp.EQ, 1, term(1, 1), term(2, 1))
				m.Add("edge", ilp.EQ, 1, term(0, 1), term(2, 1))
				return m
			},
			status: ilp.Infeasible,
		},
		{
			name: "feasibility only",
			model: func() *ilp.Model {
				m := &ilp.Model{NumVars: 2}
				m.Add("pre", ilp.LE, 0, term(0, 1), term(1, -1))
				m.Add("init", ilp.EQ, 1, term(0, 1))
				return m
			},
			status: ilp.Feasible,
		},
		{
			name: "no constraints",
			model: func() *ilp.Model {
				return &ilp.Model{NumVars: 2, Objective: &ilp.Objective{Terms: []ilp.Term{term(0, 4), term(1, -1)}}}
			},
			status: ilp.Optimal,
			cost:   -1,
		},
		{
			name:   "pigeonhole",
			model:  func() *ilp.Model { return pigeonhole(4) },
			status: ilp.Infeasible,
		},
	}
	for _, s := range backends(t) {
		for _, tt := range tests {
			t.Run(s.Name()+"/"+tt.name, func(t *testing.T) {
				m := tt.model()
				res := s.Solve(context.Background(), m)
				require.NoError(t, res.Err)
				assert.Equal(t, tt.status, res.Status)
				if !res.Status.HasAssignment() {
					assert.Nil(t, res.Assignment)
					return
				}
				require.Len(t, res.Assignment, m.NumVars)
				x, _, ok := ilp.Bools(res.Assignment)
				require.True(t, ok)
				assert.Empty(t, m.Violated(x))
				if tt.status == ilp.Optimal {
					assert.Equal(t, tt.cost, res.Objective)
				}
			})
		}
	}
}

func randomModel(rng *rand.Rand, vars, cons int, objective bool) *ilp.Model {
	m := &ilp.Model{NumVars: vars}
	for i := 0; i < cons; i++ {
		var ts []ilp.Term
		for v := 0; v < vars; v++ {
			if rng.Intn(3) == 0 {
				ts = append(ts, term(v, rng.Intn(5)-2))
			}
		}
		m.Add("random", ilp.Sense(rng.Intn(3)), rng.Intn(3)-1, ts...)
	}
	if objective {
		m.Objective = &ilp.Objective{}
		for v := 0; v < vars; v++ {
			m.Objective.Terms = append(m.Objective.Terms, term(v, rng.Intn(7)-2))
		}
	}
	return m
}

// bruteForce returns the optimal cost, or false if the model is infeasible.
func bruteForce(m *ilp.Model) (int, bool) {
	best, found := 0, false
	x := make([]bool, m.NumVars)
	for mask := 0; mask < 1<<m.NumVars; mask++ {
		for v := range x {
			x[v] = mask&(1<<v) != 0
		}
		if len(m.Violated(x)) > 0 {
			continue
		}
		if c := m.Cost(x); !found || c < best {
			best, found = c, true
		}
	}
	return best, found
}

func TestBackendsAgreeWithBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	solvers := backends(t)
	for i := 0; i < 60; i++ {
		m := randomModel(rng, 8, 5, i%2 == 0)
		want, feasible := bruteForce(m)
		for _, s := range solvers {
			res := s.Solve(context.Background(), m)
			require.NoError(t, res.Err, "model %d on %s", i, s.Name())
			if !feasible {
				assert.Equal(t, ilp.Infeasible, res.Status, "model %d on %s", i, s.Name())
				continue
			}
			require.True(t, res.Status.HasAssignment(), "model %d on %s: %s", i, s.Name(), res.Status)
			x, _, _ := ilp.Bools(res.Assignment)
			assert.Empty(t, m.Violated(x), "model %d on %s", i, s.Name())
			if m.Objective != nil {
				assert.Equal(t, ilp.Optimal, res.Status)
				assert.Equal(t, float64(want), res.Objective, "model %d on %s", i, s.Name())
			}
		}
	}
}

func TestReferenceCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewReference(Options{}).Solve(ctx, pigeonhole(4))
	assert.Equal(t, ilp.SolverError, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestReferenceNodeLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	res := NewReference(Options{NodeLimit: 10}).Solve(context.Background(), pigeonhole(7))
	assert.Equal(t, ilp.SolverError, res.Status)
	assert.ErrorIs(t, res.Err, errNodeLimit)
}

func TestGophersatCancelledBeforeAnswer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewGophersat(Options{}).Solve(ctx, pigeonhole(6))
	// Either the context or the solver may win the race; neither may
	// report a plan.
	assert.False(t, res.Status.HasAssignment())
	if res.Status == ilp.SolverError {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

// coverTwo needs two of three variables; the cheapest cover costs 3.
func coverTwo() *ilp.Model {
	m := &ilp.Model{NumVars: 3, Objective: &ilp.Objective{Terms: []ilp.Term{term(0, 1), term(1, 2), term(2, 3)}}}
	m.Add("cover", ilp.GE, 2, term(0, 1), term(1, 1), term(2, 1))
	return m
}

func TestGophersatKeepsBestModelOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := coverTwo()
	p, infeasible := compile(m)
	require.False(t, infeasible)

	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan gs.Result)
	done := make(chan ilp.Result, 1)
	out := make(chan ilp.Result, 1)
	go func() { out <- p.await(ctx, m, results, done) }()

	// A first, non-optimal model arrives, then the deadline.
	results <- gs.Result{Status: gs.Sat, Model: []bool{false, true, true}, Weight: 5}
	cancel()
	res := <-out
	close(results)

	require.Equal(t, ilp.Feasible, res.Status)
	require.NoError(t, res.Err)
	x, _, ok := ilp.Bools(res.Assignment)
	require.True(t, ok)
	assert.Empty(t, m.Violated(x))
	assert.Equal(t, 5.0, res.Objective)
}

func TestGophersatCancelWithoutModel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := coverTwo()
	p, _ := compile(m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := make(chan gs.Result)
	res := p.await(ctx, m, results, make(chan ilp.Result))
	close(results)

	assert.Equal(t, ilp.SolverError, res.Status)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestGophersatOneSearchAtATime(t *testing.T) {
	defer goleak.VerifyNone(t)

	g := NewGophersat(Options{})
	// Stands in for an abandoned search still holding the backend.
	require.True(t, g.sem.TryAcquire(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res := g.Solve(ctx, pigeonhole(4))
	assert.Equal(t, ilp.SolverError, res.Status)
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)

	g.sem.Release(1)
	res = g.Solve(context.Background(), pigeonhole(4))
	assert.Equal(t, ilp.Infeasible, res.Status)
	res = g.Solve(context.Background(), coverTwo())
	assert.Equal(t, ilp.Optimal, res.Status)
	assert.Equal(t, 3.0, res.Objective)
}

func TestOPB(t *testing.T) {
	m := &ilp.Model{NumVars: 2, Objective: &ilp.Objective{Terms: []ilp.Term{term(0, 1), term(1, 1)}}}
	m.Add("cover", ilp.GE, 1, term(0, 1), term(1, 1))
	out, err := NewGophersat(Options{}).OPB(m)
	require.NoError(t, err)
	assert.Contains(t, out, "x1")
	assert.Contains(t, out, "x2")

	_, err = NewGophersat(Options{}).OPB(&ilp.Model{NumVars: 1, Constraints: []ilp.Constraint{{Terms: []ilp.Term{term(0, 1)}, Sense: ilp.GE, RHS: 2}}})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	s, err := New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, BackendGophersat, s.Name())

	_, err = New("cplex", Options{})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
