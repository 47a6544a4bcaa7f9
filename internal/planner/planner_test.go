package planner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/encode"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/ilp"
	"github.com/elektrokombinacija/planilp/internal/instances"
	"github.com/elektrokombinacija/planilp/internal/plan"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

func gophersat() ilp.Solver {
	return solver.NewGophersat(solver.Options{Timeout: time.Minute})
}

func reference() ilp.Solver {
	return solver.NewReference(solver.Options{Timeout: time.Minute})
}

func build(t *testing.T, params instances.DeliveryParams) *core.Problem {
	t.Helper()
	p, err := params.Build()
	require.NoError(t, err)
	return p
}

func fact(t *testing.T, u *ground.Universe, pred string, args ...string) ground.FactID {
	t.Helper()
	id, err := u.LookupFact(core.NewFact(pred, args...))
	require.NoError(t, err)
	return id
}

func TestSampleScenario(t *testing.T) {
	prob := build(t, instances.Sample())
	res, err := New(gophersat()).CompileAndSolve(context.Background(), prob, NoOverride)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)
	assert.Equal(t, 20, res.Horizon)

	u := res.Universe
	states, err := res.Plan.Replay(u)
	require.NoError(t, err)
	final := states[len(states)-1]
	for _, l := range []string{"L2", "L3", "L4", "L5"} {
		assert.True(t, final.Has(fact(t, u, "Supplied", l)), "Supplied(%s)", l)
	}
	assert.True(t, final.Has(fact(t, u, "At", "L1")))

	for _, s := range res.Plan.Steps {
		assert.Len(t, res.Plan.At(s.Time), 1, "serial plan fires one action per step")
	}
	assert.Equal(t, "gophersat", res.Stats.Backend)
	assert.Positive(t, res.Stats.Variables)
}

func TestSampleMinimalCost(t *testing.T) {
	params := instances.Sample()
	params.Minimize = true
	prob := build(t, params)

	u, err := ground.Ground(context.Background(), prob, ground.Options{PruneStatic: true})
	require.NoError(t, err)
	shortest, ok := shortestPlan(u, 30)
	require.True(t, ok)

	res, err := New(gophersat()).CompileAndSolve(context.Background(), prob, NoOverride)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)
	assert.Equal(t, ilp.Optimal, res.Stats.SolverStatus)
	assert.Equal(t, shortest, res.Plan.Len(), "unit costs make the cheapest plan the shortest")
	assert.Equal(t, shortest, res.Plan.Cost)
}

func TestZeroHorizonGoalHolds(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 1, Bags: 1})
	for _, s := range []ilp.Solver{gophersat(), reference()} {
		res, err := New(s).CompileAndSolve(context.Background(), prob, 0)
		require.NoError(t, err, s.Name())
		require.Equal(t, Solved, res.Status, s.Name())
		assert.Zero(t, res.Plan.Len())
		assert.Zero(t, res.Stats.Variables-res.Stats.Facts, "no action variables at horizon 0")
	}
}

func TestHorizonTooShort(t *testing.T) {
	prob := build(t, instances.Sample())
	for _, h := range []int{0, 1} {
		res, err := New(gophersat()).CompileAndSolve(context.Background(), prob, h)
		require.NoError(t, err)
		assert.Equal(t, Infeasible, res.Status, "horizon %d", h)
		assert.Nil(t, res.Plan)
	}
}

type countingSolver struct {
	ilp.Solver
	calls int
}

func (c *countingSolver) Solve(ctx context.Context, m *ilp.Model) ilp.Result {
	c.calls++
	return c.Solver.Solve(ctx, m)
}

func TestUnknownPredicateBeforeSolver(t *testing.T) {
	prob, err := core.NewBuilder("broken").
		Object("L1", "Location").
		Predicate("At", "Location").
		Action(core.Schema{
			Name:   "Fly",
			Params: []core.Parameter{{Name: "x", Type: "Location"}},
			Pre:    []core.Literal{{Atom: core.Atom{Predicate: "Airborne", Args: []core.Term{core.Param(0)}}}},
		}).
		Init(core.NewFact("At", "L1")).
		Horizon(3).
		Build()
	require.NoError(t, err)

	spy := &countingSolver{Solver: gophersat()}
	_, err = New(spy).CompileAndSolve(context.Background(), prob, NoOverride)
	require.ErrorIs(t, err, core.ErrUnknownPredicate)
	assert.Zero(t, spy.calls)
}

type fixedSolver struct {
	res ilp.Result
}

func (f fixedSolver) Solve(context.Context, *ilp.Model) ilp.Result { return f.res }
func (f fixedSolver) Name() string                                  { return "fixed" }

func TestSolverFailures(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 2, Bags: 1, Horizon: 4})
	tests := []struct {
		name string
		res  ilp.Result
	}{
		{"crash", ilp.Result{Status: ilp.SolverError, Err: errors.New("segfault")}},
		{"timeout", ilp.Result{Status: ilp.SolverError, Err: context.DeadlineExceeded}},
		{"unbounded", ilp.Result{Status: ilp.Unbounded}},
		{"empty assignment", ilp.Result{Status: ilp.Optimal, Assignment: []float64{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(fixedSolver{tt.res}).CompileAndSolve(context.Background(), prob, NoOverride)
			assert.Nil(t, res)
			require.ErrorIs(t, err, core.ErrSolver)
			var se *core.SolverError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "fixed", se.Backend)
			assert.NotErrorIs(t, err, core.ErrPlanInconsistency)
		})
	}
}

func TestNonIntegralAssignmentRejected(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 2, Bags: 1, Horizon: 4})
	u, err := ground.Ground(context.Background(), prob, ground.Options{PruneStatic: true})
	require.NoError(t, err)
	n := encode.VariableCount(u.NumFacts(), u.NumActions(), 4)
	half := make([]float64, n)
	for i := range half {
		half[i] = 0.5
	}
	_, err = New(fixedSolver{ilp.Result{Status: ilp.Optimal, Assignment: half}}).CompileAndSolve(context.Background(), prob, NoOverride)
	require.ErrorIs(t, err, core.ErrSolver)
	assert.Contains(t, err.Error(), "non-integral")
}

// Completeness and monotonicity against the breadth-first oracle.
func TestAgreesWithOracle(t *testing.T) {
	cases := []instances.DeliveryParams{
		{Locations: 2, Bags: 1},
		{Locations: 3, Bags: 1},
		{Locations: 3, Bags: 2, Chords: 1, Seed: 1},
		{Locations: 4, Bags: 1, Chords: 1, Seed: 2},
		{Locations: 4, Bags: 2, Chords: 2, Seed: 3},
	}
	for _, params := range cases {
		prob := build(t, params)
		t.Run(prob.Name, func(t *testing.T) {
			u, err := ground.Ground(context.Background(), prob, ground.Options{PruneStatic: true})
			require.NoError(t, err)
			shortest, ok := shortestPlan(u, 40)
			require.True(t, ok)

			pl := New(gophersat())
			at, err := pl.SolveGrounded(context.Background(), u, shortest)
			require.NoError(t, err)
			require.Equal(t, Solved, at.Status)
			assert.Equal(t, shortest, at.Plan.Len())
			assert.True(t, at.Plan.Validate(u))

			if shortest > 0 {
				below, err := pl.SolveGrounded(context.Background(), u, shortest-1)
				require.NoError(t, err)
				assert.Equal(t, Infeasible, below.Status)
			}

			above, err := pl.SolveGrounded(context.Background(), u, shortest+3)
			require.NoError(t, err)
			require.Equal(t, Solved, above.Status, "a longer horizon must stay solvable")
			assert.True(t, above.Plan.Validate(u))
		})
	}
}

func TestReferenceBackendMatches(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 2, Bags: 1, Minimize: true})
	u, err := ground.Ground(context.Background(), prob, ground.Options{PruneStatic: true})
	require.NoError(t, err)
	shortest, ok := shortestPlan(u, 10)
	require.True(t, ok)

	for _, s := range []ilp.Solver{reference(), gophersat()} {
		res, err := New(s).SolveGrounded(context.Background(), u, shortest+1)
		require.NoError(t, err, s.Name())
		require.Equal(t, Solved, res.Status, s.Name())
		assert.Equal(t, shortest, res.Plan.Cost, s.Name())
	}
}

func TestSearch(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 3, Bags: 2, Horizon: 1})
	u, err := ground.Ground(context.Background(), prob, ground.Options{PruneStatic: true})
	require.NoError(t, err)
	shortest, ok := shortestPlan(u, 20)
	require.True(t, ok)

	res, err := New(gophersat()).Search(context.Background(), prob, 0, 20)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)
	assert.Equal(t, shortest, res.Horizon)

	res, err = New(gophersat()).Search(context.Background(), prob, 0, shortest-1)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
	assert.Equal(t, shortest-1, res.Horizon)

	_, err = New(gophersat()).Search(context.Background(), prob, 3, 2)
	assert.Error(t, err)
}

func TestParallelSemantics(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 3, Bags: 2})
	serial, err := New(gophersat()).Search(context.Background(), prob, 0, 20)
	require.NoError(t, err)
	require.Equal(t, Solved, serial.Status)

	par, err := New(gophersat(), WithEncoding(encode.Options{Semantics: encode.Parallel})).
		Search(context.Background(), prob, 0, 20)
	require.NoError(t, err)
	require.Equal(t, Solved, par.Status)
	assert.Less(t, par.Horizon, serial.Horizon, "both bags load in one step")

	u := par.Universe
	for _, layer := range par.Plan.Layers() {
		for i, a := range layer {
			for _, b := range layer[i+1:] {
				assert.False(t, u.Mutex.Has(a.ID, b.ID), "%s and %s", a, b)
			}
		}
	}
	assert.True(t, par.Plan.Validate(u))
}

func TestNoIdle(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 2, Bags: 1, NoIdle: true})
	pl := New(gophersat())
	res, err := pl.CompileAndSolve(context.Background(), prob, 4)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)
	assert.Equal(t, 4, res.Plan.Len())

	res, err = pl.CompileAndSolve(context.Background(), prob, 6)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)
	assert.Equal(t, 6, res.Plan.Len(), "every step fires an action")
}

func TestValidate(t *testing.T) {
	prob := build(t, instances.DeliveryParams{Locations: 2, Bags: 1, Horizon: 4})
	res, err := New(gophersat()).CompileAndSolve(context.Background(), prob, NoOverride)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)

	doc := res.Plan.Document(res.Universe)
	require.NoError(t, Validate(context.Background(), prob, doc, encode.Serial))

	data, err := doc.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "problem:")

	broken := doc
	broken.Steps = broken.Steps[1:]
	err = Validate(context.Background(), prob, broken, encode.Serial)
	assert.ErrorIs(t, err, core.ErrPlanInconsistency)

	unknown := doc
	unknown.Steps = append([]plan.DocumentStep(nil), doc.Steps...)
	unknown.Steps[0].Action = "Teleport"
	assert.ErrorIs(t, Validate(context.Background(), prob, unknown, encode.Serial), core.ErrInvalidDomain)

	negative := doc
	negative.Horizon = -1
	assert.ErrorIs(t, Validate(context.Background(), prob, negative, encode.Serial), core.ErrPlanInconsistency)

	long := doc
	long.Horizon = prob.Horizon + 1
	err = Validate(context.Background(), prob, long, encode.Serial)
	require.ErrorIs(t, err, core.ErrPlanInconsistency)
	assert.ErrorContains(t, err, "exceeds t_max")
}

func TestValidateSemantics(t *testing.T) {
	prob := build(t, instances.Sample())
	pl := New(gophersat(), WithEncoding(encode.Options{Semantics: encode.Parallel}))
	res, err := pl.CompileAndSolve(context.Background(), prob, NoOverride)
	require.NoError(t, err)
	require.Equal(t, Solved, res.Status)

	doc := res.Plan.Document(res.Universe)
	require.NoError(t, Validate(context.Background(), prob, doc, encode.Parallel))

	// Load both bags in one step: legal in parallel, not in serial.
	doc.Steps = []plan.DocumentStep{
		{Time: 0, Action: "Load", Args: []string{"B1", "L1"}},
		{Time: 0, Action: "Load", Args: []string{"B2", "L1"}},
	}
	prob.Goal = nil
	require.NoError(t, Validate(context.Background(), prob, doc, encode.Parallel))
	err = Validate(context.Background(), prob, doc, encode.Serial)
	require.ErrorIs(t, err, core.ErrPlanInconsistency)
	assert.ErrorContains(t, err, "serial plan")
}
