package loader

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/instances"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

func groundNames(t *testing.T, p *core.Problem) (facts, actions []string) {
	t.Helper()
	u, err := ground.Ground(context.Background(), p, ground.Options{PruneStatic: true})
	require.NoError(t, err)
	for _, f := range u.Facts {
		facts = append(facts, f.String())
	}
	for _, a := range u.Actions {
		actions = append(actions, a.String())
	}
	return facts, actions
}

func TestLoadUntyped(t *testing.T) {
	p, err := LoadFile("testdata/delivery.txt")
	require.NoError(t, err)

	assert.Equal(t, "delivery", p.Name)
	assert.Equal(t, 20, p.Horizon)
	assert.True(t, p.AllowIdle)
	assert.False(t, p.Minimize)
	assert.Len(t, p.Init, 14)
	assert.Len(t, p.Goal, 5)
	assert.Len(t, p.Domain.Objects(), 7)
	assert.Empty(t, p.Domain.Types())

	var preds []string
	for _, pr := range p.Domain.Predicates() {
		preds = append(preds, pr.Name)
	}
	assert.Equal(t, []string{"At", "Warehouse", "Empty", "Road", "Supplied", "Full"}, preds)

	load, ok := p.Domain.SchemaByName("Load")
	require.True(t, ok)
	assert.Equal(t, []core.Parameter{{Name: "b", Type: core.AnyType}, {Name: "x", Type: core.AnyType}}, load.Params)
	require.Len(t, load.Eff, 2)
	assert.True(t, load.Eff[1].Negated)
	assert.Equal(t, "Empty(b)", load.FormatAtom(load.Eff[1].Atom))
}

func TestLoadUntypedSolves(t *testing.T) {
	p, err := LoadFile("testdata/delivery.txt")
	require.NoError(t, err)
	s, err := solver.New(solver.BackendGophersat, solver.Options{})
	require.NoError(t, err)

	res, err := planner.New(s).CompileAndSolve(context.Background(), p, planner.NoOverride)
	require.NoError(t, err)
	require.Equal(t, planner.Solved, res.Status)
	assert.True(t, res.Plan.Validate(res.Universe))
}

func TestLoadTypedMatchesBuilder(t *testing.T) {
	p, err := LoadFile("testdata/delivery_typed.txt")
	require.NoError(t, err)
	assert.Equal(t, "delivery-typed", p.Name)
	assert.True(t, p.Minimize)

	load, ok := p.Domain.SchemaByName("Load")
	require.True(t, ok)
	assert.Equal(t, core.TypeName("Bag"), load.Params[0].Type)
	assert.Equal(t, core.TypeName("Location"), load.Params[1].Type)
	unload, ok := p.Domain.SchemaByName("Unload")
	require.True(t, ok)
	assert.Equal(t, 2, unload.Cost)

	groups := p.Domain.Exclusive()
	require.Len(t, groups, 2)
	assert.Empty(t, groups[0].Params)
	assert.Equal(t, core.Wildcard(), groups[0].Atoms[0].Args[0])
	assert.Equal(t, []core.Parameter{{Name: "b", Type: "Bag"}}, groups[1].Params)

	want, err := instances.Sample().Build()
	require.NoError(t, err)
	gotFacts, gotActions := groundNames(t, p)
	wantFacts, wantActions := groundNames(t, want)
	assert.Empty(t, cmp.Diff(wantFacts, gotFacts))
	assert.Empty(t, cmp.Diff(wantActions, gotActions))
}

func TestFormatRoundTrip(t *testing.T) {
	params := instances.Sample()
	params.Chords = 2
	params.Seed = 3
	params.NoIdle = true
	params.Minimize = true
	orig, err := params.Build()
	require.NoError(t, err)

	var first bytes.Buffer
	require.NoError(t, Format(&first, orig))
	reparsed, err := ParseString(first.String(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, orig.Name, reparsed.Name)
	assert.False(t, reparsed.AllowIdle)
	assert.True(t, reparsed.Minimize)
	assert.Equal(t, orig.Horizon, reparsed.Horizon)

	var second bytes.Buffer
	require.NoError(t, Format(&second, reparsed))
	assert.Empty(t, cmp.Diff(first.String(), second.String()))

	// Object ids differ (types are written sorted), so compare as sets.
	of, oa := groundNames(t, orig)
	rf, ra := groundNames(t, reparsed)
	for _, s := range [][]string{of, oa, rf, ra} {
		sort.Strings(s)
	}
	assert.Empty(t, cmp.Diff(of, rf))
	assert.Empty(t, cmp.Diff(oa, ra))
}

func TestFormatSchema(t *testing.T) {
	p, err := ParseString(`
action: Link(a, b) cost=3 symmetric; Node(a) & Node(b) & ~Linked(a,b); Linked(a,b)
action: Reset(); ; ~Armed
initial: Node(N1) & Node(N2) & Armed
t_max: 2
`, "links")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Format(&buf, p))
	out := buf.String()
	assert.Contains(t, out, "action: Link(a, b) cost=3 symmetric; Node(a) & Node(b) & ~Linked(a,b); Linked(a,b)\n")
	assert.Contains(t, out, "action: Reset(); ; ~Armed()\n")
	assert.Contains(t, out, "types: object(N1,N2)\n")
	assert.Contains(t, out, "predicates: Node(object) & Armed() & Linked(object,object)\n")
}

func TestActionCosts(t *testing.T) {
	const actions = "initial: A(X)\naction: Free(v) cost=0; A(v); B(v)\naction: Step(v); B(v); C(v)\nt_max: 2\n"
	tests := []struct {
		name     string
		src      string
		minimize bool
	}{
		{"cost implies minimize", actions, true},
		{"explicit minimize false", actions + "minimize: false\n", false},
		{"no costs", "initial: A(X)\naction: Step(v); A(v); B(v)\nt_max: 2\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseString(tt.src, "costs")
			require.NoError(t, err)
			assert.Equal(t, tt.minimize, p.Minimize)
			step, ok := p.Domain.SchemaByName("Step")
			require.True(t, ok)
			assert.Equal(t, core.DefaultCost, step.Cost)
			if free, ok := p.Domain.SchemaByName("Free"); ok {
				assert.Zero(t, free.Cost)
			}

			var buf bytes.Buffer
			require.NoError(t, Format(&buf, p))
			again, err := ParseString(buf.String(), "costs")
			require.NoError(t, err)
			assert.Equal(t, p.Minimize, again.Minimize)
		})
	}
}

func TestZeroCostPlan(t *testing.T) {
	// Free reaches the goal in two zero-cost steps; Pay does it in one.
	p, err := ParseString(`
initial: A(X)
goals: C(X)
action: Free(v) cost=0; A(v); B(v)
action: Free2(v) cost=0; B(v); C(v)
action: Pay(v) cost=5; A(v); C(v)
t_max: 2
`, "free")
	require.NoError(t, err)
	s, err := solver.New(solver.BackendGophersat, solver.Options{})
	require.NoError(t, err)

	res, err := planner.New(s).CompileAndSolve(context.Background(), p, planner.NoOverride)
	require.NoError(t, err)
	require.Equal(t, planner.Solved, res.Status)
	assert.Zero(t, res.Plan.Cost)
	assert.Equal(t, 2, res.Plan.Len())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"missing horizon", "initial: A(x)\n", 0, "missing t_max"},
		{"bad horizon", "t_max: soon\n", 1, "t_max"},
		{"negative horizon", "t_max: -1\n", 1, "t_max"},
		{"horizon twice", "t_max: 1\nt_max: 2\n", 2, "twice"},
		{"no keyword", "t_max: 1\nAt(L1)\n", 2, "keyword"},
		{"unknown section", "# header\nfacts: A(x)\nt_max: 1\n", 2, "unknown section"},
		{"negated initial fact", "initial: ~A(x)\nt_max: 1\n", 1, "negation"},
		{"unclosed atom", "goals: A(x\nt_max: 1\n", 1, "expected"},
		{"trailing tokens", "initial: A(x) B(y)\nt_max: 1\n", 1, "unexpected"},
		{"bad character", "initial: A(x) && B(y)\nt_max: 1\n", 1, "expected a name"},
		{"bad rune", "initial: A(x!)\nt_max: 1\n", 1, "unexpected character"},
		{"unknown option", "action: Go(x) fast; A(x); B(x)\nt_max: 1\n", 1, "unknown action option"},
		{"bad cost", "action: Go(x) cost=-2; A(x); B(x)\nt_max: 1\n", 1, "cost"},
		{"missing effects", "action: Go(x); A(x)\nt_max: 1\n", 1, "expected \";\""},
		{"bad idle", "idle: maybe\nt_max: 1\n", 1, "idle"},
		{"arity conflict", "initial: A(x)\ngoals: A(x,y)\nt_max: 1\n", 2, "A used with 2 arguments"},
		{"wildcard in goal", "goals: A(*)\nt_max: 1\n", 1, "wildcard"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src, "bad")
			require.ErrorIs(t, err, ErrSyntax)
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Contains(t, pe.Error(), tt.msg)
		})
	}
}

func TestDomainErrorsSurfaceAtGrounding(t *testing.T) {
	base := strings.Join([]string{
		"initial: At(L1) & Road(L1,L2)",
		"goals: At(L2)",
		"action: Go(x,y); At(x) & Road(x,y); At(y) & ~At(x)",
		"t_max: 1",
	}, "\n")

	t.Run("undeclared predicate", func(t *testing.T) {
		p, err := ParseString(base+"\naction: Fly(x); At(x) & Airborne(x); ~At(x)\n", "p")
		require.NoError(t, err)
		_, err = ground.Ground(context.Background(), p, ground.Options{})
		assert.ErrorIs(t, err, core.ErrUnknownPredicate)
		assert.Contains(t, err.Error(), "Airborne")
	})

	t.Run("undeclared object with types", func(t *testing.T) {
		p, err := ParseString("types: Location(L1,L2)\n"+base+"\ninitial: At(L9)\n", "p")
		require.NoError(t, err)
		_, err = ground.Ground(context.Background(), p, ground.Options{})
		assert.ErrorIs(t, err, core.ErrUnknownObject)
	})

	t.Run("duplicate action", func(t *testing.T) {
		_, err := ParseString(base+"\naction: Go(a); ; \n", "p")
		assert.ErrorIs(t, err, core.ErrInvalidDomain)
		assert.NotErrorIs(t, err, ErrSyntax)
	})
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/nope.txt")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSyntax)
}
