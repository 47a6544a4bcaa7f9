// Package decode turns a solver assignment back into a plan and checks it
// against the transition model.
package decode

import (
	"fmt"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/encode"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/ilp"
	"github.com/elektrokombinacija/planilp/internal/plan"
)

// Decode reads the fired actions out of res and replays them.
//
// A result without a usable 0-1 assignment is a solver failure and wraps
// core.ErrSolver. An assignment that is well-formed but disagrees with the
// transition model is an *core.InconsistencyError: the state variables at
// every step must match the replayed state exactly.
func Decode(e *encode.Encoding, res ilp.Result) (*plan.Plan, error) {
	if !res.Status.HasAssignment() {
		return nil, fmt.Errorf("%w: no assignment with status %s", core.ErrSolver, res.Status)
	}
	m := e.Model
	if len(res.Assignment) != m.NumVars {
		return nil, fmt.Errorf("%w: assignment has %d values for %d variables",
			core.ErrSolver, len(res.Assignment), m.NumVars)
	}
	x, bad, ok := ilp.Bools(res.Assignment)
	if !ok {
		return nil, fmt.Errorf("%w: %s has non-integral value %g",
			core.ErrSolver, m.VarName(ilp.Var(bad)), res.Assignment[bad])
	}
	if violated := m.Violated(x); len(violated) > 0 {
		c := m.Constraints[violated[0]]
		return nil, fmt.Errorf("%w: assignment violates %d constraints, first %s: %s",
			core.ErrSolver, len(violated), c.Family, m.Format(c))
	}

	u := e.Universe
	var steps []plan.Step
	for t := 0; t < e.Horizon; t++ {
		fired := e.Fired(x, t)
		if err := checkStep(e, fired, t); err != nil {
			return nil, err
		}
		for _, a := range fired {
			steps = append(steps, plan.Step{Time: t, Action: a})
		}
	}
	if s0 := e.Facts(x, 0); !s0.Equal(u.Init) {
		return nil, core.Inconsistentf(0, "state variables differ from the initial state: %s", diff(u, u.Init, s0))
	}

	p := plan.New(e.Horizon, steps)
	states, err := p.Replay(u)
	if err != nil {
		return nil, err
	}
	for t := 1; t <= e.Horizon; t++ {
		if st := e.Facts(x, t); !st.Equal(states[t]) {
			return nil, core.Inconsistentf(t, "state variables differ from replay: %s", diff(u, states[t], st))
		}
	}
	return p, nil
}

func checkStep(e *encode.Encoding, fired []*ground.Action, t int) error {
	switch {
	case len(fired) == 0 && !e.AllowIdle:
		return core.Inconsistentf(t, "no action fired and idle steps are not allowed")
	case len(fired) > 1 && e.Semantics == encode.Serial:
		return core.Inconsistentf(t, "%d actions fired under serial semantics: %v", len(fired), fired)
	}
	for i, a := range fired {
		for _, b := range fired[i+1:] {
			if e.Universe.Mutex.Has(a.ID, b.ID) {
				return core.Inconsistentf(t, "mutex actions %s and %s both fired", a, b)
			}
		}
	}
	return nil
}

// diff renders the facts that differ between the expected and the decoded
// state.
func diff(u *ground.Universe, want, got ground.State) string {
	extra, missing := want.Diff(got)
	return fmt.Sprintf("unexpected %v, missing %v", u.FactNames(extra), u.FactNames(missing))
}
