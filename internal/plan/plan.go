// Package plan holds decoded plans and replays them against the
// state-transition model.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/ground"
)

// Step is a ground action executing at Time, moving the state at Time to
// the state at Time+1.
type Step struct {
	Time   int
	Action *ground.Action
}

// Plan is a time-tagged action sequence over a horizon. Steps are sorted by
// time; several steps may share a time under parallel semantics, and times
// without steps are idle.
type Plan struct {
	Horizon int
	Steps   []Step
	Cost    int
}

// New sorts steps and computes the cost.
func New(horizon int, steps []Step) *Plan {
	p := &Plan{Horizon: horizon, Steps: append([]Step(nil), steps...)}
	sort.SliceStable(p.Steps, func(i, j int) bool {
		if p.Steps[i].Time != p.Steps[j].Time {
			return p.Steps[i].Time < p.Steps[j].Time
		}
		return p.Steps[i].Action.ID < p.Steps[j].Action.ID
	})
	for _, s := range p.Steps {
		p.Cost += s.Action.Cost
	}
	return p
}

// Len returns the number of actions.
func (p *Plan) Len() int { return len(p.Steps) }

// At returns the actions executing at time t.
func (p *Plan) At(t int) []*ground.Action {
	var out []*ground.Action
	for _, s := range p.Steps {
		if s.Time == t {
			out = append(out, s.Action)
		}
	}
	return out
}

// Layers returns the actions of each time step 0..Horizon-1.
func (p *Plan) Layers() [][]*ground.Action {
	layers := make([][]*ground.Action, max(p.Horizon, 0))
	for _, s := range p.Steps {
		if s.Time >= 0 && s.Time < p.Horizon {
			layers[s.Time] = append(layers[s.Time], s.Action)
		}
	}
	return layers
}

// Makespan returns one past the last time with an action.
func (p *Plan) Makespan() int {
	if len(p.Steps) == 0 {
		return 0
	}
	return p.Steps[len(p.Steps)-1].Time + 1
}

func (p *Plan) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "plan: %d actions, cost %d, horizon %d\n", p.Len(), p.Cost, p.Horizon)
	for _, s := range p.Steps {
		fmt.Fprintf(&sb, "%3d: %s\n", s.Time, s.Action)
	}
	return sb.String()
}

// Replay executes the plan from the initial state and returns the states
// S_0..S_Horizon. It fails with an *core.InconsistencyError if a step is
// out of range, an action is not applicable, two actions in one step are
// mutex, a step is idle where idle steps are not allowed, a state breaks
// an exclusivity group, or the final state misses the goal. A negative
// horizon is rejected before anything else.
func (p *Plan) Replay(u *ground.Universe) ([]ground.State, error) {
	if p.Horizon < 0 {
		return nil, core.Inconsistentf(-1, "negative horizon %d", p.Horizon)
	}
	for _, s := range p.Steps {
		if s.Action == nil || int(s.Action.ID) >= len(u.Actions) || u.Actions[s.Action.ID] != s.Action {
			return nil, core.Inconsistentf(s.Time, "action does not belong to this problem")
		}
		if s.Time < 0 || s.Time >= p.Horizon {
			return nil, core.Inconsistentf(s.Time, "%s outside horizon %d", s.Action, p.Horizon)
		}
	}

	states := make([]ground.State, 0, p.Horizon+1)
	cur := u.Init
	states = append(states, cur)
	for t, acts := range p.Layers() {
		if len(acts) == 0 && !u.Problem.AllowIdle {
			return nil, core.Inconsistentf(t, "idle step where idle steps are not allowed")
		}
		next, err := u.ApplyStep(acts, cur)
		if err != nil {
			return nil, &core.InconsistencyError{Step: t, Msg: err.Error()}
		}
		if err := u.CheckInvariant(next); err != nil {
			return nil, &core.InconsistencyError{Step: t + 1, Msg: err.Error()}
		}
		cur = next
		states = append(states, cur)
	}
	if missing := u.Unsatisfied(cur); len(missing) > 0 {
		return nil, core.Inconsistentf(p.Horizon, "goal not reached: %s", strings.Join(missing, ", "))
	}
	return states, nil
}

// CheckSerial fails on the first time step executing more than one action.
func (p *Plan) CheckSerial() error {
	for t, acts := range p.Layers() {
		if len(acts) > 1 {
			return core.Inconsistentf(t, "%d actions in one step of a serial plan", len(acts))
		}
	}
	return nil
}

// Validate reports whether the plan replays cleanly.
func (p *Plan) Validate(u *ground.Universe) bool {
	_, err := p.Replay(u)
	return err == nil
}
