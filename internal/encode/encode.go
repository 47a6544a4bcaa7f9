// Package encode compiles a grounded problem and a horizon into a
// time-expanded 0-1 linear program.
//
// Variables are laid out by time layer. Layer t (0 ≤ t < T) holds every
// fact variable p_t followed by every action variable a_t; the final layer
// T holds fact variables only. Action a_t moves the state at t to the state
// at t+1.
package encode

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/ilp"
)

// Semantics selects how many actions may execute per step.
type Semantics int

const (
	// Serial allows at most one action per step.
	Serial Semantics = iota
	// Parallel allows any set of pairwise non-mutex actions per step.
	Parallel
)

func (s Semantics) String() string {
	if s == Parallel {
		return "parallel"
	}
	return "serial"
}

// ParseSemantics parses "serial" or "parallel".
func ParseSemantics(s string) (Semantics, error) {
	switch s {
	case "serial", "":
		return Serial, nil
	case "parallel":
		return Parallel, nil
	}
	return Serial, fmt.Errorf("unknown semantics %q", s)
}

// ObjectiveMode selects whether the model carries a cost objective.
type ObjectiveMode int

const (
	// ObjectiveAuto minimizes cost when the problem declares it.
	ObjectiveAuto ObjectiveMode = iota
	ObjectiveNone
	ObjectiveMinimize
)

// ParseObjective parses "auto", "none" or "minimize".
func ParseObjective(s string) (ObjectiveMode, error) {
	switch s {
	case "auto", "":
		return ObjectiveAuto, nil
	case "none":
		return ObjectiveNone, nil
	case "minimize":
		return ObjectiveMinimize, nil
	}
	return ObjectiveAuto, fmt.Errorf("unknown objective mode %q", s)
}

// Constraint families.
const (
	FamilyInit      = "init"
	FamilyGoal      = "goal"
	FamilyPre       = "pre"
	FamilyFrame     = "frame"
	FamilySerial    = "serial"
	FamilyBusy      = "busy"
	FamilyMutex     = "mutex"
	FamilyExclusive = "exclusive"
)

// Options configures encoding.
type Options struct {
	Semantics Semantics
	Objective ObjectiveMode
	// MaxVariables bounds the model size; zero means unbounded.
	MaxVariables int
	Logger       *zap.Logger
}

// Encoding is a model together with the layout needed to read its
// variables back.
type Encoding struct {
	Model     *ilp.Model
	Universe  *ground.Universe
	Horizon   int
	Semantics Semantics
	AllowIdle bool

	facts, actions int
}

// FactVar returns the variable of fact f at time t, 0 ≤ t ≤ Horizon.
func (e *Encoding) FactVar(f ground.FactID, t int) ilp.Var {
	return ilp.Var(t*(e.facts+e.actions) + int(f))
}

// ActionVar returns the variable of action a at time t, 0 ≤ t < Horizon.
func (e *Encoding) ActionVar(a ground.ActionID, t int) ilp.Var {
	return ilp.Var(t*(e.facts+e.actions) + e.facts + int(a))
}

// Locate inverts FactVar and ActionVar.
func (e *Encoding) Locate(v ilp.Var) (t, index int, isAction bool) {
	stride := e.facts + e.actions
	t, off := int(v)/stride, int(v)%stride
	if off >= e.facts {
		return t, off - e.facts, true
	}
	return t, off, false
}

// VarName renders v as e.g. "At(L1)@3" or "Go(L1,L2)@0".
func (e *Encoding) VarName(v ilp.Var) string {
	t, i, isAction := e.Locate(v)
	if isAction {
		return fmt.Sprintf("%s@%d", e.Universe.Actions[i], t)
	}
	return fmt.Sprintf("%s@%d", e.Universe.Facts[i], t)
}

// VariableCount returns T·(F+A)+F.
func VariableCount(facts, actions, horizon int) int {
	return horizon*(facts+actions) + facts
}

// Encode builds the model for horizon T. With T = 0 there are no action
// variables and the model only checks the initial state against the goal.
func Encode(u *ground.Universe, horizon int, opts Options) (*Encoding, error) {
	if horizon < 0 {
		return nil, core.Domainf(core.ErrInvalidDomain, "negative horizon %d", horizon)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	nf, na := u.NumFacts(), u.NumActions()
	nvars := VariableCount(nf, na, horizon)
	if opts.MaxVariables > 0 && nvars > opts.MaxVariables {
		return nil, &core.OverflowError{
			What: "variables", Facts: nf, Actions: na, Horizon: horizon,
			Variables: nvars, Limit: opts.MaxVariables,
		}
	}

	e := &Encoding{
		Universe:  u,
		Horizon:   horizon,
		Semantics: opts.Semantics,
		AllowIdle: u.Problem.AllowIdle,
		facts:     nf,
		actions:   na,
	}
	e.Model = &ilp.Model{NumVars: nvars, Names: e.VarName}

	e.initial()
	e.goal()
	for t := 0; t < horizon; t++ {
		e.preconditions(t)
		e.frame(t)
		e.stepLimits(t)
		e.mutex(t)
	}
	for t := 0; t <= horizon; t++ {
		e.exclusive(t)
	}

	minimize := opts.Objective == ObjectiveMinimize ||
		(opts.Objective == ObjectiveAuto && u.Problem.Minimize)
	if minimize {
		obj := &ilp.Objective{}
		for t := 0; t < horizon; t++ {
			for _, a := range u.Actions {
				obj.Terms = append(obj.Terms, ilp.Term{Var: e.ActionVar(a.ID, t), Coef: a.Cost})
			}
		}
		e.Model.Objective = obj
	}

	log.Debug("encoded model",
		zap.Int("horizon", horizon),
		zap.Stringer("semantics", opts.Semantics),
		zap.Int("variables", nvars),
		zap.Int("constraints", len(e.Model.Constraints)),
		zap.String("families", e.Model.FamilySummary()),
		zap.Bool("objective", minimize))
	return e, nil
}

func (e *Encoding) fact(f ground.FactID, t, coef int) ilp.Term {
	return ilp.Term{Var: e.FactVar(f, t), Coef: coef}
}

func (e *Encoding) action(a ground.ActionID, t, coef int) ilp.Term {
	return ilp.Term{Var: e.ActionVar(a, t), Coef: coef}
}

func (e *Encoding) initial() {
	for i := range e.Universe.Facts {
		f := ground.FactID(i)
		v := 0
		if e.Universe.Init.Has(f) {
			v = 1
		}
		e.Model.Add(FamilyInit, ilp.EQ, v, e.fact(f, 0, 1))
	}
}

func (e *Encoding) goal() {
	T := e.Horizon
	for _, f := range e.Universe.Goal.Pos {
		e.Model.Add(FamilyGoal, ilp.EQ, 1, e.fact(f, T, 1))
	}
	for _, f := range e.Universe.Goal.Neg {
		e.Model.Add(FamilyGoal, ilp.EQ, 0, e.fact(f, T, 1))
	}
}

// preconditions: a_t ≤ p_t for required facts, a_t + p_t ≤ 1 for
// forbidden ones.
func (e *Encoding) preconditions(t int) {
	for _, a := range e.Universe.Actions {
		for _, f := range a.Pre {
			e.Model.Add(FamilyPre, ilp.LE, 0, e.action(a.ID, t, 1), e.fact(f, t, -1))
		}
		for _, f := range a.PreNeg {
			e.Model.Add(FamilyPre, ilp.LE, 1, e.action(a.ID, t, 1), e.fact(f, t, 1))
		}
	}
}

// frame emits the successor-state axioms between t and t+1. With adders A
// and deleters D of p:
//
//	p' ≥ p − ΣD      p' ≥ ΣA      p' ≤ p + ΣA      p' ≤ 1 − ΣD + ΣA
//
// A fact no action touches gets the single equation p' = p. Inequalities
// that are trivially true for an empty A or D are omitted.
func (e *Encoding) frame(t int) {
	u := e.Universe
	for i := range u.Facts {
		f := ground.FactID(i)
		adds, dels := u.Adders(f), u.Deleters(f)
		next, cur := e.fact(f, t+1, 1), e.fact(f, t, -1)
		if len(adds) == 0 && len(dels) == 0 {
			e.Model.Add(FamilyFrame, ilp.EQ, 0, next, cur)
			continue
		}

		persist := []ilp.Term{next, cur}
		for _, a := range dels {
			persist = append(persist, e.action(a, t, 1))
		}
		e.Model.Add(FamilyFrame, ilp.GE, 0, persist...)

		if len(adds) > 0 {
			support := []ilp.Term{next}
			for _, a := range adds {
				support = append(support, e.action(a, t, -1))
			}
			e.Model.Add(FamilyFrame, ilp.GE, 0, support...)
		}

		cause := []ilp.Term{next, cur}
		for _, a := range adds {
			cause = append(cause, e.action(a, t, -1))
		}
		e.Model.Add(FamilyFrame, ilp.LE, 0, cause...)

		if len(dels) > 0 {
			kill := []ilp.Term{next}
			for _, a := range dels {
				kill = append(kill, e.action(a, t, 1))
			}
			for _, a := range adds {
				kill = append(kill, e.action(a, t, -1))
			}
			e.Model.Add(FamilyFrame, ilp.LE, 1, kill...)
		}
	}
}

// stepLimits emits Σa_t ≤ 1 under serial semantics and Σa_t ≥ 1 when idle
// steps are not allowed.
func (e *Encoding) stepLimits(t int) {
	all := make([]ilp.Term, len(e.Universe.Actions))
	for i := range e.Universe.Actions {
		all[i] = e.action(ground.ActionID(i), t, 1)
	}
	if e.Semantics == Serial && len(all) > 1 {
		e.Model.Add(FamilySerial, ilp.LE, 1, all...)
	}
	if !e.AllowIdle {
		e.Model.Add(FamilyBusy, ilp.GE, 1, all...)
	}
}

func (e *Encoding) mutex(t int) {
	e.Universe.Mutex.Pairs(func(a, b ground.ActionID) bool {
		e.Model.Add(FamilyMutex, ilp.LE, 1, e.action(a, t, 1), e.action(b, t, 1))
		return true
	})
}

func (e *Encoding) exclusive(t int) {
	for _, group := range e.Universe.Exclusive {
		terms := make([]ilp.Term, len(group))
		for i, f := range group {
			terms[i] = e.fact(f, t, 1)
		}
		e.Model.Add(FamilyExclusive, ilp.LE, 1, terms...)
	}
}

// Facts returns the state at time t under a boolean assignment.
func (e *Encoding) Facts(x []bool, t int) ground.State {
	s := ground.NewState(e.facts)
	for i := 0; i < e.facts; i++ {
		if x[e.FactVar(ground.FactID(i), t)] {
			s.Set(ground.FactID(i))
		}
	}
	return s
}

// Fired returns the actions executing at time t under a boolean assignment.
func (e *Encoding) Fired(x []bool, t int) []*ground.Action {
	var out []*ground.Action
	for i, a := range e.Universe.Actions {
		if x[e.ActionVar(ground.ActionID(i), t)] {
			out = append(out, a)
		}
	}
	return out
}
