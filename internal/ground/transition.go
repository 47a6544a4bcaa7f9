package ground

import (
	"errors"
	"fmt"
	"strings"

	"github.com/elektrokombinacija/planilp/internal/core"
)

var (
	ErrNotApplicable = errors.New("action not applicable")
	ErrConflict      = errors.New("mutex actions in one step")
)

// Applicable reports whether a's precondition holds in s.
func (u *Universe) Applicable(a *Action, s State) bool {
	for _, f := range a.Pre {
		if !s.Has(f) {
			return false
		}
	}
	for _, f := range a.PreNeg {
		if s.Has(f) {
			return false
		}
	}
	return true
}

// Apply returns the successor of s under a: deletes first, then adds.
// It does not check applicability.
func (u *Universe) Apply(a *Action, s State) State {
	next := s.Clone()
	for _, f := range a.Del {
		next.Clear(f)
	}
	for _, f := range a.Add {
		next.Set(f)
	}
	return next
}

// ApplyStep executes a set of actions simultaneously. Every action must be
// applicable in s and no two may be mutex. All deletes are applied before
// all adds. An empty step returns a copy of s.
func (u *Universe) ApplyStep(acts []*Action, s State) (State, error) {
	for i, a := range acts {
		if !u.Applicable(a, s) {
			return State{}, fmt.Errorf("%w: %s: %s", ErrNotApplicable, a, u.unmet(a, s))
		}
		for _, b := range acts[i+1:] {
			if a.ID == b.ID || u.Mutex.Has(a.ID, b.ID) {
				return State{}, fmt.Errorf("%w: %s and %s", ErrConflict, a, b)
			}
		}
	}
	next := s.Clone()
	for _, a := range acts {
		for _, f := range a.Del {
			next.Clear(f)
		}
	}
	for _, a := range acts {
		for _, f := range a.Add {
			next.Set(f)
		}
	}
	return next, nil
}

// Satisfies reports whether s satisfies the goal.
func (u *Universe) Satisfies(s State) bool {
	return len(u.Unsatisfied(s)) == 0
}

// Unsatisfied lists the goal literals that do not hold in s.
func (u *Universe) Unsatisfied(s State) []string {
	var out []string
	for _, f := range u.Goal.Pos {
		if !s.Has(f) {
			out = append(out, u.Facts[f].String())
		}
	}
	for _, f := range u.Goal.Neg {
		if s.Has(f) {
			out = append(out, "~"+u.Facts[f].String())
		}
	}
	return out
}

// CheckInvariant reports an exclusivity group with more than one fact
// holding in s.
func (u *Universe) CheckInvariant(s State) error {
	for _, group := range u.Exclusive {
		var held []string
		for _, f := range group {
			if s.Has(f) {
				held = append(held, u.Facts[f].String())
			}
		}
		if len(held) > 1 {
			return core.Domainf(core.ErrStateInvariant, "mutually exclusive facts hold together: %s",
				strings.Join(held, ", "))
		}
	}
	return nil
}

// FactNames formats fact ids.
func (u *Universe) FactNames(ids []FactID) []string {
	out := make([]string, len(ids))
	for i, f := range ids {
		out[i] = u.Facts[f].String()
	}
	return out
}

func (u *Universe) unmet(a *Action, s State) string {
	var missing []string
	for _, f := range a.Pre {
		if !s.Has(f) {
			missing = append(missing, u.Facts[f].String())
		}
	}
	for _, f := range a.PreNeg {
		if s.Has(f) {
			missing = append(missing, "~"+u.Facts[f].String())
		}
	}
	return "requires " + strings.Join(missing, " & ")
}
