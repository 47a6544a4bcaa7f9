// Package ilp describes solver-neutral 0-1 integer linear programs and the
// boundary to the solvers that answer them.
package ilp

import (
	"fmt"
	"sort"
	"strings"
)

// Var indexes a binary decision variable, 0..NumVars-1.
type Var int

// Term is Coef·Var.
type Term struct {
	Var  Var
	Coef int
}

// Sense is the relation of a linear constraint.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	default:
		return "="
	}
}

// Constraint is Σ Terms Sense RHS. Family groups constraints by origin
// for diagnostics.
type Constraint struct {
	Terms  []Term
	Sense  Sense
	RHS    int
	Family string
}

// Objective is Σ Terms, minimized.
type Objective struct {
	Terms []Term
}

// Model is a 0-1 linear program. A nil Objective makes it a feasibility
// query. Models are not modified by solvers.
type Model struct {
	NumVars     int
	Constraints []Constraint
	Objective   *Objective
	// Names renders a variable for diagnostics; nil means "x<i>".
	Names func(Var) string
}

// Add appends a constraint.
func (m *Model) Add(family string, sense Sense, rhs int, terms ...Term) {
	m.Constraints = append(m.Constraints, Constraint{Terms: terms, Sense: sense, RHS: rhs, Family: family})
}

// VarName renders v.
func (m *Model) VarName(v Var) string {
	if m.Names != nil {
		return m.Names(v)
	}
	return fmt.Sprintf("x%d", v)
}

// Format renders c with variable names.
func (m *Model) Format(c Constraint) string {
	var sb strings.Builder
	for i, t := range c.Terms {
		switch {
		case i > 0 && t.Coef < 0:
			sb.WriteString(" - ")
		case i > 0:
			sb.WriteString(" + ")
		case t.Coef < 0:
			sb.WriteString("-")
		}
		if c := abs(t.Coef); c != 1 {
			fmt.Fprintf(&sb, "%d ", c)
		}
		sb.WriteString(m.VarName(t.Var))
	}
	if len(c.Terms) == 0 {
		sb.WriteString("0")
	}
	fmt.Fprintf(&sb, " %s %d", c.Sense, c.RHS)
	return sb.String()
}

// Families counts constraints per family.
func (m *Model) Families() map[string]int {
	out := make(map[string]int)
	for _, c := range m.Constraints {
		out[c.Family]++
	}
	return out
}

// FamilySummary renders Families in a stable order, e.g. "frame=40 init=10".
func (m *Model) FamilySummary() string {
	fams := m.Families()
	keys := make([]string, 0, len(fams))
	for k := range fams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, fams[k])
	}
	return strings.Join(parts, " ")
}

// Satisfied reports whether c holds under x.
func (c Constraint) Satisfied(x []bool) bool {
	lhs := 0
	for _, t := range c.Terms {
		if x[t.Var] {
			lhs += t.Coef
		}
	}
	switch c.Sense {
	case LE:
		return lhs <= c.RHS
	case GE:
		return lhs >= c.RHS
	default:
		return lhs == c.RHS
	}
}

// Violated returns the indices of constraints x does not satisfy.
func (m *Model) Violated(x []bool) []int {
	var out []int
	for i, c := range m.Constraints {
		if !c.Satisfied(x) {
			out = append(out, i)
		}
	}
	return out
}

// Cost evaluates the objective under x; zero without an objective.
func (m *Model) Cost(x []bool) int {
	if m.Objective == nil {
		return 0
	}
	cost := 0
	for _, t := range m.Objective.Terms {
		if x[t.Var] {
			cost += t.Coef
		}
	}
	return cost
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
