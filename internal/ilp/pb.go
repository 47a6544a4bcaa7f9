package ilp

import "slices"

// Lit is a pseudo-boolean literal: v+1 for variable v, -(v+1) for its
// negation. This is the DIMACS convention used by PB solvers.
type Lit int

// PosLit returns the positive literal of v.
func PosLit(v Var) Lit { return Lit(v + 1) }

// NegLit returns the negative literal of v.
func NegLit(v Var) Lit { return -Lit(v + 1) }

// Var returns the variable of l.
func (l Lit) Var() Var {
	if l < 0 {
		return Var(-l - 1)
	}
	return Var(l - 1)
}

// Negated reports whether l is a negative literal.
func (l Lit) Negated() bool { return l < 0 }

// True reports whether l holds under x.
func (l Lit) True(x []bool) bool { return x[l.Var()] != l.Negated() }

// PBConstraint is Σ Weights[i]·Lits[i] ≥ Min with positive weights and
// distinct variables.
type PBConstraint struct {
	Lits    []Lit
	Weights []int
	Min     int
	Family  string
}

// PBObjective is Offset + Σ Weights[i]·Lits[i], minimized, with positive weights.
type PBObjective struct {
	Lits    []Lit
	Weights []int
	Offset  int
}

// PseudoBoolean rewrites the model into normalized ≥ constraints.
// Trivially true constraints are dropped. infeasible is true when some
// constraint cannot be satisfied by any assignment.
func (m *Model) PseudoBoolean() (cons []PBConstraint, obj *PBObjective, infeasible bool) {
	for _, c := range m.Constraints {
		var parts []PBConstraint
		switch c.Sense {
		case GE:
			parts = []PBConstraint{normalize(c.Terms, 1, c.RHS)}
		case LE:
			parts = []PBConstraint{normalize(c.Terms, -1, -c.RHS)}
		default:
			parts = []PBConstraint{normalize(c.Terms, 1, c.RHS), normalize(c.Terms, -1, -c.RHS)}
		}
		for _, p := range parts {
			if p.Min <= 0 {
				continue
			}
			total := 0
			for _, w := range p.Weights {
				total += w
			}
			if total < p.Min {
				infeasible = true
			}
			p.Family = c.Family
			cons = append(cons, p)
		}
	}
	if m.Objective != nil {
		obj = &PBObjective{}
		lits, weights, offset := merge(m.Objective.Terms, 1)
		obj.Lits, obj.Weights, obj.Offset = lits, weights, offset
	}
	return cons, obj, infeasible
}

// normalize returns Σ sign·terms ≥ rhs with positive weights.
func normalize(terms []Term, sign, rhs int) PBConstraint {
	lits, weights, offset := merge(terms, sign)
	return PBConstraint{Lits: lits, Weights: weights, Min: rhs - offset}
}

// merge combines sign·terms per variable and rewrites negative coefficients
// as c·x = c + |c|·¬x. It returns the literals, their weights and the
// accumulated constant.
func merge(terms []Term, sign int) ([]Lit, []int, int) {
	sorted := slices.Clone(terms)
	slices.SortFunc(sorted, func(a, b Term) int { return int(a.Var) - int(b.Var) })

	var (
		lits    []Lit
		weights []int
		offset  int
	)
	for i := 0; i < len(sorted); {
		v, c := sorted[i].Var, 0
		for ; i < len(sorted) && sorted[i].Var == v; i++ {
			c += sign * sorted[i].Coef
		}
		switch {
		case c > 0:
			lits = append(lits, PosLit(v))
			weights = append(weights, c)
		case c < 0:
			lits = append(lits, NegLit(v))
			weights = append(weights, -c)
			offset += c
		}
	}
	return lits, weights, offset
}
