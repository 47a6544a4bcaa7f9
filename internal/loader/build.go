package loader

import (
	"slices"

	"github.com/elektrokombinacija/planilp/internal/core"
)

// build turns the parsed document into a problem. Without a types section
// every constant becomes an untyped object; without a predicates section
// the predicates are those used by the initial state, the goals and the
// action effects, all slots untyped. Without a minimize line the problem
// minimizes cost exactly when some action declares one.
func (doc *document) build() (*core.Problem, error) {
	minimize := doc.minimize
	if !doc.hasMinimize {
		minimize = slices.ContainsFunc(doc.actions, func(a actionSyntax) bool { return a.hasCost })
	}
	b := core.NewBuilder(doc.name).
		Horizon(doc.horizon).
		AllowIdle(doc.idle).
		Minimize(minimize)

	objects := make(map[string]bool)
	for _, d := range doc.types {
		for _, o := range d.atom.args {
			if o == "*" {
				return nil, errorf(d.line, "wildcard in type %s", d.atom.pred)
			}
			b.Object(o, core.TypeName(d.atom.pred))
			objects[o] = true
		}
	}

	sigs, err := doc.signatures()
	if err != nil {
		return nil, err
	}
	for _, name := range sigs.order {
		b.Predicate(name, sigs.types[name]...)
	}

	inferObjects := len(doc.types) == 0
	constant := func(line int, name string) error {
		if name == "*" {
			return errorf(line, "wildcard outside an exclusivity group")
		}
		if inferObjects && !objects[name] {
			b.Object(name)
			objects[name] = true
		}
		return nil
	}

	for _, d := range doc.initial {
		for _, o := range d.atom.args {
			if err := constant(d.line, o); err != nil {
				return nil, err
			}
		}
		b.Init(core.NewFact(d.atom.pred, d.atom.args...))
	}
	for _, d := range doc.goals {
		for _, o := range d.atom.args {
			if err := constant(d.line, o); err != nil {
				return nil, err
			}
		}
		b.Goal(core.GoalLiteral{Fact: core.NewFact(d.atom.pred, d.atom.args...), Negated: d.atom.neg})
	}

	for _, a := range doc.actions {
		s, err := a.schema(sigs, constant)
		if err != nil {
			return nil, err
		}
		b.Action(s)
	}

	for _, g := range doc.exclusive {
		b.Exclusive(g.group(sigs, objects))
	}
	return b.Build()
}

type signatures struct {
	order []string
	types map[string][]core.TypeName
}

// slot returns the declared type of argument i of pred, or AnyType.
func (s signatures) slot(pred string, i int) core.TypeName {
	sig := s.types[pred]
	if i < len(sig) {
		return sig[i]
	}
	return core.AnyType
}

func (doc *document) signatures() (signatures, error) {
	s := signatures{types: make(map[string][]core.TypeName)}
	if len(doc.predicates) > 0 {
		for _, d := range doc.predicates {
			sig := make([]core.TypeName, len(d.atom.args))
			for i, t := range d.atom.args {
				if t == "*" {
					t = string(core.AnyType)
				}
				sig[i] = core.TypeName(t)
			}
			if _, dup := s.types[d.atom.pred]; !dup {
				s.order = append(s.order, d.atom.pred)
			}
			s.types[d.atom.pred] = sig
		}
		return s, nil
	}

	seen := make(map[string]int)
	use := func(line int, a atomSyntax) error {
		if n, ok := seen[a.pred]; ok {
			if n != len(a.args) {
				return errorf(line, "%s used with %d arguments, earlier with %d", a.pred, len(a.args), n)
			}
			return nil
		}
		seen[a.pred] = len(a.args)
		s.order = append(s.order, a.pred)
		sig := make([]core.TypeName, len(a.args))
		for i := range sig {
			sig[i] = core.AnyType
		}
		s.types[a.pred] = sig
		return nil
	}
	for _, d := range doc.initial {
		if err := use(d.line, d.atom); err != nil {
			return s, err
		}
	}
	for _, d := range doc.goals {
		if err := use(d.line, d.atom); err != nil {
			return s, err
		}
	}
	for _, a := range doc.actions {
		for _, l := range a.eff {
			if err := use(a.line, l); err != nil {
				return s, err
			}
		}
	}
	return s, nil
}

// schema resolves parameter references. An untyped parameter takes the type
// of the first typed predicate slot it fills.
func (a actionSyntax) schema(sigs signatures, constant func(int, string) error) (core.Schema, error) {
	index := make(map[string]int, len(a.params))
	params := make([]core.Parameter, len(a.params))
	for i, p := range a.params {
		index[p.name] = i
		params[i] = core.Parameter{Name: p.name, Type: core.TypeName(p.typ)}
	}

	literals := func(atoms []atomSyntax) ([]core.Literal, error) {
		out := make([]core.Literal, len(atoms))
		for i, at := range atoms {
			terms := make([]core.Term, len(at.args))
			for j, arg := range at.args {
				k, ok := index[arg]
				if !ok {
					if err := constant(a.line, arg); err != nil {
						return nil, err
					}
					terms[j] = core.Const(arg)
					continue
				}
				terms[j] = core.Param(k)
				if params[k].Type == "" {
					if t := sigs.slot(at.pred, j); t != core.AnyType {
						params[k].Type = t
					}
				}
			}
			out[i] = core.Literal{Atom: core.Atom{Predicate: at.pred, Args: terms}, Negated: at.neg}
		}
		return out, nil
	}

	pre, err := literals(a.pre)
	if err != nil {
		return core.Schema{}, err
	}
	eff, err := literals(a.eff)
	if err != nil {
		return core.Schema{}, err
	}
	return core.Schema{
		Name:      a.name,
		Params:    params,
		Pre:       pre,
		Eff:       eff,
		Cost:      a.cost,
		Symmetric: a.symmetric,
	}, nil
}

// group resolves an exclusivity group. Names that are not objects become
// group parameters in order of first use.
func (g groupSyntax) group(sigs signatures, objects map[string]bool) core.ExclusiveGroup {
	var out core.ExclusiveGroup
	index := make(map[string]int)
	for _, at := range g.atoms {
		terms := make([]core.Term, len(at.args))
		for j, arg := range at.args {
			switch {
			case arg == "*":
				terms[j] = core.Wildcard()
			case objects[arg]:
				terms[j] = core.Const(arg)
			default:
				k, ok := index[arg]
				if !ok {
					k = len(out.Params)
					index[arg] = k
					out.Params = append(out.Params, core.Parameter{Name: arg})
				}
				if out.Params[k].Type == "" {
					if t := sigs.slot(at.pred, j); t != core.AnyType {
						out.Params[k].Type = t
					}
				}
				terms[j] = core.Param(k)
			}
		}
		out.Atoms = append(out.Atoms, core.Atom{Predicate: at.pred, Args: terms})
	}
	return out
}
