package ground

import (
	"errors"
	"fmt"

	"github.com/elektrokombinacija/planilp/internal/core"
)

// argRef is a resolved term: a parameter index, a constant object or a
// wildcard over the predicate slot's type.
type argRef struct {
	param    int // -1 unless bound to a parameter
	object   core.ObjectID
	wildcard bool
}

type resolvedAtom struct {
	pred core.PredicateID
	args []argRef
}

type resolvedLiteral struct {
	resolvedAtom
	negated bool
}

type resolvedSchema struct {
	schema *core.Schema
	pre    []resolvedLiteral
	eff    []resolvedLiteral
}

type resolvedGroup struct {
	group *core.ExclusiveGroup
	atoms []resolvedAtom
}

// resolveAtom checks that the predicate exists, that arity matches and that
// constant arguments name declared objects of the right type. Parameters
// whose declared type is narrower than the slot are checked per binding.
func resolveAtom(d *core.Domain, a core.Atom, params []core.Parameter, where string) (resolvedAtom, error) {
	pred, ok := d.PredicateByName(a.Predicate)
	if !ok {
		return resolvedAtom{}, core.Domainf(core.ErrUnknownPredicate, "%s in %s", a.Predicate, where)
	}
	if len(a.Args) != pred.Arity() {
		return resolvedAtom{}, core.Domainf(core.ErrTypeMismatch,
			"%s in %s: %s takes %d arguments, got %d", a.Predicate, where, pred, pred.Arity(), len(a.Args))
	}
	out := resolvedAtom{pred: pred.ID, args: make([]argRef, len(a.Args))}
	for i, t := range a.Args {
		slot := pred.Params[i]
		switch t.Kind {
		case core.TermParam:
			if t.Param < 0 || t.Param >= len(params) {
				return resolvedAtom{}, core.Domainf(core.ErrInvalidDomain,
					"%s in %s references parameter %d", a.Predicate, where, t.Param)
			}
			out.args[i] = argRef{param: t.Param}
		case core.TermObject:
			obj, ok := d.ObjectByName(t.Object)
			if !ok {
				return resolvedAtom{}, core.Domainf(core.ErrUnknownObject, "%s in %s", t.Object, where)
			}
			if !obj.HasType(slot) {
				return resolvedAtom{}, core.Domainf(core.ErrTypeMismatch,
					"%s in %s: %s is not a %s", a.Predicate, where, obj.Name, slot)
			}
			out.args[i] = argRef{param: -1, object: obj.ID}
		case core.TermWildcard:
			out.args[i] = argRef{param: -1, wildcard: true}
		}
	}
	return out, nil
}

func resolveSchemas(d *core.Domain) ([]resolvedSchema, error) {
	out := make([]resolvedSchema, len(d.Schemas()))
	for i, s := range d.Schemas() {
		rs := resolvedSchema{schema: s}
		for _, part := range []struct {
			lits []core.Literal
			dst  *[]resolvedLiteral
			name string
		}{{s.Pre, &rs.pre, "precondition"}, {s.Eff, &rs.eff, "effect"}} {
			for _, l := range part.lits {
				where := fmt.Sprintf("%s of action %s", part.name, s.Name)
				ra, err := resolveAtom(d, l.Atom, s.Params, where)
				if err != nil {
					return nil, err
				}
				*part.dst = append(*part.dst, resolvedLiteral{resolvedAtom: ra, negated: l.Negated})
			}
		}
		out[i] = rs
	}
	return out, nil
}

func resolveGroups(d *core.Domain) ([]resolvedGroup, error) {
	out := make([]resolvedGroup, len(d.Exclusive()))
	for i, g := range d.Exclusive() {
		rg := resolvedGroup{group: g}
		for _, a := range g.Atoms {
			ra, err := resolveAtom(d, a, g.Params, "exclusivity group")
			if err != nil {
				return nil, err
			}
			rg.atoms = append(rg.atoms, ra)
		}
		out[i] = rg
	}
	return out, nil
}

// resolveFact maps a named fact to its id. u may be nil during the resolve
// phase, in which case only validity is checked.
func resolveFact(d *core.Domain, u *Universe, f core.Fact) (FactID, error) {
	pred, ok := d.PredicateByName(f.Predicate)
	if !ok {
		return 0, core.Domainf(core.ErrUnknownPredicate, "%s", f)
	}
	if len(f.Args) != pred.Arity() {
		return 0, core.Domainf(core.ErrTypeMismatch, "%s: %s takes %d arguments", f, pred.Name, pred.Arity())
	}
	args := make([]core.ObjectID, len(f.Args))
	for i, name := range f.Args {
		obj, ok := d.ObjectByName(name)
		if !ok {
			return 0, core.Domainf(core.ErrUnknownObject, "%s in %s", name, f)
		}
		if !obj.HasType(pred.Params[i]) {
			return 0, core.Domainf(core.ErrTypeMismatch, "%s: %s is not a %s", f, name, pred.Params[i])
		}
		args[i] = obj.ID
	}
	if u == nil {
		return 0, nil
	}
	id, ok := u.Lookup(pred.ID, args)
	if !ok {
		return 0, core.Domainf(core.ErrTypeMismatch, "%s", f)
	}
	return id, nil
}

func resolveFacts(d *core.Domain, p *core.Problem) error {
	var errs []error
	for _, f := range p.Init {
		if _, err := resolveFact(d, nil, f); err != nil {
			errs = append(errs, fmt.Errorf("initial state: %w", err))
		}
	}
	for _, g := range p.Goal {
		if _, err := resolveFact(d, nil, g.Fact); err != nil {
			errs = append(errs, fmt.Errorf("goal: %w", err))
		}
	}
	return errors.Join(errs...)
}
