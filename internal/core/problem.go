package core

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// Domain holds the typed objects, predicates, action schemas and
// exclusivity groups of a problem. It is immutable once built; slices
// returned by accessors must not be modified.
type Domain struct {
	types      []TypeName
	objects    []*Object
	predicates []*Predicate
	schemas    []*Schema
	exclusive  []*ExclusiveGroup

	objectByName    map[string]ObjectID
	predicateByName map[string]PredicateID
	schemaByName    map[string]SchemaID
	byType          map[TypeName][]ObjectID
}

func newDomain() *Domain {
	return &Domain{
		objectByName:    make(map[string]ObjectID),
		predicateByName: make(map[string]PredicateID),
		schemaByName:    make(map[string]SchemaID),
		byType:          make(map[TypeName][]ObjectID),
	}
}

// Types returns every declared type, sorted, excluding AnyType.
func (d *Domain) Types() []TypeName { return d.types }

// Objects returns all objects in declaration order.
func (d *Domain) Objects() []*Object { return d.objects }

// Object returns the object with the given id.
func (d *Domain) Object(id ObjectID) *Object { return d.objects[id] }

// ObjectByName finds an object.
func (d *Domain) ObjectByName(name string) (*Object, bool) {
	id, ok := d.objectByName[name]
	if !ok {
		return nil, false
	}
	return d.objects[id], true
}

// Predicates returns all predicates in declaration order.
func (d *Domain) Predicates() []*Predicate { return d.predicates }

// Predicate returns the predicate with the given id.
func (d *Domain) Predicate(id PredicateID) *Predicate { return d.predicates[id] }

// PredicateByName finds a predicate.
func (d *Domain) PredicateByName(name string) (*Predicate, bool) {
	id, ok := d.predicateByName[name]
	if !ok {
		return nil, false
	}
	return d.predicates[id], true
}

// PredicatesWithArity returns the predicates taking exactly n arguments.
func (d *Domain) PredicatesWithArity(n int) []*Predicate {
	var out []*Predicate
	for _, p := range d.predicates {
		if p.Arity() == n {
			out = append(out, p)
		}
	}
	return out
}

// Schemas returns all action schemas in declaration order.
func (d *Domain) Schemas() []*Schema { return d.schemas }

// SchemaByName finds a schema.
func (d *Domain) SchemaByName(name string) (*Schema, bool) {
	id, ok := d.schemaByName[name]
	if !ok {
		return nil, false
	}
	return d.schemas[id], true
}

// Exclusive returns the declared exclusivity groups.
func (d *Domain) Exclusive() []*ExclusiveGroup { return d.exclusive }

// ObjectsOfType returns the ids of all objects of type t, in id order.
func (d *Domain) ObjectsOfType(t TypeName) []ObjectID {
	if t == AnyType {
		ids := make([]ObjectID, len(d.objects))
		for i := range ids {
			ids[i] = ObjectID(i)
		}
		return ids
	}
	return d.byType[t]
}

// Candidates returns the typed candidate list for each parameter slot.
func (d *Domain) Candidates(params []Parameter) [][]ObjectID {
	out := make([][]ObjectID, len(params))
	for i, p := range params {
		out[i] = d.ObjectsOfType(p.Type)
	}
	return out
}

// Bindings calls fn for every well-typed binding of params, in lexicographic
// order of candidate positions. The slice passed to fn is reused between calls.
// With symmetric set, only bindings whose object ids are non-decreasing are
// produced. Enumeration stops early when fn returns false.
func (d *Domain) Bindings(params []Parameter, symmetric bool, fn func(binding []ObjectID) bool) {
	cands := d.Candidates(params)
	for _, c := range cands {
		if len(c) == 0 {
			return
		}
	}

	pos := make([]int, len(params))
	binding := make([]ObjectID, len(params))
	for {
		ok := true
		for i := range pos {
			binding[i] = cands[i][pos[i]]
			if symmetric && i > 0 && binding[i] < binding[i-1] {
				ok = false
			}
		}
		if ok && !fn(binding) {
			return
		}

		// Odometer increment, last slot fastest.
		i := len(pos) - 1
		for ; i >= 0; i-- {
			pos[i]++
			if pos[i] < len(cands[i]) {
				break
			}
			pos[i] = 0
		}
		if i < 0 {
			return
		}
	}
}

// BindingCount returns the size of the typed Cartesian product for params,
// before symmetric deduplication.
func (d *Domain) BindingCount(params []Parameter) int {
	n := 1
	for _, p := range params {
		n *= len(d.ObjectsOfType(p.Type))
	}
	return n
}

// Problem is a bounded-horizon planning problem. It is constructed once by
// a Builder and read-only thereafter.
type Problem struct {
	Name    string
	Domain  *Domain
	Init    []Fact
	Goal    []GoalLiteral
	Horizon int

	// AllowIdle permits time steps in which no action executes.
	AllowIdle bool
	// Minimize declares an objective: minimize total action cost.
	Minimize bool
}

// Builder assembles a Problem. Errors are collected and reported by Build.
type Builder struct {
	name      string
	d         *Domain
	init      []Fact
	goal      []GoalLiteral
	horizon   int
	allowIdle bool
	minimize  bool
	errs      []error
}

// NewBuilder starts a problem. Idle steps are allowed by default.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, d: newDomain(), allowIdle: true}
}

// Object declares an object, or adds types to an already declared one.
func (b *Builder) Object(name string, types ...TypeName) *Builder {
	if name == "" {
		b.errs = append(b.errs, Domainf(ErrInvalidDomain, "empty object name"))
		return b
	}
	id, ok := b.d.objectByName[name]
	if !ok {
		id = ObjectID(len(b.d.objects))
		b.d.objects = append(b.d.objects, &Object{ID: id, Name: name})
		b.d.objectByName[name] = id
	}
	obj := b.d.objects[id]
	for _, t := range types {
		if t == "" || t == AnyType || obj.HasType(t) {
			continue
		}
		obj.Types = append(obj.Types, t)
		ids := b.d.byType[t]
		i, _ := slices.BinarySearch(ids, id)
		b.d.byType[t] = slices.Insert(ids, i, id)
	}
	return b
}

// Predicate declares a predicate. Redeclaring with the same signature is a no-op.
func (b *Builder) Predicate(name string, params ...TypeName) *Builder {
	if existing, ok := b.d.PredicateByName(name); ok {
		if !sameSignature(existing.Params, params) {
			b.errs = append(b.errs, Domainf(ErrInvalidDomain,
				"predicate %s redeclared with a different signature", name))
		}
		return b
	}
	sig := make([]TypeName, len(params))
	for i, t := range params {
		if t == "" {
			t = AnyType
		}
		sig[i] = t
	}
	id := PredicateID(len(b.d.predicates))
	b.d.predicates = append(b.d.predicates, &Predicate{ID: id, Name: name, Params: sig})
	b.d.predicateByName[name] = id
	return b
}

// Action declares an action schema. Cost is taken as given; zero-cost
// actions are allowed. Callers wanting the usual unit cost set DefaultCost.
func (b *Builder) Action(s Schema) *Builder {
	if _, dup := b.d.schemaByName[s.Name]; dup {
		b.errs = append(b.errs, Domainf(ErrInvalidDomain, "action %s declared twice", s.Name))
		return b
	}
	if s.Cost < 0 {
		b.errs = append(b.errs, Domainf(ErrInvalidDomain, "action %s has negative cost %d", s.Name, s.Cost))
		return b
	}
	seen := make(map[string]bool, len(s.Params))
	params := make([]Parameter, len(s.Params))
	for i, p := range s.Params {
		if seen[p.Name] {
			b.errs = append(b.errs, Domainf(ErrInvalidDomain, "action %s repeats parameter %s", s.Name, p.Name))
			return b
		}
		seen[p.Name] = true
		if p.Type == "" {
			p.Type = AnyType
		}
		params[i] = p
	}
	for _, lits := range [][]Literal{s.Pre, s.Eff} {
		for _, l := range lits {
			if err := checkTerms(l.Atom, len(params), false); err != nil {
				b.errs = append(b.errs, Domainf(ErrInvalidDomain, "action %s: %v", s.Name, err))
				return b
			}
		}
	}

	schema := s
	schema.ID = SchemaID(len(b.d.schemas))
	schema.Params = params
	schema.Pre = append([]Literal(nil), s.Pre...)
	schema.Eff = append([]Literal(nil), s.Eff...)
	b.d.schemas = append(b.d.schemas, &schema)
	b.d.schemaByName[schema.Name] = schema.ID
	return b
}

// Exclusive declares an exclusivity group.
func (b *Builder) Exclusive(g ExclusiveGroup) *Builder {
	if len(g.Atoms) == 0 {
		b.errs = append(b.errs, Domainf(ErrInvalidDomain, "empty exclusivity group"))
		return b
	}
	for _, a := range g.Atoms {
		if err := checkTerms(a, len(g.Params), true); err != nil {
			b.errs = append(b.errs, Domainf(ErrInvalidDomain, "exclusivity group: %v", err))
			return b
		}
	}
	params := make([]Parameter, len(g.Params))
	for i, p := range g.Params {
		if p.Type == "" {
			p.Type = AnyType
		}
		params[i] = p
	}
	b.d.exclusive = append(b.d.exclusive, &ExclusiveGroup{
		Params: params,
		Atoms:  append([]Atom(nil), g.Atoms...),
	})
	return b
}

// Init adds facts to the initial state.
func (b *Builder) Init(facts ...Fact) *Builder {
	b.init = append(b.init, facts...)
	return b
}

// Goal adds goal literals.
func (b *Builder) Goal(lits ...GoalLiteral) *Builder {
	b.goal = append(b.goal, lits...)
	return b
}

// Horizon sets the maximum number of action steps.
func (b *Builder) Horizon(t int) *Builder {
	b.horizon = t
	return b
}

// AllowIdle sets whether steps without an action are permitted.
func (b *Builder) AllowIdle(allow bool) *Builder {
	b.allowIdle = allow
	return b
}

// Minimize declares a cost-minimization objective.
func (b *Builder) Minimize(minimize bool) *Builder {
	b.minimize = minimize
	return b
}

// Build validates structure and returns the immutable problem. Predicate,
// object and type references inside formulas are resolved later by the
// grounder, which reports TypeMismatch and UnknownPredicate.
func (b *Builder) Build() (*Problem, error) {
	if b.horizon < 0 {
		b.errs = append(b.errs, Domainf(ErrInvalidDomain, "negative horizon %d", b.horizon))
	}
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}

	types := make(map[TypeName]bool)
	for t := range b.d.byType {
		types[t] = true
	}
	for _, p := range b.d.predicates {
		for _, t := range p.Params {
			types[t] = true
		}
	}
	for _, s := range b.d.schemas {
		for _, p := range s.Params {
			types[p.Type] = true
		}
	}
	delete(types, AnyType)
	for t := range types {
		b.d.types = append(b.d.types, t)
	}
	sort.Slice(b.d.types, func(i, j int) bool { return b.d.types[i] < b.d.types[j] })

	return &Problem{
		Name:      b.name,
		Domain:    b.d,
		Init:      b.init,
		Goal:      b.goal,
		Horizon:   b.horizon,
		AllowIdle: b.allowIdle,
		Minimize:  b.minimize,
	}, nil
}

func checkTerms(a Atom, nparams int, wildcards bool) error {
	for _, t := range a.Args {
		switch t.Kind {
		case TermParam:
			if t.Param < 0 || t.Param >= nparams {
				return fmt.Errorf("%s references parameter %d of %d", a.Predicate, t.Param, nparams)
			}
		case TermWildcard:
			if !wildcards {
				return fmt.Errorf("%s uses a wildcard outside an exclusivity group", a.Predicate)
			}
		}
	}
	return nil
}

func sameSignature(a, b []TypeName) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x == "" {
			x = AnyType
		}
		if y == "" {
			y = AnyType
		}
		if x != y {
			return false
		}
	}
	return true
}
