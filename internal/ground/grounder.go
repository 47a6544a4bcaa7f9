package ground

import (
	"context"
	"runtime"
	"slices"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/planilp/internal/core"
)

// Options configures grounding.
type Options struct {
	// Workers bounds parallel enumeration. Zero means GOMAXPROCS.
	Workers int
	// PruneStatic drops ground actions that can never fire: those whose
	// precondition contradicts itself or requires a static fact to have a
	// value it does not have initially.
	PruneStatic bool
	// MaxFacts and MaxActions bound the universe; zero means unbounded.
	MaxFacts   int
	MaxActions int
	Logger     *zap.Logger
}

// Ground resolves every reference in the problem and then enumerates the
// proposition universe and the ground actions. Resolution errors are
// reported before anything is enumerated. Ids are assigned in declaration
// order, so the result does not depend on Workers.
func Ground(ctx context.Context, p *core.Problem, opts Options) (*Universe, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	d := p.Domain

	schemas, err := resolveSchemas(d)
	if err != nil {
		return nil, err
	}
	groups, err := resolveGroups(d)
	if err != nil {
		return nil, err
	}
	if err := resolveFacts(d, p); err != nil {
		return nil, err
	}

	u := &Universe{Problem: p}
	total := u.layoutFacts()
	bound := 0
	for _, s := range d.Schemas() {
		bound += d.BindingCount(s.Params)
	}
	if opts.MaxFacts > 0 && total > opts.MaxFacts {
		return nil, &core.OverflowError{What: "facts", Facts: total, Actions: bound, Limit: opts.MaxFacts}
	}
	if opts.MaxActions > 0 && bound > opts.MaxActions {
		return nil, &core.OverflowError{What: "actions", Facts: total, Actions: bound, Limit: opts.MaxActions}
	}

	u.Facts = make([]*Fact, total)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range d.Predicates() {
		g.Go(func() error {
			u.enumerateFacts(core.PredicateID(i))
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u.Init = NewState(total)
	for _, f := range p.Init {
		id, err := resolveFact(d, u, f)
		if err != nil {
			return nil, err
		}
		u.Init.Set(id)
	}
	for _, gl := range p.Goal {
		id, err := resolveFact(d, u, gl.Fact)
		if err != nil {
			return nil, err
		}
		if gl.Negated {
			u.Goal.Neg = append(u.Goal.Neg, id)
		} else {
			u.Goal.Pos = append(u.Goal.Pos, id)
		}
	}
	u.Goal.Pos = sortUnique(u.Goal.Pos)
	u.Goal.Neg = sortUnique(u.Goal.Neg)

	u.Static = make([]bool, len(d.Predicates()))
	for i := range u.Static {
		u.Static[i] = true
	}
	for _, rs := range schemas {
		for _, l := range rs.eff {
			u.Static[l.pred] = false
		}
	}

	perSchema := make([][]*Action, len(schemas))
	keys := make([][]int, len(schemas))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range schemas {
		g.Go(func() error {
			acts, ks, err := u.instantiate(gctx, &schemas[i], opts.PruneStatic)
			if err != nil {
				return err
			}
			perSchema[i], keys[i] = acts, ks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	u.collectActions(perSchema, keys)

	if u.Mutex, err = buildMutex(ctx, u, workers); err != nil {
		return nil, err
	}
	u.Exclusive = u.expandGroups(groups)
	if err := u.CheckInvariant(u.Init); err != nil {
		return nil, err
	}

	log.Debug("grounded problem",
		zap.String("problem", p.Name),
		zap.Int("facts", len(u.Facts)),
		zap.Int("actions", len(u.Actions)),
		zap.Int("pruned", bound-len(u.Actions)),
		zap.Int("mutex_pairs", u.Mutex.Len()),
		zap.Int("exclusive_groups", len(u.Exclusive)))
	return u, nil
}

// layoutFacts assigns each predicate its contiguous id range and returns
// the universe size.
func (u *Universe) layoutFacts() int {
	d := u.Problem.Domain
	nobj := len(d.Objects())
	u.preds = make([]predicateIndex, len(d.Predicates()))
	total := 0
	for i, pred := range d.Predicates() {
		pi := predicateIndex{
			base:  total,
			size:  1,
			cands: make([][]core.ObjectID, pred.Arity()),
			pos:   make([][]int, pred.Arity()),
		}
		for s, t := range pred.Params {
			c := d.ObjectsOfType(t)
			pos := make([]int, nobj)
			for j := range pos {
				pos[j] = -1
			}
			for j, o := range c {
				pos[o] = j
			}
			pi.cands[s], pi.pos[s] = c, pos
			pi.size *= len(c)
		}
		u.preds[i] = pi
		total += pi.size
	}
	return total
}

func (u *Universe) enumerateFacts(pid core.PredicateID) {
	d := u.Problem.Domain
	pred := d.Predicate(pid)
	params := make([]core.Parameter, pred.Arity())
	for i, t := range pred.Params {
		params[i] = core.Parameter{Type: t}
	}
	id := u.preds[pid].base
	d.Bindings(params, false, func(b []core.ObjectID) bool {
		args := slices.Clone(b)
		u.Facts[id] = &Fact{
			ID:        FactID(id),
			Predicate: pred,
			Args:      args,
			name:      formatGround(pred.Name, d, args),
		}
		id++
		return true
	})
}

func (u *Universe) instantiate(ctx context.Context, rs *resolvedSchema, prune bool) ([]*Action, []int, error) {
	d := u.Problem.Domain
	s := rs.schema
	cands := d.Candidates(s.Params)

	var (
		out  []*Action
		keys []int
		err  error
		n    int
	)
	d.Bindings(s.Params, s.Symmetric, func(b []core.ObjectID) bool {
		n++
		if n&1023 == 0 {
			if err = ctx.Err(); err != nil {
				return false
			}
		}
		a := &Action{Schema: s, Args: slices.Clone(b), Cost: s.Cost}
		for _, l := range rs.pre {
			var f FactID
			if f, err = u.bind(l.resolvedAtom, a.Args, s); err != nil {
				return false
			}
			if l.negated {
				a.PreNeg = append(a.PreNeg, f)
			} else {
				a.Pre = append(a.Pre, f)
			}
		}
		for _, l := range rs.eff {
			var f FactID
			if f, err = u.bind(l.resolvedAtom, a.Args, s); err != nil {
				return false
			}
			if l.negated {
				a.Del = append(a.Del, f)
			} else {
				a.Add = append(a.Add, f)
			}
		}
		a.Pre, a.PreNeg = sortUnique(a.Pre), sortUnique(a.PreNeg)
		a.Add, a.Del = sortUnique(a.Add), sortUnique(a.Del)
		if prune && u.neverFires(a) {
			return true
		}
		a.name = formatGround(s.Name, d, a.Args)
		out = append(out, a)
		keys = append(keys, mixedRadix(cands, a.Args))
		return true
	})
	return out, keys, err
}

// bind substitutes a binding into a resolved atom.
func (u *Universe) bind(ra resolvedAtom, binding []core.ObjectID, s *core.Schema) (FactID, error) {
	args := make([]core.ObjectID, len(ra.args))
	for i, ref := range ra.args {
		if ref.param >= 0 {
			args[i] = binding[ref.param]
		} else {
			args[i] = ref.object
		}
	}
	pi := &u.preds[ra.pred]
	off, bad := pi.offset(args)
	if bad >= 0 {
		d := u.Problem.Domain
		pred := d.Predicate(ra.pred)
		return 0, core.Domainf(core.ErrTypeMismatch, "%s: %s expects %s at position %d, got %s",
			formatGround(s.Name, d, binding), pred.Name, pred.Params[bad], bad+1, d.Object(args[bad]).Name)
	}
	return FactID(pi.base + off), nil
}

func (u *Universe) neverFires(a *Action) bool {
	for _, f := range a.Pre {
		if _, ok := slices.BinarySearch(a.PreNeg, f); ok {
			return true
		}
		if u.Static[u.Facts[f].Predicate.ID] && !u.Init.Has(f) {
			return true
		}
	}
	for _, f := range a.PreNeg {
		if u.Static[u.Facts[f].Predicate.ID] && u.Init.Has(f) {
			return true
		}
	}
	return false
}

func (u *Universe) collectActions(perSchema [][]*Action, keys [][]int) {
	nf := len(u.Facts)
	u.adders = make([][]ActionID, nf)
	u.deleters = make([][]ActionID, nf)
	u.needPos = make([][]ActionID, nf)
	u.needNeg = make([][]ActionID, nf)
	u.bySchema = make([]map[int]ActionID, len(perSchema))
	for i, acts := range perSchema {
		u.bySchema[i] = make(map[int]ActionID, len(acts))
		for j, a := range acts {
			a.ID = ActionID(len(u.Actions))
			u.Actions = append(u.Actions, a)
			u.bySchema[i][keys[i][j]] = a.ID
			for _, f := range a.Add {
				u.adders[f] = append(u.adders[f], a.ID)
			}
			for _, f := range a.Del {
				u.deleters[f] = append(u.deleters[f], a.ID)
			}
			for _, f := range a.Pre {
				u.needPos[f] = append(u.needPos[f], a.ID)
			}
			for _, f := range a.PreNeg {
				u.needNeg[f] = append(u.needNeg[f], a.ID)
			}
		}
	}
}

// expandGroups instantiates exclusivity groups. Wildcards range over the
// predicate slot's type; groups matching fewer than two facts are dropped.
func (u *Universe) expandGroups(groups []resolvedGroup) [][]FactID {
	d := u.Problem.Domain
	var out [][]FactID
	for _, rg := range groups {
		d.Bindings(rg.group.Params, false, func(b []core.ObjectID) bool {
			var facts []FactID
			for _, ra := range rg.atoms {
				facts = u.matchAtom(ra, b, facts)
			}
			facts = sortUnique(facts)
			if len(facts) >= 2 {
				out = append(out, facts)
			}
			return true
		})
	}
	return out
}

func (u *Universe) matchAtom(ra resolvedAtom, binding []core.ObjectID, dst []FactID) []FactID {
	pi := &u.preds[ra.pred]
	args := make([]core.ObjectID, len(ra.args))
	var wild []int
	for i, ref := range ra.args {
		switch {
		case ref.wildcard:
			wild = append(wild, i)
		case ref.param >= 0:
			args[i] = binding[ref.param]
		default:
			args[i] = ref.object
		}
	}
	for _, i := range wild {
		if len(pi.cands[i]) == 0 {
			return dst
		}
	}
	pos := make([]int, len(wild))
	for {
		for k, i := range wild {
			args[i] = pi.cands[i][pos[k]]
		}
		if off, bad := pi.offset(args); bad < 0 {
			dst = append(dst, FactID(pi.base+off))
		}
		k := len(wild) - 1
		for ; k >= 0; k-- {
			pos[k]++
			if pos[k] < len(pi.cands[wild[k]]) {
				break
			}
			pos[k] = 0
		}
		if k < 0 {
			return dst
		}
	}
}

func mixedRadix(cands [][]core.ObjectID, args []core.ObjectID) int {
	key := 0
	for i, o := range args {
		p, _ := slices.BinarySearch(cands[i], o)
		key = key*len(cands[i]) + p
	}
	return key
}

func sortUnique[T ~int](xs []T) []T {
	slices.Sort(xs)
	return slices.Compact(xs)
}
