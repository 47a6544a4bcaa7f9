// Package ground instantiates a planning problem into a finite arena of
// ground facts and ground actions addressed by dense integer ids.
package ground

import (
	"fmt"
	"slices"
	"strings"

	"github.com/elektrokombinacija/planilp/internal/core"
)

// FactID is a dense ground-fact identifier.
type FactID int

// ActionID is a dense ground-action identifier.
type ActionID int

// Fact is a predicate applied to objects of matching type.
type Fact struct {
	ID        FactID
	Predicate *core.Predicate
	Args      []core.ObjectID
	name      string
}

func (f *Fact) String() string { return f.name }

// Action is a schema with its parameters bound. Its fact sets are computed
// once at grounding time and are sorted and duplicate-free.
type Action struct {
	ID     ActionID
	Schema *core.Schema
	Args   []core.ObjectID
	Pre    []FactID // must hold
	PreNeg []FactID // must not hold
	Add    []FactID
	Del    []FactID
	Cost   int
	name   string
}

func (a *Action) String() string { return a.name }

// Goal splits the goal formula into required and forbidden facts.
type Goal struct {
	Pos []FactID
	Neg []FactID
}

// predicateIndex maps argument tuples of one predicate to a contiguous id
// range by mixed-radix arithmetic over the typed candidate lists.
type predicateIndex struct {
	base  int
	size  int
	cands [][]core.ObjectID
	pos   [][]int // pos[slot][object] is the object's position in cands[slot], or -1
}

func (pi *predicateIndex) offset(args []core.ObjectID) (int, int) {
	idx := 0
	for i, o := range args {
		if int(o) < 0 || int(o) >= len(pi.pos[i]) {
			return 0, i
		}
		p := pi.pos[i][o]
		if p < 0 {
			return 0, i
		}
		idx = idx*len(pi.cands[i]) + p
	}
	return idx, -1
}

// Universe is the grounded problem: the proposition universe, the ground
// actions, the initial state, the goal, exclusivity groups and the mutex
// relation. It is immutable and safe for concurrent readers.
type Universe struct {
	Problem   *core.Problem
	Facts     []*Fact
	Actions   []*Action
	Init      State
	Goal      Goal
	Exclusive [][]FactID
	Mutex     *MutexSet
	// Static marks predicates that no action adds or deletes.
	Static []bool

	preds    []predicateIndex
	adders   [][]ActionID
	deleters [][]ActionID
	needPos  [][]ActionID
	needNeg  [][]ActionID
	bySchema []map[int]ActionID
}

// NumFacts returns the size of the proposition universe.
func (u *Universe) NumFacts() int { return len(u.Facts) }

// NumActions returns the number of ground actions.
func (u *Universe) NumActions() int { return len(u.Actions) }

// Lookup returns the fact id for a predicate applied to args. The second
// result is false if an argument is not of the slot's type.
func (u *Universe) Lookup(pred core.PredicateID, args []core.ObjectID) (FactID, bool) {
	pi := &u.preds[pred]
	if len(args) != len(pi.cands) {
		return 0, false
	}
	off, bad := pi.offset(args)
	if bad >= 0 {
		return 0, false
	}
	return FactID(pi.base + off), true
}

// LookupFact resolves a named fact.
func (u *Universe) LookupFact(f core.Fact) (FactID, error) {
	return resolveFact(u.Problem.Domain, u, f)
}

// ActionFor returns the ground action of a schema bound to args, if it
// survived grounding.
func (u *Universe) ActionFor(schema core.SchemaID, args []core.ObjectID) (*Action, bool) {
	s := u.Problem.Domain.Schemas()[schema]
	key, ok := bindingKey(u.Problem.Domain, s, args)
	if !ok {
		return nil, false
	}
	id, ok := u.bySchema[schema][key]
	if !ok {
		return nil, false
	}
	return u.Actions[id], true
}

// ActionByName resolves "Go" with argument names ["L1","L2"].
func (u *Universe) ActionByName(schema string, args []string) (*Action, error) {
	d := u.Problem.Domain
	s, ok := d.SchemaByName(schema)
	if !ok {
		return nil, core.Domainf(core.ErrInvalidDomain, "unknown action %s", schema)
	}
	if len(args) != len(s.Params) {
		return nil, core.Domainf(core.ErrTypeMismatch, "%s takes %d arguments, got %d", schema, len(s.Params), len(args))
	}
	ids := make([]core.ObjectID, len(args))
	for i, name := range args {
		obj, ok := d.ObjectByName(name)
		if !ok {
			return nil, core.Domainf(core.ErrUnknownObject, "%s in %s", name, schema)
		}
		if !obj.HasType(s.Params[i].Type) {
			return nil, core.Domainf(core.ErrTypeMismatch, "%s: %s is not a %s", schema, name, s.Params[i].Type)
		}
		ids[i] = obj.ID
	}
	if s.Symmetric {
		slices.Sort(ids)
	}
	a, ok := u.ActionFor(s.ID, ids)
	if !ok {
		return nil, core.Domainf(core.ErrInvalidDomain, "%s(%s) is not a ground action of this problem",
			schema, strings.Join(args, ","))
	}
	return a, nil
}

// Adders returns the actions that add f.
func (u *Universe) Adders(f FactID) []ActionID { return u.adders[f] }

// Deleters returns the actions that delete f.
func (u *Universe) Deleters(f FactID) []ActionID { return u.deleters[f] }

func bindingKey(d *core.Domain, s *core.Schema, args []core.ObjectID) (int, bool) {
	if len(args) != len(s.Params) {
		return 0, false
	}
	cands := d.Candidates(s.Params)
	for i, o := range args {
		if _, ok := slices.BinarySearch(cands[i], o); !ok {
			return 0, false
		}
	}
	return mixedRadix(cands, args), true
}

func formatGround(name string, d *core.Domain, args []core.ObjectID) string {
	parts := make([]string, len(args))
	for i, o := range args {
		parts[i] = d.Object(o).Name
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ","))
}
