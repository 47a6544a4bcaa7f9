// Package core defines the domain model for bounded-horizon STRIPS planning.
package core

import (
	"fmt"
	"strings"
)

// TypeName names a set of objects, e.g. Location or Bag.
type TypeName string

// AnyType is the universal type. Every object belongs to it.
const AnyType TypeName = "object"

// ObjectID is a dense object identifier (index into Domain.Objects).
type ObjectID int

// Object is an atomic named entity.
type Object struct {
	ID    ObjectID
	Name  string
	Types []TypeName
}

// HasType reports whether the object belongs to t.
func (o *Object) HasType(t TypeName) bool {
	if t == AnyType {
		return true
	}
	for _, ot := range o.Types {
		if ot == t {
			return true
		}
	}
	return false
}

// PredicateID is a dense predicate identifier (index into Domain.Predicates).
type PredicateID int

// Predicate is a named relation with a typed signature.
type Predicate struct {
	ID     PredicateID
	Name   string
	Params []TypeName
}

// Arity returns the number of arguments.
func (p *Predicate) Arity() int { return len(p.Params) }

func (p *Predicate) String() string {
	parts := make([]string, len(p.Params))
	for i, t := range p.Params {
		parts[i] = string(t)
	}
	return fmt.Sprintf("%s(%s)", p.Name, strings.Join(parts, ","))
}

// TermKind tags a Term.
type TermKind int

const (
	TermParam    TermKind = iota // bound schema/group parameter
	TermObject                   // constant object
	TermWildcard                 // any well-typed object (exclusivity groups only)
)

// Term is one argument of an Atom pattern.
type Term struct {
	Kind   TermKind
	Param  int    // parameter index for TermParam
	Object string // object name for TermObject
}

// Param returns a parameter reference.
func Param(i int) Term { return Term{Kind: TermParam, Param: i} }

// Const returns a constant object reference.
func Const(name string) Term { return Term{Kind: TermObject, Object: name} }

// Wildcard returns a term matching every well-typed object.
func Wildcard() Term { return Term{Kind: TermWildcard} }

// Atom is a predicate applied to terms. Predicate references are by name and
// resolved at grounding time.
type Atom struct {
	Predicate string
	Args      []Term
}

// Literal is an atom or its negation. In a precondition a negated literal
// requires the fact to be false; in an effect it deletes the fact.
type Literal struct {
	Atom
	Negated bool
}

// Parameter is a typed schema parameter.
type Parameter struct {
	Name string
	Type TypeName
}

// SchemaID is a dense schema identifier.
type SchemaID int

// DefaultCost is the cost of an action declared without one.
const DefaultCost = 1

// Schema is a parameterized action template.
type Schema struct {
	ID        SchemaID
	Name      string
	Params    []Parameter
	Pre       []Literal
	Eff       []Literal
	Cost      int
	Symmetric bool // bindings differing only in parameter order are the same action
}

// FormatAtom renders a pattern atom using the schema's parameter names.
func (s *Schema) FormatAtom(a Atom) string {
	args := make([]string, len(a.Args))
	for i, t := range a.Args {
		switch t.Kind {
		case TermParam:
			if t.Param >= 0 && t.Param < len(s.Params) {
				args[i] = s.Params[t.Param].Name
			} else {
				args[i] = fmt.Sprintf("$%d", t.Param)
			}
		case TermObject:
			args[i] = t.Object
		default:
			args[i] = "*"
		}
	}
	return fmt.Sprintf("%s(%s)", a.Predicate, strings.Join(args, ","))
}

// ExclusiveGroup declares that, for every well-typed binding of Params, at
// most one of the facts matched by Atoms holds in any state.
type ExclusiveGroup struct {
	Params []Parameter
	Atoms  []Atom
}

// Fact is a fully ground atom given by names, used for the initial state and goal.
type Fact struct {
	Predicate string
	Args      []string
}

// NewFact builds a Fact.
func NewFact(pred string, args ...string) Fact {
	return Fact{Predicate: pred, Args: args}
}

func (f Fact) String() string {
	return fmt.Sprintf("%s(%s)", f.Predicate, strings.Join(f.Args, ","))
}

// GoalLiteral is a required (or, if Negated, forbidden) ground fact.
type GoalLiteral struct {
	Fact
	Negated bool
}

func (g GoalLiteral) String() string {
	if g.Negated {
		return "~" + g.Fact.String()
	}
	return g.Fact.String()
}
