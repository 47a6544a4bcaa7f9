package core

import "testing"

func TestHasType(t *testing.T) {
	obj := &Object{Name: "L1", Types: []TypeName{"Location", "Depot"}}
	tests := []struct {
		typ  TypeName
		want bool
	}{
		{"Location", true},
		{"Depot", true},
		{"Bag", false},
		{AnyType, true},
	}

	for _, tt := range tests {
		if got := obj.HasType(tt.typ); got != tt.want {
			t.Errorf("HasType(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestFormatAtom(t *testing.T) {
	s := &Schema{Params: []Parameter{{Name: "x"}, {Name: "y"}}}
	tests := []struct {
		atom Atom
		want string
	}{
		{Atom{Predicate: "Road", Args: []Term{Param(0), Param(1)}}, "Road(x,y)"},
		{Atom{Predicate: "At", Args: []Term{Const("L1")}}, "At(L1)"},
		{Atom{Predicate: "At", Args: []Term{Wildcard()}}, "At(*)"},
		{Atom{Predicate: "At", Args: []Term{Param(5)}}, "At($5)"},
		{Atom{Predicate: "Armed"}, "Armed()"},
	}

	for _, tt := range tests {
		if got := s.FormatAtom(tt.atom); got != tt.want {
			t.Errorf("FormatAtom = %q, want %q", got, tt.want)
		}
	}
}

func TestFactStrings(t *testing.T) {
	f := NewFact("Road", "L1", "L2")
	if got := f.String(); got != "Road(L1,L2)" {
		t.Errorf("Fact.String() = %q", got)
	}
	if got := (GoalLiteral{Fact: NewFact("Full", "B1"), Negated: true}).String(); got != "~Full(B1)" {
		t.Errorf("GoalLiteral.String() = %q", got)
	}
	p := &Predicate{Name: "Road", Params: []TypeName{"Location", "Location"}}
	if got := p.String(); got != "Road(Location,Location)" || p.Arity() != 2 {
		t.Errorf("Predicate.String() = %q, arity %d", got, p.Arity())
	}
}
