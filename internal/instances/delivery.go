// Package instances builds parameterized delivery problems: an agent on a
// road network carries bags from a warehouse to every other location and
// returns home.
package instances

import (
	"fmt"
	"math/rand"

	"github.com/elektrokombinacija/planilp/internal/core"
)

// DeliveryParams defines a delivery problem.
type DeliveryParams struct {
	Name      string `json:"name"`
	Seed      int64  `json:"seed"`
	Locations int    `json:"locations"` // L1..Ln on a ring, warehouse at L1
	Bags      int    `json:"bags"`
	Chords    int    `json:"chords"` // extra random roads across the ring
	Horizon   int    `json:"horizon"`
	Minimize  bool   `json:"minimize"`
	NoIdle    bool   `json:"no_idle,omitempty"`
}

// Sample is the five-location, two-bag problem with horizon 20.
func Sample() DeliveryParams {
	return DeliveryParams{Name: "delivery", Locations: 5, Bags: 2, Horizon: 20}
}

// Roads returns the undirected road edges of p as location index pairs
// (0-based, i < j), ring first and then chords in generation order.
func (p DeliveryParams) Roads() [][2]int {
	n := p.Locations
	seen := make(map[[2]int]bool)
	var roads [][2]int
	add := func(i, j int) bool {
		if i == j {
			return false
		}
		if i > j {
			i, j = j, i
		}
		e := [2]int{i, j}
		if seen[e] {
			return false
		}
		seen[e] = true
		roads = append(roads, e)
		return true
	}
	if n == 2 {
		add(0, 1)
	} else if n > 2 {
		for i := 0; i < n; i++ {
			add(i, (i+1)%n)
		}
	}
	rng := rand.New(rand.NewSource(p.Seed))
	maxEdges := n * (n - 1) / 2
	for c := 0; c < p.Chords && len(roads) < maxEdges; {
		if add(rng.Intn(n), rng.Intn(n)) {
			c++
		}
	}
	return roads
}

// Location names the i-th location (0-based).
func Location(i int) string { return fmt.Sprintf("L%d", i+1) }

// Bag names the i-th bag (0-based).
func Bag(i int) string { return fmt.Sprintf("B%d", i+1) }

// Build constructs the problem.
func (p DeliveryParams) Build() (*core.Problem, error) {
	if p.Locations < 1 || p.Bags < 0 {
		return nil, core.Domainf(core.ErrInvalidDomain, "delivery needs at least one location, got %d", p.Locations)
	}
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("delivery-l%d-b%d-s%d", p.Locations, p.Bags, p.Seed)
	}
	const (
		loc core.TypeName = "Location"
		bag core.TypeName = "Bag"
	)
	b := core.NewBuilder(name).
		Horizon(p.Horizon).
		AllowIdle(!p.NoIdle).
		Minimize(p.Minimize)
	for i := 0; i < p.Locations; i++ {
		b.Object(Location(i), loc)
	}
	for i := 0; i < p.Bags; i++ {
		b.Object(Bag(i), bag)
	}
	b.Predicate("At", loc).
		Predicate("Road", loc, loc).
		Predicate("Warehouse", loc).
		Predicate("Supplied", loc).
		Predicate("Full", bag).
		Predicate("Empty", bag)

	x, y := core.Param(0), core.Param(1)
	b.Action(core.Schema{
		Name:   "Go",
		Cost:   core.DefaultCost,
		Params: []core.Parameter{{Name: "x", Type: loc}, {Name: "y", Type: loc}},
		Pre:    []core.Literal{pos("At", x), pos("Road", x, y)},
		Eff:    []core.Literal{pos("At", y), neg("At", x)},
	})
	what, where := core.Param(0), core.Param(1)
	b.Action(core.Schema{
		Name:   "Load",
		Cost:   core.DefaultCost,
		Params: []core.Parameter{{Name: "b", Type: bag}, {Name: "x", Type: loc}},
		Pre:    []core.Literal{pos("At", where), pos("Warehouse", where), pos("Empty", what)},
		Eff:    []core.Literal{pos("Full", what), neg("Empty", what)},
	})
	b.Action(core.Schema{
		Name:   "Unload",
		Cost:   core.DefaultCost,
		Params: []core.Parameter{{Name: "b", Type: bag}, {Name: "x", Type: loc}},
		Pre:    []core.Literal{pos("At", where), pos("Full", what), neg("Supplied", where)},
		Eff:    []core.Literal{pos("Supplied", where), pos("Empty", what), neg("Full", what)},
	})
	b.Exclusive(core.ExclusiveGroup{Atoms: []core.Atom{atom("At", core.Wildcard())}})
	b.Exclusive(core.ExclusiveGroup{
		Params: []core.Parameter{{Name: "b", Type: bag}},
		Atoms:  []core.Atom{atom("Full", what), atom("Empty", what)},
	})

	b.Init(core.NewFact("At", Location(0)), core.NewFact("Warehouse", Location(0)))
	for _, r := range p.Roads() {
		b.Init(core.NewFact("Road", Location(r[0]), Location(r[1])),
			core.NewFact("Road", Location(r[1]), Location(r[0])))
	}
	for i := 0; i < p.Bags; i++ {
		b.Init(core.NewFact("Empty", Bag(i)))
	}
	for i := 1; i < p.Locations; i++ {
		b.Goal(core.GoalLiteral{Fact: core.NewFact("Supplied", Location(i))})
	}
	b.Goal(core.GoalLiteral{Fact: core.NewFact("At", Location(0))})
	return b.Build()
}

func atom(pred string, args ...core.Term) core.Atom {
	return core.Atom{Predicate: pred, Args: args}
}

func pos(pred string, args ...core.Term) core.Literal {
	return core.Literal{Atom: atom(pred, args...)}
}

func neg(pred string, args ...core.Term) core.Literal {
	return core.Literal{Atom: atom(pred, args...), Negated: true}
}
