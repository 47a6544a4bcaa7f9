package planner

import (
	"fmt"

	"github.com/elektrokombinacija/planilp/internal/ground"
)

// shortestPlan is a breadth-first search over states: the length of the
// shortest serial plan, or false if the goal is unreachable.
func shortestPlan(u *ground.Universe, limit int) (int, bool) {
	type node struct {
		s     ground.State
		depth int
	}
	key := func(s ground.State) string { return fmt.Sprint(s.Facts()) }

	seen := map[string]bool{key(u.Init): true}
	queue := []node{{s: u.Init}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if u.Satisfies(n.s) {
			return n.depth, true
		}
		if n.depth == limit {
			continue
		}
		for _, a := range u.Actions {
			if !u.Applicable(a, n.s) {
				continue
			}
			next := u.Apply(a, n.s)
			if u.CheckInvariant(next) != nil {
				continue
			}
			if k := key(next); !seen[k] {
				seen[k] = true
				queue = append(queue, node{s: next, depth: n.depth + 1})
			}
		}
	}
	return 0, false
}
