// Package state manages the plan viewer state.
package state

import (
	"slices"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

// State holds all viewer state. The plan fields are replaced as a unit by
// SetResult; everything else is owned by the UI goroutine.
type State struct {
	Problem  *core.Problem
	Result   *planner.Result
	States   []ground.State // S_0..S_T of the replayed plan
	Playback *PlaybackState
	Solve    *SolveState

	Horizon int
	Backend string
}

// NewState creates viewer state for prob with nothing solved yet.
func NewState(prob *core.Problem, backend string, horizon int) *State {
	if horizon < 0 {
		horizon = prob.Horizon
	}
	return &State{
		Problem:  prob,
		Playback: NewPlaybackState(0),
		Solve:    NewSolveState(),
		Horizon:  horizon,
		Backend:  backend,
	}
}

// SetResult installs a planner result. A solved result is replayed so the
// viewer can show every intermediate state; infeasible results clear the
// plan.
func (s *State) SetResult(res *planner.Result) error {
	s.Result = res
	s.States = nil
	if res == nil || res.Status != planner.Solved {
		s.Playback = NewPlaybackState(0)
		return nil
	}
	states, err := res.Plan.Replay(res.Universe)
	if err != nil {
		s.Result = nil
		s.Playback = NewPlaybackState(0)
		return err
	}
	s.States = states
	s.Playback = NewPlaybackState(float64(res.Horizon))
	return nil
}

// Solved reports whether a plan is loaded.
func (s *State) Solved() bool { return len(s.States) > 0 }

// SetHorizon changes the horizon used by the next solve.
func (s *State) SetHorizon(h int) {
	if h < 0 {
		h = 0
	}
	s.Horizon = h
}

// NextBackend cycles through the solver backends.
func (s *State) NextBackend() {
	names := solver.Backends()
	i := slices.Index(names, s.Backend)
	s.Backend = names[(i+1)%len(names)]
}

// Step returns the index of the displayed state.
func (s *State) Step() int {
	if !s.Solved() {
		return 0
	}
	k := int(s.Playback.CurrentTime)
	if k >= len(s.States) {
		k = len(s.States) - 1
	}
	return k
}

// Incoming returns the actions that produced the displayed state, i.e.
// those executing at the previous step.
func (s *State) Incoming() []*ground.Action {
	k := s.Step()
	if !s.Solved() || k == 0 {
		return nil
	}
	return s.Result.Plan.At(k - 1)
}

// FactRow is one line of the fact panel.
type FactRow struct {
	Name    string
	Holds   bool
	Added   bool // made true by the incoming step
	Removed bool // made false by the incoming step
}

// Facts lists the facts holding at the displayed step plus those the
// incoming step deleted, in universe order.
func (s *State) Facts() []FactRow {
	if !s.Solved() {
		return nil
	}
	k := s.Step()
	cur := s.States[k]
	var added, removed []ground.FactID
	if k > 0 {
		added, removed = s.States[k-1].Diff(cur)
	}
	ids := append(cur.Facts(), removed...)
	slices.Sort(ids)

	facts := s.Result.Universe.Facts
	rows := make([]FactRow, len(ids))
	at := make(map[ground.FactID]int, len(ids))
	for i, id := range ids {
		rows[i] = FactRow{Name: facts[id].String(), Holds: cur.Has(id)}
		at[id] = i
	}
	for _, id := range added {
		rows[at[id]].Added = true
	}
	for _, id := range removed {
		rows[at[id]].Removed = true
	}
	return rows
}

// ActionRow is one line of the plan panel.
type ActionRow struct {
	Time     int
	Name     string
	Cost     int
	Done     bool // executed before the displayed state
	Incoming bool // executed at the step leading to the displayed state
}

// Actions lists the plan's steps relative to the displayed state.
func (s *State) Actions() []ActionRow {
	if !s.Solved() {
		return nil
	}
	k := s.Step()
	rows := make([]ActionRow, 0, s.Result.Plan.Len())
	for _, st := range s.Result.Plan.Steps {
		rows = append(rows, ActionRow{
			Time:     st.Time,
			Name:     st.Action.String(),
			Cost:     st.Action.Cost,
			Done:     st.Time < k,
			Incoming: st.Time == k-1,
		})
	}
	return rows
}
