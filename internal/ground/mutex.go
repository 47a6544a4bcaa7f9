package ground

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
)

// MutexSet is the symmetric mutual-exclusion relation over ground actions.
// Two distinct actions are mutex when one deletes a fact the other requires
// or adds, when one adds a fact the other requires to be false, or when both
// add or both delete a common fact.
type MutexSet struct {
	rows  [][]ActionID
	pairs int
}

// Has reports whether a and b are mutex.
func (m *MutexSet) Has(a, b ActionID) bool {
	_, ok := slices.BinarySearch(m.rows[a], b)
	return ok
}

// Row returns the actions mutex with a, sorted.
func (m *MutexSet) Row(a ActionID) []ActionID { return m.rows[a] }

// Len returns the number of unordered mutex pairs.
func (m *MutexSet) Len() int { return m.pairs }

// Pairs calls fn for every pair with a < b until fn returns false.
func (m *MutexSet) Pairs(fn func(a, b ActionID) bool) {
	for a, row := range m.rows {
		i, _ := slices.BinarySearch(row, ActionID(a+1))
		for _, b := range row[i:] {
			if !fn(ActionID(a), b) {
				return
			}
		}
	}
}

const mutexChunk = 256

func buildMutex(ctx context.Context, u *Universe, workers int) (*MutexSet, error) {
	n := len(u.Actions)
	m := &MutexSet{rows: make([][]ActionID, n)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += mutexChunk {
		hi := min(lo+mutexChunk, n)
		g.Go(func() error {
			mark := make([]int, n)
			for a := lo; a < hi; a++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				m.rows[a] = u.mutexRow(ActionID(a), mark)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, row := range m.rows {
		m.pairs += len(row)
	}
	m.pairs /= 2
	return m, nil
}

// mutexRow collects the actions interfering with a. mark is scratch space
// owned by the caller; entries equal to a+1 mean already collected.
func (u *Universe) mutexRow(a ActionID, mark []int) []ActionID {
	stamp := int(a) + 1
	var row []ActionID
	take := func(ids []ActionID) {
		for _, b := range ids {
			if b != a && mark[b] != stamp {
				mark[b] = stamp
				row = append(row, b)
			}
		}
	}
	act := u.Actions[a]
	for _, f := range act.Del {
		take(u.needPos[f])
		take(u.adders[f])
		take(u.deleters[f])
	}
	for _, f := range act.Add {
		take(u.needNeg[f])
		take(u.adders[f])
		take(u.deleters[f])
	}
	for _, f := range act.Pre {
		take(u.deleters[f])
	}
	for _, f := range act.PreNeg {
		take(u.adders[f])
	}
	slices.Sort(row)
	return row
}
