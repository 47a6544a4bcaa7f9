package ground

import "math/bits"

// State is a set of facts over a fixed universe, stored as a bitset.
// The zero value is an empty state over an empty universe.
type State struct {
	n    int
	bits []uint64
}

// NewState returns an empty state over n facts.
func NewState(n int) State {
	return State{n: n, bits: make([]uint64, (n+63)/64)}
}

// Len returns the universe size.
func (s State) Len() int { return s.n }

// Has reports whether f holds.
func (s State) Has(f FactID) bool {
	return s.bits[f>>6]&(1<<(uint(f)&63)) != 0
}

// Set makes f hold.
func (s *State) Set(f FactID) { s.bits[f>>6] |= 1 << (uint(f) & 63) }

// Clear makes f false.
func (s *State) Clear(f FactID) { s.bits[f>>6] &^= 1 << (uint(f) & 63) }

// Clone returns an independent copy.
func (s State) Clone() State {
	return State{n: s.n, bits: append([]uint64(nil), s.bits...)}
}

// Equal reports whether both states hold exactly the same facts.
func (s State) Equal(o State) bool {
	if s.n != o.n {
		return false
	}
	for i := range s.bits {
		if s.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// Count returns the number of facts that hold.
func (s State) Count() int {
	c := 0
	for _, w := range s.bits {
		c += bits.OnesCount64(w)
	}
	return c
}

// Facts lists the facts that hold in ascending id order.
func (s State) Facts() []FactID {
	out := make([]FactID, 0, s.Count())
	for i, w := range s.bits {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, FactID(i*64+b))
			w &= w - 1
		}
	}
	return out
}

// Diff returns the facts that hold in o but not in s, and those that hold
// in s but not in o.
func (s State) Diff(o State) (added, removed []FactID) {
	for i := range s.bits {
		a, r := o.bits[i]&^s.bits[i], s.bits[i]&^o.bits[i]
		for a != 0 {
			b := bits.TrailingZeros64(a)
			added = append(added, FactID(i*64+b))
			a &= a - 1
		}
		for r != 0 {
			b := bits.TrailingZeros64(r)
			removed = append(removed, FactID(i*64+b))
			r &= r - 1
		}
	}
	return added, removed
}
