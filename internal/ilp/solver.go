package ilp

import "context"

// Status is the terminal state of a solve.
type Status int

const (
	Optimal Status = iota
	Feasible
	Infeasible
	Unbounded
	SolverError
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return "solver-error"
	}
}

// HasAssignment reports whether results with this status carry values.
func (s Status) HasAssignment() bool { return s == Optimal || s == Feasible }

// Result is what a solver returns. Assignment holds one value per model
// variable when the status has one; values are reals so that callers can
// reject non-integral answers. Err explains SolverError.
type Result struct {
	Status     Status
	Assignment []float64
	Objective  float64
	Err        error
}

// Solver answers 0-1 models. Implementations must honour ctx and must not
// modify the model.
type Solver interface {
	Solve(ctx context.Context, m *Model) Result
	Name() string
}

// Bools converts an assignment to booleans. ok is false if any value is not
// 0 or 1.
func Bools(assignment []float64) (x []bool, bad int, ok bool) {
	x = make([]bool, len(assignment))
	for i, v := range assignment {
		switch v {
		case 0:
		case 1:
			x[i] = true
		default:
			return nil, i, false
		}
	}
	return x, -1, true
}

// Floats converts booleans to an assignment.
func Floats(x []bool) []float64 {
	out := make([]float64, len(x))
	for i, b := range x {
		if b {
			out[i] = 1
		}
	}
	return out
}
