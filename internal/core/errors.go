package core

import (
	"errors"
	"fmt"
)

var (
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrUnknownPredicate  = errors.New("unknown predicate")
	ErrUnknownObject     = errors.New("unknown object")
	ErrInvalidDomain     = errors.New("invalid domain")
	ErrStateInvariant    = errors.New("state invariant violated")
	ErrEncodingOverflow  = errors.New("encoding overflow")
	ErrSolver            = errors.New("solver error")
	ErrPlanInconsistency = errors.New("plan inconsistency")
)

// DomainError wraps malformed-domain failures found while building or grounding.
type DomainError struct {
	Kind error
	Msg  string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *DomainError) Unwrap() error { return e.Kind }

// Domainf builds a DomainError of the given kind.
func Domainf(kind error, format string, args ...any) error {
	return &DomainError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// OverflowError reports a universe or model larger than the configured bound.
// Zero counts were not computed at the point of failure.
type OverflowError struct {
	What      string // "facts", "actions" or "variables"
	Facts     int
	Actions   int
	Horizon   int
	Variables int
	Limit     int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%s: %s exceeds limit %d (facts=%d actions=%d horizon=%d variables=%d)",
		ErrEncodingOverflow, e.What, e.Limit, e.Facts, e.Actions, e.Horizon, e.Variables)
}

func (e *OverflowError) Unwrap() error { return ErrEncodingOverflow }

// SolverError is a failure of the external solver: a crash, a timeout, a
// cancelled context or an answer the decoder cannot use.
type SolverError struct {
	Backend string
	Err     error
}

func (e *SolverError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s (%s)", ErrSolver, e.Backend)
	}
	return fmt.Sprintf("%s (%s): %v", ErrSolver, e.Backend, e.Err)
}

func (e *SolverError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrSolver}
	}
	return []error{ErrSolver, e.Err}
}

// InconsistencyError means a decoded plan failed replay. Step is the time
// step at which the discrepancy was found, or -1 when it concerns the plan as a whole.
type InconsistencyError struct {
	Step int
	Msg  string
}

func (e *InconsistencyError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("%s: %s", ErrPlanInconsistency, e.Msg)
	}
	return fmt.Sprintf("%s at step %d: %s", ErrPlanInconsistency, e.Step, e.Msg)
}

func (e *InconsistencyError) Unwrap() error { return ErrPlanInconsistency }

// Inconsistentf builds an InconsistencyError.
func Inconsistentf(step int, format string, args ...any) error {
	return &InconsistencyError{Step: step, Msg: fmt.Sprintf(format, args...)}
}
