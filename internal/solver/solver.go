// Package solver provides the ilp.Solver backends: gophersat, a
// pseudo-boolean CDCL solver, and a reference branch-and-bound search used
// to cross-check it.
package solver

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/ilp"
)

const (
	BackendGophersat = "gophersat"
	BackendReference = "reference"
)

// ErrUnknownBackend is returned by New for an unregistered name.
var ErrUnknownBackend = errors.New("unknown solver backend")

// Options configures a backend.
type Options struct {
	// Timeout bounds each Solve call in addition to the caller's context.
	Timeout time.Duration
	// NodeLimit bounds the reference search; zero means unlimited.
	NodeLimit int
	Verbose   bool
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Backends lists the registered backend names.
func Backends() []string {
	return []string{BackendGophersat, BackendReference}
}

// New returns the named backend.
func New(name string, opts Options) (ilp.Solver, error) {
	switch name {
	case BackendGophersat, "":
		return NewGophersat(opts), nil
	case BackendReference:
		return NewReference(opts), nil
	default:
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownBackend, name, Backends())
	}
}
