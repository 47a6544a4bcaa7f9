// Package planner ties grounding, encoding, solving and decoding together.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/decode"
	"github.com/elektrokombinacija/planilp/internal/encode"
	"github.com/elektrokombinacija/planilp/internal/ground"
	"github.com/elektrokombinacija/planilp/internal/ilp"
	"github.com/elektrokombinacija/planilp/internal/plan"
)

// NoOverride makes CompileAndSolve use the problem's own horizon.
const NoOverride = -1

// Status is the outcome of a planning call that did not fail.
type Status int

const (
	Solved Status = iota
	Infeasible
)

func (s Status) String() string {
	if s == Solved {
		return "solved"
	}
	return "infeasible"
}

// Stats describes one compile-and-solve run.
type Stats struct {
	Backend      string
	Facts        int
	Actions      int
	MutexPairs   int
	Variables    int
	Constraints  int
	SolverStatus ilp.Status
	Ground       time.Duration
	Encode       time.Duration
	Solve        time.Duration
	Decode       time.Duration
}

// Result is a plan, or the statement that none exists within Horizon.
type Result struct {
	Status   Status
	Plan     *plan.Plan
	Horizon  int
	Universe *ground.Universe
	Stats    Stats
}

// Planner compiles problems to 0-1 programs and solves them with one backend.
type Planner struct {
	solver ilp.Solver
	ground ground.Options
	encode encode.Options
	log    *zap.Logger
}

// Option configures a Planner.
type Option func(*Planner)

// WithGrounding sets grounding options.
func WithGrounding(o ground.Options) Option {
	return func(p *Planner) { p.ground = o }
}

// WithEncoding sets encoding options.
func WithEncoding(o encode.Options) Option {
	return func(p *Planner) { p.encode = o }
}

// WithLogger sets the logger; it is also handed to the grounder and encoder
// unless their options carry one.
func WithLogger(l *zap.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// New returns a planner using s.
func New(s ilp.Solver, opts ...Option) *Planner {
	p := &Planner{solver: s, ground: ground.Options{PruneStatic: true}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.ground.Logger == nil {
		p.ground.Logger = p.log
	}
	if p.encode.Logger == nil {
		p.encode.Logger = p.log
	}
	return p
}

// CompileAndSolve grounds prob, encodes it for the given horizon (or the
// problem's horizon with NoOverride), solves and decodes. Infeasibility is
// a Result, not an error. Errors are domain errors from grounding,
// *core.OverflowError, *core.SolverError and *core.InconsistencyError.
func (p *Planner) CompileAndSolve(ctx context.Context, prob *core.Problem, horizonOverride int) (*Result, error) {
	horizon := prob.Horizon
	if horizonOverride != NoOverride {
		horizon = horizonOverride
	}
	start := time.Now()
	u, err := ground.Ground(ctx, prob, p.ground)
	if err != nil {
		return nil, err
	}
	res, err := p.SolveGrounded(ctx, u, horizon)
	if res != nil {
		res.Stats.Ground = time.Since(start) - res.Stats.Encode - res.Stats.Solve - res.Stats.Decode
	}
	return res, err
}

// SolveGrounded runs the encode, solve and decode stages on an existing
// grounding.
func (p *Planner) SolveGrounded(ctx context.Context, u *ground.Universe, horizon int) (*Result, error) {
	res := &Result{
		Horizon:  horizon,
		Universe: u,
		Stats: Stats{
			Backend:    p.solver.Name(),
			Facts:      u.NumFacts(),
			Actions:    u.NumActions(),
			MutexPairs: u.Mutex.Len(),
		},
	}

	t0 := time.Now()
	enc, err := encode.Encode(u, horizon, p.encode)
	if err != nil {
		return nil, err
	}
	res.Stats.Encode = time.Since(t0)
	res.Stats.Variables = enc.Model.NumVars
	res.Stats.Constraints = len(enc.Model.Constraints)

	t0 = time.Now()
	out := p.solver.Solve(ctx, enc.Model)
	res.Stats.Solve = time.Since(t0)
	res.Stats.SolverStatus = out.Status

	log := p.log.With(
		zap.String("problem", u.Problem.Name),
		zap.Int("horizon", horizon),
		zap.String("backend", p.solver.Name()))

	switch out.Status {
	case ilp.Infeasible:
		res.Status = Infeasible
		log.Info("no plan within horizon", zap.Duration("solve", res.Stats.Solve))
		return res, nil
	case ilp.SolverError:
		err := out.Err
		if err == nil {
			err = errors.New("unspecified failure")
		}
		return nil, &core.SolverError{Backend: p.solver.Name(), Err: err}
	case ilp.Unbounded:
		return nil, &core.SolverError{Backend: p.solver.Name(), Err: errors.New("unbounded answer to a 0-1 model")}
	}

	t0 = time.Now()
	pl, err := decode.Decode(enc, out)
	res.Stats.Decode = time.Since(t0)
	if err != nil {
		if errors.Is(err, core.ErrSolver) {
			return nil, &core.SolverError{Backend: p.solver.Name(), Err: err}
		}
		log.Error("decoded plan failed replay", zap.Error(err))
		return nil, err
	}
	res.Status = Solved
	res.Plan = pl
	log.Info("plan found",
		zap.Int("actions", pl.Len()),
		zap.Int("cost", pl.Cost),
		zap.Stringer("solver_status", out.Status),
		zap.Duration("solve", res.Stats.Solve))
	return res, nil
}

// Search grounds prob once and tries horizons minH..maxH in order, returning
// the first plan found. If every horizon is infeasible the last Infeasible
// result is returned. Errors abort the search, including a solver timeout
// that found no plan. A backend that cannot be interrupted (gophersat) keeps
// one abandoned search running after a timeout and starts the next horizon
// only once it has finished, so repeated timeouts never stack solver work.
func (p *Planner) Search(ctx context.Context, prob *core.Problem, minH, maxH int) (*Result, error) {
	if minH < 0 || maxH < minH {
		return nil, fmt.Errorf("invalid horizon range [%d, %d]", minH, maxH)
	}
	start := time.Now()
	u, err := ground.Ground(ctx, prob, p.ground)
	if err != nil {
		return nil, err
	}
	groundTime := time.Since(start)

	var last *Result
	for h := minH; h <= maxH; h++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.SolveGrounded(ctx, u, h)
		if err != nil {
			return nil, err
		}
		res.Stats.Ground = groundTime
		if res.Status == Solved {
			return res, nil
		}
		last = res
		p.log.Debug("horizon infeasible, extending", zap.Int("horizon", h))
	}
	return last, nil
}

// Validate grounds prob, binds the document's actions and replays them
// under the given semantics. The document's horizon may not exceed the
// problem's t_max, and serial semantics allow one action per step. It
// returns nil when the plan is valid; rejections are
// *core.InconsistencyError.
func Validate(ctx context.Context, prob *core.Problem, doc plan.Document, sem encode.Semantics) error {
	if doc.Horizon > prob.Horizon {
		return core.Inconsistentf(-1, "plan horizon %d exceeds t_max %d", doc.Horizon, prob.Horizon)
	}
	u, err := ground.Ground(ctx, prob, ground.Options{})
	if err != nil {
		return err
	}
	pl, err := doc.Resolve(u)
	if err != nil {
		return err
	}
	if _, err := pl.Replay(u); err != nil {
		return err
	}
	if sem == encode.Serial {
		return pl.CheckSerial()
	}
	return nil
}
