package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/elektrokombinacija/planilp/internal/planner"
)

// ErrSolveActive is returned by Start while a solve is running.
var ErrSolveActive = errors.New("solve already running")

// SolveFunc runs one planning call.
type SolveFunc func(ctx context.Context) (*planner.Result, error)

// Outcome is the result of a finished solve.
type Outcome struct {
	Result  *planner.Result
	Err     error
	Elapsed time.Duration
}

// SolveState runs planner calls off the UI goroutine. The UI starts a solve,
// keeps drawing, and collects the outcome with Poll.
type SolveState struct {
	mu sync.Mutex

	active  bool
	started time.Time
	last    *Outcome

	cancel context.CancelFunc
	done   chan Outcome
	wg     sync.WaitGroup
}

// NewSolveState creates an idle solve state.
func NewSolveState() *SolveState {
	return &SolveState{done: make(chan Outcome, 1)}
}

// Start runs fn in a goroutine. notify, if set, is called once the outcome
// is ready; the viewer passes the window's Invalidate.
func (s *SolveState) Start(parent context.Context, fn SolveFunc, notify func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrSolveActive
	}

	ctx, cancel := context.WithCancel(parent)
	s.active = true
	s.started = time.Now()
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		start := time.Now()
		res, err := fn(ctx)
		s.done <- Outcome{Result: res, Err: err, Elapsed: time.Since(start)}
		if notify != nil {
			notify()
		}
	}()
	return nil
}

// Cancel asks the running solve to stop. Its outcome, typically a context
// error, still arrives through Poll.
func (s *SolveState) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// Poll returns the outcome of a finished solve without blocking.
func (s *SolveState) Poll() (Outcome, bool) {
	select {
	case o := <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		s.active = false
		s.cancel = nil
		s.last = &o
		return o, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the running solve, if any, has returned.
func (s *SolveState) Wait() {
	s.wg.Wait()
}

// Running reports whether a solve is in progress and for how long.
func (s *SolveState) Running() (bool, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false, 0
	}
	return true, time.Since(s.started)
}

// Last returns the most recent outcome collected by Poll.
func (s *SolveState) Last() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Outcome{}, false
	}
	return *s.last, true
}
