package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/elektrokombinacija/planilp/internal/instances"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

// solved returns viewer state holding the plan
// Load(B1,L1) Go(L1,L2) Unload(B1,L2) Go(L2,L1).
func solved(t *testing.T) *State {
	t.Helper()
	prob, err := instances.DeliveryParams{Locations: 2, Bags: 1, Horizon: 4}.Build()
	require.NoError(t, err)
	pl := planner.New(solver.NewGophersat(solver.Options{Timeout: time.Minute}))
	res, err := pl.CompileAndSolve(context.Background(), prob, planner.NoOverride)
	require.NoError(t, err)

	st := NewState(prob, "gophersat", -1)
	require.NoError(t, st.SetResult(res))
	return st
}

func TestSetResult(t *testing.T) {
	st := solved(t)
	assert.True(t, st.Solved())
	assert.Len(t, st.States, 5)
	assert.Equal(t, 4.0, st.Playback.MaxTime)
	assert.Equal(t, 0, st.Step())
	assert.Empty(t, st.Incoming())

	require.NoError(t, st.SetResult(&planner.Result{Status: planner.Infeasible, Horizon: 4}))
	assert.False(t, st.Solved())
	assert.Nil(t, st.Facts())
	assert.Nil(t, st.Actions())
	assert.Equal(t, 0, st.Step())
}

func TestFactsHighlightIncomingStep(t *testing.T) {
	st := solved(t)
	st.Playback.SetStep(1)

	inc := st.Incoming()
	require.Len(t, inc, 1)
	assert.Equal(t, "Load(B1,L1)", inc[0].String())

	rows := map[string]FactRow{}
	for _, r := range st.Facts() {
		rows[r.Name] = r
	}
	assert.Equal(t, FactRow{Name: "Full(B1)", Holds: true, Added: true}, rows["Full(B1)"])
	assert.Equal(t, FactRow{Name: "Empty(B1)", Removed: true}, rows["Empty(B1)"])
	assert.Equal(t, FactRow{Name: "At(L1)", Holds: true}, rows["At(L1)"])
	assert.NotContains(t, rows, "At(L2)")

	st.Playback.SetStep(0)
	for _, r := range st.Facts() {
		assert.True(t, r.Holds, r.Name)
		assert.False(t, r.Added || r.Removed, r.Name)
	}
}

func TestActionsRelativeToStep(t *testing.T) {
	st := solved(t)
	st.Playback.SetStep(2)

	rows := st.Actions()
	require.Len(t, rows, 4)
	names := make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.Name
		assert.Equal(t, i, r.Time)
		assert.Equal(t, r.Time < 2, r.Done, r.Name)
		assert.Equal(t, r.Time == 1, r.Incoming, r.Name)
	}
	assert.Equal(t, []string{"Load(B1,L1)", "Go(L1,L2)", "Unload(B1,L2)", "Go(L2,L1)"}, names)
}

func TestStepClampedToStates(t *testing.T) {
	st := solved(t)
	st.Playback.SetTime(99)
	assert.Equal(t, 4, st.Step())
	assert.Equal(t, "Go(L2,L1)", st.Incoming()[0].String())
}

func TestHorizonAndBackend(t *testing.T) {
	prob, err := instances.Sample().Build()
	require.NoError(t, err)

	st := NewState(prob, "gophersat", -1)
	assert.Equal(t, 20, st.Horizon)
	st.SetHorizon(-3)
	assert.Equal(t, 0, st.Horizon)
	assert.Equal(t, 7, NewState(prob, "reference", 7).Horizon)

	st.NextBackend()
	assert.Equal(t, "reference", st.Backend)
	st.NextBackend()
	assert.Equal(t, "gophersat", st.Backend)
	st.Backend = "unknown"
	st.NextBackend()
	assert.Equal(t, "gophersat", st.Backend)
}

func TestPlaybackSteps(t *testing.T) {
	p := NewPlaybackState(4)
	p.StepForward()
	assert.Equal(t, 1.0, p.CurrentTime)
	p.SetTime(2.5)
	p.StepBack()
	assert.Equal(t, 2.0, p.CurrentTime)
	p.StepBack()
	assert.Equal(t, 1.0, p.CurrentTime)

	p.SetStep(10)
	assert.Equal(t, 4.0, p.CurrentTime)
	p.StepForward()
	assert.Equal(t, 4.0, p.CurrentTime)
	p.SetStep(-1)
	assert.Equal(t, 0.0, p.CurrentTime)
	p.StepBack()
	assert.Equal(t, 0.0, p.CurrentTime)
}

func TestPlaybackAdvance(t *testing.T) {
	p := NewPlaybackState(4)
	p.SetSpeed(2)
	p.Play()
	p.advanceBy(time.Second)
	assert.Equal(t, 2.0, p.CurrentTime)
	assert.True(t, p.Playing)
	p.advanceBy(5 * time.Second)
	assert.Equal(t, 4.0, p.CurrentTime)
	assert.False(t, p.Playing)
	assert.Equal(t, 1.0, p.Progress())

	p.TogglePlay()
	assert.True(t, p.Playing)
	assert.Equal(t, 0.0, p.CurrentTime)
	p.TogglePlay()
	assert.False(t, p.Playing)

	p.SetSpeed(100)
	assert.Equal(t, 10.0, p.Speed)
	p.SetSpeed(0)
	assert.Equal(t, 0.1, p.Speed)

	empty := NewPlaybackState(0)
	empty.Play()
	assert.False(t, empty.Playing)
	assert.Equal(t, 0.0, empty.Progress())
}

func TestSolveStateCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := NewSolveState()
	started := make(chan struct{})
	notified := make(chan struct{}, 1)
	err := s.Start(context.Background(), func(ctx context.Context) (*planner.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}, func() { notified <- struct{}{} })
	require.NoError(t, err)
	<-started

	running, _ := s.Running()
	assert.True(t, running)
	assert.ErrorIs(t, s.Start(context.Background(), nil, nil), ErrSolveActive)
	_, ok := s.Poll()
	assert.False(t, ok)

	s.Cancel()
	s.Wait()
	<-notified

	o, ok := s.Poll()
	require.True(t, ok)
	assert.True(t, errors.Is(o.Err, context.Canceled))
	running, _ = s.Running()
	assert.False(t, running)

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, o, last)
}

func TestSolveStateResult(t *testing.T) {
	defer goleak.VerifyNone(t)

	prob, err := instances.DeliveryParams{Locations: 2, Bags: 1, Horizon: 4}.Build()
	require.NoError(t, err)
	st := NewState(prob, "reference", -1)
	pl := planner.New(solver.NewReference(solver.Options{Timeout: time.Minute}))

	_, ok := st.Solve.Last()
	assert.False(t, ok)
	require.NoError(t, st.Solve.Start(context.Background(), func(ctx context.Context) (*planner.Result, error) {
		return pl.CompileAndSolve(ctx, st.Problem, st.Horizon)
	}, nil))
	st.Solve.Wait()

	o, ok := st.Solve.Poll()
	require.True(t, ok)
	require.NoError(t, o.Err)
	require.NoError(t, st.SetResult(o.Result))
	assert.Equal(t, 4, st.Result.Plan.Len())

	// a second solve may start once the first was collected
	require.NoError(t, st.Solve.Start(context.Background(), func(context.Context) (*planner.Result, error) {
		return nil, nil
	}, nil))
	st.Solve.Wait()
	_, ok = st.Solve.Poll()
	assert.True(t, ok)
}
