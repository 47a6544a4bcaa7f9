// Package vis implements a Gio-based viewer that solves a planning problem
// and steps through the resulting plan.
package vis

import (
	"context"
	"image/color"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"
	"go.uber.org/zap"

	"github.com/elektrokombinacija/planilp/internal/core"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/vis/state"
	"github.com/elektrokombinacija/planilp/internal/vis/widgets"
)

// SolveFunc runs one planning call with the given backend and horizon.
type SolveFunc func(ctx context.Context, backend string, horizon int) (*planner.Result, error)

// App is the main viewer application.
type App struct {
	state    *state.State
	theme    *material.Theme
	solve    SolveFunc
	log      *zap.Logger
	timeline *widgets.Timeline
	toolbar  *widgets.Toolbar
	facts    *widgets.FactPanel
	plan     *widgets.PlanPanel

	ctx    context.Context
	window *app.Window
}

// NewApp creates a viewer for prob. A negative horizon means the
// problem's own.
func NewApp(prob *core.Problem, solve SolveFunc, backend string, horizon int, log *zap.Logger) *App {
	st := state.NewState(prob, backend, horizon)
	a := &App{
		state:    st,
		theme:    material.NewTheme(),
		solve:    solve,
		log:      log,
		timeline: widgets.NewTimeline(st),
		toolbar:  widgets.NewToolbar(st),
		facts:    widgets.NewFactPanel(st),
		plan:     widgets.NewPlanPanel(st),
	}
	a.toolbar.OnSolve = a.startSolve
	return a
}

// Run starts the application event loop. The first solve starts
// immediately.
func (a *App) Run(ctx context.Context, w *app.Window) error {
	var ops op.Ops
	a.ctx, a.window = ctx, w
	a.startSolve()
	defer func() {
		a.state.Solve.Cancel()
		a.state.Solve.Wait()
	}()

	// Event filters for keyboard input
	tag := new(int)

	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			a.collect()

			for {
				ev, ok := gtx.Event(key.Filter{Focus: tag, Optional: key.ModShift})
				if !ok {
					break
				}
				if ke, ok := ev.(key.Event); ok && ke.State == key.Press {
					a.handleKeyEvent(ke)
				}
			}
			event.Op(gtx.Ops, tag)

			a.layout(gtx)
			e.Frame(gtx.Ops)

			if a.state.Playback.Playing {
				a.state.Playback.Advance()
				w.Invalidate()
			} else if running, _ := a.state.Solve.Running(); running {
				// keep the elapsed-time label moving
				w.Invalidate()
			}
		}
	}
}

func (a *App) startSolve() {
	backend, horizon := a.state.Backend, a.state.Horizon
	err := a.state.Solve.Start(a.ctx, func(ctx context.Context) (*planner.Result, error) {
		return a.solve(ctx, backend, horizon)
	}, a.window.Invalidate)
	if err != nil {
		a.log.Debug("solve not started", zap.Error(err))
		return
	}
	a.log.Info("solving", zap.String("backend", backend), zap.Int("horizon", horizon))
}

// collect installs the outcome of a finished solve.
func (a *App) collect() {
	o, ok := a.state.Solve.Poll()
	if !ok {
		return
	}
	if o.Err != nil {
		a.log.Warn("solve failed", zap.Error(o.Err))
		return
	}
	if err := a.state.SetResult(o.Result); err != nil {
		a.log.Error("plan does not replay", zap.Error(err))
		return
	}
	a.log.Info("solve finished",
		zap.Stringer("status", o.Result.Status),
		zap.Int("horizon", o.Result.Horizon),
		zap.Duration("elapsed", o.Elapsed))
}

func (a *App) handleKeyEvent(e key.Event) {
	pb := a.state.Playback
	switch e.Name {
	case key.NameSpace:
		pb.TogglePlay()
	case key.NameLeftArrow:
		pb.StepBack()
	case key.NameRightArrow:
		pb.StepForward()
	case key.NameHome:
		pb.Reset()
	case key.NameEnd:
		pb.SetStep(int(pb.MaxTime))
	case key.NameUpArrow:
		a.state.SetHorizon(a.state.Horizon + 1)
	case key.NameDownArrow:
		a.state.SetHorizon(a.state.Horizon - 1)
	case "B":
		a.state.NextBackend()
	case "S", key.NameReturn:
		a.startSolve()
	case key.NameEscape:
		a.state.Solve.Cancel()
	}
}

func (a *App) layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, color.NRGBA{R: 30, G: 30, B: 35, A: 255})

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.toolbar.Layout(gtx, a.theme)
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Flex{Axis: layout.Horizontal}.Layout(gtx,
				layout.Rigid(func(gtx layout.Context) layout.Dimensions {
					return a.plan.Layout(gtx, a.theme)
				}),
				layout.Rigid(layout.Spacer{Width: unit.Dp(2)}.Layout),
				layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
					return a.facts.Layout(gtx, a.theme)
				}),
			)
		}),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.timeline.Layout(gtx, a.theme)
		}),
	)
}
