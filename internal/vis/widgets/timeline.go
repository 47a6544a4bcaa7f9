package widgets

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/planilp/internal/vis/state"
)

// Timeline is a step scrubber with one tick per plan state.
type Timeline struct {
	state    *state.State
	dragging bool
}

// NewTimeline creates a new timeline widget.
func NewTimeline(st *state.State) *Timeline {
	return &Timeline{
		state: st,
	}
}

// Layout renders the timeline.
func (t *Timeline) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	height := 60

	rect := image.Rect(0, 0, gtx.Constraints.Max.X, height)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 35, G: 38, B: 42, A: 255}, clip.Rect(rect).Op())

	t.handlePointerEvents(gtx, height)

	margin := 20
	trackY := height / 2
	trackHeight := 6
	trackWidth := gtx.Constraints.Max.X - 2*margin

	trackRect := image.Rect(margin, trackY-trackHeight/2, margin+trackWidth, trackY+trackHeight/2)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 60, G: 65, B: 70, A: 255}, clip.Rect(trackRect).Op())

	fillWidth := int(float64(trackWidth) * t.state.Playback.Progress())
	if fillWidth > 0 {
		fillRect := image.Rect(margin, trackY-trackHeight/2, margin+fillWidth, trackY+trackHeight/2)
		paint.FillShape(gtx.Ops, color.NRGBA{R: 100, G: 180, B: 255, A: 255}, clip.Rect(fillRect).Op())
	}

	// Step ticks; steps with actions get taller ticks
	if horizon := int(t.state.Playback.MaxTime); horizon > 0 {
		busy := make([]bool, horizon+1)
		for _, r := range t.state.Actions() {
			busy[r.Time+1] = true
		}
		for k := 0; k <= horizon; k++ {
			x := margin + trackWidth*k/horizon
			h := 4
			if busy[k] {
				h = 8
			}
			tick := image.Rect(x, trackY+trackHeight/2+2, x+1, trackY+trackHeight/2+2+h)
			paint.FillShape(gtx.Ops, color.NRGBA{R: 110, G: 115, B: 120, A: 255}, clip.Rect(tick).Op())
		}
	}

	playheadX := margin + fillWidth
	playheadSize := 12
	playheadRect := image.Rect(playheadX-playheadSize/2, trackY-playheadSize/2, playheadX+playheadSize/2, trackY+playheadSize/2)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, clip.Rect(playheadRect).Op())

	t.drawLabels(gtx, th)

	return layout.Dimensions{Size: image.Point{X: gtx.Constraints.Max.X, Y: height}}
}

func (t *Timeline) drawLabels(gtx layout.Context, th *material.Theme) {
	pb := t.state.Playback

	stepLabel := material.Label(th, 12, fmt.Sprintf("step %d / %d", t.state.Step(), int(pb.MaxTime)))
	stepLabel.Color = color.NRGBA{R: 200, G: 200, B: 200, A: 255}

	speedLabel := material.Label(th, 12, fmt.Sprintf("%.1f steps/s", pb.Speed))
	speedLabel.Color = color.NRGBA{R: 150, G: 180, B: 200, A: 255}

	var names []string
	for _, a := range t.state.Incoming() {
		names = append(names, a.String())
	}
	incoming := "initial state"
	if t.state.Step() > 0 {
		incoming = "idle"
		if len(names) > 0 {
			incoming = fmt.Sprint(names)
		}
	}
	incLabel := material.Label(th, 12, incoming)
	incLabel.Color = color.NRGBA{R: 150, G: 150, B: 150, A: 255}
	incLabel.MaxLines = 1

	layout.Inset{Top: unit.Dp(4), Left: unit.Dp(20), Right: unit.Dp(20)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceBetween}.Layout(gtx,
			layout.Rigid(stepLabel.Layout),
			layout.Rigid(speedLabel.Layout),
			layout.Rigid(incLabel.Layout),
		)
	})
}

func (t *Timeline) handlePointerEvents(gtx layout.Context, height int) {
	margin := 20
	trackWidth := gtx.Constraints.Max.X - 2*margin

	area := clip.Rect(image.Rect(0, 0, gtx.Constraints.Max.X, height)).Push(gtx.Ops)
	event.Op(gtx.Ops, t)
	area.Pop()

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target: t,
			Kinds:  pointer.Press | pointer.Drag | pointer.Release,
		})
		if !ok {
			break
		}
		if pe, ok := ev.(pointer.Event); ok {
			switch pe.Kind {
			case pointer.Press:
				t.dragging = true
				t.seekToPosition(pe.Position.X, margin, trackWidth)
			case pointer.Drag:
				if t.dragging {
					t.seekToPosition(pe.Position.X, margin, trackWidth)
				}
			case pointer.Release:
				t.dragging = false
			}
		}
	}
}

// seekToPosition snaps to the nearest step.
func (t *Timeline) seekToPosition(screenX float32, margin, trackWidth int) {
	if trackWidth <= 0 {
		return
	}
	progress := (float64(screenX) - float64(margin)) / float64(trackWidth)
	t.state.Playback.SetStep(int(progress*t.state.Playback.MaxTime + 0.5))
}
