package widgets

import (
	"fmt"
	"image"
	"image/color"

	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
	"gioui.org/unit"
	"gioui.org/widget"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/planilp/internal/vis/state"
)

// Row colors shared by the panels.
var (
	ColorHolds    = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	ColorAdded    = color.NRGBA{R: 80, G: 200, B: 120, A: 255}
	ColorRemoved  = color.NRGBA{R: 230, G: 90, B: 80, A: 255}
	ColorDone     = color.NRGBA{R: 110, G: 115, B: 120, A: 255}
	ColorIncoming = color.NRGBA{R: 255, G: 200, B: 80, A: 255}
	colorHeader   = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
	colorPanel    = color.NRGBA{R: 35, G: 38, B: 42, A: 255}
)

// FactPanel lists the state at the current step. Facts added by the
// incoming step are green, facts it deleted are red.
type FactPanel struct {
	state *state.State
	list  widget.List
}

// NewFactPanel creates a new fact panel.
func NewFactPanel(st *state.State) *FactPanel {
	return &FactPanel{state: st, list: widget.List{List: layout.List{Axis: layout.Vertical}}}
}

// Layout renders the panel.
func (p *FactPanel) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	rows := p.state.Facts()
	held := 0
	for _, r := range rows {
		if r.Holds {
			held++
		}
	}
	title := fmt.Sprintf("State at step %d (%d facts)", p.state.Step(), held)
	return panel(gtx, th, gtx.Constraints.Max.X, title, func(gtx layout.Context) layout.Dimensions {
		return material.List(th, &p.list).Layout(gtx, len(rows), func(gtx layout.Context, i int) layout.Dimensions {
			r := rows[i]
			text, col := "  "+r.Name, ColorHolds
			switch {
			case r.Added:
				text, col = "+ "+r.Name, ColorAdded
			case r.Removed:
				text, col = "- "+r.Name, ColorRemoved
			}
			return rowLabel(gtx, th, text, col)
		})
	})
}

// PlanPanel lists the plan's actions by step. Clicking an action jumps to
// the state it produces.
type PlanPanel struct {
	state *state.State
	list  widget.List
	rows  []widget.Clickable
}

// NewPlanPanel creates a new plan panel.
func NewPlanPanel(st *state.State) *PlanPanel {
	return &PlanPanel{state: st, list: widget.List{List: layout.List{Axis: layout.Vertical}}}
}

// Layout renders the panel.
func (p *PlanPanel) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	rows := p.state.Actions()
	if len(p.rows) < len(rows) {
		p.rows = make([]widget.Clickable, len(rows))
	}
	for i, r := range rows {
		for p.rows[i].Clicked(gtx) {
			p.state.Playback.SetStep(r.Time + 1)
		}
	}

	title := "No plan"
	if res := p.state.Result; res != nil && res.Plan != nil {
		title = fmt.Sprintf("Plan (%d actions, cost %d)", res.Plan.Len(), res.Plan.Cost)
	}
	return panel(gtx, th, gtx.Dp(unit.Dp(320)), title, func(gtx layout.Context) layout.Dimensions {
		return material.List(th, &p.list).Layout(gtx, len(rows), func(gtx layout.Context, i int) layout.Dimensions {
			r := rows[i]
			col := ColorHolds
			switch {
			case r.Incoming:
				col = ColorIncoming
			case r.Done:
				col = ColorDone
			}
			return p.rows[i].Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				return rowLabel(gtx, th, fmt.Sprintf("%3d  %s", r.Time, r.Name), col)
			})
		})
	})
}

// panel draws a side panel of the given pixel width with a header.
func panel(gtx layout.Context, th *material.Theme, width int, title string, body layout.Widget) layout.Dimensions {
	height := gtx.Constraints.Max.Y
	gtx.Constraints = layout.Exact(image.Point{X: width, Y: height})

	paint.FillShape(gtx.Ops, colorPanel, clip.Rect(image.Rect(0, 0, width, height)).Op())

	layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Left: unit.Dp(10), Top: unit.Dp(8), Bottom: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
				label := material.Label(th, 14, title)
				label.Color = colorHeader
				return label.Layout(gtx)
			})
		}),
		layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
			return layout.Inset{Left: unit.Dp(10), Right: unit.Dp(4)}.Layout(gtx, body)
		}),
	)
	return layout.Dimensions{Size: image.Point{X: width, Y: height}}
}

func rowLabel(gtx layout.Context, th *material.Theme, text string, col color.NRGBA) layout.Dimensions {
	return layout.Inset{Top: unit.Dp(1), Bottom: unit.Dp(1)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		label := material.Body2(th, text)
		label.Color = col
		label.MaxLines = 1
		return label.Layout(gtx)
	})
}
