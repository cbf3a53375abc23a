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

	"github.com/elektrokombinacija/pibt-mapd/internal/vis/draw"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

const (
	timelineHeight = 60
	timelineMargin = 20
)

// Timeline is a timestep scrubber. Conflict timesteps are ticked in red.
type Timeline struct {
	state    *state.State
	dragging bool
}

// NewTimeline creates a timeline over st.
func NewTimeline(st *state.State) *Timeline {
	return &Timeline{state: st}
}

// Layout renders the timeline.
func (t *Timeline) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	width := gtx.Constraints.Max.X
	rect := image.Rect(0, 0, width, timelineHeight)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 35, G: 38, B: 42, A: 255}, clip.Rect(rect).Op())

	trackWidth := width - 2*timelineMargin
	t.handlePointerEvents(gtx, trackWidth)

	trackY := timelineHeight * 2 / 3
	trackHeight := 6
	track := image.Rect(timelineMargin, trackY-trackHeight/2, timelineMargin+trackWidth, trackY+trackHeight/2)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 60, G: 65, B: 70, A: 255}, clip.Rect(track).Op())

	pb := t.state.Playback
	fill := int(float64(trackWidth) * pb.Progress())
	if fill > 0 {
		r := image.Rect(timelineMargin, trackY-trackHeight/2, timelineMargin+fill, trackY+trackHeight/2)
		paint.FillShape(gtx.Ops, color.NRGBA{R: 100, G: 180, B: 255, A: 255}, clip.Rect(r).Op())
	}

	if pb.MaxTime > 0 {
		for _, c := range t.state.Conflicts {
			x := timelineMargin + int(float64(trackWidth)*float64(c.Time)/pb.MaxTime)
			tick := image.Rect(x-1, trackY-trackHeight, x+1, trackY+trackHeight)
			paint.FillShape(gtx.Ops, draw.ColorConflictVertex, clip.Rect(tick).Op())
		}
	}

	head := timelineMargin + fill
	const headSize = 12
	playhead := image.Rect(head-headSize/2, trackY-headSize/2, head+headSize/2, trackY+headSize/2)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, clip.Rect(playhead).Op())

	t.drawLabels(gtx, th)
	return layout.Dimensions{Size: image.Point{X: width, Y: timelineHeight}}
}

func (t *Timeline) drawLabels(gtx layout.Context, th *material.Theme) {
	pb := t.state.Playback
	current := material.Label(th, 12, fmt.Sprintf("t=%d", t.state.Step()))
	current.Color = color.NRGBA{R: 200, G: 200, B: 200, A: 255}

	speed := material.Label(th, 12, fmt.Sprintf("%g steps/s", pb.Speed))
	speed.Color = color.NRGBA{R: 150, G: 180, B: 200, A: 255}

	last := material.Label(th, 12, fmt.Sprintf("%d", t.state.LastStep()))
	last.Color = color.NRGBA{R: 150, G: 150, B: 150, A: 255}

	layout.Inset{Top: unit.Dp(4), Left: unit.Dp(timelineMargin), Right: unit.Dp(timelineMargin)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Spacing: layout.SpaceBetween}.Layout(gtx,
			layout.Rigid(current.Layout),
			layout.Rigid(speed.Layout),
			layout.Rigid(last.Layout),
		)
	})
}

func (t *Timeline) handlePointerEvents(gtx layout.Context, trackWidth int) {
	area := clip.Rect(image.Rect(0, 0, gtx.Constraints.Max.X, timelineHeight)).Push(gtx.Ops)
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
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		switch pe.Kind {
		case pointer.Press:
			t.dragging = true
			t.seek(pe.Position.X, trackWidth)
		case pointer.Drag:
			if t.dragging {
				t.seek(pe.Position.X, trackWidth)
			}
		case pointer.Release:
			t.dragging = false
		}
	}
}

// seek moves the playhead to the timestep under screenX.
func (t *Timeline) seek(screenX float32, trackWidth int) {
	if trackWidth <= 0 {
		return
	}
	progress := (float64(screenX) - timelineMargin) / float64(trackWidth)
	progress = min(max(progress, 0), 1)
	pb := t.state.Playback
	pb.Pause()
	pb.SetTime(float64(int(progress*pb.MaxTime + 0.5)))
}
