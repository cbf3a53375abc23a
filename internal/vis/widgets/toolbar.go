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

	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

const speedStep = 2

// Toolbar holds playback and overlay controls and a run summary.
type Toolbar struct {
	state  *state.State
	camera *interact.Camera

	playBtn      widget.Clickable
	resetBtn     widget.Clickable
	endBtn       widget.Clickable
	stepFwdBtn   widget.Clickable
	stepBackBtn  widget.Clickable
	speedUpBtn   widget.Clickable
	speedDownBtn widget.Clickable
	pathsBtn     widget.Clickable
	goalsBtn     widget.Clickable
	fitBtn       widget.Clickable
}

// NewToolbar creates a toolbar over st.
func NewToolbar(st *state.State, camera *interact.Camera) *Toolbar {
	return &Toolbar{state: st, camera: camera}
}

// Layout renders the toolbar.
func (t *Toolbar) Layout(gtx layout.Context, th *material.Theme) layout.Dimensions {
	height := gtx.Dp(48)
	rect := image.Rect(0, 0, gtx.Constraints.Max.X, height)
	paint.FillShape(gtx.Ops, color.NRGBA{R: 40, G: 43, B: 48, A: 255}, clip.Rect(rect).Op())

	t.handleClicks(gtx)

	gtx.Constraints.Min.Y = height
	gtx.Constraints.Max.Y = height
	return layout.Inset{Left: unit.Dp(10), Right: unit.Dp(10), Top: unit.Dp(8), Bottom: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Flex{Axis: layout.Horizontal, Alignment: layout.Middle}.Layout(gtx,
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.layoutPlayback(gtx, th)
			}),
			layout.Rigid(t.layoutSeparator),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.group(gtx, th,
					button{&t.speedDownBtn, "-", false},
					button{&t.speedUpBtn, "+", false},
				)
			}),
			layout.Rigid(t.layoutSeparator),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				return t.group(gtx, th,
					button{&t.pathsBtn, "Paths", t.state.ShowPaths},
					button{&t.goalsBtn, "Goals", t.state.ShowGoals},
					button{&t.fitBtn, "Fit", false},
				)
			}),
			layout.Flexed(1, func(gtx layout.Context) layout.Dimensions {
				return layout.Dimensions{Size: image.Point{X: gtx.Constraints.Min.X}}
			}),
			layout.Rigid(func(gtx layout.Context) layout.Dimensions {
				label := material.Label(th, 13, t.Summary())
				label.Color = color.NRGBA{R: 200, G: 200, B: 200, A: 255}
				return label.Layout(gtx)
			}),
		)
	})
}

// Summary describes the run and the playhead.
func (t *Toolbar) Summary() string {
	st := t.state
	l := st.Log
	status := "solved"
	if !l.Solved {
		status = "failed"
	}
	s := fmt.Sprintf("%s %s  agents=%d  makespan=%d", l.Solver, status, st.NumAgents(), st.LastStep())
	if l.MAPD {
		s += fmt.Sprintf("  tasks=%d  open=%d", len(l.Tasks), len(st.OpenTasks()))
	} else {
		s += fmt.Sprintf("  soc=%d", l.SOC)
	}
	if n := len(st.Conflicts); n > 0 {
		s += fmt.Sprintf("  conflicts=%d", n)
	}
	if st.Selected >= 0 {
		s += fmt.Sprintf("  [agent %d", st.Selected)
		if task := st.Task(st.Selected); task >= 0 {
			s += fmt.Sprintf(" task %d", task)
		}
		s += "]"
	}
	return s
}

func (t *Toolbar) layoutPlayback(gtx layout.Context, th *material.Theme) layout.Dimensions {
	play := ">"
	if t.state.Playback.Playing {
		play = "||"
	}
	return t.group(gtx, th,
		button{&t.resetBtn, "|<", false},
		button{&t.stepBackBtn, "<", false},
		button{&t.playBtn, play, t.state.Playback.Playing},
		button{&t.stepFwdBtn, ">|", false},
		button{&t.endBtn, ">>|", false},
	)
}

type button struct {
	btn    *widget.Clickable
	text   string
	active bool
}

func (t *Toolbar) group(gtx layout.Context, th *material.Theme, buttons ...button) layout.Dimensions {
	children := make([]layout.FlexChild, 0, 2*len(buttons))
	for i, b := range buttons {
		if i > 0 {
			children = append(children, layout.Rigid(layout.Spacer{Width: unit.Dp(4)}.Layout))
		}
		children = append(children, layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return t.buttonBase(gtx, th, b.btn, b.text, b.active)
		}))
	}
	return layout.Flex{Axis: layout.Horizontal}.Layout(gtx, children...)
}

func (t *Toolbar) layoutSeparator(gtx layout.Context) layout.Dimensions {
	return layout.Inset{Left: unit.Dp(8), Right: unit.Dp(8)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		rect := image.Rect(0, 0, 1, 24)
		paint.FillShape(gtx.Ops, color.NRGBA{R: 60, G: 65, B: 70, A: 255}, clip.Rect(rect).Op())
		return layout.Dimensions{Size: image.Point{X: 1, Y: 24}}
	})
}

func (t *Toolbar) buttonBase(gtx layout.Context, th *material.Theme, btn *widget.Clickable, text string, active bool) layout.Dimensions {
	bg := color.NRGBA{R: 55, G: 58, B: 65, A: 255}
	if active {
		bg = color.NRGBA{R: 80, G: 130, B: 180, A: 255}
	}
	if btn.Hovered() {
		bg.R = min(bg.R+15, 255)
		bg.G = min(bg.G+15, 255)
		bg.B = min(bg.B+15, 255)
	}

	return btn.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
		return layout.Background{}.Layout(gtx,
			func(gtx layout.Context) layout.Dimensions {
				rect := image.Rect(0, 0, gtx.Constraints.Min.X, gtx.Constraints.Min.Y)
				paint.FillShape(gtx.Ops, bg, clip.Rect(rect).Op())
				return layout.Dimensions{Size: gtx.Constraints.Min}
			},
			func(gtx layout.Context) layout.Dimensions {
				gtx.Constraints.Min = image.Point{X: gtx.Dp(32), Y: gtx.Dp(28)}
				return layout.Center.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
					return layout.Inset{Left: unit.Dp(6), Right: unit.Dp(6)}.Layout(gtx, func(gtx layout.Context) layout.Dimensions {
						label := material.Label(th, 12, text)
						label.Color = color.NRGBA{R: 220, G: 220, B: 220, A: 255}
						return label.Layout(gtx)
					})
				})
			},
		)
	})
}

func (t *Toolbar) handleClicks(gtx layout.Context) {
	pb := t.state.Playback
	for t.playBtn.Clicked(gtx) {
		pb.TogglePlay()
	}
	for t.resetBtn.Clicked(gtx) {
		pb.Reset()
	}
	for t.endBtn.Clicked(gtx) {
		pb.End()
	}
	for t.stepFwdBtn.Clicked(gtx) {
		pb.StepForward()
	}
	for t.stepBackBtn.Clicked(gtx) {
		pb.StepBack()
	}
	for t.speedUpBtn.Clicked(gtx) {
		pb.SetSpeed(pb.Speed * speedStep)
	}
	for t.speedDownBtn.Clicked(gtx) {
		pb.SetSpeed(pb.Speed / speedStep)
	}
	for t.pathsBtn.Clicked(gtx) {
		t.state.ShowPaths = !t.state.ShowPaths
	}
	for t.goalsBtn.Clicked(gtx) {
		t.state.ShowGoals = !t.state.ShowGoals
	}
	for t.fitBtn.Clicked(gtx) {
		t.camera.Reset()
	}
}
