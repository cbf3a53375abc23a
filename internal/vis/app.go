// Package vis implements a Gio replay viewer for result logs.
package vis

import (
	"image/color"

	"gioui.org/app"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/layout"
	"gioui.org/op"
	"gioui.org/op/paint"
	"gioui.org/widget/material"

	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/widgets"
)

// App is the viewer application.
type App struct {
	state     *state.State
	theme     *material.Theme
	workspace *widgets.Workspace
	timeline  *widgets.Timeline
	toolbar   *widgets.Toolbar
	camera    *interact.Camera
}

// NewApp creates a viewer for st.
func NewApp(st *state.State) *App {
	camera := interact.NewCamera()
	return &App{
		state:     st,
		theme:     material.NewTheme(),
		workspace: widgets.NewWorkspace(st, camera),
		timeline:  widgets.NewTimeline(st),
		toolbar:   widgets.NewToolbar(st, camera),
		camera:    camera,
	}
}

// Run processes window events until the window is closed.
func (a *App) Run(w *app.Window) error {
	var ops op.Ops
	tag := new(int)
	focused := false

	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err

		case app.FrameEvent:
			gtx := app.NewContext(&ops, e)
			if !focused {
				gtx.Execute(key.FocusCmd{Tag: tag})
				focused = true
			}

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

			a.state.Playback.Advance()
			a.layout(gtx)
			e.Frame(gtx.Ops)

			// keep animating while playing and while conflicts pulse
			if a.state.Playback.Playing || len(a.state.ConflictsAt(a.state.Step())) > 0 {
				w.Invalidate()
			}
		}
	}
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
		pb.End()
	case key.NameUpArrow:
		pb.SetSpeed(pb.Speed * 2)
	case key.NameDownArrow:
		pb.SetSpeed(pb.Speed / 2)
	case key.NameEscape:
		a.state.Selected = -1
	case "R":
		a.camera.Reset()
	case "P":
		a.state.ShowPaths = !a.state.ShowPaths
	case "G":
		a.state.ShowGoals = !a.state.ShowGoals
	}
}

func (a *App) layout(gtx layout.Context) layout.Dimensions {
	paint.Fill(gtx.Ops, color.NRGBA{R: 30, G: 30, B: 35, A: 255})

	return layout.Flex{Axis: layout.Vertical}.Layout(gtx,
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.toolbar.Layout(gtx, a.theme)
		}),
		layout.Flexed(1, a.workspace.Layout),
		layout.Rigid(func(gtx layout.Context) layout.Dimensions {
			return a.timeline.Layout(gtx, a.theme)
		}),
	)
}
