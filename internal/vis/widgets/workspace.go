// Package widgets provides the Gio widgets of the replay viewer.
package widgets

import (
	"image"
	"image/color"

	"gioui.org/io/event"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/draw"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

const fitMargin = 24

// Workspace is the map view.
type Workspace struct {
	state  *state.State
	camera *interact.Camera
}

// NewWorkspace creates a map view over st.
func NewWorkspace(st *state.State, camera *interact.Camera) *Workspace {
	return &Workspace{
		state:  st,
		camera: camera,
	}
}

// Layout renders the map, plans and agents at the playhead.
func (w *Workspace) Layout(gtx layout.Context) layout.Dimensions {
	bounds := gtx.Constraints.Max
	defer clip.Rect(image.Rect(0, 0, bounds.X, bounds.Y)).Push(gtx.Ops).Pop()
	paint.Fill(gtx.Ops, color.NRGBA{R: 25, G: 28, B: 32, A: 255})

	st := w.state
	if !w.camera.Fitted {
		w.camera.FitBounds(0, 0, float64(st.Map.Width), float64(st.Map.Height),
			float32(bounds.X), float32(bounds.Y), fitMargin)
	}
	w.handlePointerEvents(gtx)

	draw.DrawMap(gtx, st.Map, w.camera)

	if st.Log.MAPD {
		for _, task := range st.OpenTasks() {
			draw.DrawTask(gtx, task, w.camera)
		}
	}

	n := st.NumAgents()
	for i := 0; i < n; i++ {
		if !w.visible(i) {
			continue
		}
		col := draw.AgentColor(i)
		if st.ShowPaths {
			draw.DrawFuture(gtx, st.Future(i), w.camera, col)
		}
		draw.DrawTrail(gtx, st.Trail(i), w.camera, col)
		if st.ShowGoals {
			if g, ok := st.Goal(i); ok {
				draw.DrawGoal(gtx, g, i, w.camera)
			}
		}
	}

	for _, c := range st.ConflictsAt(st.Step()) {
		draw.DrawConflict(gtx, c, st.Map, w.camera)
	}

	draw.DrawAgents(gtx, st.CurrentPositions(), w.carrying, w.camera, st.Selected)
	return layout.Dimensions{Size: bounds}
}

// visible reports whether an agent's overlays are drawn: all of them, or
// only the selected one.
func (w *Workspace) visible(agent int) bool {
	return w.state.Selected < 0 || w.state.Selected == agent
}

func (w *Workspace) carrying(agent int) bool {
	return w.state.Task(agent) != core.NilTask
}

func (w *Workspace) handlePointerEvents(gtx layout.Context) {
	area := clip.Rect(image.Rect(0, 0, gtx.Constraints.Max.X, gtx.Constraints.Max.Y)).Push(gtx.Ops)
	event.Op(gtx.Ops, w)
	area.Pop()

	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  w,
			Kinds:   pointer.Press | pointer.Drag | pointer.Release | pointer.Scroll,
			ScrollY: pointer.ScrollRange{Min: -1e6, Max: 1e6},
		})
		if !ok {
			break
		}
		pe, ok := ev.(pointer.Event)
		if !ok {
			continue
		}
		if w.camera.HandleEvent(pe) {
			agent := draw.HitAgent(pe.Position.X, pe.Position.Y, w.state.CurrentPositions(), w.camera)
			if agent >= 0 || w.state.Selected >= 0 {
				w.state.Select(agent)
			}
		}
	}
}
