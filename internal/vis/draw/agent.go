package draw

import (
	"image/color"
	"math"

	"gioui.org/layout"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

var (
	ColorSelected = color.NRGBA{R: 255, G: 255, B: 120, A: 255}
	ColorCarrying = color.NRGBA{R: 245, G: 245, B: 245, A: 255}
)

// AgentColor spreads agent hues around the color wheel by the golden angle.
func AgentColor(agent int) color.NRGBA {
	h := math.Mod(float64(agent)*0.618033988749895, 1)
	return hsv(h, 0.6, 0.95)
}

func hsv(h, s, v float64) color.NRGBA {
	i := int(h * 6)
	f := h*6 - float64(i)
	p, q, t := v*(1-s), v*(1-f*s), v*(1-(1-f)*s)
	var r, g, b float64
	switch i % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.NRGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

// cellCenter returns the screen center of the cell at p.
func cellCenter(camera *interact.Camera, p state.Point) (float32, float32) {
	return camera.WorldToScreen(p.X+0.5, p.Y+0.5)
}

// DrawAgents draws every agent as a disc. Agents with a task get a light
// core; the selected agent gets a ring.
func DrawAgents(gtx layout.Context, positions []state.Point, carrying func(agent int) bool, camera *interact.Camera, selected int) {
	r := camera.Zoom * 0.38
	for i, p := range positions {
		cx, cy := cellCenter(camera, p)
		fillCircle(gtx, cx, cy, r, AgentColor(i))
		if carrying != nil && carrying(i) {
			fillCircle(gtx, cx, cy, r*0.35, ColorCarrying)
		}
		if i == selected {
			strokeCircle(gtx, cx, cy, r+camera.Zoom*0.08, max(2, camera.Zoom*0.08), ColorSelected)
		}
	}
}

// DrawGoal outlines the goal cell of an agent in its color.
func DrawGoal(gtx layout.Context, goal core.Pos, agent int, camera *interact.Camera) {
	cx, cy := cellCenter(camera, state.Point{X: float64(goal.X), Y: float64(goal.Y)})
	col := AgentColor(agent)
	col.A = 200
	strokeSquare(gtx, cx, cy, camera.Zoom*0.32, max(1.5, camera.Zoom*0.06), col)
}

// HitAgent returns the agent drawn under a screen point, or -1.
func HitAgent(screenX, screenY float32, positions []state.Point, camera *interact.Camera) int {
	r := camera.Zoom * 0.45
	for i := len(positions) - 1; i >= 0; i-- {
		cx, cy := cellCenter(camera, positions[i])
		dx, dy := screenX-cx, screenY-cy
		if dx*dx+dy*dy <= r*r {
			return i
		}
	}
	return -1
}
