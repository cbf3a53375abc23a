package draw

import (
	"image/color"
	"math"
	"time"

	"gioui.org/layout"

	"github.com/elektrokombinacija/pibt-mapd/internal/algo"
	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

// Conflict colors
var (
	ColorConflictVertex = color.NRGBA{R: 255, G: 80, B: 80, A: 220}
	ColorConflictEdge   = color.NRGBA{R: 255, G: 150, B: 80, A: 220}
)

func nodeCenter(w *core.Workspace, v core.NodeID, camera *interact.Camera) (float32, float32) {
	p := w.Pos(v)
	return cellCenter(camera, state.Point{X: float64(p.X), Y: float64(p.Y)})
}

// DrawConflict marks a vertex conflict with a pulsing ring and a swap with
// a crossed band over the swapped edge.
func DrawConflict(gtx layout.Context, c *algo.Conflict, w *core.Workspace, camera *interact.Camera) {
	pulse := float32(math.Sin(float64(time.Now().UnixMilli())/200.0)*0.2 + 0.8)
	stroke := max(2, camera.Zoom*0.08)

	if !c.IsEdge {
		cx, cy := nodeCenter(w, c.Node, camera)
		strokeCircle(gtx, cx, cy, camera.Zoom*0.5*pulse, stroke, ColorConflictVertex)
		fillCircle(gtx, cx, cy, camera.Zoom*0.12, ColorConflictVertex)
		return
	}

	x1, y1 := nodeCenter(w, c.EdgeFrom, camera)
	x2, y2 := nodeCenter(w, c.EdgeTo, camera)
	band := ColorConflictEdge
	band.A = uint8(float32(band.A) * pulse)
	drawSegment(gtx, x1, y1, x2, y2, camera.Zoom*0.2, band)

	midX, midY := (x1+x2)/2, (y1+y2)/2
	size := camera.Zoom * 0.25 * pulse
	for _, angle := range []float64{45, 135} {
		rad := angle * math.Pi / 180
		dx := float32(math.Cos(rad)) * size
		dy := float32(math.Sin(rad)) * size
		drawSegment(gtx, midX-dx, midY-dy, midX+dx, midY+dy, stroke, ColorConflictEdge)
	}
}
