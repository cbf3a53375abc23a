package draw

import (
	"image/color"

	"gioui.org/layout"

	"github.com/elektrokombinacija/pibt-mapd/internal/core"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
)

// Cell colors
var (
	ColorObstacle = color.NRGBA{R: 18, G: 20, B: 24, A: 255}
	ColorFree     = color.NRGBA{R: 52, G: 57, B: 64, A: 255}
	ColorPickup   = color.NRGBA{R: 70, G: 95, B: 80, A: 255}
	ColorDelivery = color.NRGBA{R: 95, G: 80, B: 70, A: 255}
	ColorShelf    = color.NRGBA{R: 90, G: 90, B: 70, A: 255} // pickup and delivery
	ColorEndpoint = color.NRGBA{R: 60, G: 70, B: 95, A: 255}
	ColorGridLine = color.NRGBA{R: 30, G: 33, B: 38, A: 255}
)

// CellColor returns the fill of a free cell by its task role.
func CellColor(kind core.VertexKind) color.NRGBA {
	switch {
	case kind&core.KindPickup != 0 && kind&core.KindDelivery != 0:
		return ColorShelf
	case kind&core.KindPickup != 0:
		return ColorPickup
	case kind&core.KindDelivery != 0:
		return ColorDelivery
	case kind&core.KindEndpoint != 0:
		return ColorEndpoint
	default:
		return ColorFree
	}
}

// DrawMap fills every visible cell. Grid lines are drawn once cells are
// large enough to separate.
func DrawMap(gtx layout.Context, w *core.Workspace, camera *interact.Camera) {
	bounds := gtx.Constraints.Max
	minX, minY := camera.ScreenToWorld(0, 0)
	maxX, maxY := camera.ScreenToWorld(float32(bounds.X), float32(bounds.Y))
	x0, y0 := max(int(minX), 0), max(int(minY), 0)
	x1, y1 := min(int(maxX)+1, w.Width), min(int(maxY)+1, w.Height)

	gap := float32(0)
	if camera.Zoom >= 8 {
		gap = 1
	}
	if gap > 0 {
		sx0, sy0 := camera.WorldToScreen(float64(x0), float64(y0))
		sx1, sy1 := camera.WorldToScreen(float64(x1), float64(y1))
		fillRect(gtx, sx0, sy0, sx1, sy1, ColorGridLine)
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			col := ColorObstacle
			if v, ok := w.NodeAt(core.Pos{X: x, Y: y}); ok {
				col = CellColor(w.Vertex(v).Kind)
			}
			sx, sy := camera.WorldToScreen(float64(x), float64(y))
			fillRect(gtx, sx+gap, sy+gap, sx+camera.Zoom, sy+camera.Zoom, col)
		}
	}
}
