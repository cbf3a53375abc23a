package draw

import (
	"image/color"

	"gioui.org/layout"

	"github.com/elektrokombinacija/pibt-mapd/internal/report"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/interact"
	"github.com/elektrokombinacija/pibt-mapd/internal/vis/state"
)

// DrawPath draws a polyline through cell centers.
func DrawPath(gtx layout.Context, path []state.Point, camera *interact.Camera, col color.NRGBA, width float32) {
	for i := 0; i+1 < len(path); i++ {
		x1, y1 := cellCenter(camera, path[i])
		x2, y2 := cellCenter(camera, path[i+1])
		drawSegment(gtx, x1, y1, x2, y2, width, col)
	}
}

// DrawTrail draws the visited part of a path, fading and thinning towards
// its start.
func DrawTrail(gtx layout.Context, trail []state.Point, camera *interact.Camera, base color.NRGBA) {
	n := len(trail)
	maxWidth := camera.Zoom * 0.15
	for i := 0; i+1 < n; i++ {
		f := float32(i+1) / float32(n)
		col := base
		col.A = uint8(40 + 160*f)
		x1, y1 := cellCenter(camera, trail[i])
		x2, y2 := cellCenter(camera, trail[i+1])
		drawSegment(gtx, x1, y1, x2, y2, maxWidth*(0.3+0.7*f), col)
	}
}

// DrawFuture draws the remaining path dimmed.
func DrawFuture(gtx layout.Context, future []state.Point, camera *interact.Camera, base color.NRGBA) {
	col := base
	col.A = 70
	DrawPath(gtx, future, camera, col, max(1, camera.Zoom*0.06))
}

// DrawTask marks an open task: a dot on its pickup cell, a ring on its
// delivery cell and a faint line between them.
func DrawTask(gtx layout.Context, task report.TaskRecord, camera *interact.Camera) {
	col := AgentColor(int(task.ID) + 7)
	col.A = 150
	p := state.Point{X: float64(task.Pickup.X), Y: float64(task.Pickup.Y)}
	d := state.Point{X: float64(task.Delivery.X), Y: float64(task.Delivery.Y)}
	px, py := cellCenter(camera, p)
	dx, dy := cellCenter(camera, d)

	line := col
	line.A = 40
	drawSegment(gtx, px, py, dx, dy, max(1, camera.Zoom*0.04), line)
	fillCircle(gtx, px, py, camera.Zoom*0.15, col)
	strokeCircle(gtx, dx, dy, camera.Zoom*0.2, max(1, camera.Zoom*0.05), col)
}
