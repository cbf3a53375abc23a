// Package draw renders maps, agents and plans with Gio paint ops.
package draw

import (
	"image"
	"image/color"
	"math"

	"gioui.org/f32"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"
)

func fillRect(gtx layout.Context, x0, y0, x1, y1 float32, col color.NRGBA) {
	r := image.Rect(int(math.Floor(float64(x0))), int(math.Floor(float64(y0))),
		int(math.Ceil(float64(x1))), int(math.Ceil(float64(y1))))
	paint.FillShape(gtx.Ops, col, clip.Rect(r).Op())
}

func fillCircle(gtx layout.Context, cx, cy, radius float32, col color.NRGBA) {
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(cx+radius, cy))
	const segments = 20
	for i := 1; i <= segments; i++ {
		angle := float64(i) * 2 * math.Pi / segments
		path.LineTo(f32.Pt(cx+radius*float32(math.Cos(angle)), cy+radius*float32(math.Sin(angle))))
	}
	path.Close()
	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}

// strokeCircle draws a ring of the given width inside radius.
func strokeCircle(gtx layout.Context, cx, cy, radius, width float32, col color.NRGBA) {
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(cx+radius, cy))
	const segments = 24
	for i := 1; i <= segments; i++ {
		angle := float64(i) * 2 * math.Pi / segments
		path.LineTo(f32.Pt(cx+radius*float32(math.Cos(angle)), cy+radius*float32(math.Sin(angle))))
	}
	path.Close()
	paint.FillShape(gtx.Ops, col, clip.Stroke{Path: path.End(), Width: width}.Op())
}

// strokeSquare outlines a square of half-size h around the center.
func strokeSquare(gtx layout.Context, cx, cy, h, width float32, col color.NRGBA) {
	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(cx-h, cy-h))
	path.LineTo(f32.Pt(cx+h, cy-h))
	path.LineTo(f32.Pt(cx+h, cy+h))
	path.LineTo(f32.Pt(cx-h, cy+h))
	path.Close()
	paint.FillShape(gtx.Ops, col, clip.Stroke{Path: path.End(), Width: width}.Op())
}

func drawSegment(gtx layout.Context, x1, y1, x2, y2, width float32, col color.NRGBA) {
	dx := x2 - x1
	dy := y2 - y1
	length := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	if length < 0.1 {
		return
	}
	dx /= length
	dy /= length
	px := -dy * width / 2
	py := dx * width / 2

	var path clip.Path
	path.Begin(gtx.Ops)
	path.MoveTo(f32.Pt(x1+px, y1+py))
	path.LineTo(f32.Pt(x2+px, y2+py))
	path.LineTo(f32.Pt(x2-px, y2-py))
	path.LineTo(f32.Pt(x1-px, y1-py))
	path.Close()
	paint.FillShape(gtx.Ops, col, clip.Outline{Path: path.End()}.Op())
}
