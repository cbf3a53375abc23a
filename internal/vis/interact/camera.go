// Package interact handles pan, zoom and click detection on the map view.
package interact

import (
	"gioui.org/f32"
	"gioui.org/io/pointer"
)

const (
	defaultZoom = 32 // pixels per cell
	minZoom     = 2
	maxZoom     = 256
	zoomStep    = 1.1
	// pointer travel below this is a click, not a drag
	clickSlop = 4
)

// Camera maps cell coordinates to screen pixels.
type Camera struct {
	OffsetX float32 // screen position of cell origin (0,0)
	OffsetY float32
	Zoom    float32 // pixels per cell

	// Fitted is cleared by Reset; the map view refits on the next frame.
	Fitted bool

	dragging bool
	moved    float32
	last     f32.Point
}

// NewCamera creates a camera that fits the map on first layout.
func NewCamera() *Camera {
	return &Camera{Zoom: defaultZoom}
}

// Reset returns to the fitted view.
func (c *Camera) Reset() {
	c.Zoom = defaultZoom
	c.OffsetX, c.OffsetY = 0, 0
	c.Fitted = false
}

// WorldToScreen converts cell coordinates to screen coordinates.
func (c *Camera) WorldToScreen(worldX, worldY float64) (screenX, screenY float32) {
	screenX = float32(worldX)*c.Zoom + c.OffsetX
	screenY = float32(worldY)*c.Zoom + c.OffsetY
	return
}

// ScreenToWorld converts screen coordinates to cell coordinates.
func (c *Camera) ScreenToWorld(screenX, screenY float32) (worldX, worldY float64) {
	worldX = float64((screenX - c.OffsetX) / c.Zoom)
	worldY = float64((screenY - c.OffsetY) / c.Zoom)
	return
}

// HandleEvent pans on drag and zooms on scroll around the pointer. It
// reports a click when a press is released without dragging.
func (c *Camera) HandleEvent(ev pointer.Event) (click bool) {
	switch ev.Kind {
	case pointer.Press:
		c.dragging = true
		c.moved = 0
		c.last = ev.Position

	case pointer.Drag:
		if c.dragging {
			d := ev.Position.Sub(c.last)
			c.Pan(d.X, d.Y)
			c.moved += abs(d.X) + abs(d.Y)
		}
		c.last = ev.Position

	case pointer.Release:
		click = c.dragging && c.moved < clickSlop
		c.dragging = false

	case pointer.Scroll:
		switch {
		case ev.Scroll.Y > 0:
			c.ZoomBy(1/zoomStep, ev.Position.X, ev.Position.Y)
		case ev.Scroll.Y < 0:
			c.ZoomBy(zoomStep, ev.Position.X, ev.Position.Y)
		}
	}
	return click
}

// Pan pans the camera by the given screen delta.
func (c *Camera) Pan(dx, dy float32) {
	c.OffsetX += dx
	c.OffsetY += dy
}

// ZoomBy zooms by a factor, keeping the cell under the center point fixed.
func (c *Camera) ZoomBy(factor float32, centerX, centerY float32) {
	worldX, worldY := c.ScreenToWorld(centerX, centerY)
	c.Zoom = clampZoom(c.Zoom * factor)
	newScreenX, newScreenY := c.WorldToScreen(worldX, worldY)
	c.OffsetX += centerX - newScreenX
	c.OffsetY += centerY - newScreenY
}

// CenterOn centers the camera on a world position.
func (c *Camera) CenterOn(worldX, worldY float64, screenWidth, screenHeight float32) {
	c.OffsetX = screenWidth/2 - float32(worldX)*c.Zoom
	c.OffsetY = screenHeight/2 - float32(worldY)*c.Zoom
}

// FitBounds zooms and centers so the world rectangle fills the screen
// minus margin pixels on each side.
func (c *Camera) FitBounds(minX, minY, maxX, maxY float64, screenWidth, screenHeight float32, margin float32) {
	worldW := maxX - minX
	worldH := maxY - minY
	if worldW <= 0 || worldH <= 0 {
		return
	}
	zoomX := (screenWidth - 2*margin) / float32(worldW)
	zoomY := (screenHeight - 2*margin) / float32(worldH)
	c.Zoom = clampZoom(min(zoomX, zoomY))
	c.CenterOn((minX+maxX)/2, (minY+maxY)/2, screenWidth, screenHeight)
	c.Fitted = true
}

func clampZoom(z float32) float32 {
	return min(max(z, minZoom), maxZoom)
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
