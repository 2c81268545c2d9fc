// Package camera maps screen coordinates onto the playspace canvas and
// tracks pointers that are panning the view.
//
// A Camera is an immutable value. The shorter side of the viewport always
// spans SquareSize world units, centred on (X, Y); screen y grows down while
// world y grows up.
package camera

import "maps"

// DefaultSquareSize is the world span of the viewport's shorter side.
const DefaultSquareSize = 100

// MinSquareSize bounds how far Zoom can go in.
const MinSquareSize = 10

type point struct{ x, y float64 }

// Camera is a view onto the canvas.
type Camera struct {
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	SquareSize float64 `json:"square_size" yaml:"square_size"`

	// World points grabbed by panning pointers.
	anchors map[int64]point
}

// New returns a camera centred on the origin.
func New() Camera {
	return Camera{SquareSize: DefaultSquareSize}
}

// At returns the camera moved to (x, y).
func (c Camera) At(x, y float64) Camera {
	c.X, c.Y = x, y
	return c
}

// Zoom grows the visible span by factor*10 world units, never below
// MinSquareSize.
func (c Camera) Zoom(factor float64) Camera {
	c.SquareSize = max(MinSquareSize, c.SquareSize+factor*10)
	return c
}

// ProjectToWorld maps a screen point in a width x height viewport onto
// world coordinates.
func (c Camera) ProjectToWorld(sx, sy, width, height float64) (float64, float64) {
	side := min(width, height)
	xc := (sx - width/2) / side
	yc := (sy - height/2) / side
	return c.X + xc*c.SquareSize, c.Y - yc*c.SquareSize
}

// PanStart anchors pointer to the world point under it.
func (c Camera) PanStart(pointer int64, sx, sy, width, height float64) Camera {
	x, y := c.ProjectToWorld(sx, sy, width, height)
	anchors := maps.Clone(c.anchors)
	if anchors == nil {
		anchors = make(map[int64]point)
	}
	anchors[pointer] = point{x, y}
	c.anchors = anchors
	return c
}

// PanMove shifts the camera so pointer's anchor stays under it. Pointers
// that never started a pan are ignored.
func (c Camera) PanMove(pointer int64, sx, sy, width, height float64) Camera {
	a, ok := c.anchors[pointer]
	if !ok {
		return c
	}
	x, y := c.ProjectToWorld(sx, sy, width, height)
	c.X += a.x - x
	c.Y += a.y - y
	return c
}

// PanEnd forgets pointer's anchor.
func (c Camera) PanEnd(pointer int64) Camera {
	if _, ok := c.anchors[pointer]; !ok {
		return c
	}
	anchors := maps.Clone(c.anchors)
	delete(anchors, pointer)
	c.anchors = anchors
	return c
}

// Panning reports whether pointer is currently panning.
func (c Camera) Panning(pointer int64) bool {
	_, ok := c.anchors[pointer]
	return ok
}
