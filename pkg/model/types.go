// Package model defines the core domain types for playspace.
//
// Playspace lets several actors move shared components around a 2D canvas.
// Nothing here is edited directly: every change is an event in an
// append-only log, and the state in this package is what folding that log
// produces.
//
//   - Component: a positioned object, optionally held by one pointer.
//   - Snapshot: the derived map from component id to Component. Snapshots
//     are immutable; a Builder copies on first write and freezes into a new
//     Snapshot, so a reader holding an old Snapshot is never disturbed.
//   - Replica: a registered process that mints ids under its own source.
package model

import (
	"time"

	"github.com/daviddao/playspace/pkg/clock"
)

// Default component dimensions: a playing card.
const (
	DefaultWidth  = 6.35
	DefaultHeight = 8.89
)

// Grab records which pointer holds a component.
type Grab struct {
	Actor   int64    `json:"actor"`
	Pointer int64    `json:"pointer"`
	Stamp   clock.ID `json:"stamp"`
	// Offset from the component position to the point the pointer touched.
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Component is a positioned object on the canvas. Z orders rendering and
// breaks hit-test ties; it is not a physical coordinate.
type Component struct {
	ID     int64   `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Grab   *Grab   `json:"grab,omitempty"`

	// Stamps of the events that last decided each part of the state, or
	// clock.None. A later reconciliation pass only overrides a part with a
	// larger stamp.
	CreatedAt clock.ID `json:"created_at"`
	MovedAt   clock.ID `json:"moved_at"`
	DroppedAt clock.ID `json:"dropped_at"`

	// Position carried by the Create event, kept to recognise replays.
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
}

// NewComponent returns a component created at (x, y) by the event stamped
// at, with default dimensions and z = 0.
func NewComponent(id int64, x, y float64, at clock.ID) Component {
	return Component{
		ID:        id,
		X:         x,
		Y:         y,
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		CreatedAt: at,
		MovedAt:   clock.None,
		DroppedAt: clock.None,
		OriginX:   x,
		OriginY:   y,
	}
}

// Contains reports whether the world point (x, y) lies inside the
// component's box, which is centred on its position.
func (c Component) Contains(x, y float64) bool {
	hw, hh := c.Width/2, c.Height/2
	return x >= c.X-hw && x <= c.X+hw && y >= c.Y-hh && y <= c.Y+hh
}

// HeldBy reports whether pointer of actor currently holds the component.
func (c Component) HeldBy(actor, pointer int64) bool {
	return c.Grab != nil && c.Grab.Actor == actor && c.Grab.Pointer == pointer
}

// Replica is a registered process. Source is the 8-bit source id stamped
// into every snowport id it mints.
type Replica struct {
	Name       string    `json:"name"`
	Source     uint8     `json:"source"`
	Clock      clock.ID  `json:"clock"`
	Registered time.Time `json:"registered_at"`
	LastSeen   time.Time `json:"last_seen_at"`
}
