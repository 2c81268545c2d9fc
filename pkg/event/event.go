// Package event defines the closed set of playspace events and the
// append-only log that holds them.
//
// An Event is one of Create, Grab, Drag or Drop. The set is sealed: only
// this package can add a kind, and every consumer switches over the four
// concrete types. A Log maps snowport ids to events. Because ids are unique
// and the log only grows, merging two logs is a plain set union, which is
// what lets replicas exchange events without coordination.
package event

import (
	"fmt"

	"github.com/daviddao/playspace/pkg/clock"
)

// Kind tags an event on the wire.
type Kind string

const (
	KindCreate Kind = "create"
	KindGrab   Kind = "grab"
	KindDrag   Kind = "drag"
	KindDrop   Kind = "drop"
)

// Kinds lists every event kind in reconciliation order.
var Kinds = []Kind{KindCreate, KindGrab, KindDrag, KindDrop}

// ParseKind validates a wire tag.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindCreate, KindGrab, KindDrag, KindDrop:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Header holds the fields every event carries.
type Header struct {
	// Actor is the user or system that caused the event.
	Actor int64 `json:"actor"`
	// Stamp is the event's snowport id and its key in the log.
	Stamp clock.ID `json:"stamp"`
	// Pointer is the input stream that produced the event, 0 when the
	// event did not come from a local pointer.
	Pointer   int64 `json:"pointer"`
	Component int64 `json:"component"`
}

// Event is a sealed sum type over Create, Grab, Drag and Drop.
type Event interface {
	Head() Header
	Kind() Kind
	isEvent()
}

// Create brings a component into existence at (X, Y).
type Create struct {
	Header
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Grab claims a component for a pointer. The offset is measured from the
// component position to the grab point at the time of the grab.
type Grab struct {
	Header
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// Drag moves a component to the absolute position (X, Y).
type Drag struct {
	Header
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Drop releases a component.
type Drop struct {
	Header
}

func (e Create) Head() Header { return e.Header }
func (e Grab) Head() Header   { return e.Header }
func (e Drag) Head() Header   { return e.Header }
func (e Drop) Head() Header   { return e.Header }

func (Create) Kind() Kind { return KindCreate }
func (Grab) Kind() Kind   { return KindGrab }
func (Drag) Kind() Kind   { return KindDrag }
func (Drop) Kind() Kind   { return KindDrop }

func (Create) isEvent() {}
func (Grab) isEvent()   {}
func (Drag) isEvent()   {}
func (Drop) isEvent()   {}

// Stamp is shorthand for e.Head().Stamp.
func Stamp(e Event) clock.ID { return e.Head().Stamp }
