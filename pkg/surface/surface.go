// Package surface turns pointer gestures into events.
//
// A Surface pairs the event log with a camera. Grab, Drag and Drop each
// append at most one event and return a new Surface; when a gesture does
// not land on a component it moves the camera instead. Surfaces never
// reconcile eagerly: Snapshot folds the log on demand.
package surface

import (
	"fmt"
	"math"

	"github.com/daviddao/playspace/pkg/camera"
	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"
	"github.com/daviddao/playspace/pkg/reconcile"
)

// Minter hands out fresh snowport ids. *clock.Clock satisfies it.
type Minter interface {
	Mint() (clock.ID, error)
}

// Surface is an immutable view of one actor's canvas.
//
// Surfaces derived from one another share a clock and a reconciliation
// engine, the process-wide state the host application owns.
type Surface struct {
	actor  int64
	clock  Minter
	camera camera.Camera
	log    event.Log
	engine *reconcile.Engine
}

// New returns an empty surface for actor.
func New(actor int64, clk Minter, cam camera.Camera) Surface {
	return Surface{
		actor:  actor,
		clock:  clk,
		camera: cam,
		engine: reconcile.NewEngine(),
	}
}

// Actor returns the actor stamped into every event this surface appends.
func (s Surface) Actor() int64 { return s.actor }

// Log returns the surface's event log.
func (s Surface) Log() event.Log { return s.log }

// Camera returns the surface's camera.
func (s Surface) Camera() camera.Camera { return s.camera }

// WithCamera returns the surface with cam.
func (s Surface) WithCamera(cam camera.Camera) Surface {
	s.camera = cam
	return s
}

// Merge unions remote events into the log.
func (s Surface) Merge(remote event.Log) (Surface, error) {
	merged, err := s.log.Union(remote)
	if err != nil {
		return s, fmt.Errorf("merge: %w", err)
	}
	s.log = merged
	return s, nil
}

// Snapshot reconciles the log into the current component state.
func (s Surface) Snapshot() (model.Snapshot, error) {
	snap, _, err := s.SnapshotDelta()
	return snap, err
}

// SnapshotDelta is Snapshot that also reports what changed since the
// previous reconciliation on the shared engine.
func (s Surface) SnapshotDelta() (model.Snapshot, reconcile.Delta, error) {
	snap, delta, err := s.engine.ApplyDelta(s.log)
	if reconcile.IsAppendOnlyViolation(err) {
		// An older or sibling surface value: fold it from scratch and
		// leave the engine positioned where it was.
		snap, delta, err = reconcile.ReconcileDelta(event.Log{}, model.Snapshot{}, s.log)
	}
	return snap, delta, err
}

// Create appends a Create for component id at world (x, y). It refuses an
// id that already exists at a different origin, since that Create would
// make every replica's log fail to reconcile.
func (s Surface) Create(id int64, x, y float64) (Surface, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return s, fmt.Errorf("create %d: coordinates must be finite, got (%v, %v)", id, x, y)
	}
	snap, err := s.Snapshot()
	if err != nil {
		return s, err
	}
	if c, ok := snap.Get(id); ok && (c.OriginX != x || c.OriginY != y) {
		return s, &reconcile.Error{
			Code:      reconcile.CodeDuplicateCreate,
			Message:   fmt.Sprintf("component already exists at (%g, %g)", c.OriginX, c.OriginY),
			Component: id,
			Stamp:     c.CreatedAt,
		}
	}
	stamp, err := s.clock.Mint()
	if err != nil {
		return s, err
	}
	return s.append(event.Create{Header: s.header(stamp, 0, id), X: x, Y: y})
}

// Grab claims the topmost component under the screen point for pointer,
// or starts a camera pan when there is none. A pointer holds at most one
// component: whatever it still holds is dropped first.
func (s Surface) Grab(pointer int64, sx, sy, width, height float64) (Surface, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return s, err
	}
	next := s
	if _, ok := Held(snap, s.actor, pointer); ok {
		if next, err = s.Drop(pointer); err != nil {
			return s, err
		}
		if snap, err = next.Snapshot(); err != nil {
			return s, err
		}
	}
	wx, wy := next.camera.ProjectToWorld(sx, sy, width, height)
	target, ok := HitTest(snap, wx, wy)
	if !ok {
		return next.WithCamera(next.camera.PanStart(pointer, sx, sy, width, height)), nil
	}
	stamp, err := next.clock.Mint()
	if err != nil {
		return s, err
	}
	return next.append(event.Grab{
		Header:  next.header(stamp, pointer, target.ID),
		OffsetX: wx - target.X,
		OffsetY: wy - target.Y,
	})
}

// Drag moves the component pointer holds so the grab point follows the
// pointer, or pans the camera when pointer holds nothing.
func (s Surface) Drag(pointer int64, sx, sy, width, height float64) (Surface, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return s, err
	}
	held, ok := Held(snap, s.actor, pointer)
	if !ok {
		return s.WithCamera(s.camera.PanMove(pointer, sx, sy, width, height)), nil
	}
	stamp, err := s.clock.Mint()
	if err != nil {
		return s, err
	}
	wx, wy := s.camera.ProjectToWorld(sx, sy, width, height)
	return s.append(event.Drag{
		Header: s.header(stamp, pointer, held.ID),
		X:      wx - held.Grab.OffsetX,
		Y:      wy - held.Grab.OffsetY,
	})
}

// Drop releases the component pointer holds, or ends its camera pan.
func (s Surface) Drop(pointer int64) (Surface, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return s, err
	}
	held, ok := Held(snap, s.actor, pointer)
	if !ok {
		return s.WithCamera(s.camera.PanEnd(pointer)), nil
	}
	stamp, err := s.clock.Mint()
	if err != nil {
		return s, err
	}
	return s.append(event.Drop{Header: s.header(stamp, pointer, held.ID)})
}

func (s Surface) header(stamp clock.ID, pointer, component int64) event.Header {
	return event.Header{Actor: s.actor, Stamp: stamp, Pointer: pointer, Component: component}
}

func (s Surface) append(e event.Event) (Surface, error) {
	next, err := s.log.Append(e)
	if err != nil {
		return s, err
	}
	s.log = next
	return s, nil
}
