// Package reconcile folds an event log into a snapshot of components.
//
// The fold is incremental: given the log that produced a snapshot and a
// larger log, only the added events are applied. It is also order
// independent. Within a pass Creates go first, then for each component only
// the Grab, Drag and Drop with the largest stamp survive (last writer wins)
// and are applied in that fixed kind order. Components remember the stamps
// that decided their grab and position, so an event arriving in a later
// pass with a smaller stamp loses exactly as it would have in one pass.
// Any two replicas that saw the same events therefore hold the same
// snapshot.
package reconcile

import (
	"fmt"
	"maps"
	"slices"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"
)

// Delta reports what a pass changed.
type Delta struct {
	// Created lists components introduced by the pass, ascending.
	Created []int64 `json:"created"`
	// Touched lists pre-existing or new components a gesture event in the
	// pass was applied to, ascending.
	Touched []int64 `json:"touched"`
}

// Reconcile derives the snapshot for next from the pair (prior, priorSnap).
// It fails with an append-only violation if next lacks any event of prior.
func Reconcile(prior event.Log, priorSnap model.Snapshot, next event.Log) (model.Snapshot, error) {
	snap, _, err := ReconcileDelta(prior, priorSnap, next)
	return snap, err
}

// ReconcileDelta is Reconcile that also reports which components changed.
// priorSnap is never modified.
func ReconcileDelta(prior event.Log, priorSnap model.Snapshot, next event.Log) (model.Snapshot, Delta, error) {
	if err := checkAppendOnly(prior, next); err != nil {
		return priorSnap, Delta{}, err
	}

	var (
		creates []event.Create
		grabs   = map[int64]event.Grab{}
		drags   = map[int64]event.Drag{}
		drops   = map[int64]event.Drop{}
	)
	for _, id := range next.Stamps() {
		if prior.Has(id) {
			continue
		}
		e, _ := next.Get(id)
		switch e := e.(type) {
		case event.Create:
			creates = append(creates, e)
		case event.Grab:
			if cur, ok := grabs[e.Component]; !ok || e.Stamp > cur.Stamp {
				grabs[e.Component] = e
			}
		case event.Drag:
			if cur, ok := drags[e.Component]; !ok || e.Stamp > cur.Stamp {
				drags[e.Component] = e
			}
		case event.Drop:
			if cur, ok := drops[e.Component]; !ok || e.Stamp > cur.Stamp {
				drops[e.Component] = e
			}
		default:
			panic(fmt.Sprintf("reconcile: unhandled event type %T", e))
		}
	}

	b := priorSnap.Builder()
	var delta Delta

	// Creates are stamp-ordered by construction.
	for _, e := range creates {
		c, exists := b.Get(e.Component)
		if !exists {
			b.Set(model.NewComponent(e.Component, e.X, e.Y, e.Stamp))
			delta.Created = append(delta.Created, e.Component)
			continue
		}
		if c.OriginX != e.X || c.OriginY != e.Y {
			return priorSnap, Delta{}, duplicateCreate(e.Component, e.Stamp)
		}
		// Replay of the same Create; keep the earliest stamp.
		if e.Stamp < c.CreatedAt {
			c.CreatedAt = e.Stamp
			b.Set(c)
		}
	}

	touched := map[int64]struct{}{}

	for _, id := range slices.Sorted(maps.Keys(grabs)) {
		g := grabs[id]
		c, ok := b.Get(id)
		if !ok {
			return priorSnap, Delta{}, danglingReference("grabbed", id, g.Stamp)
		}
		if g.Stamp > c.DroppedAt && (c.Grab == nil || g.Stamp > c.Grab.Stamp) {
			c.Grab = &model.Grab{
				Actor:   g.Actor,
				Pointer: g.Pointer,
				Stamp:   g.Stamp,
				OffsetX: g.OffsetX,
				OffsetY: g.OffsetY,
			}
			b.Set(c)
		}
		touched[id] = struct{}{}
	}

	for _, id := range slices.Sorted(maps.Keys(drags)) {
		d := drags[id]
		c, ok := b.Get(id)
		if !ok {
			return priorSnap, Delta{}, danglingReference("moved", id, d.Stamp)
		}
		if d.Stamp > c.MovedAt {
			c.X, c.Y = d.X, d.Y
			c.MovedAt = d.Stamp
			b.Set(c)
		}
		touched[id] = struct{}{}
	}

	for _, id := range slices.Sorted(maps.Keys(drops)) {
		d := drops[id]
		c, ok := b.Get(id)
		if !ok {
			return priorSnap, Delta{}, danglingReference("dropped", id, d.Stamp)
		}
		if d.Stamp > c.DroppedAt {
			c.DroppedAt = d.Stamp
			// A stale drop must not release a newer grab.
			if c.Grab != nil && d.Stamp > c.Grab.Stamp {
				c.Grab = nil
			}
			b.Set(c)
		}
		touched[id] = struct{}{}
	}

	delta.Touched = slices.Sorted(maps.Keys(touched))
	return b.Freeze(), delta, nil
}

// checkAppendOnly reports the smallest stamp of prior missing from next.
func checkAppendOnly(prior, next event.Log) error {
	missing := 0
	first := clock.None
	for _, id := range prior.Stamps() {
		if next.Has(id) {
			continue
		}
		if missing == 0 {
			first = id
		}
		missing++
	}
	if missing > 0 {
		return appendOnlyViolation(first, missing)
	}
	return nil
}
