package reconcile

import (
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"
)

// Engine caches the last (log, snapshot) pair so each Apply only folds the
// events added since. The host application owns one Engine per log; Reset
// returns it to the empty log and snapshot.
//
// Not goroutine-safe: all log mutation and reconciliation happen on one
// goroutine.
type Engine struct {
	log  event.Log
	snap model.Snapshot
}

// NewEngine returns an engine positioned at the empty log.
func NewEngine() *Engine { return &Engine{} }

// Apply reconciles next against the cached pair and caches the result. On
// error the cache is left untouched.
func (e *Engine) Apply(next event.Log) (model.Snapshot, error) {
	snap, _, err := e.ApplyDelta(next)
	return snap, err
}

// ApplyDelta is Apply that also reports which components changed.
func (e *Engine) ApplyDelta(next event.Log) (model.Snapshot, Delta, error) {
	snap, delta, err := ReconcileDelta(e.log, e.snap, next)
	if err != nil {
		return e.snap, Delta{}, err
	}
	e.log, e.snap = next, snap
	return snap, delta, nil
}

// Snapshot returns the last computed snapshot.
func (e *Engine) Snapshot() model.Snapshot { return e.snap }

// Log returns the log behind the last computed snapshot.
func (e *Engine) Log() event.Log { return e.log }

// Reset clears the cache to the empty log and snapshot.
func (e *Engine) Reset() {
	e.log = event.Log{}
	e.snap = model.Snapshot{}
}
