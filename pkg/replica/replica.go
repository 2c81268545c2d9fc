// Package replica keeps a local surface in step with a shared remote log.
//
// A Replica remembers which stamps the remote is known to hold. Pull
// decodes everything the remote has, ingesting each stamp into the local
// clock, and unions it into the surface log. Push sends the local events
// the remote has not seen. Both directions are idempotent, so Sync can run
// as often as the caller likes.
//
// A Replica is not goroutine-safe; drive it from one goroutine.
package replica

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/daviddao/playspace/pkg/camera"
	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"
	"github.com/daviddao/playspace/pkg/surface"
)

// Remote is the shared event log. *store.Store satisfies it.
type Remote interface {
	FetchAll(ctx context.Context) ([]event.Record, error)
	PushNew(ctx context.Context, recs []event.Record) (int, error)
}

// Replica binds a surface to a remote log.
type Replica struct {
	remote  Remote
	clock   *clock.Clock
	surface surface.Surface
	known   event.StampSet
	log     *zap.Logger
}

// New returns a replica for actor whose events are stamped by clk.
func New(remote Remote, clk *clock.Clock, actor int64, cam camera.Camera, log *zap.Logger) *Replica {
	if log == nil {
		log = zap.NewNop()
	}
	return &Replica{
		remote:  remote,
		clock:   clk,
		surface: surface.New(actor, clk, cam),
		known:   make(event.StampSet),
		log:     log.With(zap.Uint8("source", clk.Source()), zap.Int64("actor", actor)),
	}
}

// Surface returns the current surface.
func (r *Replica) Surface() surface.Surface { return r.surface }

// Clock returns the replica's clock.
func (r *Replica) Clock() *clock.Clock { return r.clock }

// Snapshot reconciles the current log.
func (r *Replica) Snapshot() (model.Snapshot, error) { return r.surface.Snapshot() }

// Update replaces the surface with fn's result. The result must still
// reconcile, so a bad local event never reaches Push. On error the surface
// is left as it was.
func (r *Replica) Update(fn func(surface.Surface) (surface.Surface, error)) error {
	next, err := fn(r.surface)
	if err != nil {
		return err
	}
	if _, err := next.Snapshot(); err != nil {
		r.log.Warn("local update does not reconcile", zap.Error(err))
		return err
	}
	r.surface = next
	return nil
}

// Unpushed returns the stamps of local events the remote is not known to
// hold, ascending.
func (r *Replica) Unpushed() []clock.ID {
	var out []clock.ID
	for _, id := range r.surface.Log().Stamps() {
		if !r.known.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// Pull merges the remote log into the surface and returns how many events
// were new locally.
func (r *Replica) Pull(ctx context.Context) (int, error) {
	recs, err := r.remote.FetchAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch: %w", err)
	}
	events, err := event.DecodeAll(recs, r.clock)
	if err != nil {
		r.log.Error("decode remote log", zap.Error(err))
		return 0, fmt.Errorf("pull: %w", err)
	}
	incoming, err := event.NewLog(events...)
	if err != nil {
		return 0, fmt.Errorf("pull: %w", err)
	}

	local := r.surface.Log()
	fresh := 0
	for _, id := range incoming.Stamps() {
		if !local.Has(id) {
			fresh++
		}
	}
	merged, err := r.surface.Merge(incoming)
	if err != nil {
		r.log.Error("merge remote log", zap.Error(err))
		return 0, err
	}
	r.surface = merged
	for _, id := range incoming.Stamps() {
		r.known.Add(id)
	}
	r.log.Debug("pulled", zap.Int("fetched", len(recs)), zap.Int("new", fresh))
	return fresh, nil
}

// Push sends local events the remote is not known to hold and returns how
// many the remote accepted as new.
func (r *Replica) Push(ctx context.Context) (int, error) {
	recs := event.DiffForUpsert(r.known, r.surface.Log().Events())
	if len(recs) == 0 {
		return 0, nil
	}
	n, err := r.remote.PushNew(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("push: %w", err)
	}
	for _, rec := range recs {
		r.known.Add(rec.Stamp)
	}
	r.log.Debug("pushed", zap.Int("sent", len(recs)), zap.Int("accepted", n))
	return n, nil
}

// SyncResult counts the events moved by one Sync.
type SyncResult struct {
	Pulled int `json:"pulled"`
	Pushed int `json:"pushed"`
}

// Sync pulls then pushes.
func (r *Replica) Sync(ctx context.Context) (SyncResult, error) {
	var res SyncResult
	var err error
	if res.Pulled, err = r.Pull(ctx); err != nil {
		return res, err
	}
	if res.Pushed, err = r.Push(ctx); err != nil {
		return res, err
	}
	return res, nil
}
