package store

import (
	"context"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"
)

// StoreInterface defines the full set of store operations. The cmd layer
// depends on it rather than on *Store.
type StoreInterface interface {
	Close() error

	// --- Events ---

	// PushNew inserts records not yet in the log; returns how many were new.
	// A different record under a stored stamp fails with event.ErrStampCollision.
	PushNew(ctx context.Context, recs []event.Record) (int, error)

	// FetchAll returns every record in stamp order.
	FetchAll(ctx context.Context) ([]event.Record, error)

	// FetchSince returns records with stamps greater than after.
	FetchSince(ctx context.Context, after clock.ID) ([]event.Record, error)

	// Stamps returns every stamp in the log, ascending.
	Stamps(ctx context.Context) ([]clock.ID, error)

	CountEvents(ctx context.Context) (int64, error)
	MaxStamp(ctx context.Context) (clock.ID, error)

	// --- Replicas ---

	// RegisterReplica creates or refreshes a replica. Idempotent.
	RegisterReplica(ctx context.Context, name string) (*model.Replica, error)
	GetReplica(ctx context.Context, name string) (*model.Replica, error)
	UpdateReplicaClock(ctx context.Context, name string, last clock.ID) error
	ListReplicas(ctx context.Context) ([]model.Replica, error)
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
