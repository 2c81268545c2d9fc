package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func stamp(t *testing.T, ms int64, source uint8) clock.ID {
	t.Helper()
	id, err := clock.Compose(ms, source, 0)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func f(v float64) *float64 { return &v }

func createRec(id clock.ID, component int64, x, y float64) event.Record {
	return event.Record{Actor: 1, Stamp: id, Component: component, X: f(x), Y: f(y), Kind: event.KindCreate}
}

// --- Event tests ---

func TestPushNewAndFetchAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	pointer := int64(3)

	recs := []event.Record{
		createRec(stamp(t, 2, 0), 0, 1.5, -2),
		{Actor: 1, Stamp: stamp(t, 3, 0), Component: 0, Pointer: &pointer, X: f(0.25), Y: f(0), Kind: event.KindGrab},
		{Actor: 1, Stamp: stamp(t, 4, 0), Component: 0, Kind: event.KindDrop},
	}
	n, err := s.PushNew(ctx, recs)
	if err != nil {
		t.Fatalf("PushNew: %v", err)
	}
	if n != 3 {
		t.Fatalf("PushNew inserted %d, want 3", n)
	}

	got, err := s.FetchAll(ctx)
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].Kind != event.KindCreate || *got[0].X != 1.5 || *got[0].Y != -2 {
		t.Fatalf("create record = %+v", got[0])
	}
	if got[1].Pointer == nil || *got[1].Pointer != 3 {
		t.Fatalf("grab pointer not round-tripped: %+v", got[1])
	}
	if got[2].X != nil || got[2].Y != nil || got[2].Pointer != nil {
		t.Fatalf("drop should carry no optional fields: %+v", got[2])
	}
}

func TestPushNew_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := createRec(stamp(t, 1, 0), 0, 0, 0)

	if _, err := s.PushNew(ctx, []event.Record{rec}); err != nil {
		t.Fatal(err)
	}
	n, err := s.PushNew(ctx, []event.Record{rec, createRec(stamp(t, 2, 0), 1, 0, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("re-push inserted %d, want 1", n)
	}
}

func TestPushNew_CollisionRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rec := createRec(stamp(t, 1, 0), 0, 0, 0)
	if _, err := s.PushNew(ctx, []event.Record{rec}); err != nil {
		t.Fatal(err)
	}

	moved := createRec(rec.Stamp, 0, 9, 9)
	_, err := s.PushNew(ctx, []event.Record{createRec(stamp(t, 2, 0), 1, 0, 0), moved})
	if !errors.Is(err, event.ErrStampCollision) {
		t.Fatalf("expected ErrStampCollision, got %v", err)
	}

	got, _ := s.FetchAll(ctx)
	if len(got) != 1 || *got[0].X != 0 {
		t.Fatalf("colliding batch changed the log: %+v", got)
	}
}

func TestPushNew_Empty(t *testing.T) {
	s := newTestStore(t)
	n, err := s.PushNew(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("PushNew(nil) = %d, %v", n, err)
	}
}

func TestFetchSince(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a, b, c := stamp(t, 1, 0), stamp(t, 1, 4), stamp(t, 2, 0)
	s.PushNew(ctx, []event.Record{createRec(c, 2, 0, 0), createRec(a, 0, 0, 0), createRec(b, 1, 0, 0)})

	got, err := s.FetchSince(ctx, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Stamp != b || got[1].Stamp != c {
		t.Fatalf("FetchSince(%v) = %+v", a, got)
	}
}

func TestCountAndMaxStamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	top, err := s.MaxStamp(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if top != clock.None {
		t.Fatalf("empty log MaxStamp = %v, want None", top)
	}

	s.PushNew(ctx, []event.Record{createRec(stamp(t, 7, 1), 0, 0, 0), createRec(stamp(t, 3, 2), 1, 0, 0)})
	count, _ := s.CountEvents(ctx)
	if count != 2 {
		t.Fatalf("CountEvents = %d, want 2", count)
	}
	top, _ = s.MaxStamp(ctx)
	if top != stamp(t, 7, 1) {
		t.Fatalf("MaxStamp = %v, want %v", top, stamp(t, 7, 1))
	}
	stamps, _ := s.Stamps(ctx)
	if len(stamps) != 2 || stamps[0] != stamp(t, 3, 2) {
		t.Fatalf("Stamps = %v", stamps)
	}
}

func TestPushNew_ConcurrentWriters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for src := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var recs []event.Record
			for ms := range 25 {
				id, _ := clock.Compose(int64(ms), uint8(src), 0)
				recs = append(recs, createRec(id, int64(src*100+ms), 0, 0))
			}
			if _, err := s.PushNew(ctx, recs); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent PushNew: %v", err)
	}
	if count, _ := s.CountEvents(ctx); count != 100 {
		t.Fatalf("CountEvents = %d, want 100", count)
	}
}

// --- Replica tests ---

func TestRegisterReplica_AllocatesSources(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.RegisterReplica(ctx, "alice")
	if err != nil {
		t.Fatalf("RegisterReplica: %v", err)
	}
	b, _ := s.RegisterReplica(ctx, "bob")
	if a.Source != 0 || b.Source != 1 {
		t.Fatalf("sources = %d, %d, want 0, 1", a.Source, b.Source)
	}
	if a.Clock != clock.None {
		t.Fatalf("new replica clock = %v, want None", a.Clock)
	}

	again, _ := s.RegisterReplica(ctx, "alice")
	if again.Source != 0 {
		t.Fatalf("re-register changed source to %d", again.Source)
	}
}

func TestRegisterReplica_Exhausted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i <= clock.MaxSource; i++ {
		if _, err := s.RegisterReplica(ctx, fmt.Sprintf("r%03d", i)); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	_, err := s.RegisterReplica(ctx, "one-too-many")
	if !errors.Is(err, ErrNoFreeSource) {
		t.Fatalf("expected ErrNoFreeSource, got %v", err)
	}
}

func TestGetReplica_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetReplica(context.Background(), "nobody")
	if !errors.Is(err, ErrReplicaNotFound) {
		t.Fatalf("expected ErrReplicaNotFound, got %v", err)
	}
}

func TestUpdateReplicaClock_Monotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.RegisterReplica(ctx, "alice")

	hi, lo := stamp(t, 9, 0), stamp(t, 2, 0)
	if err := s.UpdateReplicaClock(ctx, "alice", hi); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateReplicaClock(ctx, "alice", lo); err != nil {
		t.Fatal(err)
	}
	r, _ := s.GetReplica(ctx, "alice")
	if r.Clock != hi {
		t.Fatalf("clock = %v, want %v", r.Clock, hi)
	}

	if err := s.UpdateReplicaClock(ctx, "nobody", hi); !errors.Is(err, ErrReplicaNotFound) {
		t.Fatalf("expected ErrReplicaNotFound, got %v", err)
	}
}

func TestListReplicas_Ordered(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.RegisterReplica(ctx, "carol")
	s.RegisterReplica(ctx, "alice")

	replicas, err := s.ListReplicas(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(replicas) != 2 || replicas[0].Name != "carol" || replicas[1].Name != "alice" {
		t.Fatalf("replicas not ordered by source: %+v", replicas)
	}
}
