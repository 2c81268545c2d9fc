package event

import (
	"errors"
	"fmt"
	"math"

	"github.com/daviddao/playspace/pkg/clock"
)

var (
	// ErrMissingField is returned when a record lacks a field its kind needs.
	ErrMissingField = errors.New("missing field")

	// ErrBadCoordinate is returned when a record carries a NaN or infinite
	// coordinate.
	ErrBadCoordinate = errors.New("coordinate not finite")
)

// Record is the flat shape an event takes in the remote log and on the
// wire. Fields that do not apply to a kind are absent.
//
// Grabs are offset-based: X and Y of a grab record hold the offset from the
// component position to the grab point.
type Record struct {
	Actor     int64    `json:"actorId" cbor:"actorId"`
	Stamp     clock.ID `json:"sourceTimestamp" cbor:"sourceTimestamp"`
	Component int64    `json:"targetComponentId" cbor:"targetComponentId"`
	Pointer   *int64   `json:"pointerId,omitempty" cbor:"pointerId,omitempty"`
	X         *float64 `json:"x,omitempty" cbor:"x,omitempty"`
	Y         *float64 `json:"y,omitempty" cbor:"y,omitempty"`
	Kind      Kind     `json:"kind" cbor:"kind"`
}

// Ingester observes foreign snowport ids. *clock.Clock satisfies it.
type Ingester interface {
	Ingest(id clock.ID)
}

// Decode maps a record into an event. Every decoded stamp is ingested into
// clk, even when the record turns out to be malformed, so the local clock
// stays ahead of anything the remote log has shown it.
func Decode(rec Record, clk Ingester) (Event, error) {
	clk.Ingest(rec.Stamp)

	h := Header{
		Actor:     rec.Actor,
		Stamp:     rec.Stamp,
		Component: rec.Component,
	}
	if rec.Pointer != nil {
		h.Pointer = *rec.Pointer
	}
	if err := checkFinite(rec); err != nil {
		return nil, err
	}

	switch rec.Kind {
	case KindCreate:
		x, y, err := requireXY(rec)
		if err != nil {
			return nil, err
		}
		return Create{Header: h, X: x, Y: y}, nil
	case KindGrab:
		return Grab{Header: h, OffsetX: valueOr(rec.X), OffsetY: valueOr(rec.Y)}, nil
	case KindDrag:
		x, y, err := requireXY(rec)
		if err != nil {
			return nil, err
		}
		return Drag{Header: h, X: x, Y: y}, nil
	case KindDrop:
		return Drop{Header: h}, nil
	}
	return nil, fmt.Errorf("decode %s: %w: %q", rec.Stamp, ErrUnknownKind, rec.Kind)
}

// DecodeAll decodes records in order, stopping at the first error.
func DecodeAll(recs []Record, clk Ingester) ([]Event, error) {
	out := make([]Event, 0, len(recs))
	for _, rec := range recs {
		e, err := Decode(rec, clk)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Encode maps an event into its record. Only fields relevant to the
// event's kind are set.
func Encode(e Event) Record {
	h := e.Head()
	rec := Record{
		Actor:     h.Actor,
		Stamp:     h.Stamp,
		Component: h.Component,
		Kind:      e.Kind(),
	}
	if h.Pointer != 0 {
		rec.Pointer = ptr(h.Pointer)
	}
	switch e := e.(type) {
	case Create:
		rec.X, rec.Y = ptr(e.X), ptr(e.Y)
	case Grab:
		rec.X, rec.Y = ptr(e.OffsetX), ptr(e.OffsetY)
	case Drag:
		rec.X, rec.Y = ptr(e.X), ptr(e.Y)
	case Drop:
	default:
		panic(fmt.Sprintf("event: unhandled event type %T", e))
	}
	return rec
}

// StampSet is a set of snowport ids.
type StampSet map[clock.ID]struct{}

// Has reports whether id is in the set.
func (s StampSet) Has(id clock.ID) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s StampSet) Add(id clock.ID) { s[id] = struct{}{} }

// DiffForUpsert returns records for the candidates whose stamps are not in
// known, preserving candidate order. It selects the local events a replica
// still has to push to the remote log.
func DiffForUpsert(known StampSet, candidates []Event) []Record {
	var out []Record
	for _, e := range candidates {
		if known.Has(Stamp(e)) {
			continue
		}
		out = append(out, Encode(e))
	}
	return out
}

// SameRecord reports whether a and b describe the same event. Coordinates
// compare equal when both are NaN, so re-offering a record is never a
// collision with itself.
func SameRecord(a, b Record) bool {
	return a.Actor == b.Actor && a.Stamp == b.Stamp && a.Component == b.Component &&
		a.Kind == b.Kind && samePtr(a.Pointer, b.Pointer, func(x, y int64) bool { return x == y }) &&
		samePtr(a.X, b.X, sameFloat) && samePtr(a.Y, b.Y, sameFloat)
}

// SameEvent reports whether a and b are the same event, treating NaN
// coordinates as equal.
func SameEvent(a, b Event) bool {
	if a == b {
		return true
	}
	return SameRecord(Encode(a), Encode(b))
}

func samePtr[T any](a, b *T, eq func(T, T) bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return eq(*a, *b)
}

func sameFloat(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

func requireXY(rec Record) (float64, float64, error) {
	if rec.X == nil || rec.Y == nil {
		return 0, 0, fmt.Errorf("decode %s %s: %w: x/y", rec.Kind, rec.Stamp, ErrMissingField)
	}
	return *rec.X, *rec.Y, nil
}

// checkFinite rejects NaN and infinite coordinates.
func checkFinite(rec Record) error {
	for _, p := range []*float64{rec.X, rec.Y} {
		if p != nil && (math.IsNaN(*p) || math.IsInf(*p, 0)) {
			return fmt.Errorf("decode %s %s: %w: %v", rec.Kind, rec.Stamp, ErrBadCoordinate, *p)
		}
	}
	return nil
}

func valueOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func ptr[T any](v T) *T { return &v }
