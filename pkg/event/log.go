package event

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/daviddao/playspace/pkg/clock"
)

var (
	// ErrUnknownKind is returned when decoding a record with an
	// unrecognised kind tag.
	ErrUnknownKind = errors.New("unknown event kind")

	// ErrStampCollision is returned when two different events claim the
	// same snowport id.
	ErrStampCollision = errors.New("stamp collision")
)

// Log is an append-only mapping from snowport id to event. The zero value
// is the empty log. A Log is immutable: Append and Union return new logs.
type Log struct {
	entries map[clock.ID]Event
}

// NewLog builds a log from events.
func NewLog(events ...Event) (Log, error) {
	b := Log{}.Builder()
	for _, e := range events {
		if err := b.Add(e); err != nil {
			return Log{}, err
		}
	}
	return b.Freeze(), nil
}

// Len returns the number of events.
func (l Log) Len() int { return len(l.entries) }

// Get returns the event stamped id.
func (l Log) Get(id clock.ID) (Event, bool) {
	e, ok := l.entries[id]
	return e, ok
}

// Has reports whether an event is stamped id.
func (l Log) Has(id clock.ID) bool {
	_, ok := l.entries[id]
	return ok
}

// Stamps returns every key in ascending order.
func (l Log) Stamps() []clock.ID {
	return slices.Sorted(maps.Keys(l.entries))
}

// Events returns every event ordered by stamp.
func (l Log) Events() []Event {
	out := make([]Event, 0, len(l.entries))
	for _, id := range l.Stamps() {
		out = append(out, l.entries[id])
	}
	return out
}

// Append returns a log that also holds e. Appending an event that is
// already present is a no-op.
func (l Log) Append(e Event) (Log, error) {
	b := l.Builder()
	if err := b.Add(e); err != nil {
		return l, err
	}
	return b.Freeze(), nil
}

// Union returns the set union of two logs. Union is commutative and
// idempotent; it fails only if the logs disagree on the event behind a
// stamp.
func (l Log) Union(other Log) (Log, error) {
	if l.Len() < other.Len() {
		l, other = other, l
	}
	b := l.Builder()
	for _, id := range other.Stamps() {
		if err := b.Add(other.entries[id]); err != nil {
			return Log{}, err
		}
	}
	return b.Freeze(), nil
}

// Builder returns a builder seeded with the log's events.
func (l Log) Builder() *Builder {
	return &Builder{base: l.entries}
}

// Builder batches appends to a log and copies the base map once.
type Builder struct {
	base    map[clock.ID]Event
	edits   map[clock.ID]Event
	touched bool
}

// Add appends e. Adding an identical event twice is a no-op.
func (b *Builder) Add(e Event) error {
	id := Stamp(e)
	cur := b.base
	if b.touched {
		cur = b.edits
	}
	if prev, ok := cur[id]; ok {
		if SameEvent(prev, e) {
			return nil
		}
		return fmt.Errorf("%w: %s held by %s, offered %s", ErrStampCollision, id, prev.Kind(), e.Kind())
	}
	if !b.touched {
		b.edits = make(map[clock.ID]Event, len(b.base)+1)
		maps.Copy(b.edits, b.base)
		b.touched = true
	}
	b.edits[id] = e
	return nil
}

// Freeze returns the built log. Later Adds never alter it.
func (b *Builder) Freeze() Log {
	if !b.touched {
		return Log{entries: b.base}
	}
	l := Log{entries: b.edits}
	b.base = b.edits
	b.edits = nil
	b.touched = false
	return l
}
