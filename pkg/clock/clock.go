// Package clock implements the snowport clock, a hybrid logical clock that
// mints totally ordered 52-bit ids without coordination between sources.
//
// An id packs three fields, most significant first:
//
//	36 bits  milliseconds since the clock's origin (a little over 2 years)
//	 8 bits  source: the replica that minted the id
//	 8 bits  sequence within the millisecond
//
// The natural integer order of ids is the event order. Two ids minted in the
// same millisecond by different sources are ordered by source, then sequence.
// 52 bits keeps every id exactly representable as an IEEE-754 double, so ids
// survive JSON round-trips through JavaScript peers.
//
// As with a Lamport clock, two rules govern it:
//
//	Mint:   advance to the local elapsed time (or one millisecond past it
//	        when 256 ids were already minted in this millisecond), then
//	        emit (millis, source, seq) and bump seq.
//	Ingest: on observing a foreign id, fast-forward so that every id minted
//	        afterwards is strictly greater than the one observed.
//
// Note: Clock is not goroutine-safe. Each process owns one Clock and drives
// it from a single goroutine; replicas coordinate only through the log.
package clock

import (
	"errors"
	"fmt"
	"time"
)

// Field widths of a snowport id.
const (
	MillisBits = 36
	SourceBits = 8
	SeqBits    = 8

	// MaxSource is the largest source id a replica may be assigned.
	MaxSource = 1<<SourceBits - 1

	seqLimit    = 1 << SeqBits
	millisLimit = 1 << MillisBits
)

// None sorts below every valid id. It marks "no event yet" wherever an id
// is compared against later ones.
const None ID = -1

// ErrInvariant is returned when composing an id would overflow its fields.
// Given the field widths this means the process ran for more than two years
// or ingested a corrupt id.
var ErrInvariant = errors.New("clock invariant violated")

// ID is a snowport id. The zero value is a valid id (millisecond 0,
// source 0, sequence 0).
type ID int64

// Compose packs the three fields into an id.
func Compose(millis int64, source, seq uint8) (ID, error) {
	if millis < 0 || millis >= millisLimit {
		return 0, fmt.Errorf("%w: millis %d, source %d, seq %d", ErrInvariant, millis, source, seq)
	}
	return ID(millis<<(SourceBits+SeqBits) | int64(source)<<SeqBits | int64(seq)), nil
}

// Millis returns the millisecond field.
func (id ID) Millis() int64 { return int64(id) >> (SourceBits + SeqBits) }

// Source returns the source field.
func (id ID) Source() uint8 { return uint8(id >> SeqBits) }

// Seq returns the per-millisecond sequence field.
func (id ID) Seq() uint8 { return uint8(id) }

// String renders the id as millis.source.seq.
func (id ID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Millis(), id.Source(), id.Seq())
}

// Clock mints snowport ids for one source. Not goroutine-safe; see package doc.
type Clock struct {
	source uint8
	now    func() time.Time

	origin  time.Time
	started bool

	millis int64 // current millisecond counter
	next   int   // next sequence to hand out within millis
	last   ID    // largest id minted or ingested
	seen   bool
}

// New returns a clock for source that reads the wall clock's monotonic
// reading. The origin is fixed on first use.
func New(source uint8) *Clock {
	return NewWithNow(source, time.Now)
}

// NewWithNow returns a clock driven by now. Used by tests to control time.
func NewWithNow(source uint8, now func() time.Time) *Clock {
	return &Clock{source: source, now: now}
}

// Source returns the source id this clock stamps into every minted id.
func (c *Clock) Source() uint8 { return c.source }

// Last returns the largest id minted or ingested so far, and false when the
// clock has seen nothing yet.
func (c *Clock) Last() (ID, bool) { return c.last, c.seen }

// Mint returns a fresh id strictly greater than every id this clock has
// minted or ingested.
func (c *Clock) Mint() (ID, error) {
	if now := c.elapsed(); now > c.millis {
		c.millis = now
		c.next = 0
	}
	if c.next >= seqLimit {
		// Burst: borrow the next millisecond rather than repeat an id.
		c.millis++
		c.next = 0
	}
	id, err := Compose(c.millis, c.source, uint8(c.next))
	if err != nil {
		return 0, err
	}
	c.next++
	c.observe(id)
	return id, nil
}

// Ingest folds a foreign id into the clock. The millisecond counter never
// moves backwards; it is fast-forwarded when the foreign id is ahead.
func (c *Clock) Ingest(id ID) {
	c.observe(id)
	ms := id.Millis()
	if ms > c.millis {
		c.fastForward(ms)
	}
	if ms != c.millis {
		return
	}
	if id.Source() > c.source {
		// Every local id in this millisecond sorts below the foreign one.
		c.fastForward(ms + 1)
		return
	}
	if seq := int(id.Seq()) + 1; seq > c.next {
		c.next = seq
	}
}

func (c *Clock) fastForward(ms int64) {
	if cur := c.elapsed(); ms > cur {
		c.origin = c.now().Add(-time.Duration(ms) * time.Millisecond)
	}
	c.millis = ms
	c.next = 0
}

func (c *Clock) observe(id ID) {
	if !c.seen || id > c.last {
		c.last = id
		c.seen = true
	}
}

func (c *Clock) elapsed() int64 {
	if !c.started {
		c.origin = c.now()
		c.started = true
	}
	return c.now().Sub(c.origin).Milliseconds()
}
