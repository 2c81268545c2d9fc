package event

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/playspace/pkg/clock"
)

// recordingClock collects ingested ids.
type recordingClock struct{ seen []clock.ID }

func (r *recordingClock) Ingest(id clock.ID) { r.seen = append(r.seen, id) }

func f(v float64) *float64 { return &v }

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("delete")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestDecode_Kinds(t *testing.T) {
	clk := &recordingClock{}
	cases := []struct {
		name string
		rec  Record
		want Event
	}{
		{
			name: "create",
			rec:  Record{Actor: 1, Stamp: 10, Component: 3, X: f(1), Y: f(2), Kind: KindCreate},
			want: Create{Header: Header{Actor: 1, Stamp: 10, Component: 3}, X: 1, Y: 2},
		},
		{
			name: "grab with offsets",
			rec:  Record{Actor: 1, Stamp: 11, Component: 3, X: f(0.5), Y: f(-0.5), Kind: KindGrab},
			want: Grab{Header: Header{Actor: 1, Stamp: 11, Component: 3}, OffsetX: 0.5, OffsetY: -0.5},
		},
		{
			name: "grab without offsets decodes to zero",
			rec:  Record{Actor: 1, Stamp: 12, Component: 3, Kind: KindGrab},
			want: Grab{Header: Header{Actor: 1, Stamp: 12, Component: 3}},
		},
		{
			name: "drag",
			rec:  Record{Actor: 2, Stamp: 13, Component: 3, X: f(9), Y: f(8), Kind: KindDrag},
			want: Drag{Header: Header{Actor: 2, Stamp: 13, Component: 3}, X: 9, Y: 8},
		},
		{
			name: "drop keeps pointer",
			rec:  Record{Actor: 2, Stamp: 14, Component: 3, Pointer: func() *int64 { p := int64(7); return &p }(), Kind: KindDrop},
			want: Drop{Header: Header{Actor: 2, Stamp: 14, Component: 3, Pointer: 7}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.rec, clk)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
	assert.Equal(t, []clock.ID{10, 11, 12, 13, 14}, clk.seen)
}

func TestDecode_IngestsIntoRealClock(t *testing.T) {
	clk := clock.New(1)
	foreign, err := clock.Compose(1<<20, 200, 5)
	require.NoError(t, err)

	_, err = Decode(Record{Stamp: foreign, Kind: KindDrop}, clk)
	require.NoError(t, err)

	next, err := clk.Mint()
	require.NoError(t, err)
	assert.Greater(t, next, foreign)
}

func TestDecode_Errors(t *testing.T) {
	clk := &recordingClock{}
	_, err := Decode(Record{Stamp: 1, Kind: "spin"}, clk)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = Decode(Record{Stamp: 2, X: f(1), Kind: KindCreate}, clk)
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Decode(Record{Stamp: 3, Kind: KindDrag}, clk)
	assert.ErrorIs(t, err, ErrMissingField)

	assert.Equal(t, []clock.ID{1, 2, 3}, clk.seen, "malformed records are still ingested")
}

func TestDecode_NonFiniteCoordinate(t *testing.T) {
	clk := &recordingClock{}
	_, err := Decode(Record{Stamp: 1, X: f(math.NaN()), Y: f(0), Kind: KindCreate}, clk)
	assert.ErrorIs(t, err, ErrBadCoordinate)

	_, err = Decode(Record{Stamp: 2, X: f(0), Y: f(math.Inf(-1)), Kind: KindGrab}, clk)
	assert.ErrorIs(t, err, ErrBadCoordinate)
}

func TestSameRecord(t *testing.T) {
	p := int64(2)
	a := Record{Stamp: 1, Pointer: &p, X: f(math.NaN()), Y: f(1), Kind: KindDrag}
	b := a
	b.Pointer = ptr(int64(2))
	assert.True(t, SameRecord(a, b))

	b.Y = f(2)
	assert.False(t, SameRecord(a, b))
	b = a
	b.Pointer = nil
	assert.False(t, SameRecord(a, b))
}

func TestEncode_OnlyRelevantFields(t *testing.T) {
	rec := Encode(Drop{Header: Header{Actor: 1, Stamp: 5, Component: 2}})
	assert.Nil(t, rec.X)
	assert.Nil(t, rec.Y)
	assert.Nil(t, rec.Pointer)
	assert.Equal(t, KindDrop, rec.Kind)

	rec = Encode(Grab{Header: Header{Stamp: 6, Pointer: 3}, OffsetX: 1, OffsetY: 2})
	require.NotNil(t, rec.X)
	assert.Equal(t, 1.0, *rec.X)
	assert.Equal(t, 2.0, *rec.Y)
	require.NotNil(t, rec.Pointer)
	assert.Equal(t, int64(3), *rec.Pointer)
}

func TestEncodeDecode_Inverse(t *testing.T) {
	events := []Event{
		Create{Header: Header{Actor: 1, Stamp: 1, Component: 1}, X: 3, Y: 4},
		Grab{Header: Header{Actor: 1, Stamp: 2, Pointer: 9, Component: 1}, OffsetX: 0.25},
		Drag{Header: Header{Actor: 1, Stamp: 3, Pointer: 9, Component: 1}, X: 5, Y: 6},
		Drop{Header: Header{Actor: 1, Stamp: 4, Pointer: 9, Component: 1}},
	}
	clk := &recordingClock{}
	for _, e := range events {
		got, err := Decode(Encode(e), clk)
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestDiffForUpsert_PreservesOrderAndSkipsKnown(t *testing.T) {
	events := []Event{
		Drop{Header: Header{Stamp: 30}},
		Create{Header: Header{Stamp: 10}},
		Drag{Header: Header{Stamp: 20}},
		Grab{Header: Header{Stamp: 15}},
	}
	known := StampSet{}
	known.Add(10)

	recs := DiffForUpsert(known, events)
	var stamps []clock.ID
	for _, r := range recs {
		stamps = append(stamps, r.Stamp)
	}
	assert.Equal(t, []clock.ID{30, 20, 15}, stamps)
	assert.Empty(t, DiffForUpsert(StampSet{10: {}, 15: {}, 20: {}, 30: {}}, events))
}

func TestRecords_CBORRoundTrip(t *testing.T) {
	in := []Record{
		Encode(Create{Header: Header{Actor: 1, Stamp: 1, Component: 1}, X: 3, Y: 4}),
		Encode(Drop{Header: Header{Actor: 1, Stamp: 4, Pointer: 2, Component: 1}}),
	}
	data, err := MarshalRecords(in)
	require.NoError(t, err)

	again, err := MarshalRecords(in)
	require.NoError(t, err)
	assert.Equal(t, data, again, "encoding is deterministic")

	out, err := UnmarshalRecords(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestUnmarshalRecords_Garbage(t *testing.T) {
	_, err := UnmarshalRecords([]byte{0xff, 0x00})
	assert.Error(t, err)
}
