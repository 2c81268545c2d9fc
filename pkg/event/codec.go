package event

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same records
// always produce identical bytes, so exported logs can be compared by hash.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("event: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("event: CBOR decoder initialization failed: " + err.Error())
	}
}

// MarshalRecords encodes records as a CBOR array.
func MarshalRecords(recs []Record) ([]byte, error) {
	if recs == nil {
		recs = []Record{}
	}
	data, err := encMode.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("marshal records: %w", err)
	}
	return data, nil
}

// UnmarshalRecords decodes a CBOR array written by MarshalRecords.
func UnmarshalRecords(data []byte) ([]Record, error) {
	var recs []Record
	if err := decMode.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	return recs, nil
}
