// Package frontier summarises how far each source has progressed in an
// event log.
//
// A source's mark is the largest snowport id it has minted into the log.
// Comparing the marks of a local log against a remote one tells a replica
// which sources it is behind on without shipping the logs themselves:
// since every source mints strictly increasing ids, a remote mark above the
// local one means the remote holds events the local log has not seen.
package frontier

import (
	"slices"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
)

// Mark is the progress of one source.
type Mark struct {
	Source uint8    `json:"source"`
	Latest clock.ID `json:"latest"`
	Count  int      `json:"count"`
}

// Compute returns one mark per source present in stamps, ordered by source.
func Compute(stamps []clock.ID) []Mark {
	bySource := make(map[uint8]*Mark)
	for _, id := range stamps {
		m, ok := bySource[id.Source()]
		if !ok {
			m = &Mark{Source: id.Source(), Latest: clock.None}
			bySource[id.Source()] = m
		}
		m.Count++
		if id > m.Latest {
			m.Latest = id
		}
	}
	out := make([]Mark, 0, len(bySource))
	for _, m := range bySource {
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Mark) int { return int(a.Source) - int(b.Source) })
	return out
}

// ComputeLog is Compute over the stamps of a log.
func ComputeLog(l event.Log) []Mark {
	return Compute(l.Stamps())
}

// Status compares a local log against what the remote is known to hold.
type Status struct {
	InSync bool   `json:"in_sync"`
	Local  []Mark `json:"local"`
	Remote []Mark `json:"remote"`
	// Behind lists the remote marks of sources the local log lags on.
	Behind []Mark `json:"behind,omitempty"`
	// Unpushed lists local stamps the remote does not hold, ascending.
	Unpushed []clock.ID `json:"unpushed,omitempty"`
}

// ComputeStatus reports which sources local is behind remote on and which
// local events remote has not seen.
func ComputeStatus(local event.Log, remote []clock.ID) Status {
	known := make(event.StampSet, len(remote))
	for _, id := range remote {
		known.Add(id)
	}
	status := Status{
		Local:  ComputeLog(local),
		Remote: Compute(remote),
	}
	latest := make(map[uint8]clock.ID, len(status.Local))
	for _, m := range status.Local {
		latest[m.Source] = m.Latest
	}
	for _, m := range status.Remote {
		l, ok := latest[m.Source]
		if !ok || m.Latest > l {
			status.Behind = append(status.Behind, m)
		}
	}
	for _, id := range local.Stamps() {
		if !known.Has(id) {
			status.Unpushed = append(status.Unpushed, id)
		}
	}
	status.InSync = len(status.Behind) == 0 && len(status.Unpushed) == 0
	return status
}
