package main

import (
	"context"
	"fmt"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
)

func (a *app) cmdLog(args []string) int {
	flags, jsonOut := newFlags("log")
	since := flags.Int64("since", int64(clock.None), "only records with stamps greater than this raw id")
	kind := flags.String("kind", "", "filter by event kind (create, grab, drag, drop)")
	limit := flags.Int("limit", 0, "show at most this many records, newest last (0 = all)")
	if err := flags.Parse(args); err != nil {
		return exitError
	}
	if *kind != "" {
		if _, err := event.ParseKind(*kind); err != nil {
			return a.fail("log", err)
		}
	}

	recs, err := a.store.FetchSince(context.Background(), clock.ID(*since))
	if err != nil {
		return a.fail("log", err)
	}
	if *kind != "" {
		filtered := recs[:0]
		for _, r := range recs {
			if string(r.Kind) == *kind {
				filtered = append(filtered, r)
			}
		}
		recs = filtered
	}
	if *limit > 0 && len(recs) > *limit {
		recs = recs[len(recs)-*limit:]
	}

	if *jsonOut {
		printJSON(map[string]any{"records": recs, "count": len(recs)})
		return exitOK
	}
	if len(recs) == 0 {
		fmt.Println("no events")
		return exitOK
	}
	for _, r := range recs {
		printRecord(r)
	}
	return exitOK
}

func printRecord(r event.Record) {
	fmt.Printf("[%s] actor %d %s card %d", r.Stamp, r.Actor, r.Kind, r.Component)
	if r.Pointer != nil {
		fmt.Printf(" pointer=%d", *r.Pointer)
	}
	switch r.Kind {
	case event.KindGrab:
		if r.X != nil && r.Y != nil {
			fmt.Printf(" offset=(%.2f, %.2f)", *r.X, *r.Y)
		}
	default:
		if r.X != nil && r.Y != nil {
			fmt.Printf(" at (%.2f, %.2f)", *r.X, *r.Y)
		}
	}
	fmt.Println()
}
