package main

import (
	"context"
	"fmt"
)

func (a *app) cmdSync(args []string) int {
	flags, jsonOut := newFlags("sync")
	if err := flags.Parse(args); err != nil {
		return exitError
	}

	ctx := context.Background()
	r, reg, err := a.open(ctx)
	if err != nil {
		return a.fail("sync", err)
	}
	res, err := r.Sync(ctx)
	if err != nil {
		return a.fail("sync", err)
	}
	if _, err := a.save(ctx, r, reg); err != nil {
		return a.fail("sync", err)
	}
	snap, err := r.Snapshot()
	if err != nil {
		return a.fail("sync", err)
	}

	if *jsonOut {
		printJSON(map[string]any{
			"replica": reg.Name,
			"source":  reg.Source,
			"pulled":  res.Pulled,
			"pushed":  res.Pushed,
			"events":  r.Surface().Log().Len(),
			"cards":   snap.Len(),
		})
		return exitOK
	}
	fmt.Printf("sync %s (source %d): pulled %d, pushed %d\n", reg.Name, reg.Source, res.Pulled, res.Pushed)
	fmt.Printf("  %d events, %d cards\n", r.Surface().Log().Len(), snap.Len())
	return exitOK
}
