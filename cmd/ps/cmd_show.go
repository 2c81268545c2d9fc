package main

import (
	"context"
	"fmt"

	"github.com/daviddao/playspace/pkg/model"
)

func (a *app) cmdShow(args []string) int {
	flags, jsonOut := newFlags("show")
	if err := flags.Parse(args); err != nil {
		return exitError
	}

	r, _, err := a.openSynced(context.Background())
	if err != nil {
		return a.fail("show", err)
	}
	snap, err := r.Snapshot()
	if err != nil {
		return a.fail("show", err)
	}

	comps := snap.Components()
	if *jsonOut {
		printJSON(map[string]any{"components": comps, "count": len(comps), "events": r.Surface().Log().Len()})
		return exitOK
	}
	if len(comps) == 0 {
		fmt.Println("no cards")
		return exitOK
	}
	for _, c := range comps {
		printComponent(c)
	}
	return exitOK
}

func printComponent(c model.Component) {
	fmt.Printf("card %-4d (%8.2f, %8.2f) z=%g", c.ID, c.X, c.Y, c.Z)
	if c.Grab != nil {
		fmt.Printf("  held by actor %d pointer %d", c.Grab.Actor, c.Grab.Pointer)
	}
	fmt.Println()
}
