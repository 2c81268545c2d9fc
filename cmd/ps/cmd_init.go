package main

import (
	"context"
	"fmt"
)

func (a *app) cmdInit(args []string) int {
	flags, jsonOut := newFlags("init")
	if err := flags.Parse(args); err != nil {
		return exitError
	}

	reg, err := a.store.RegisterReplica(context.Background(), a.cfg.Replica)
	if err != nil {
		return a.fail("init", err)
	}

	if *jsonOut {
		printJSON(map[string]any{
			"db":      a.cfg.DB,
			"replica": reg,
			"actor":   a.cfg.Actor,
		})
		return exitOK
	}
	fmt.Printf("playspace ready at %s\n", a.cfg.DB)
	fmt.Printf("  replica %s (source %d), actor %d\n", reg.Name, reg.Source, a.cfg.Actor)
	return exitOK
}
