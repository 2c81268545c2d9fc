package main

import (
	"context"
	"fmt"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/model"
	"github.com/daviddao/playspace/pkg/replica"
	"github.com/daviddao/playspace/pkg/surface"
)

// gestureResult is the --json output of create, grab, drag and drop.
type gestureResult struct {
	Replica   string           `json:"replica"`
	Stamp     *clock.ID        `json:"stamp,omitempty"`
	Component *model.Component `json:"component,omitempty"`
	Panned    bool             `json:"panned"`
	Pushed    int              `json:"pushed"`
}

func (a *app) cmdCreate(args []string) int {
	flags, jsonOut := newFlags("create")
	id := flags.Int64("id", -1, "component id (default: next free id)")
	if err := flags.Parse(args); err != nil {
		return exitError
	}
	xy, err := parseFloats(flags.Args(), "x", "y")
	if err != nil {
		return a.fail("create", err)
	}

	return a.gesture("create", *jsonOut, func(s surface.Surface) (surface.Surface, int64, error) {
		target := *id
		if target < 0 {
			snap, err := s.Snapshot()
			if err != nil {
				return s, 0, err
			}
			target = surface.NextComponentID(snap)
		}
		next, err := s.Create(target, xy[0], xy[1])
		return next, target, err
	})
}

func (a *app) cmdGrab(args []string) int {
	return a.pointerGesture("grab", args, true, func(s surface.Surface, p int64, sx, sy, w, h float64) (surface.Surface, error) {
		return s.Grab(p, sx, sy, w, h)
	})
}

func (a *app) cmdDrag(args []string) int {
	return a.pointerGesture("drag", args, true, func(s surface.Surface, p int64, sx, sy, w, h float64) (surface.Surface, error) {
		return s.Drag(p, sx, sy, w, h)
	})
}

func (a *app) cmdDrop(args []string) int {
	return a.pointerGesture("drop", args, false, func(s surface.Surface, p int64, _, _, _, _ float64) (surface.Surface, error) {
		return s.Drop(p)
	})
}

type pointerFunc func(s surface.Surface, pointer int64, sx, sy, width, height float64) (surface.Surface, error)

// pointerGesture parses --pointer and, when positional is set, the screen
// point, then applies fn. The component reported is the one the pointer
// holds afterwards, or for drop the one it released.
func (a *app) pointerGesture(cmd string, args []string, positional bool, fn pointerFunc) int {
	flags, jsonOut := newFlags(cmd)
	pointer := flags.Int64P("pointer", "p", 1, "pointer id")
	if err := flags.Parse(args); err != nil {
		return exitError
	}
	var sx, sy float64
	if positional {
		pt, err := parseFloats(flags.Args(), "sx", "sy")
		if err != nil {
			return a.fail(cmd, err)
		}
		sx, sy = pt[0], pt[1]
	} else if flags.NArg() != 0 {
		return a.fail(cmd, fmt.Errorf("unexpected arguments %v", flags.Args()))
	}
	w, h := a.cfg.Viewport.Width, a.cfg.Viewport.Height

	return a.gesture(cmd, *jsonOut, func(s surface.Surface) (surface.Surface, int64, error) {
		target := int64(-1)
		if cmd == "drop" {
			if snap, err := s.Snapshot(); err == nil {
				if c, ok := surface.Held(snap, s.Actor(), *pointer); ok {
					target = c.ID
				}
			}
		}
		next, err := fn(s, *pointer, sx, sy, w, h)
		if err != nil || cmd == "drop" {
			return next, target, err
		}
		snap, err := next.Snapshot()
		if err != nil {
			return next, target, err
		}
		if c, ok := surface.Held(snap, next.Actor(), *pointer); ok {
			target = c.ID
		}
		return next, target, nil
	})
}

// gesture pulls, applies fn, pushes and reports. fn returns the component
// the gesture concerned, or -1.
func (a *app) gesture(cmd string, jsonOut bool, fn func(surface.Surface) (surface.Surface, int64, error)) int {
	ctx := context.Background()
	r, reg, err := a.openSynced(ctx)
	if err != nil {
		return a.fail(cmd, err)
	}

	before := r.Surface().Log().Len()
	target := int64(-1)
	err = r.Update(func(s surface.Surface) (surface.Surface, error) {
		next, id, err := fn(s)
		target = id
		return next, err
	})
	if err != nil {
		return a.fail(cmd, err)
	}
	pushed, err := a.save(ctx, r, reg)
	if err != nil {
		return a.fail(cmd, err)
	}

	res := gestureResult{Replica: reg.Name, Pushed: pushed, Panned: r.Surface().Log().Len() == before}
	if !res.Panned {
		if last, ok := r.Clock().Last(); ok {
			res.Stamp = &last
		}
	}
	if target >= 0 {
		if c, ok := lookup(r, target); ok {
			res.Component = &c
		}
	}

	if jsonOut {
		printJSON(res)
	} else if res.Panned {
		fmt.Printf("%s: no card under pointer, camera panned\n", cmd)
	} else {
		fmt.Printf("%s %s", cmd, *res.Stamp)
		if res.Component != nil {
			fmt.Printf(" card %d at (%.2f, %.2f)", res.Component.ID, res.Component.X, res.Component.Y)
		}
		fmt.Println()
	}
	if res.Panned {
		return exitPan
	}
	return exitOK
}

func lookup(r *replica.Replica, id int64) (model.Component, bool) {
	snap, err := r.Snapshot()
	if err != nil {
		return model.Component{}, false
	}
	return snap.Get(id)
}
