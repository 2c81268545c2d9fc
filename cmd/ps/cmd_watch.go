package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/daviddao/playspace/pkg/model"
	"github.com/daviddao/playspace/pkg/reconcile"
	"github.com/daviddao/playspace/pkg/replica"
)

func (a *app) cmdWatch(args []string) int {
	flags, jsonOut := newFlags("watch")
	interval := flags.Duration("interval", a.cfg.Watch.Interval, "polling fallback in case file events are missed")
	if err := flags.Parse(args); err != nil {
		return exitError
	}
	if *interval <= 0 {
		return a.fail("watch", fmt.Errorf("interval must be positive, got %s", *interval))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, reg, err := a.open(ctx)
	if err != nil {
		return a.fail("watch", err)
	}
	w, err := replica.NewWatcher(a.cfg.DB, a.cfg.Watch.Debounce, a.log)
	if err != nil {
		return a.fail("watch", err)
	}
	defer w.Close()

	fmt.Fprintf(os.Stderr, "watching %s as %s (poll every %s, ctrl-c to stop)\n",
		a.cfg.DB, reg.Name, *interval)

	triggers := make(chan struct{}, 1)
	g, gctx := errgroup.WithContext(ctx)

	// File events and the polling ticker both coalesce into triggers.
	g.Go(func() error {
		ticker := time.NewTicker(*interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case _, ok := <-w.Changes():
				if !ok {
					return errors.New("file watcher stopped")
				}
			case <-ticker.C:
			}
			select {
			case triggers <- struct{}{}:
			default:
			}
		}
	})

	g.Go(func() error {
		out := &watchPrinter{json: *jsonOut}
		for {
			if err := refresh(gctx, r, out); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			select {
			case <-gctx.Done():
				return nil
			case <-triggers:
			}
		}
	})

	err = g.Wait()
	if last, ok := r.Clock().Last(); ok {
		if uerr := a.store.UpdateReplicaClock(context.Background(), reg.Name, last); uerr != nil {
			a.log.Warn("persist clock", zap.Error(uerr))
		}
	}
	if err != nil {
		return a.fail("watch", err)
	}
	fmt.Fprintln(os.Stderr, "\nstopped")
	return exitOK
}

// refresh pulls and prints the cards the new events changed.
func refresh(ctx context.Context, r *replica.Replica, out *watchPrinter) error {
	n, err := r.Pull(ctx)
	if err != nil {
		return err
	}
	if n == 0 && out.primed {
		return nil
	}
	snap, delta, err := r.Surface().SnapshotDelta()
	if err != nil {
		return err
	}
	out.print(snap, delta)
	return nil
}

type watchPrinter struct {
	json   bool
	primed bool
}

type watchLine struct {
	Created []int64           `json:"created"`
	Touched []int64           `json:"touched"`
	Cards   []model.Component `json:"cards"`
}

func (p *watchPrinter) print(snap model.Snapshot, delta reconcile.Delta) {
	p.primed = true
	changed := changedCards(snap, delta)
	if len(changed) == 0 {
		return
	}
	if p.json {
		b, _ := json.Marshal(watchLine{Created: delta.Created, Touched: delta.Touched, Cards: changed})
		fmt.Println(string(b))
		return
	}
	for _, c := range changed {
		printComponent(c)
	}
}

// changedCards returns the cards named by delta, ascending by id.
func changedCards(snap model.Snapshot, delta reconcile.Delta) []model.Component {
	seen := make(map[int64]bool, len(delta.Created)+len(delta.Touched))
	for _, id := range delta.Created {
		seen[id] = true
	}
	for _, id := range delta.Touched {
		seen[id] = true
	}
	var out []model.Component
	for _, c := range snap.Components() {
		if seen[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
