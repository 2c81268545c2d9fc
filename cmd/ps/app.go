package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/daviddao/playspace/internal/config"
	"github.com/daviddao/playspace/internal/logging"
	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/model"
	"github.com/daviddao/playspace/pkg/replica"
	"github.com/daviddao/playspace/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg   *config.Config
	store store.StoreInterface
	log   *zap.Logger
}

// newApp loads the configuration, opens the database and builds the logger.
// The database directory is created if missing.
func newApp(cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create %s: %w", dir, err)
		}
	}
	s, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", cfg.DB, err)
	}
	return &app{cfg: cfg, store: s, log: log}, nil
}

// Close releases the database connection and flushes the logger.
func (a *app) Close() {
	a.store.Close()
	_ = a.log.Sync()
}

// open registers this replica and returns it positioned after every stamp
// it has minted before, with the shared log not yet pulled.
func (a *app) open(ctx context.Context) (*replica.Replica, *model.Replica, error) {
	reg, err := a.store.RegisterReplica(ctx, a.cfg.Replica)
	if err != nil {
		return nil, nil, fmt.Errorf("register %q: %w", a.cfg.Replica, err)
	}
	clk := clock.New(reg.Source)
	if reg.Clock != clock.None {
		clk.Ingest(reg.Clock)
	}
	r := replica.New(a.store, clk, a.cfg.Actor, a.cfg.Camera, a.log)
	return r, reg, nil
}

// openSynced is open followed by a pull.
func (a *app) openSynced(ctx context.Context) (*replica.Replica, *model.Replica, error) {
	r, reg, err := a.open(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := r.Pull(ctx); err != nil {
		return nil, nil, err
	}
	return r, reg, nil
}

// save pushes local events and persists the replica's clock.
func (a *app) save(ctx context.Context, r *replica.Replica, reg *model.Replica) (int, error) {
	n, err := r.Push(ctx)
	if err != nil {
		return 0, err
	}
	if last, ok := r.Clock().Last(); ok {
		if err := a.store.UpdateReplicaClock(ctx, reg.Name, last); err != nil {
			return n, fmt.Errorf("persist clock: %w", err)
		}
	}
	return n, nil
}

// newFlags returns a flag set with the --json flag every command accepts.
func newFlags(name string) (*pflag.FlagSet, *bool) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	return flags, jsonOut
}

// parseFloats parses exactly n positional arguments.
func parseFloats(args []string, names ...string) ([]float64, error) {
	if len(args) != len(names) {
		return nil, fmt.Errorf("want %d arguments (%v), got %d", len(names), names, len(args))
	}
	out := make([]float64, len(args))
	for i, s := range args {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%s: %q is not a finite number", names[i], s)
		}
		out[i] = v
	}
	return out, nil
}

func (a *app) fail(cmd string, err error) int {
	a.log.Debug("command failed", zap.String("cmd", cmd), zap.Error(err))
	fmt.Fprintf(os.Stderr, "ps: %s: %v\n", cmd, err)
	return exitError
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
