// Command ps is the playspace CLI: a shared canvas of cards that several
// replicas move around concurrently, converging through a shared SQLite log.
package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitPan   = 2 // gesture missed every component and moved the camera
)

func main() {
	args := os.Args[1:]
	var cfgPath string
	if len(args) >= 2 && args[0] == "--config" {
		cfgPath, args = args[1], args[2:]
	}
	if len(args) < 1 {
		printUsage()
		os.Exit(exitError)
	}

	switch args[0] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("ps", version)
		return
	}

	a, err := newApp(cfgPath)
	if err != nil {
		fatal("%v", err)
	}
	code := a.run(args[0], args[1:])
	a.Close()
	os.Exit(code)
}

func (a *app) run(cmd string, args []string) int {
	switch cmd {
	// Setup
	case "init":
		return a.cmdInit(args)

	// Gestures
	case "create":
		return a.cmdCreate(args)
	case "grab":
		return a.cmdGrab(args)
	case "drag":
		return a.cmdDrag(args)
	case "drop":
		return a.cmdDrop(args)

	// Inspection
	case "show":
		return a.cmdShow(args)
	case "log":
		return a.cmdLog(args)
	case "status":
		return a.cmdStatus(args)
	case "replicas":
		return a.cmdReplicas(args)

	// Replication
	case "sync":
		return a.cmdSync(args)
	case "watch":
		return a.cmdWatch(args)
	case "export":
		return a.cmdExport(args)
	case "import":
		return a.cmdImport(args)

	default:
		fmt.Fprintf(os.Stderr, "ps: unknown command %q\n", cmd)
		fmt.Fprintln(os.Stderr, "Run 'ps --help' for usage.")
		return exitError
	}
}

func printUsage() {
	fmt.Print(`ps: a shared playspace of cards

Every gesture becomes an event in a shared log. Replicas merge logs by
union and fold them into the same layout, whatever order events arrive in.

Usage:
  ps [--config FILE] <command> [flags]

Setup:
  init                      Register this replica and print its source id

Gestures (screen coordinates in the configured viewport):
  create [--id N] <x> <y>   Place a card at world (x, y)
  grab --pointer P <sx> <sy>  Grab the topmost card under the pointer
  drag --pointer P <sx> <sy>  Move the card the pointer holds
  drop --pointer P          Release the card the pointer holds

Inspection:
  show                      Reconciled snapshot of every card
  log [--since ID] [--kind K]  Raw records in the shared log
  status                    Per-source progress and unpushed events
  replicas                  Registered replicas and their presence

Replication:
  sync                      Pull the shared log, push local events
  watch                     Stream card changes as other replicas write
  export <file>             Write the shared log as CBOR
  import <file>             Merge a CBOR export into the shared log

Use -- before negative coordinates: ps create -- -3 4

Environment:
  PLAYSPACE_CONFIG      YAML config file (default: playspace.yaml if present)
  PLAYSPACE_DB          SQLite database path (default: .playspace/playspace.db)
  PLAYSPACE_REPLICA     Replica name (default: hostname)
  PLAYSPACE_ACTOR       Actor id stamped into events (default: 0)
  PLAYSPACE_LOG_LEVEL   debug, info, warn or error

All commands support --json for machine-readable output.

Exit codes:
  0  success
  1  error
  2  gesture hit no card and panned the camera instead
`)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ps: "+format+"\n", args...)
	os.Exit(exitError)
}
