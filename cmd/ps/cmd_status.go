package main

import (
	"context"
	"fmt"
	"time"

	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/frontier"
	"github.com/daviddao/playspace/pkg/model"
)

func (a *app) cmdStatus(args []string) int {
	flags, jsonOut := newFlags("status")
	if err := flags.Parse(args); err != nil {
		return exitError
	}

	ctx := context.Background()
	r, reg, err := a.openSynced(ctx)
	if err != nil {
		return a.fail("status", err)
	}
	stamps, err := a.store.Stamps(ctx)
	if err != nil {
		return a.fail("status", err)
	}
	latest, err := a.store.MaxStamp(ctx)
	if err != nil {
		return a.fail("status", err)
	}
	replicas, err := a.store.ListReplicas(ctx)
	if err != nil {
		return a.fail("status", err)
	}

	status := frontier.ComputeStatus(r.Surface().Log(), stamps)
	names := make(map[uint8]string, len(replicas))
	for _, rep := range replicas {
		names[rep.Source] = rep.Name
	}
	snap, snapErr := r.Snapshot()

	if *jsonOut {
		result := map[string]any{
			"replica":  reg,
			"events":   len(stamps),
			"latest":   latest,
			"frontier": status,
		}
		if snapErr != nil {
			result["reconcile_error"] = snapErr.Error()
		} else {
			result["cards"] = snap.Len()
		}
		printJSON(result)
		return exitOK
	}

	fmt.Printf("replica %s (source %d), actor %d\n", reg.Name, reg.Source, a.cfg.Actor)
	if latest == clock.None {
		fmt.Println("log: empty")
	} else {
		fmt.Printf("log: %d events, latest %s\n", len(stamps), latest)
	}
	if snapErr != nil {
		fmt.Printf("cards: RECONCILE FAILED: %v\n", snapErr)
	} else {
		fmt.Printf("cards: %d\n", snap.Len())
	}
	if len(status.Remote) > 0 {
		fmt.Println("sources:")
		for _, m := range status.Remote {
			name := names[m.Source]
			if name == "" {
				name = "?"
			}
			fmt.Printf("  %3d %-20s events=%-5d latest=%s\n", m.Source, name, m.Count, m.Latest)
		}
	}
	if status.InSync {
		fmt.Println("in sync")
	} else {
		fmt.Printf("out of sync: %d unpushed, behind on %d sources\n", len(status.Unpushed), len(status.Behind))
	}
	return exitOK
}

func (a *app) cmdReplicas(args []string) int {
	flags, jsonOut := newFlags("replicas")
	if err := flags.Parse(args); err != nil {
		return exitError
	}

	replicas, err := a.store.ListReplicas(context.Background())
	if err != nil {
		return a.fail("replicas", err)
	}

	type replicaInfo struct {
		model.Replica
		Presence string `json:"presence"`
	}
	infos := make([]replicaInfo, len(replicas))
	for i, rep := range replicas {
		infos[i] = replicaInfo{Replica: rep, Presence: replicaPresence(rep)}
	}

	if *jsonOut {
		printJSON(map[string]any{"replicas": infos, "count": len(infos)})
		return exitOK
	}
	if len(infos) == 0 {
		fmt.Println("no replicas")
		return exitOK
	}
	for _, ri := range infos {
		marker := ""
		if ri.Name == a.cfg.Replica {
			marker = " <-- you"
		}
		fmt.Printf("  %s %3d %-20s clock=%-14s last_seen=%s%s\n",
			presenceIndicator(ri.Presence), ri.Source, ri.Name, ri.Clock,
			ri.LastSeen.Format("15:04:05"), marker)
	}
	return exitOK
}

// replicaPresence returns a presence string based on last_seen time.
//   - "online": seen within 2 minutes
//   - "idle": seen within 10 minutes
//   - "offline": not seen for 10+ minutes
func replicaPresence(r model.Replica) string {
	since := time.Since(r.LastSeen)
	switch {
	case since < 2*time.Minute:
		return "online"
	case since < 10*time.Minute:
		return "idle"
	default:
		return "offline"
	}
}

// presenceIndicator returns a short text indicator for display.
func presenceIndicator(presence string) string {
	switch presence {
	case "online":
		return "[+]"
	case "idle":
		return "[~]"
	default:
		return "[-]"
	}
}
