package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/daviddao/playspace/internal/config"
	"github.com/daviddao/playspace/pkg/clock"
	"github.com/daviddao/playspace/pkg/event"
	"github.com/daviddao/playspace/pkg/model"
	"github.com/daviddao/playspace/pkg/reconcile"
	"github.com/daviddao/playspace/pkg/store"
)

// --- parseFloats tests ---

func TestParseFloats(t *testing.T) {
	got, err := parseFloats([]string{"1.5", "-2"}, "x", "y")
	if err != nil {
		t.Fatalf("parseFloats: %v", err)
	}
	if got[0] != 1.5 || got[1] != -2 {
		t.Fatalf("parseFloats = %v, want [1.5 -2]", got)
	}
}

func TestParseFloats_WrongCount(t *testing.T) {
	if _, err := parseFloats([]string{"1"}, "x", "y"); err == nil {
		t.Fatal("expected error for missing argument")
	}
}

func TestParseFloats_NotANumber(t *testing.T) {
	if _, err := parseFloats([]string{"1", "north"}, "x", "y"); err == nil {
		t.Fatal("expected error for non-numeric argument")
	}
}

func TestParseFloats_NotFinite(t *testing.T) {
	for _, arg := range []string{"NaN", "inf", "-Inf"} {
		if _, err := parseFloats([]string{"1", arg}, "x", "y"); err == nil {
			t.Fatalf("expected error for %q", arg)
		}
	}
}

// --- presence tests ---

func TestReplicaPresence(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Second, "online"},
		{5 * time.Minute, "idle"},
		{time.Hour, "offline"},
	}
	for _, tt := range tests {
		r := model.Replica{LastSeen: time.Now().Add(-tt.ago)}
		if got := replicaPresence(r); got != tt.want {
			t.Errorf("replicaPresence(%s ago) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestPresenceIndicator(t *testing.T) {
	for presence, want := range map[string]string{
		"online": "[+]", "idle": "[~]", "offline": "[-]", "unknown": "[-]",
	} {
		if got := presenceIndicator(presence); got != want {
			t.Errorf("presenceIndicator(%q) = %q, want %q", presence, got, want)
		}
	}
}

// --- printing tests ---

func TestPrintComponent_Held(t *testing.T) {
	c := model.NewComponent(3, 1.25, -4, 1)
	c.Grab = &model.Grab{Actor: 7, Pointer: 2}
	out := captureStdout(t, func() { printComponent(c) })
	if !strings.Contains(out, "card 3") || !strings.Contains(out, "held by actor 7 pointer 2") {
		t.Fatalf("printComponent: got %q", out)
	}
}

func TestChangedCards(t *testing.T) {
	snap := model.NewSnapshot(
		model.NewComponent(1, 0, 0, 1),
		model.NewComponent(2, 0, 0, 2),
		model.NewComponent(3, 0, 0, 3),
	)
	got := changedCards(snap, reconcile.Delta{Created: []int64{3}, Touched: []int64{1, 3}})
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("changedCards = %+v, want cards 1 and 3", got)
	}
}

// --- command tests ---

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.DB = filepath.Join(t.TempDir(), "test.db")
	cfg.Replica = "test"
	return openTestApp(t, cfg)
}

func openTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	s, err := store.New(cfg.DB)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &app{cfg: cfg, store: s, log: zap.NewNop()}
}

// runCmd runs a subcommand and returns its exit code and stdout.
func runCmd(t *testing.T, a *app, args ...string) (int, string) {
	t.Helper()
	var code int
	out := captureStdout(t, func() { code = a.run(args[0], args[1:]) })
	return code, out
}

func showCards(t *testing.T, a *app) []model.Component {
	t.Helper()
	code, out := runCmd(t, a, "show", "--json")
	if code != exitOK {
		t.Fatalf("show exited %d", code)
	}
	var res struct {
		Components []model.Component `json:"components"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("show --json: %v\n%s", err, out)
	}
	return res.Components
}

func TestGestures_EndToEnd(t *testing.T) {
	a := newTestApp(t)

	if code, _ := runCmd(t, a, "create", "0", "0"); code != exitOK {
		t.Fatalf("create exited %d", code)
	}
	// The default 800x600 viewport maps its centre to the world origin.
	if code, out := runCmd(t, a, "grab", "--pointer", "1", "400", "300"); code != exitOK {
		t.Fatalf("grab exited %d: %s", code, out)
	}
	if code, _ := runCmd(t, a, "drag", "-p", "1", "460", "300"); code != exitOK {
		t.Fatalf("drag exited %d", code)
	}

	cards := showCards(t, a)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}
	if cards[0].X != 10 || cards[0].Y != 0 {
		t.Fatalf("card at (%g, %g), want (10, 0)", cards[0].X, cards[0].Y)
	}
	if cards[0].Grab == nil {
		t.Fatal("card should still be held")
	}

	if code, _ := runCmd(t, a, "drop", "--pointer", "1"); code != exitOK {
		t.Fatalf("drop exited %d", code)
	}
	if cards := showCards(t, a); cards[0].Grab != nil {
		t.Fatal("card should be released after drop")
	}

	n, _ := a.store.CountEvents(t.Context())
	if n != 4 {
		t.Fatalf("shared log has %d events, want 4", n)
	}
}

func TestGrab_EmptySpaceExitsPan(t *testing.T) {
	a := newTestApp(t)
	runCmd(t, a, "create", "0", "0")

	code, out := runCmd(t, a, "grab", "--pointer", "1", "10", "10")
	if code != exitPan {
		t.Fatalf("grab on empty space exited %d, want %d", code, exitPan)
	}
	if !strings.Contains(out, "camera panned") {
		t.Fatalf("grab output = %q", out)
	}
}

func TestCreate_AllocatesNextID(t *testing.T) {
	a := newTestApp(t)
	runCmd(t, a, "create", "--id", "7", "0", "0")
	code, out := runCmd(t, a, "create", "--json", "--", "-20", "20")
	if code != exitOK {
		t.Fatalf("create exited %d", code)
	}
	var res gestureResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("create --json: %v", err)
	}
	if res.Component == nil || res.Component.ID != 8 || res.Component.X != -20 {
		t.Fatalf("created %+v, want card 8 at x=-20", res.Component)
	}
}

func TestCreate_DuplicateIDFails(t *testing.T) {
	a := newTestApp(t)
	runCmd(t, a, "create", "--id", "1", "0", "0")
	var code int
	captureStderr(t, func() { code, _ = runCmd(t, a, "create", "--id", "1", "5", "5") })
	if code != exitError {
		t.Fatalf("conflicting create exited %d, want %d", code, exitError)
	}
	if n, _ := a.store.CountEvents(context.Background()); n != 1 {
		t.Fatalf("shared log holds %d events after refused create, want 1", n)
	}
	if got := len(showCards(t, a)); got != 1 {
		t.Fatalf("show after refused create: %d cards, want 1", got)
	}
}

func TestTwoReplicas_SeeEachOther(t *testing.T) {
	a := newTestApp(t)
	cfg := *a.cfg
	cfg.Replica = "other"
	cfg.Actor = 2
	b := openTestApp(t, &cfg)

	runCmd(t, a, "create", "0", "0")
	runCmd(t, b, "create", "30", "30")

	if got := len(showCards(t, a)); got != 2 {
		t.Fatalf("replica a sees %d cards, want 2", got)
	}

	code, out := runCmd(t, a, "replicas", "--json")
	if code != exitOK || !strings.Contains(out, `"other"`) {
		t.Fatalf("replicas: exit %d, %s", code, out)
	}
	if code, out := runCmd(t, b, "status"); code != exitOK || !strings.Contains(out, "in sync") {
		t.Fatalf("status: exit %d, %s", code, out)
	}
}

func TestExportImport(t *testing.T) {
	a := newTestApp(t)
	runCmd(t, a, "create", "0", "0")
	runCmd(t, a, "create", "15", "0")

	file := filepath.Join(t.TempDir(), "table.cbor")
	if code, _ := runCmd(t, a, "export", file); code != exitOK {
		t.Fatalf("export exited %d", code)
	}

	b := newTestApp(t)
	code, out := runCmd(t, b, "import", "--json", file)
	if code != exitOK {
		t.Fatalf("import exited %d", code)
	}
	if !strings.Contains(out, `"new": 2`) {
		t.Fatalf("import output = %s", out)
	}
	if got := len(showCards(t, b)); got != 2 {
		t.Fatalf("imported %d cards, want 2", got)
	}

	// Importing again adds nothing.
	_, out = runCmd(t, b, "import", "--json", file)
	if !strings.Contains(out, `"new": 0`) {
		t.Fatalf("re-import output = %s", out)
	}
}

func TestImport_ExplicitZeroPointerIsNotACollision(t *testing.T) {
	a := newTestApp(t)
	id, err := clock.Compose(5, 200, 0)
	if err != nil {
		t.Fatal(err)
	}
	zero, x, y := int64(0), 1.0, 2.0
	data, err := event.MarshalRecords([]event.Record{
		{Actor: 3, Stamp: id, Component: 0, Pointer: &zero, X: &x, Y: &y, Kind: event.KindCreate},
	})
	if err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(t.TempDir(), "hand.cbor")
	if err := os.WriteFile(file, data, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{`"new": 1`, `"new": 0`} {
		code, out := runCmd(t, a, "import", "--json", file)
		if code != exitOK || !strings.Contains(out, want) {
			t.Fatalf("import: exit %d, %s, want %s", code, out, want)
		}
	}
}

func TestLog_FilterByKind(t *testing.T) {
	a := newTestApp(t)
	runCmd(t, a, "create", "0", "0")
	runCmd(t, a, "grab", "400", "300")

	_, out := runCmd(t, a, "log", "--kind", "grab")
	if strings.Count(out, "\n") != 1 || !strings.Contains(out, "grab card 0") {
		t.Fatalf("log --kind grab = %q", out)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	a := newTestApp(t)
	var code int
	captureStderr(t, func() { code = a.run("shuffle", nil) })
	if code != exitError {
		t.Fatalf("unknown command exited %d, want %d", code, exitError)
	}
}

// --- Helpers ---

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestStatus_ReportsLatestStamp(t *testing.T) {
	a := newTestApp(t)
	if code, out := runCmd(t, a, "status"); code != exitOK || !strings.Contains(out, "log: empty") {
		t.Fatalf("status on empty log: exit %d, %s", code, out)
	}

	_, out := runCmd(t, a, "create", "--json", "0", "0")
	var created gestureResult
	if err := json.Unmarshal([]byte(out), &created); err != nil || created.Stamp == nil {
		t.Fatalf("create --json: %v\n%s", err, out)
	}

	code, out := runCmd(t, a, "status", "--json")
	if code != exitOK {
		t.Fatalf("status exited %d", code)
	}
	var res struct {
		Events int   `json:"events"`
		Latest int64 `json:"latest"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("status --json: %v\n%s", err, out)
	}
	if res.Events != 1 || res.Latest != int64(*created.Stamp) {
		t.Fatalf("status = %+v, want 1 event, latest %d", res, int64(*created.Stamp))
	}
}
