package integration_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/engine"
	"github.com/hazz-dev/botmon/internal/monitor"
	"github.com/hazz-dev/botmon/internal/probe"
	"github.com/hazz-dev/botmon/internal/report"
	"github.com/hazz-dev/botmon/internal/server"
	"github.com/hazz-dev/botmon/internal/storage"
)

// fakeChannel is an in-memory notifier standing in for Telegram.
type fakeChannel struct {
	nextID  atomic.Int64
	sends   atomic.Int64
	edits   atomic.Int64
	dropped atomic.Bool // when set, edits fail as if the message was deleted
}

func (c *fakeChannel) Send(_ context.Context, _ string) (string, error) {
	c.sends.Add(1)
	return "msg-" + strconv.FormatInt(c.nextID.Add(1), 10), nil
}

func (c *fakeChannel) Edit(_ context.Context, _, _ string) error {
	if c.dropped.Load() {
		return errors.New("message to edit not found")
	}
	c.edits.Add(1)
	return nil
}

func (c *fakeChannel) Log(_ context.Context, _ string) {}

// TestIntegration_FullFlow wires the real pipeline: prober → engine →
// sweeper → storage → publisher → HTTP front, against fake targets.
func TestIntegration_FullFlow(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer target.Close()

	var deploys atomic.Int64
	deployTarget := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deploys.Add(1)
	}))
	defer deployTarget.Close()

	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer db.Close()

	channel := &fakeChannel{}
	state := report.NewStateFile(filepath.Join(t.TempDir(), "report_id.txt"))
	publisher, err := report.NewPublisher(channel, state, nil)
	if err != nil {
		t.Fatal(err)
	}

	bots := []*bot.Bot{{
		ID:        "bot1",
		URL:       target.URL,
		DeployURL: deployTarget.URL,
		Status:    bot.StatusUnknown,
	}}

	prober := probe.NewProber(2 * time.Second)
	deployer := probe.NewDeployer(2*time.Second, channel, nil)
	eng := engine.New(prober, deployer, 2, 10*time.Minute, nil)
	sweeper := monitor.New(bots, eng, publisher, db, time.Minute, nil)

	ctx := context.Background()

	// Sweep 1: healthy target comes up; first report is created.
	sweeper.RunSweep(ctx)
	snap := sweeper.Snapshot()
	if snap.Bots[0].Status != bot.StatusUp {
		t.Fatalf("sweep 1: expected up, got %q", snap.Bots[0].Status)
	}
	if channel.sends.Load() != 1 {
		t.Fatalf("sweep 1: expected one report send, got %d", channel.sends.Load())
	}
	if id, _ := state.Load(); id == "" {
		t.Fatal("sweep 1: expected persisted report id")
	}

	// Sweeps 2 and 3: target fails; debounce, then redeploy.
	healthy.Store(false)
	sweeper.RunSweep(ctx)
	if st := sweeper.Snapshot().Bots[0].Status; st != bot.StatusDown {
		t.Fatalf("sweep 2: expected down, got %q", st)
	}
	sweeper.RunSweep(ctx)
	if st := sweeper.Snapshot().Bots[0].Status; st != bot.StatusDeploying {
		t.Fatalf("sweep 3: expected deploying, got %q", st)
	}
	if deploys.Load() != 1 {
		t.Fatalf("expected exactly one deploy request, got %d", deploys.Load())
	}

	// Reports after the first were edits of the same message.
	if channel.sends.Load() != 1 || channel.edits.Load() != 2 {
		t.Errorf("expected 1 send and 2 edits, got %d/%d", channel.sends.Load(), channel.edits.Load())
	}

	// History landed in storage.
	latest, err := db.LatestProbe(ctx, "bot1")
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.Status != "deploying" {
		t.Fatalf("unexpected stored probe: %+v", latest)
	}

	// HTTP front mirrors the roster.
	front := server.New(sweeper, db, nil)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	front.Router().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("/status: expected 200, got %d", w.Code)
	}
	var resp struct {
		OK   bool `json:"ok"`
		Bots []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"bots"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.OK || len(resp.Bots) != 1 || resp.Bots[0].Status != "deploying" {
		t.Errorf("unexpected status payload: %+v", resp)
	}

	// External deletion of the report: the next publish recreates it.
	channel.dropped.Store(true)
	sweeper.RunSweep(ctx)
	if channel.sends.Load() != 2 {
		t.Errorf("expected a fallback send after edit failure, got %d sends", channel.sends.Load())
	}
}
