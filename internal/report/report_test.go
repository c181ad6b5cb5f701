package report_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/monitor"
	"github.com/hazz-dev/botmon/internal/report"
)

// mockNotifier records sends and edits.
type mockNotifier struct {
	nextID  int
	sends   []string
	edits   []string // ids edited
	sendErr error
	editErr error
}

func (m *mockNotifier) Send(_ context.Context, text string) (string, error) {
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.nextID++
	m.sends = append(m.sends, text)
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *mockNotifier) Edit(_ context.Context, id, _ string) error {
	if m.editErr != nil {
		return m.editErr
	}
	m.edits = append(m.edits, id)
	return nil
}

func (m *mockNotifier) Log(_ context.Context, _ string) {}

func testSnapshot() monitor.Snapshot {
	return monitor.Snapshot{
		TakenAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Bots: []bot.Bot{
			{
				ID:          "bot1",
				URL:         "http://ok.test",
				DeployURL:   "http://redeploy.test/bot1",
				Status:      bot.StatusUp,
				LastCheckAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
				LastPingMs:  123,
			},
			{
				ID:        "bot2",
				URL:       "http://dead.test",
				DeployURL: "http://redeploy.test/bot2",
				Status:    bot.StatusAdminClosed,
			},
		},
		Monitor: monitor.Metrics{
			RSSMb:       40.5,
			HeapMb:      12.1,
			UptimeSec:   3600,
			LastLoopMs:  840,
			IntervalSec: 60,
		},
	}
}

func newTestPublisher(t *testing.T, n *mockNotifier) (*report.Publisher, *report.StateFile) {
	t.Helper()
	state := report.NewStateFile(filepath.Join(t.TempDir(), "report_id.txt"))
	p, err := report.NewPublisher(n, state, nil)
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	return p, state
}

func TestStateFile_MissingFileMeansNoReport(t *testing.T) {
	state := report.NewStateFile(filepath.Join(t.TempDir(), "nope.txt"))
	id, err := state.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id != "" {
		t.Errorf("expected empty id, got %q", id)
	}
}

func TestStateFile_SaveOverwrites(t *testing.T) {
	state := report.NewStateFile(filepath.Join(t.TempDir(), "report_id.txt"))
	if err := state.Save("msg-1"); err != nil {
		t.Fatal(err)
	}
	if err := state.Save("msg-2"); err != nil {
		t.Fatal(err)
	}
	id, err := state.Load()
	if err != nil {
		t.Fatal(err)
	}
	if id != "msg-2" {
		t.Errorf("expected msg-2, got %q", id)
	}
}

func TestPublish_FirstPublishCreatesAndPersists(t *testing.T) {
	n := &mockNotifier{}
	p, state := newTestPublisher(t, n)

	if err := p.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(n.sends) != 1 {
		t.Fatalf("expected one send, got %d", len(n.sends))
	}
	id, _ := state.Load()
	if id != "msg-1" {
		t.Errorf("expected persisted id msg-1, got %q", id)
	}
}

func TestPublish_SecondPublishEditsInPlace(t *testing.T) {
	n := &mockNotifier{}
	p, state := newTestPublisher(t, n)
	ctx := context.Background()

	if err := p.Publish(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	if len(n.sends) != 1 {
		t.Errorf("expected no second send, got %d sends", len(n.sends))
	}
	if len(n.edits) != 1 || n.edits[0] != "msg-1" {
		t.Errorf("expected one edit of msg-1, got %v", n.edits)
	}
	id, _ := state.Load()
	if id != "msg-1" {
		t.Errorf("persisted id must stay msg-1, got %q", id)
	}
}

func TestPublish_EditFailureFallsBackToCreate(t *testing.T) {
	n := &mockNotifier{}
	p, state := newTestPublisher(t, n)
	ctx := context.Background()

	if err := p.Publish(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	n.editErr = errors.New("message to edit not found")
	if err := p.Publish(ctx, testSnapshot()); err != nil {
		t.Fatalf("fallback publish: %v", err)
	}

	if len(n.sends) != 2 {
		t.Fatalf("expected a fallback send, got %d sends", len(n.sends))
	}
	id, _ := state.Load()
	if id != "msg-2" {
		t.Errorf("expected persisted id overwritten to msg-2, got %q", id)
	}

	// The new id is used from now on.
	n.editErr = nil
	if err := p.Publish(ctx, testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if n.edits[len(n.edits)-1] != "msg-2" {
		t.Errorf("expected edit of msg-2, got %v", n.edits)
	}
}

func TestPublish_ResumesFromPersistedId(t *testing.T) {
	n := &mockNotifier{}
	state := report.NewStateFile(filepath.Join(t.TempDir(), "report_id.txt"))
	if err := state.Save("msg-42"); err != nil {
		t.Fatal(err)
	}

	p, err := report.NewPublisher(n, state, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatal(err)
	}

	if len(n.sends) != 0 {
		t.Errorf("expected no new send after restart, got %d", len(n.sends))
	}
	if len(n.edits) != 1 || n.edits[0] != "msg-42" {
		t.Errorf("expected edit of persisted msg-42, got %v", n.edits)
	}
}

func TestRender_IncludesRosterAndMetrics(t *testing.T) {
	text := report.Render(testSnapshot())

	for _, want := range []string{
		"bot1", "http://ok.test", "123",
		"bot2", "adminClosed",
		"840ms", "every 60s", "2 bots",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}
