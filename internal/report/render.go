package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/monitor"
)

var statusMarks = map[bot.Status]string{
	bot.StatusUnknown:     "❔",
	bot.StatusUp:          "✅",
	bot.StatusDown:        "❌",
	bot.StatusDeploying:   "🚀",
	bot.StatusAdminClosed: "⛔",
}

// Render turns a snapshot into the report document published to the notifier.
func Render(snap monitor.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "botmon · %d bots · %s\n",
		len(snap.Bots),
		snap.TakenAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "mem %.1fMB rss / %.1fMB heap · up %s · sweep %dms · every %ds\n",
		snap.Monitor.RSSMb,
		snap.Monitor.HeapMb,
		(time.Duration(snap.Monitor.UptimeSec) * time.Second).String(),
		snap.Monitor.LastLoopMs,
		snap.Monitor.IntervalSec)

	for _, bt := range snap.Bots {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s %s — %s\n", mark(bt.Status), bt.ID, bt.Status)
		fmt.Fprintf(&b, "   %s\n", bt.URL)
		fmt.Fprintf(&b, "   checked %s · deployed %s · ping %dms\n",
			clock(bt.LastCheckAt),
			clock(bt.LastDeployAt),
			bt.LastPingMs)
	}

	return b.String()
}

func mark(s bot.Status) string {
	if m, ok := statusMarks[s]; ok {
		return m
	}
	return "❔"
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.UTC().Format("15:04:05")
}
