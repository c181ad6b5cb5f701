// Package engine implements the per-bot status state machine. It consumes
// one probe outcome per sweep and transitions the bot record: consecutive
// failures are debounced before a redeploy is attempted, and a redeploy that
// does not bring the bot back within the grace window parks the record in
// adminClosed until a probe succeeds again.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/probe"
)

// Prober performs one timed GET against a URL.
type Prober interface {
	Probe(ctx context.Context, url string) probe.Result
}

// Remediator fires a redeploy for a bot. It must swallow its own errors;
// its outcome never feeds back into the state transition.
type Remediator interface {
	Deploy(ctx context.Context, b *bot.Bot, prev bot.Status)
}

// Engine drives status transitions for bot records.
type Engine struct {
	prober     Prober
	remediator Remediator
	threshold  int
	grace      time.Duration
	logger     *slog.Logger
}

// New creates an Engine. threshold is the number of consecutive failures
// before a redeploy is attempted; grace is how long a deploying bot may keep
// failing before it is closed. Pass nil logger to use the default.
func New(prober Prober, remediator Remediator, threshold int, grace time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		prober:     prober,
		remediator: remediator,
		threshold:  threshold,
		grace:      grace,
		logger:     logger,
	}
}

// Check probes b once and applies the resulting transition. now is the sweep
// timestamp, captured once per sweep by the caller.
func (e *Engine) Check(ctx context.Context, b *bot.Bot, now time.Time) {
	res := e.prober.Probe(ctx, b.URL)
	b.LastCheckAt = now

	if res.Up() {
		if b.Status != bot.StatusUp {
			e.logger.Info("bot recovered", "bot", b.ID, "from", b.Status)
		}
		b.Status = bot.StatusUp
		b.FailCount = 0
		b.LastDeployAt = time.Time{}
		b.LastPingMs = res.Latency.Milliseconds()
		return
	}

	b.LastPingMs = 0

	switch b.Status {
	case bot.StatusDeploying:
		if now.Sub(b.LastDeployAt) < e.grace {
			return // still inside the grace window
		}
		e.logger.Warn("deploy grace window exhausted, closing", "bot", b.ID)
		b.Status = bot.StatusAdminClosed
		b.LastDeployAt = time.Time{}

	case bot.StatusAdminClosed:
		// Absorbing until a probe succeeds.

	case bot.StatusUnknown, bot.StatusUp, bot.StatusDown:
		b.FailCount++
		if b.FailCount < e.threshold {
			b.Status = bot.StatusDown
			e.logger.Info("probe failed", "bot", b.ID, "fail_count", b.FailCount, "reason", res.Reason)
			return
		}
		prev := b.Status
		b.Status = bot.StatusDeploying
		b.LastDeployAt = now
		b.FailCount = 0
		e.remediator.Deploy(ctx, b, prev)
	}
}
