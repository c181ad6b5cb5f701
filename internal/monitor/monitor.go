// Package monitor runs the check loop: one serialized sweep over the whole
// roster per tick, followed by exactly one report publish.
package monitor

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazz-dev/botmon/internal/bot"
	"github.com/hazz-dev/botmon/internal/storage"
)

// Checker applies one probe-and-transition step to a bot record.
type Checker interface {
	Check(ctx context.Context, b *bot.Bot, now time.Time)
}

// Publisher publishes the aggregate report after a sweep.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Store persists per-probe history rows. May be nil to disable history.
type Store interface {
	InsertProbe(ctx context.Context, p storage.Probe) error
}

// Metrics holds process-level figures included in reports and the status API.
type Metrics struct {
	RSSMb       float64
	HeapMb      float64
	UptimeSec   int64
	LastLoopMs  int64
	IntervalSec int64
}

// Snapshot is a consistent copy of the roster plus process metrics.
type Snapshot struct {
	TakenAt time.Time
	Bots    []bot.Bot
	Monitor Metrics
}

// Sweeper owns the roster and drives sweeps. At most one sweep runs at a
// time; a RunSweep while another sweep is in flight is a no-op.
type Sweeper struct {
	bots      []*bot.Bot
	checker   Checker
	publisher Publisher
	store     Store
	interval  time.Duration
	logger    *slog.Logger

	mu         sync.RWMutex // guards bot record mutation vs snapshots
	running    atomic.Bool
	lastLoopMs atomic.Int64
	startedAt  time.Time
}

// New creates a Sweeper over bots, which must be in configuration order.
// Pass nil logger to use the default.
func New(bots []*bot.Bot, checker Checker, publisher Publisher, store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		bots:      bots,
		checker:   checker,
		publisher: publisher,
		store:     store,
		interval:  interval,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Start runs an immediate first sweep, then one sweep per interval until ctx
// is done. Errors inside a sweep never stop the loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.RunSweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunSweep(ctx)
		}
	}
}

// RunSweep executes one full sweep: probe every bot in order, store history,
// then publish the report once. Returns false without doing anything when a
// sweep is already in flight.
func (s *Sweeper) RunSweep(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("sweep already in progress, skipping")
		return false
	}
	defer s.running.Store(false)

	start := time.Now()
	now := start

	for _, b := range s.bots {
		s.checkOne(ctx, b, now)
	}

	s.lastLoopMs.Store(time.Since(start).Milliseconds())

	if err := s.publisher.Publish(ctx, s.Snapshot()); err != nil {
		s.logger.Error("publishing report", "error", err)
	}
	return true
}

func (s *Sweeper) checkOne(ctx context.Context, b *bot.Bot, now time.Time) {
	s.mu.Lock()
	s.checker.Check(ctx, b, now)
	rec := storage.Probe{
		Bot:       b.ID,
		Status:    string(b.Status),
		LatencyMs: b.LastPingMs,
		FailCount: b.FailCount,
		CheckedAt: now.UTC(),
	}
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	if err := s.store.InsertProbe(ctx, rec); err != nil {
		s.logger.Error("storing probe result", "bot", b.ID, "error", err)
	}
}

// Snapshot returns a copy of the roster and current process metrics. Safe to
// call from other goroutines while a sweep is running.
func (s *Sweeper) Snapshot() Snapshot {
	s.mu.RLock()
	bots := make([]bot.Bot, len(s.bots))
	for i, b := range s.bots {
		bots[i] = *b
	}
	s.mu.RUnlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return Snapshot{
		TakenAt: time.Now(),
		Bots:    bots,
		Monitor: Metrics{
			RSSMb:       float64(ms.Sys) / (1 << 20),
			HeapMb:      float64(ms.HeapAlloc) / (1 << 20),
			UptimeSec:   int64(time.Since(s.startedAt).Seconds()),
			LastLoopMs:  s.lastLoopMs.Load(),
			IntervalSec: int64(s.interval.Seconds()),
		},
	}
}
