package bot

import "time"

// Status represents the operational state of a monitored bot.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusUp          Status = "up"
	StatusDown        Status = "down"
	StatusDeploying   Status = "deploying"
	StatusAdminClosed Status = "adminClosed"
)

// Bot is the mutable record for a single monitored target. Records are
// created once at startup from configuration and mutated only by the status
// engine during a sweep; the roster never changes while the process runs.
type Bot struct {
	ID        string
	URL       string
	DeployURL string
	Status    Status

	// LastCheckAt is the time of the most recent probe attempt (zero = never).
	LastCheckAt time.Time
	// LastDeployAt is nonzero exactly while Status == deploying.
	LastDeployAt time.Time
	// LastPingMs is the latency of the most recent successful probe,
	// 0 when the last probe failed or none has run yet.
	LastPingMs int64
	// FailCount counts consecutive failed probes. Reset on success and on
	// entering deploying.
	FailCount int
}

// UnixMs returns t as Unix milliseconds, 0 for the zero time.
func UnixMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
