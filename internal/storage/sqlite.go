package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS probes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    bot        TEXT    NOT NULL,
    status     TEXT    NOT NULL CHECK(status IN ('unknown', 'up', 'down', 'deploying', 'adminClosed')),
    latency_ms INTEGER NOT NULL,
    fail_count INTEGER NOT NULL DEFAULT 0,
    checked_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_probes_bot ON probes(bot);
CREATE INDEX IF NOT EXISTS idx_probes_checked_at ON probes(checked_at DESC);
CREATE INDEX IF NOT EXISTS idx_probes_bot_checked ON probes(bot, checked_at DESC);
`

// Probe is a stored probe outcome.
type Probe struct {
	ID        int64
	Bot       string
	Status    string
	LatencyMs int64
	FailCount int
	CheckedAt time.Time
}

// DB wraps a SQLite database holding probe history.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertProbe persists one probe outcome.
func (d *DB) InsertProbe(ctx context.Context, p Probe) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO probes (bot, status, latency_ms, fail_count, checked_at) VALUES (?, ?, ?, ?, ?)`,
		p.Bot,
		p.Status,
		p.LatencyMs,
		p.FailCount,
		p.CheckedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting probe for %q: %w", p.Bot, err)
	}
	return nil
}

// LatestProbe returns the most recent probe for the given bot, or nil if none.
func (d *DB) LatestProbe(ctx context.Context, botID string) (*Probe, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, bot, status, latency_ms, fail_count, checked_at FROM probes WHERE bot = ? ORDER BY checked_at DESC LIMIT 1`,
		botID,
	)
	p, err := scanProbe(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest probe for %q: %w", botID, err)
	}
	return p, nil
}

// BotHistory returns paginated probe history for a bot plus the total count.
func (d *DB) BotHistory(ctx context.Context, botID string, limit, offset int) ([]Probe, int, error) {
	var total int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM probes WHERE bot = ?`, botID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting probes for %q: %w", botID, err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, bot, status, latency_ms, fail_count, checked_at FROM probes WHERE bot = ? ORDER BY checked_at DESC LIMIT ? OFFSET ?`,
		botID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying history for %q: %w", botID, err)
	}
	defer rows.Close()

	probes, err := scanProbes(rows)
	if err != nil {
		return nil, 0, err
	}
	return probes, total, nil
}

// AllLatest returns the most recent probe for each bot.
func (d *DB) AllLatest(ctx context.Context) ([]Probe, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, bot, status, latency_ms, fail_count, checked_at
		FROM probes
		WHERE id IN (
			SELECT MAX(id) FROM probes GROUP BY bot
		)
		ORDER BY bot
	`)
	if err != nil {
		return nil, fmt.Errorf("querying all latest: %w", err)
	}
	defer rows.Close()
	return scanProbes(rows)
}

// UptimePercent returns the percentage of "up" probes in the last N probes
// for a bot.
func (d *DB) UptimePercent(ctx context.Context, botID string, last int) (float64, error) {
	var total int
	var upCount sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN status = 'up' THEN 1 ELSE 0 END)
		FROM (
			SELECT status FROM probes WHERE bot = ? ORDER BY checked_at DESC LIMIT ?
		)
	`, botID, last).Scan(&total, &upCount)
	if err != nil {
		return 0, fmt.Errorf("calculating uptime for %q: %w", botID, err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(upCount.Int64) / float64(total) * 100, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProbe(row scanner) (*Probe, error) {
	var p Probe
	var checkedAt string
	err := row.Scan(&p.ID, &p.Bot, &p.Status, &p.LatencyMs, &p.FailCount, &checkedAt)
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		t, err = time.Parse(time.RFC3339, checkedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing checked_at %q: %w", checkedAt, err)
		}
	}
	p.CheckedAt = t
	return &p, nil
}

func scanProbes(rows *sql.Rows) ([]Probe, error) {
	var probes []Probe
	for rows.Next() {
		p, err := scanProbe(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning probe row: %w", err)
		}
		probes = append(probes, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating probe rows: %w", err)
	}
	return probes, nil
}
