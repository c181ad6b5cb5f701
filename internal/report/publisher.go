// Package report renders the aggregate status document and keeps exactly one
// published copy of it alive in the notifier channel, editing it in place
// across sweeps and process restarts.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazz-dev/botmon/internal/monitor"
	"github.com/hazz-dev/botmon/internal/notify"
)

// Publisher publishes the rendered report. The first publish creates a
// message and persists its id; later publishes edit that message. When an
// edit fails (the message was deleted externally), the publisher falls back
// to creating a new message and overwrites the persisted id, so the durable
// id keeps pointing at a live, editable report.
type Publisher struct {
	notifier notify.Notifier
	state    *StateFile
	reportID string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher. The persisted report id is read once from
// state; pass nil logger to use the default.
func NewPublisher(notifier notify.Notifier, state *StateFile, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	id, err := state.Load()
	if err != nil {
		return nil, fmt.Errorf("loading report state: %w", err)
	}
	return &Publisher{
		notifier: notifier,
		state:    state,
		reportID: id,
		logger:   logger,
	}, nil
}

// Publish renders snap and sends or edits the report.
func (p *Publisher) Publish(ctx context.Context, snap monitor.Snapshot) error {
	text := Render(snap)

	if p.reportID == "" {
		return p.create(ctx, text)
	}

	if err := p.notifier.Edit(ctx, p.reportID, text); err != nil {
		p.logger.Warn("editing report failed, creating a new one", "report_id", p.reportID, "error", err)
		return p.create(ctx, text)
	}
	return nil
}

func (p *Publisher) create(ctx context.Context, text string) error {
	id, err := p.notifier.Send(ctx, text)
	if err != nil {
		return fmt.Errorf("sending report: %w", err)
	}
	p.reportID = id
	if err := p.state.Save(id); err != nil {
		// The report is live; losing the id only costs one extra
		// message after a restart.
		p.logger.Error("persisting report id", "report_id", id, "error", err)
	}
	return nil
}
