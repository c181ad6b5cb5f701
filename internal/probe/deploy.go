package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazz-dev/botmon/internal/bot"
)

// LogSink receives best-effort log lines about remediation attempts,
// typically the notifier's log channel.
type LogSink interface {
	Log(ctx context.Context, text string)
}

// Deployer fires a remedial GET against a bot's deploy endpoint. The response
// body and status code are ignored: success means the request completed
// without a transport error. Whether the redeploy actually worked is decided
// by the next scheduled probe, never by the Deployer.
type Deployer struct {
	client *http.Client
	sink   LogSink
	logger *slog.Logger
}

// NewDeployer returns a Deployer with the given request timeout. sink may be
// nil to skip the notifier log channel; pass nil logger to use the default.
func NewDeployer(timeout time.Duration, sink LogSink, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		client: &http.Client{Timeout: timeout},
		sink:   sink,
		logger: logger,
	}
}

// Deploy requests b.DeployURL once and logs the attempt. It never returns an
// error; all failures are swallowed after logging.
func (d *Deployer) Deploy(ctx context.Context, b *bot.Bot, prev bot.Status) {
	now := time.Now()

	entry := fmt.Sprintf("redeploying %s (%s): was %s at %s",
		b.ID, b.URL, prev, now.UTC().Format(time.RFC3339))
	if d.sink != nil {
		d.sink.Log(ctx, entry)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.DeployURL, nil)
	if err != nil {
		d.logger.Error("building deploy request", "bot", b.ID, "url", b.DeployURL, "error", err)
		return
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Error("deploy request failed", "bot", b.ID, "url", b.DeployURL, "error", err)
		return
	}
	resp.Body.Close()

	d.logger.Info("deploy triggered",
		"bot", b.ID,
		"url", b.DeployURL,
		"previous_status", prev,
	)
}
