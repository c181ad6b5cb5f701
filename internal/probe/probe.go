package probe

import (
	"context"
	"net/http"
	"time"
)

// Result is the outcome of a single probe.
type Result struct {
	Reachable  bool
	StatusCode int
	Latency    time.Duration
	Reason     string
}

// Up reports whether the probed target counts as healthy. Redirect statuses
// count as up, client and server errors do not.
func (r Result) Up() bool {
	return r.Reachable && r.StatusCode >= 200 && r.StatusCode < 400
}

// Prober issues a single timed GET against a target URL. It never retries;
// retry policy lives entirely in the status engine's failure counting.
type Prober struct {
	client *http.Client
}

// NewProber returns a Prober whose requests time out after timeout.
func NewProber(timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
			// A redirect status already counts as up; never chase it.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe performs one GET against url. Timeouts, connection refusal, DNS
// failures, and malformed URLs all collapse to an unreachable result; the
// caller never branches on the reason.
func (p *Prober) Probe(ctx context.Context, url string) Result {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Reason: err.Error(), Latency: time.Since(start)}
	}

	resp, err := p.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return Result{Reason: err.Error(), Latency: latency}
	}
	resp.Body.Close()

	return Result{
		Reachable:  true,
		StatusCode: resp.StatusCode,
		Latency:    latency,
	}
}
