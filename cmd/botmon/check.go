package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/hazz-dev/botmon/internal/config"
	"github.com/hazz-dev/botmon/internal/probe"
)

func runChecks(out io.Writer, targets []config.Target, timeout time.Duration) error {
	type row struct {
		target config.Target
		result probe.Result
	}

	prober := probe.NewProber(timeout)
	results := make([]row, len(targets))
	var wg sync.WaitGroup

	for i, t := range targets {
		wg.Add(1)
		go func(i int, t config.Target) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			results[i] = row{target: t, result: prober.Probe(ctx, t.URL)}
		}(i, t)
	}
	wg.Wait()

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BOT\tSTATUS\tCODE\tPING\tERROR")
	allUp := true
	for _, r := range results {
		status := "up"
		code := "—"
		if r.result.Reachable {
			code = fmt.Sprintf("%d", r.result.StatusCode)
		}
		if !r.result.Up() {
			status = "down"
			allUp = false
		}
		ping := "—"
		if r.result.Latency > 0 {
			ping = r.result.Latency.Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			r.target.ID,
			status,
			code,
			ping,
			r.result.Reason,
		)
	}
	w.Flush()

	if !allUp {
		return fmt.Errorf("one or more bots are down")
	}
	return nil
}
