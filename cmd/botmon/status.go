package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/botmon/internal/storage"
)

type statusStore interface {
	AllLatest(ctx context.Context) ([]storage.Probe, error)
}

func executeStatus(cmd *cobra.Command, db statusStore) error {
	out := cmd.OutOrStdout()
	probes, err := db.AllLatest(context.Background())
	if err != nil {
		return fmt.Errorf("querying status: %w", err)
	}

	if len(probes) == 0 {
		fmt.Fprintln(out, "No probe history. Run 'botmon serve' first.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BOT\tSTATUS\tPING\tFAILS\tLAST CHECKED")
	for _, p := range probes {
		ping := "—"
		if p.LatencyMs > 0 {
			ping = time.Duration(p.LatencyMs * int64(time.Millisecond)).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			p.Bot,
			p.Status,
			ping,
			p.FailCount,
			p.CheckedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
	return nil
}
