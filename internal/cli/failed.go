package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/weatherload/internal/control"
)

var (
	replayFailed bool
	failedLimit  int
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List loads that exhausted their attempts, optionally replaying them",
	Run:   runFailed,
}

func init() {
	failedCmd.Flags().BoolVar(&replayFailed, "replay", false, "re-run each failed load and resolve the ones that succeed")
	failedCmd.Flags().IntVar(&failedLimit, "limit", 100, "maximum number of entries")
	rootCmd.AddCommand(failedCmd)
}

func runFailed(cmd *cobra.Command, args []string) {
	cfg := setup(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg, control.Options{})
	defer app.Close()

	journal := app.FailedLoads()
	if journal == nil {
		slog.Error("Failed load journal needs Redis; set redis.url")
		app.Close()
		os.Exit(1)
	}

	entries, err := journal.List(ctx, failedLimit)
	if err != nil {
		slog.Error("Failed to list failed loads", "error", err)
		app.Close()
		os.Exit(1)
	}

	if !replayFailed {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
		_, _ = fmt.Fprintln(w, "ID\tKIND\tTABLE\tCITY\tDAY\tATTEMPTS\tFAILED AT\tERROR")
		for _, fl := range entries {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				fl.ID, fl.Kind, fl.Table, fl.CityName, fl.Start.Format(time.DateOnly),
				fl.Attempts, fl.FailedAt.Format(time.RFC3339), fl.Error)
		}
		_ = w.Flush()
		return
	}

	failures := 0
	for _, fl := range entries {
		if err := app.Runner().Replay(ctx, fl); err != nil {
			slog.Error("Replay failed", "id", fl.ID, "city", fl.CityName, "error", err)
			failures++
			continue
		}
		if err := journal.Resolve(context.WithoutCancel(ctx), fl.ID); err != nil {
			slog.Warn("Failed to resolve journal entry", "id", fl.ID, "error", err)
		}
		slog.Info("Replayed failed load", "id", fl.ID, "kind", fl.Kind, "city", fl.CityName)
	}
	if failures > 0 {
		app.Close()
		os.Exit(1)
	}
}
