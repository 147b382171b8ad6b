package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/weatherload/internal/control"
	"github.com/vietddude/weatherload/internal/ingest"
)

var (
	historyStart  string
	historyEnd    string
	historyFromDB bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Load observation history for every configured city",
	Long: `Load observation history for the days in [--start, --end). When --start equals
--end that single day is loaded. --end defaults to today, --start to yesterday.
With --from-db each city is caught up from its newest stored day through yesterday.`,
	Run: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyStart, "start", "s", "", "first day to load (YYYYMMDD)")
	historyCmd.Flags().StringVarP(&historyEnd, "end", "e", "", "day after the last day to load (YYYYMMDD)")
	historyCmd.Flags().BoolVar(&historyFromDB, "from-db", false, "catch up from the newest stored day")
	historyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "load into an in-memory store instead of PostgreSQL")
	historyCmd.MarkFlagsMutuallyExclusive("from-db", "start")
	historyCmd.MarkFlagsMutuallyExclusive("from-db", "end")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	cfg := setup(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg, control.Options{DryRun: dryRun})
	defer app.Close()

	var err error
	if historyFromDB {
		err = app.Runner().RunHistoryCatchUp(ctx)
	} else {
		var start, end time.Time
		start, end, err = historyRange(time.Now())
		if err == nil {
			slog.Info("Loading history", "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))
			err = app.Runner().RunHistoryRange(ctx, start, end)
		}
	}
	if err != nil {
		slog.Error("History load failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("History load finished", "cities", len(cfg.Cities))
}

func historyRange(now time.Time) (start, end time.Time, err error) {
	end = ingest.Day(now)
	if historyEnd != "" {
		if end, err = ingest.ParseDay(historyEnd); err != nil {
			return start, end, err
		}
	}
	start = end.AddDate(0, 0, -1)
	if historyStart != "" {
		if start, err = ingest.ParseDay(historyStart); err != nil {
			return start, end, err
		}
	}
	return start, end, nil
}
