package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/weatherload/internal/infra/redis"
	"github.com/vietddude/weatherload/internal/infra/storage/postgres"
	"github.com/vietddude/weatherload/internal/loader"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored rows and loader progress per city",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := setup(cmd)

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()
	repo := postgres.NewWeatherRepo(db)

	var progress progressReader
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, progress not shown", "error", err)
		} else {
			defer func() {
				_ = client.Close()
			}()
			progress = client
		}
	}

	names := make(map[int64]string, len(cfg.Cities))
	for _, c := range cfg.Cities {
		names[c.ID] = c.Name
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TABLE\tCITY\tID\tROWS\tFIRST\tLAST\tPROGRESS")

	for _, table := range []string{cfg.Tables.Forecast, cfg.Tables.History} {
		summary, err := repo.Summary(ctx, loader.Identifier(table))
		if err != nil {
			slog.Error("Failed to summarize table", "table", table, "error", err)
			continue
		}
		for _, s := range summary {
			name := names[s.CityID]
			if name == "" {
				name = "-"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
				table, name, s.CityID, s.Rows,
				s.First.Format(time.DateTime), s.Last.Format(time.DateTime),
				progressLabel(ctx, progress, table, s.CityID))
		}
	}
	_ = w.Flush()

	if version, err := db.SchemaVersion(ctx); err == nil {
		fmt.Printf("\nschema version: %d\n", version)
	}
}

type progressReader interface {
	GetProgress(ctx context.Context, table string, cityID int64) (time.Time, bool, error)
}

// progressLabel returns the last fully loaded day recorded for a partition,
// or "-" when none is known.
func progressLabel(ctx context.Context, p progressReader, table string, cityID int64) string {
	if p == nil {
		return "-"
	}
	day, ok, err := p.GetProgress(ctx, table, cityID)
	if err != nil {
		slog.Warn("Failed to read progress", "table", table, "city_id", cityID, "error", err)
		return "?"
	}
	if !ok {
		return "-"
	}
	return day.Format(time.DateOnly)
}
