package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/weatherload/internal/control"
)

var (
	longForecast bool
	dryRun       bool
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Load the hourly forecast for every configured city",
	Run:   runForecast,
}

func init() {
	forecastCmd.Flags().BoolVarP(&longForecast, "long", "l", false, "load the ten day forecast instead of the next day")
	forecastCmd.Flags().BoolVar(&dryRun, "dry-run", false, "load into an in-memory store instead of PostgreSQL")
	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, args []string) {
	cfg := setup(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg, control.Options{DryRun: dryRun})
	defer app.Close()

	if err := app.Runner().RunForecast(ctx, longForecast); err != nil {
		slog.Error("Forecast load failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("Forecast load finished", "cities", len(cfg.Cities), "long", longForecast)
}
