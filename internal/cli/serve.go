package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/weatherload/internal/control"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run scheduled forecast and history loads with health and metrics endpoints",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := setup(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	app := newApp(ctx, cfg, control.Options{})
	defer app.Close()

	slog.Info("weatherload started", "config", cfgPath)
	if err := app.Serve(ctx); err != nil {
		slog.Error("Serve failed", "error", err)
		app.Close()
		os.Exit(1)
	}
	slog.Info("weatherload stopped gracefully")
}
