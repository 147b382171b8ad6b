package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/weatherload/internal/infra/redis"
)

var resetProgressCmd = &cobra.Command{
	Use:   "reset-progress [table] [city_id]",
	Short: "Clear the recorded load progress of a city",
	Args:  cobra.ExactArgs(2),
	Run:   runResetProgress,
}

func init() {
	rootCmd.AddCommand(resetProgressCmd)
}

func runResetProgress(cmd *cobra.Command, args []string) {
	table := args[0]
	cityID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid city id: %v\n", err)
		os.Exit(1)
	}

	cfg := setup(cmd)
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	ctx := context.Background()
	if day, ok, err := client.GetProgress(ctx, table, cityID); err == nil && ok {
		slog.Info("Current progress", "table", table, "city_id", cityID, "day", day.Format("2006-01-02"))
	}
	if err := client.ClearProgress(ctx, table, cityID); err != nil {
		slog.Error("Failed to reset progress", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset progress for %s city %d\n", table, cityID)
}
