// Command pursuit runs officer/target pursuit episodes on a grid, stores
// them, and replays recorded trajectories.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/talgya/pursuit/internal/config"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "pursuit",
		Short:         "Multi-agent pursuit on a discrete grid",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(logLevel)
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			}))
			slog.SetDefault(logger)

			if path := config.LoadEnvFiles(".env", "../.env", "../../.env"); path != "" {
				slog.Debug("loaded env file", "path", path)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	rootCmd.AddCommand(newRunCmd(), newEpisodesCmd(), newReplayCmd(), newWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}
