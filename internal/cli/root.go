// Package cli implements the fieldsync command line client. It talks
// to a running daemon over its HTTP API and renders tabular views of
// assets, gap drivers, alerts and optimisation actions.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

const defaultServerURL = "http://127.0.0.1:8090"

func Run() ExitCode {
	rootCmd := &cobra.Command{
		Use:   "fieldsync",
		Short: "CLI for the fieldsync production monitoring daemon.",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	var verbose bool
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "set debug logging level")

	var serverURL string
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL, "base URL of the fieldsync daemon")

	rootCmd.AddCommand(
		NewAssetsCmd().Command(),
		NewGapDriversCmd().Command(),
		NewAlertsCmd().Command(),
		NewOptimisationsCmd().Command(),
	)

	if err := rootCmd.Execute(); err != nil {
		return exitCodeError
	}

	return exitCodeSuccess
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func rootFlags(cmd *cobra.Command) (serverURL string, verbose bool, err error) {
	verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return "", false, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	serverURL, err = cmd.Root().PersistentFlags().GetString("server")
	if err != nil {
		return "", false, fmt.Errorf("failed to get server flag: %w", err)
	}
	return serverURL, verbose, nil
}
