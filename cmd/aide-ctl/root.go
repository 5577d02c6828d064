package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"aide/internal/config"
)

var (
	socketPath string
	configPath string
	envFile    string
	version    = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "aide-ctl",
	Short: "Control and maintain a running aide daemon",
	Long: `aide-ctl talks to the aide daemon over its control socket and runs
one-off maintenance tasks against the configured services.

Examples:
  aide-ctl stats                      # live sessions and uptime
  aide-ctl reset 123456789            # drop one user's conversation
  aide-ctl transcribe note.ogg        # run speech-to-text on a file
  aide-ctl calendar-auth              # authorise Google Calendar access`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "", "Control socket path (default from config)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "aide.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&envFile, "env", "e", ".env", "Env file path")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if socketPath != "" {
		cfg.Control.Socket = socketPath
	}
	return cfg, nil
}
