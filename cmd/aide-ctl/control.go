package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"aide/internal/ipc"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live sessions and daemon uptime",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, ipc.Request{Cmd: "stats"})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <user>",
	Short: "Drop one user's conversation state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, ipc.Request{Cmd: "reset", Args: args})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Drop every conversation state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return control(cmd, ipc.Request{Cmd: "purge"})
	},
}

func control(cmd *cobra.Command, req ipc.Request) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	resp, err := ipc.Send(ctx, cfg.Control.Socket, req)
	if err != nil {
		return err
	}
	printData(cmd.OutOrStdout(), resp.Data)
	return nil
}

func printData(w io.Writer, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %v\n", k, data[k])
	}
}

func init() {
	rootCmd.AddCommand(statsCmd, resetCmd, purgeCmd)
}
