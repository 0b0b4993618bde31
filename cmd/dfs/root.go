package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kutluhann/decentralized-file-sharing-system/api"
)

var (
	nodeAddr string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "dfs",
	Short: "Command line client for a decentralized file sharing node",
	Long: `dfs talks to a running node over its HTTP API. Files put on one node
show up on every peer once the namespaces reconcile; their chunks are fetched
from whichever peer holds them on the first read.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeAddr, "node", "n", envOr("DFS_NODE", "localhost:8000"), "Address of the node to talk to")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newClient() *api.Client {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	return api.NewClient(timeout, logger)
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}
