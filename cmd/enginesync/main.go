// Package main is the entry point for enginesync.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"

	"github.com/omarluq/enginesync/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "enginesync",
	Short: "Keep a service's inference engine base URL in sync",
	Long: `enginesync subscribes to inference engine base URL announcements on a
RabbitMQ exchange, keeps the current URL in memory and persists it to a cache
so that restarts pick up the last known value.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: $ENGINESYNC_CONFIG or ./"+config.DefaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
