package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/omarluq/enginesync/internal/broker"
	"github.com/omarluq/enginesync/internal/config"
	"github.com/omarluq/enginesync/internal/endpoint"
	"github.com/omarluq/enginesync/internal/logging"
)

var errInvalidURL = errors.New("--url must be an absolute http or https URL")

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Announce a new inference engine base URL",
	Long: `Publish a base URL update to the configured exchange. Every running
enginesync instance bound to the routing key will apply it.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().String("url", "", "new base URL (required)")
	publishCmd.Flags().String("service-id", "", "sender id recorded in the message (default: service_id from config)")
	publishCmd.Flags().Duration("timeout", 10*time.Second, "publish timeout")
	if err := publishCmd.MarkFlagRequired("url"); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	url, err := cmd.Flags().GetString("url")
	if err != nil {
		return fmt.Errorf("failed to get url flag: %w", err)
	}
	serviceID, err := cmd.Flags().GetString("service-id")
	if err != nil {
		return fmt.Errorf("failed to get service-id flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}

	if !endpoint.IsValid(url) {
		return fmt.Errorf("%w: %q", errInvalidURL, url)
	}

	cfg, err := config.Load(config.ResolvePath(cfgFile))
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pub := broker.NewPublisher(cfg.BrokerConfig(), logging.Component(&logger, "publisher"))
	if err := pub.Publish(ctx, broker.UpdateMessage{NewURL: url, ServiceID: serviceID}); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Published %s\n", url)
	return nil
}
