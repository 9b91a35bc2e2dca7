package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/omarluq/enginesync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the configuration file without connecting to anything.
Checks syntax, URLs, ranges and cache settings.`,
	RunE: runConfigValidate,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default config file",
	RunE:  runConfigInit,
}

func init() {
	configInitCmd.Flags().StringP("output", "o", "", "output path (default: ./"+config.DefaultConfigFile+")")
	configInitCmd.Flags().Bool("force", false, "overwrite existing config file")

	configCmd.AddCommand(configValidateCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	configPath := config.ResolvePath(cfgFile)
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "✗ Config validation failed: %s\n", err)
		return err
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "✗ Config validation failed: %s\n", err)
		return err
	}

	fmt.Fprintf(out, "✓ %s is valid\n", configPath)
	return nil
}

// runConfigInit writes defaultConfigTemplate to --output. An existing file is
// only replaced with --force.
func runConfigInit(cmd *cobra.Command, _ []string) error {
	output, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return fmt.Errorf("failed to get force flag: %w", err)
	}
	if output == "" {
		output = config.DefaultConfigFile
	}

	if _, err := os.Stat(output); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", output)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(output, []byte(defaultConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Config file created at %s\n", output)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Point broker.host and cache.redis.url at your RabbitMQ and Redis")
	fmt.Fprintln(out, "  2. Validate with: enginesync config validate")
	fmt.Fprintln(out, "  3. Start consuming: enginesync serve")
	return nil
}

const defaultConfigTemplate = `# enginesync configuration
service_id: enginesync

# Used until an update arrives or a cached value is found.
default_base_url: http://localhost:8000

logging:
  level: info
  format: console
  output: stdout

broker:
  host: ${RABBITMQ_HOST}
  port: 5672
  username: guest
  password: ${RABBITMQ_PASSWORD}
  virtual_host: /
  exchange: inference-engine
  routing_key: inference-engine.base-url.updated
  # queue defaults to inference-engine.base-url.<service_id>
  heartbeat_ms: 10000
  dial_timeout_ms: 5000
  requeue_malformed: false

cache:
  # redis | ha | single | disabled
  mode: redis
  key: InferenceEngine:BaseUrl
  ttl_hours: 168
  redis:
    url: redis://localhost:6379/0

retry:
  max_attempts: 5
  base_delay_ms: 1000

circuit_breaker:
  failure_threshold: 3
  break_duration_ms: 60000

consumer:
  poll_interval_ms: 5000
  open_circuit_wait_ms: 30000
`
