package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/omarluq/enginesync/internal/baseurl"
	"github.com/omarluq/enginesync/internal/config"
	"github.com/omarluq/enginesync/internal/di"
	"github.com/omarluq/enginesync/internal/lifecycle"
	"github.com/omarluq/enginesync/internal/vinfo"
)

const shutdownTimeout = 30 * time.Second

var statusInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume base URL updates until interrupted",
	Long: `Load the last known base URL from the cache, subscribe to update
announcements and apply them until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&statusInterval, "status-interval", time.Minute,
		"how often to log the current base URL and consumer state (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath := config.ResolvePath(cfgFile)

	container, err := di.NewContainer(configPath)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	logSvc, err := di.Invoke[*di.LoggerService](container)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to initialize")
		return err
	}
	log.Logger = *logSvc.Logger
	zerolog.DefaultContextLogger = logSvc.Logger

	ctx, stop := lifecycle.NotifyContext(cmd.Context(), func(sig os.Signal) {
		log.Info().Str("signal", sig.String()).Msg("shutting down...")
	})
	defer stop()

	err = serve(ctx, container)
	shutdown(container)
	if err != nil {
		return err
	}
	log.Info().Msg("enginesync stopped")
	return nil
}

// serve starts the watcher and consumer and blocks until ctx is done.
func serve(ctx context.Context, container *di.Container) error {
	cfgSvc, err := di.Invoke[*di.ConfigService](container)
	if err != nil {
		return err
	}
	storeSvc, err := di.Invoke[*di.StoreService](container)
	if err != nil {
		return err
	}
	consumerSvc, err := di.Invoke[*di.ConsumerService](container)
	if err != nil {
		return err
	}
	cacheSvc, err := di.Invoke[*di.CacheService](container)
	if err != nil {
		return err
	}

	cfgSvc.StartWatching(ctx)

	unsubscribe := storeSvc.Store.Subscribe(func(url string) {
		log.Info().Str("base_url", url).Msg("inference engine base url changed")
	})
	defer unsubscribe()

	log.Info().
		Str("version", vinfo.String()).
		Str("config", cfgSvc.Path()).
		Str("base_url", storeSvc.Store.GetBaseURL()).
		Msg("starting enginesync")

	consumerSvc.Start(ctx)

	if statusInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			logStatus(ctx, storeSvc.Store.Snapshot(), consumerSvc, cacheSvc)
		}
	}
}

func logStatus(ctx context.Context, state baseurl.State, c *di.ConsumerService, cacheSvc *di.CacheService) {
	snap := c.Breaker.Snapshot()
	cacheErr := cacheSvc.Ping(ctx)
	event := log.Info()
	if cacheErr != nil {
		event = log.Warn().AnErr("cache_error", cacheErr)
	}
	event.
		Bool("cache_ok", cacheErr == nil).
		Str("base_url", state.URL).
		Time("updated_at", state.UpdatedAt).
		Str("consumer", c.Consumer.State().String()).
		Str("circuit", snap.State.String()).
		Uint32("consecutive_failures", snap.ConsecutiveFailures).
		Msg("status")
}

func shutdown(container *di.Container) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := container.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
