package di

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/samber/do/v2"

	"github.com/omarluq/enginesync/internal/logging"
)

// LoggerService wraps the root logger.
type LoggerService struct {
	Logger *zerolog.Logger
	closer io.Closer
}

// NewLogger creates the root logger from configuration.
func NewLogger(i do.Injector) (*LoggerService, error) {
	cfgSvc := do.MustInvoke[*ConfigService](i)

	logger, closer, err := logging.New(cfgSvc.Get().Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger = logger.With().Str("service_id", cfgSvc.Get().GetServiceID()).Logger()

	return &LoggerService{Logger: &logger, closer: closer}, nil
}

// Shutdown closes the log file, if any.
func (l *LoggerService) Shutdown() error {
	return l.closer.Close()
}
