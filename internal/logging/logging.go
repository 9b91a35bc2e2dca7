// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/omarluq/enginesync/internal/config"
)

// New creates the root logger from cfg. The returned closer releases a log
// file, if one was opened.
//
// Verbosity is controlled by the process-wide zerolog level so that a config
// reload can change it for every derived logger; New sets it from cfg.
func New(cfg config.LoggingConfig) (zerolog.Logger, io.Closer, error) {
	output, file, err := selectOutput(cfg)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	var w io.Writer = output
	if shouldUsePretty(cfg, file) {
		w = buildConsoleWriter(output)
	}

	SetLevel(cfg)
	logger := zerolog.New(w).With().Timestamp().Logger()
	return logger, closerFor(file), nil
}

// SetLevel applies cfg's level to every logger in the process.
func SetLevel(cfg config.LoggingConfig) {
	zerolog.SetGlobalLevel(cfg.ParseLevel())
}

// Component returns a child logger tagged with the component name.
func Component(logger *zerolog.Logger, name string) *zerolog.Logger {
	l := logger.With().Str("component", name).Logger()
	return &l
}

func selectOutput(cfg config.LoggingConfig) (io.Writer, *os.File, error) {
	if path, ok := cfg.FileOutput().Get(); ok {
		f, err := os.OpenFile(filepath.Clean(path), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", path, err)
		}
		return f, f, nil
	}
	if cfg.Output == "stderr" {
		return os.Stderr, os.Stderr, nil
	}
	return os.Stdout, os.Stdout, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func closerFor(f *os.File) io.Closer {
	if f == nil || f == os.Stdout || f == os.Stderr {
		return nopCloser{}
	}
	return f
}

// shouldUsePretty reports whether console formatting applies. Console and
// unset formats are pretty only on a terminal.
func shouldUsePretty(cfg config.LoggingConfig, file *os.File) bool {
	if cfg.Pretty {
		return true
	}
	switch cfg.Format {
	case "pretty":
		return true
	case "json":
		return false
	default:
		return file != nil && isatty.IsTerminal(file.Fd())
	}
}

var levelLabels = map[string]string{
	"debug": "\033[36mDBG\033[0m",
	"info":  "\033[32mINF\033[0m",
	"warn":  "\033[33mWRN\033[0m",
	"error": "\033[31mERR\033[0m",
	"fatal": "\033[35mFTL\033[0m",
	"panic": "\033[35mPNC\033[0m",
}

func buildConsoleWriter(output io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        output,
		TimeFormat: "15:04:05",
		FormatLevel: func(i any) string {
			s, _ := i.(string)
			if label, ok := levelLabels[s]; ok {
				return label
			}
			return s
		},
		FormatMessage: func(i any) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("-> %s", i)
		},
		FormatFieldName: func(i any) string {
			return fmt.Sprintf("\033[2m%s=\033[0m", i)
		},
		FormatFieldValue: func(i any) string {
			return fmt.Sprintf("%s", i)
		},
	}
}
