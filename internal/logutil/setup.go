package logutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
}

// Validate validates logging configuration
func (lc *LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(lc.Level)); err != nil {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}
	switch lc.Format {
	case "", "json", "console":
		return nil
	default:
		return fmt.Errorf("log format must be json or console, got: %s", lc.Format)
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg LoggingConfig) {
	setup(cfg, os.Stderr)
}

func setup(cfg LoggingConfig, out io.Writer) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out})
		return
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}
