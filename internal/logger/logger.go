// Package logger builds the zerolog loggers used across lanwatch
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls log level and output
type Config struct {
	Level      string `json:"level" yaml:"level"`
	Debug      bool   `json:"debug" yaml:"debug"`
	Output     string `json:"output" yaml:"output"` // stdout, stderr or console
	TimeFormat string `json:"time_format" yaml:"time_format"`
}

// DefaultConfig logs info and above as JSON to stderr
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Output: "stderr",
	}
}

// New builds a logger from config
func New(config Config) (zerolog.Logger, error) {
	return NewWithWriter(config, nil)
}

// NewWithWriter is like New but writes to w when it is not nil
func NewWithWriter(config Config, w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
	}

	timeFormat := time.RFC3339
	if config.TimeFormat != "" {
		timeFormat = config.TimeFormat
	}
	zerolog.TimeFieldFormat = timeFormat

	output := w
	if output == nil {
		switch config.Output {
		case "stdout":
			output = os.Stdout
		case "console":
			output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: timeFormat}
		case "", "stderr":
			output = os.Stderr
		default:
			return zerolog.Nop(), fmt.Errorf("unknown log output %q", config.Output)
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger(), nil
}

// WithComponent tags a logger with the emitting component
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
