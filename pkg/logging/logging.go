// Package logging configures modman's zerolog output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelFor maps the -v count to the console level.
func LevelFor(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return zerolog.WarnLevel
	case verbosity == 1:
		return zerolog.InfoLevel
	case verbosity == 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// Setup points the global logger at stderr and, when file is not empty, at
// a log file. The console shows the level chosen by verbosity; the file
// always gets debug and above so an interrupted transaction can be traced
// after the fact. A file that cannot be opened is reported and skipped.
func Setup(verbosity int, file string) error {
	level := LevelFor(verbosity)
	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}
	writers := []io.Writer{filtered(console, level)}

	var openErr error
	if file != "" {
		f, err := openLogFile(file)
		if err != nil {
			openErr = err
		} else {
			writers = append(writers, filtered(f, min(level, zerolog.DebugLevel)))
		}
	}

	zerolog.SetGlobalLevel(min(level, zerolog.DebugLevel))
	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	if verbosity >= 2 {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()

	if openErr != nil {
		log.Warn().Err(openErr).Str("path", file).Msg("Logging to console only")
	}
	log.Debug().Int("verbosity", verbosity).Str("file", file).Msg("Logger initialized")
	return openErr
}

func filtered(w io.Writer, level zerolog.Level) *zerolog.FilteredLevelWriter {
	return &zerolog.FilteredLevelWriter{Writer: zerolog.LevelWriterAdapter{Writer: w}, Level: level}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// GetLogger returns the global logger tagged with a component name.
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// TimeOperation logs the start of an operation and returns the function
// that logs its end with the elapsed time.
func TimeOperation(logger zerolog.Logger, operation string) func() {
	start := time.Now()
	logger.Debug().Str("operation", operation).Msg("Operation started")
	return func() {
		logger.Debug().
			Str("operation", operation).
			Dur("duration", time.Since(start)).
			Msg("Operation completed")
	}
}
