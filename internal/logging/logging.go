// Package logging builds the root zerolog logger shared by both binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Options selects level, output format and an optional log file
type Options struct {
	Level  string
	Format string
	File   string
}

// ParseLevel maps a level name to a zerolog level; unknown names mean info
func ParseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return parsed
}

// New creates a logger writing to stdout and every extra writer, plus the
// configured file. The returned closer releases the file.
func New(opts Options, extra ...io.Writer) (zerolog.Logger, io.Closer, error) {
	var stdout io.Writer = os.Stdout
	if opts.Format == "pretty" {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	writers := append([]io.Writer{stdout}, extra...)
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
