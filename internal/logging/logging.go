// Package logging provides the structured logger shared by amake, anyld,
// anyelf and mkimage: a human-readable stderr handler, optionally fanned out
// to a JSON file handler when a log file is requested.
package logging

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Options configures the shared logger.
type Options struct {
	// Verbose enables debug-level records on the stderr handler.
	Verbose bool

	// LogFile, when non-empty, receives a JSON-formatted copy of every
	// record regardless of the stderr verbosity level.
	LogFile string
}

// New builds the tool-wide logger and returns it along with a close
// function that must be called before the process exits (flushes and
// closes the log file, if any).
func New(tool string, opts Options) (*slog.Logger, func(), error) {
	stderrLevel := slog.LevelInfo
	if opts.Verbose {
		stderrLevel = slog.LevelDebug
	}

	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: stderrLevel,
	})

	closeFn := func() {}
	var handler slog.Handler = stderrHandler

	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}

		fileHandler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = slogmulti.Fanout(stderrHandler, fileHandler)
		closeFn = func() { _ = f.Close() }
	}

	return slog.New(handler).With("tool", tool), closeFn, nil
}

// Discard returns a logger that drops every record, for tests and for
// library callers that don't want build-tool logging.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
