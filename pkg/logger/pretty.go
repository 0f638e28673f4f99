package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// NewPretty returns a *slog.Logger backed by the charmbracelet/log handler
// for colorized, human-friendly output in CLI commands. Service processes
// should use NewLogger instead.
func NewPretty(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := charmlog.InfoLevel
	if debug {
		level = charmlog.DebugLevel
	}

	handler := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           level,
		ReportTimestamp: false,
	})

	return slog.New(handler)
}
