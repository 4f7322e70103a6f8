// Package logging configures the console logger shared by the pipeline and
// its collaborators. Core graph packages receive a logger instance instead of
// reaching for a global.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a console logger writing to stderr at the given level.
// Unknown level strings fall back to info.
func New(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
}

// Nop returns a logger that discards everything. Components fall back to it
// when constructed without a logger.
func Nop() *log.Logger {
	return log.New(io.Discard)
}
