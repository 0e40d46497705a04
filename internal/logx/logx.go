// Package logx is a thin, run-tagged wrapper around the standard
// library logger, structured enough to tell concurrent workers' lines
// apart when several invocations share an aggregator.
package logx

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Logger writes leveled, run-tagged lines to an underlying io.Writer.
type Logger struct {
	runID string
	std   *log.Logger
}

// New returns a Logger writing to stderr, tagged with a fresh run id.
func New() *Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter returns a Logger writing to w, tagged with a fresh run id.
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		runID: uuid.NewString()[:8],
		std:   log.New(w, "", log.Ldate|log.Ltime),
	}
}

// RunID returns this logger's correlation id.
func (l *Logger) RunID() string { return l.runID }

func (l *Logger) line(level, format string, args ...any) {
	l.std.Printf("[%s] %-5s %s", l.runID, level, fmt.Sprintf(format, args...))
}

// Infof logs an informational message.
func (l *Logger) Infof(format string, args ...any) { l.line("INFO", format, args...) }

// Warnf logs a soft, non-fatal error (IOError in the pipeline's taxonomy).
func (l *Logger) Warnf(format string, args ...any) { l.line("WARN", format, args...) }

// Errorf logs a hard failure that does not necessarily abort the run.
func (l *Logger) Errorf(format string, args ...any) { l.line("ERROR", format, args...) }

// Fatalf logs a ResourceError and terminates the process.
func (l *Logger) Fatalf(format string, args ...any) {
	l.line("FATAL", format, args...)
	os.Exit(1)
}

// Summaryf logs a human-readable byte count, e.g. for end-of-run totals.
func (l *Logger) Summaryf(format string, bytes int64, rest ...any) {
	args := append([]any{humanize.Bytes(uint64(bytes))}, rest...)
	l.line("INFO", format, args...)
}
