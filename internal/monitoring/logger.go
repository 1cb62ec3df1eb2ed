// Package monitoring holds the process-wide diagnostic loggers used by the
// fitting pipeline.
//
// Three prefixed streams mirror how the pipeline reports itself:
//   - ops: actionable warnings (skipped windows, non-converged fits)
//   - diag: per-window optimizer diagnostics
//   - trace: high-frequency detail, off by default
//
// Logf is the general-purpose logger used by commands and packages that do
// not need a stream.
package monitoring

import (
	"io"
	"log"
	"os"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

var (
	mu          sync.RWMutex
	opsLogger   = newLogger("[ops] ", os.Stderr)
	diagLogger  = newLogger("[diag] ", os.Stderr)
	traceLogger *log.Logger
)

// SetLogWriters configures the ops, diag and trace streams.
// Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[ops] ", ops)
	diagLogger = newLogger("[diag] ", diag)
	traceLogger = newLogger("[trace] ", trace)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

func printf(l **log.Logger, format string, args []interface{}) {
	mu.RLock()
	logger := *l
	mu.RUnlock()
	if logger != nil {
		logger.Printf(format, args...)
	}
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) { printf(&opsLogger, format, args) }

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) { printf(&diagLogger, format, args) }

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) { printf(&traceLogger, format, args) }

// TraceEnabled reports whether the trace stream has a writer, so callers can
// skip building expensive trace messages.
func TraceEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return traceLogger != nil
}
