// Package objlog provides the process-wide diagnostic logger shared by both
// analyzers: skip notices (suppressed by --quiet), verbose tracing, and
// colorized fatal/warning lines. It is deliberately not a generic logging
// framework — one mutex-guarded writer, matching the scale of two CLI tools.
package objlog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	out     io.Writer = os.Stderr
	verbose bool
	quiet   bool

	warnColor  = color.New(color.FgYellow)
	fatalColor = color.New(color.FgRed, color.Bold)
)

// SetOutput redirects all diagnostic output (skip notices, warnings, fatal
// lines). Tests use this to capture output instead of writing to stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetVerbose enables --verbose tracing (per-item progress beyond skips).
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetQuiet suppresses skip notices. Fatal diagnostics are never suppressed.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// Skip reports a recoverable per-item failure: unreadable
// file, zero-length member, corrupt archive entry. Suppressed by --quiet.
func Skip(format string, args ...interface{}) {
	mu.Lock()
	q := quiet
	mu.Unlock()
	if q {
		return
	}
	warnColor.Fprintf(writer(), "skip: "+format+"\n", args...)
}

// Verbose prints tracing output only when --verbose was set.
func Verbose(format string, args ...interface{}) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if !v {
		return
	}
	fmt.Fprintf(writer(), format+"\n", args...)
}

// Fatal reports an escalated failure (fatal_parse, fatal_io, internal).
// Always printed regardless of --quiet; the caller is responsible for
// setting the shared error flag and choosing the process exit code.
func Fatal(format string, args ...interface{}) {
	fatalColor.Fprintf(writer(), "error: "+format+"\n", args...)
}

// Warn reports a non-fatal, non-skip diagnostic (e.g. a response file that
// could not be fully expanded but was otherwise usable).
func Warn(format string, args ...interface{}) {
	warnColor.Fprintf(writer(), "warning: "+format+"\n", args...)
}
