// Package objerrors implements the failure taxonomy of the object-file
// analyzers: recoverable per-item skips, configuration errors, and the
// fatal classes that set the shared worker-pool error flag.
package objerrors

import (
	"fmt"
	"time"
)

// Kind classifies a failure along the lines the scanner driver cares about:
// whether it is locally recovered (Skip) or must escalate and stop the run.
type Kind string

const (
	KindSkip       Kind = "skip"
	KindConfig     Kind = "config"
	KindFatalParse Kind = "fatal_parse"
	KindFatalIO    Kind = "fatal_io"
	KindInternal   Kind = "internal"
)

// Fatal reports whether errors of this kind should set the shared error
// flag and abort the run with a non-zero exit code.
func (k Kind) Fatal() bool {
	switch k {
	case KindFatalParse, KindFatalIO, KindInternal:
		return true
	default:
		return false
	}
}

// SkipError represents a single work item that could not be processed but
// does not invalidate the rest of the run: unreadable input, a zero-length
// file, or a corrupt archive member.
type SkipError struct {
	Path       string // display path, e.g. "archive.a/member.o"
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewSkipError(op, path string, err error) *SkipError {
	return &SkipError{Operation: op, Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *SkipError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("skip: %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("skip: %s failed: %v", e.Operation, e.Underlying)
}

func (e *SkipError) Unwrap() error { return e.Underlying }
func (e *SkipError) Kind() Kind    { return KindSkip }

// ConfigError represents an invalid CLI invocation: bad thread count,
// unreadable response file, conflicting flags. The pipeline never starts.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error for %s (value %q): %v", e.Field, e.Value, e.Underlying)
	}
	return fmt.Sprintf("config error for %s: %v", e.Field, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }
func (e *ConfigError) Kind() Kind    { return KindConfig }

// FatalParseError represents a well-formed container that violates an
// invariant the engines depend on, e.g. a COMDAT group whose size is not
// word-aligned. Sets the shared error flag.
type FatalParseError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewFatalParseError(op, path string, err error) *FatalParseError {
	return &FatalParseError{Operation: op, Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *FatalParseError) Error() string {
	return fmt.Sprintf("malformed %s in %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *FatalParseError) Unwrap() error { return e.Underlying }
func (e *FatalParseError) Kind() Kind    { return KindFatalParse }

// FatalIOError represents failure to open or write the configured output
// sink. Sets the shared error flag.
type FatalIOError struct {
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewFatalIOError(op, path string, err error) *FatalIOError {
	return &FatalIOError{Operation: op, Path: path, Underlying: err, Timestamp: time.Now()}
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("output %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *FatalIOError) Unwrap() error { return e.Underlying }
func (e *FatalIOError) Kind() Kind    { return KindFatalIO }

// InternalError represents an unreachable assertion or invariant violation
// in the pipeline itself, rather than in the input.
type InternalError struct {
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewInternalError(op string, err error) *InternalError {
	return &InternalError{Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %v", e.Operation, e.Underlying)
}

func (e *InternalError) Unwrap() error { return e.Underlying }
func (e *InternalError) Kind() Kind    { return KindInternal }

// MultiError aggregates independent failures observed before sibling
// workers noticed the shared error flag.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }

// KindOf classifies err using its Kind() method if present, defaulting to
// KindInternal for errors the taxonomy doesn't already know about (a bug,
// not an input problem, by construction).
func KindOf(err error) Kind {
	type kinder interface{ Kind() Kind }
	if k, ok := err.(kinder); ok {
		return k.Kind()
	}
	return KindInternal
}
