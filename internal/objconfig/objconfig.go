// Package objconfig loads the optional TOML defaults file shared by both
// analyzers (--config PATH) and validates/normalizes the merged options,
// the same two-step shape as the teacher's config.Load + Validator:
// file values first, then CLI flag overrides win, then Validate.
package objconfig

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// Options is the option surface shared by both binaries. Fields not
// meaningful to one tool are simply left at their zero value by that
// tool's CLI wiring.
type Options struct {
	Threads     int      `toml:"threads"`
	Output      string   `toml:"output"`
	Quiet       bool     `toml:"quiet"`
	Verbose     bool     `toml:"verbose"`
	NoProgress  bool     `toml:"no_progress"`
	Exclude     []string `toml:"exclude"`
	CountPath   string   `toml:"count"`
	ContextPath string   `toml:"contexts"`
}

// Default returns the zero-configuration defaults: thread count pinned to
// hardware concurrency (min 1), output to stdout.
func Default() Options {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return Options{Threads: n, Output: "-"}
}

// Load reads an optional TOML defaults file. A missing path is not an
// error: both tools work with zero configuration, with no mandatory
// project file.
func Load(path string) (Options, error) {
	opts := Default()
	if path == "" {
		return opts, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil
		}
		return opts, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if opts.Threads < 1 {
		opts.Threads = Default().Threads
	}
	return opts, nil
}

// Validate enforces the config-stage invariants: thread count must be at
// least 1. Unlike the teacher's Validator, which silently clamps most
// fields, a bad thread count here is a config error the pipeline must
// refuse to start on.
func Validate(opts *Options) error {
	if opts.Threads < 1 {
		return fmt.Errorf("--threads must be >= 1, got %d", opts.Threads)
	}
	if opts.Quiet && opts.Verbose {
		// Verbose simply wins, matching the teacher's "apply the more
		// specific override" pattern rather than rejecting the combination
		// outright.
		opts.Quiet = false
	}
	return nil
}
