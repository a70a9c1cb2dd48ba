// Package cliutil holds the small pre-parse argument transforms both CLI
// binaries need ahead of urfave/cli/v2's own flag parsing: response-file
// expansion. Command-line parsing proper is out of core
// scope; this is only the one token-rewrite step that has to
// happen before a library's parser ever sees the arguments.
package cliutil

import (
	"fmt"
	"os"
	"strings"
)

// ExpandResponseFiles rewrites args, replacing any token that is exactly
// "--response-file" followed by a path, or that begins with '@', with
// the whitespace-separated tokens read from that file. Not
// recursive: a response file's own tokens are not re-scanned for nested
// response files.
func ExpandResponseFiles(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--response-file":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--response-file requires a path argument")
			}
			tokens, err := readTokens(args[i+1])
			if err != nil {
				return nil, err
			}
			out = append(out, tokens...)
			i++
		case strings.HasPrefix(arg, "@") && len(arg) > 1:
			tokens, err := readTokens(arg[1:])
			if err != nil {
				return nil, err
			}
			out = append(out, tokens...)
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func readTokens(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading response file %s: %w", path, err)
	}
	return strings.Fields(string(data)), nil
}
