// Package pathdisplay provides display-path helpers: a bare relative path
// for plain files, "archive(member)" for archive/zip members. Neither CLI
// tool uses it; their work items carry "archive/member" display paths
// built by internal/walk. Narrow enough that the
// teacher's pkg/pathutil (built around an unrelated search-result type)
// wasn't worth adapting — see DESIGN.md.
package pathdisplay

import (
	"fmt"
	"path/filepath"
)

// Relative returns path relative to base when possible, falling back to
// path unchanged if it isn't under base (e.g. a different volume).
func Relative(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}

// Member formats an archive or zip member's display path as
// "archive(member)", matching the convention original_source's
// comdat_count reporting used for archive inputs.
func Member(archive, member string) string {
	if member == "" {
		return archive
	}
	return fmt.Sprintf("%s(%s)", archive, member)
}
