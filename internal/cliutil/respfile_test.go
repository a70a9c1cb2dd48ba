package cliutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandResponseFilesAtPrefix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "args.txt")
	require.NoError(t, os.WriteFile(path, []byte("--threads 4 --verbose"), 0o644))

	got, err := ExpandResponseFiles([]string{"prog", "@" + path, "extra"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prog", "--threads", "4", "--verbose", "extra"}, got)
}

func TestExpandResponseFilesFlagForm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "args.txt")
	require.NoError(t, os.WriteFile(path, []byte("--quiet"), 0o644))

	got, err := ExpandResponseFiles([]string{"prog", "--response-file", path})
	require.NoError(t, err)
	assert.Equal(t, []string{"prog", "--quiet"}, got)
}

func TestExpandResponseFilesPassesThroughPlainArgs(t *testing.T) {
	got, err := ExpandResponseFiles([]string{"prog", "a.o", "b.o"})
	require.NoError(t, err)
	assert.Equal(t, []string{"prog", "a.o", "b.o"}, got)
}

func TestExpandResponseFilesMissingFileIsAnError(t *testing.T) {
	_, err := ExpandResponseFiles([]string{"prog", "@/does/not/exist"})
	assert.Error(t, err, "expected an error for a missing response file")
}

func TestExpandResponseFilesMissingPathArgumentIsAnError(t *testing.T) {
	_, err := ExpandResponseFiles([]string{"prog", "--response-file"})
	assert.Error(t, err, "expected an error when --response-file has no following path")
}
