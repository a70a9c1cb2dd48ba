package objconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	opts, err := Load("")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, opts.Threads, 1)
	assert.Equal(t, "-", opts.Output)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, opts.Threads, 1)
}

func TestLoadParsesTOMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "threads = 4\noutput = \"report.txt\"\nverbose = true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, opts.Threads)
	assert.Equal(t, "report.txt", opts.Output)
	assert.True(t, opts.Verbose)
}

func TestValidateRejectsZeroThreads(t *testing.T) {
	opts := Options{Threads: 0}
	assert.Error(t, Validate(&opts), "expected an error for a zero thread count")
}

func TestValidateVerboseWinsOverQuiet(t *testing.T) {
	opts := Options{Threads: 1, Quiet: true, Verbose: true}
	require.NoError(t, Validate(&opts))
	assert.False(t, opts.Quiet, "expected Verbose to win over Quiet")
}
