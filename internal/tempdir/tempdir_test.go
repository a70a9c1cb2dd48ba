package tempdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLazilyCreatesScratchDirectory(t *testing.T) {
	d := New()
	defer d.Close()

	path, err := d.File("member.o")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err, "expected scratch directory to exist")
}

func TestFileNamesAreUniqueAndOrdered(t *testing.T) {
	d := New()
	defer d.Close()

	p1, err := d.File("a.o")
	require.NoError(t, err)
	p2, err := d.File("a.o")
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2, "expected distinct paths for repeated calls")
}

func TestCloseRemovesScratchDirectory(t *testing.T) {
	d := New()
	path, err := d.File("a.o")
	require.NoError(t, err)
	root := filepath.Dir(path)

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, d.Close())

	_, err = os.Stat(root)
	assert.True(t, os.IsNotExist(err), "expected scratch directory to be removed")
}

func TestCloseOnUnbornDirIsANoop(t *testing.T) {
	d := New()
	assert.NoError(t, d.Close())
}

func TestSanitizeReplacesUnsafeCharactersAndDefaultsWhenEmpty(t *testing.T) {
	assert.Equal(t, "foo_bar_baz", sanitize("foo/bar baz"))
	assert.Equal(t, "member", sanitize(""))
	assert.Equal(t, "member", sanitize("///"))
}
