package walk

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/blakesmith/ar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/objtools/objtools/internal/tempdir"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestWalkEmitsPlainFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.o", []byte("obj-a"))
	writeFile(t, dir, "b.o", []byte("obj-b"))

	temp := tempdir.New()
	defer temp.Close()
	w := New(temp)

	var items []WorkItem
	n, err := w.Walk([]string{dir}, func(item WorkItem) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, items, 2)
}

func TestWalkSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".hidden.o", []byte("x"))
	writeFile(t, dir, "visible.o", []byte("y"))

	temp := tempdir.New()
	defer temp.Close()
	w := New(temp)

	var items []WorkItem
	_, err := w.Walk([]string{dir}, func(item WorkItem) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "visible.o", filepath.Base(items[0].RealPath))
}

func TestWalkHonoursExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.o", []byte("x"))
	writeFile(t, dir, "skip.test.o", []byte("y"))

	temp := tempdir.New()
	defer temp.Close()
	w := New(temp)
	w.Exclude = []string{"**/*.test.o"}

	var items []WorkItem
	_, err := w.Walk([]string{dir}, func(item WorkItem) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "keep.o", filepath.Base(items[0].RealPath))
}

func TestWalkExpandsZipMembers(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "archive.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"one.o", "two.o"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("content-" + name))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	temp := tempdir.New()
	defer temp.Close()
	w := New(temp)

	var items []WorkItem
	_, err = w.Walk([]string{zipPath}, func(item WorkItem) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.NotEmpty(t, item.MemberName)
	}
}

func TestWalkExpandsArMembers(t *testing.T) {
	dir := t.TempDir()
	arPath := filepath.Join(dir, "archive.a")
	f, err := os.Create(arPath)
	require.NoError(t, err)
	aw := ar.NewWriter(f)
	require.NoError(t, aw.WriteGlobalHeader())
	body := []byte("object-body")
	require.NoError(t, aw.WriteHeader(&ar.Header{Name: "one.o", Size: int64(len(body))}))
	_, err = aw.Write(body)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	temp := tempdir.New()
	defer temp.Close()
	w := New(temp)

	var items []WorkItem
	_, err = w.Walk([]string{arPath}, func(item WorkItem) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "one.o", items[0].MemberName)
}

func TestWalkSkipsSymlinkedDirectories(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	require.NoError(t, os.Mkdir(real, 0o755))
	writeFile(t, real, "in-real.o", []byte("x"))

	link := filepath.Join(dir, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	temp := tempdir.New()
	defer temp.Close()
	w := New(temp)

	var items []WorkItem
	_, err := w.Walk([]string{dir}, func(item WorkItem) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, items, 1, "expected the symlinked directory to be skipped")
}

func TestLooksLikeZipAndAr(t *testing.T) {
	assert.True(t, looksLikeZip([]byte("PK\x03\x04rest")))
	assert.False(t, looksLikeZip([]byte("notzip")))
	assert.True(t, looksLikeAr([]byte("!<arch>\nrest")))
	assert.False(t, looksLikeAr([]byte{0, 0, 0, 0}))
}
