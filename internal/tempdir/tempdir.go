// Package tempdir manages the single process-lifetime scratch directory
// used to extract archive and zip members before they are opened as
// objects.
package tempdir

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Dir lazily creates one four-segment random-hex subdirectory under the
// platform temp directory on first use and removes it recursively on
// Close. The Unborn -> Live -> Removed lifecycle is
// serialised on first creation; subsequent name generation only takes
// the lock long enough to increment a counter.
type Dir struct {
	mu      sync.Mutex
	root    string
	counter uint64
}

// New returns an unborn Dir; the directory itself is created lazily on
// the first call to File.
func New() *Dir {
	return &Dir{}
}

// File returns a path for a new scoped temporary file with the given
// suffix (typically the archive member's base name), creating the
// backing directory if this is the first request.
func (d *Dir) File(suffix string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.root == "" {
		root, err := mkScratchDir()
		if err != nil {
			return "", fmt.Errorf("tempdir: creating scratch directory: %w", err)
		}
		d.root = root
	}
	d.counter++
	name := fmt.Sprintf("%08d-%s", d.counter, sanitize(suffix))
	return filepath.Join(d.root, name), nil
}

// Close removes the backing directory, if one was ever created.
func (d *Dir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == "" {
		return nil
	}
	err := os.RemoveAll(d.root)
	d.root = ""
	return err
}

func mkScratchDir() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	name := hex.EncodeToString(buf[0:2]) + "-" + hex.EncodeToString(buf[2:4]) + "-" +
		hex.EncodeToString(buf[4:6]) + "-" + hex.EncodeToString(buf[6:8])
	path := filepath.Join(os.TempDir(), "objtools-"+name)
	if err := os.MkdirAll(path, 0o700); err != nil {
		return "", err
	}
	return path, nil
}

func sanitize(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "member"
	}
	return string(out)
}
