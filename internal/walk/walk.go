// Package walk implements the work-queue scanner's producer half: it
// recurses the input paths, recognises zip and static-archive
// containers, expands nested containers a bounded number of levels, and
// emits one work item per logical object onto a channel the scanner
// driver (internal/scanner) consumes. Grounded on the teacher's
// directory-walking idiom in the reference corpus (filepath.Walk with
// symlink-cycle guards and back-pressured channel sends), generalised
// from source-file discovery to object/archive discovery.
package walk

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/blakesmith/ar"
	"github.com/cespare/xxhash/v2"

	"github.com/objtools/objtools/internal/objerrors"
	"github.com/objtools/objtools/internal/objlog"
	"github.com/objtools/objtools/internal/tempdir"
)

// maxNestedDepth bounds archive-of-archive expansion: the original
// zipper.cpp recurses without a stated bound, so a conservative finite
// depth keeps a cyclic or adversarial archive from expanding forever.
const maxNestedDepth = 4

// WorkItem identifies one logical object to scan: a plain file on disk,
// or a member inside an archive/zip opened from RealPath.
type WorkItem struct {
	RealPath    string
	MemberName  string
	DisplayPath string
}

// Walker walks input paths and emits WorkItems. Exclude holds doublestar
// glob patterns matched against the slash-form display path (the path as
// walked, including the input root); matches are skipped before emission.
type Walker struct {
	Exclude []string
	temp    *tempdir.Dir
	seen    map[uint64]struct{}
}

// New builds a Walker. temp is used only for the archive-of-archive
// supplement, to materialise a nested container's bytes as a real file
// so the normal zip/ar probing logic can recurse into it.
func New(temp *tempdir.Dir) *Walker {
	return &Walker{temp: temp, seen: map[uint64]struct{}{}}
}

// Walk recurses paths, sending one WorkItem per logical object to emit.
// It returns the number of items queued, matching §4.4's queue_input
// count return, and a fatal error if one occurred (e.g. a zip archive
// that opened but whose central directory could not be enumerated).
func (w *Walker) Walk(paths []string, emit func(WorkItem) error) (int, error) {
	count := 0
	counted := func(item WorkItem) error {
		if w.excluded(item.DisplayPath) {
			return nil
		}
		count++
		return emit(item)
	}
	for _, p := range paths {
		if err := w.walkPath(p, counted); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (w *Walker) excluded(displayPath string) bool {
	if len(w.Exclude) == 0 {
		return false
	}
	slashed := filepath.ToSlash(displayPath)
	for _, pattern := range w.Exclude {
		if ok, _ := doublestar.Match(pattern, slashed); ok {
			return true
		}
	}
	return false
}

func (w *Walker) walkPath(root string, emit func(WorkItem) error) error {
	info, err := os.Lstat(root)
	if err != nil {
		objlog.Skip("cannot stat %s: %v", root, err)
		return nil
	}
	if isHidden(filepath.Base(root)) {
		return nil
	}
	if info.IsDir() {
		return w.walkDir(root, emit)
	}
	return w.handleFile(root, root, 0, emit)
}

func (w *Walker) walkDir(dir string, emit func(WorkItem) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			objlog.Skip("cannot walk %s: %v", path, err)
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		return w.handleFile(path, path, 0, emit)
	})
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

// handleFile probes path as a zip archive, then as a static (ar) archive,
// falling back to a single plain work item. A file that cannot be opened
// for lack of permission also falls back to a plain work item, which the
// scanner then reports and skips.
func (w *Walker) handleFile(path, display string, depth int, emit func(WorkItem) error) error {
	if zr, err := zip.OpenReader(path); err == nil {
		defer zr.Close()
		return w.expandZip(path, &zr.Reader, display, depth, emit)
	} else if err != zip.ErrFormat && !os.IsNotExist(err) && !os.IsPermission(err) {
		return objerrors.NewFatalParseError("zip enumeration", path, err)
	}

	if members, err := openAr(path); err == nil {
		return w.expandAr(path, members, display, depth, emit)
	}

	return emit(WorkItem{RealPath: path, MemberName: "", DisplayPath: display})
}

func (w *Walker) expandZip(realPath string, zr *zip.Reader, display string, depth int, emit func(WorkItem) error) error {
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		memberDisplay := display + "/" + f.Name
		if depth < maxNestedDepth && looksNested(f.Name) {
			if handled, err := w.expandNestedMember(f.Open, memberDisplay, depth, emit); err != nil {
				return err
			} else if handled {
				continue
			}
		}
		if err := emit(WorkItem{RealPath: realPath, MemberName: f.Name, DisplayPath: memberDisplay}); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) expandAr(realPath string, members []arMember, display string, depth int, emit func(WorkItem) error) error {
	for _, m := range members {
		memberDisplay := display + "/" + m.name
		if depth < maxNestedDepth && looksNested(m.name) {
			opener := func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(m.data)), nil }
			if handled, err := w.expandNestedMember(opener, memberDisplay, depth, emit); err != nil {
				return err
			} else if handled {
				continue
			}
		}
		if err := emit(WorkItem{RealPath: realPath, MemberName: m.name, DisplayPath: memberDisplay}); err != nil {
			return err
		}
	}
	return nil
}

// expandNestedMember materialises a member's bytes as a real temp file
// (so handleFile's normal zip/ar probing logic applies unchanged) and
// recurses one level deeper. Reports false, without error, when the
// member's content is not itself a recognisable container, so the
// caller falls back to emitting it as a plain work item.
func (w *Walker) expandNestedMember(open func() (io.ReadCloser, error), display string, depth int, emit func(WorkItem) error) (bool, error) {
	rc, err := open()
	if err != nil {
		objlog.Skip("cannot read nested member %s: %v", display, err)
		return true, nil
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		objlog.Skip("cannot read nested member %s: %v", display, err)
		return true, nil
	}

	h := xxhash.Sum64(data)
	if _, dup := w.seen[h]; dup {
		return true, nil
	}

	if !looksLikeZip(data) && !looksLikeAr(data) {
		return false, nil
	}
	w.seen[h] = struct{}{}

	path, err := w.temp.File(filepath.Base(display))
	if err != nil {
		return true, objerrors.NewFatalIOError("materialise", display, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return true, objerrors.NewFatalIOError("write", display, err)
	}
	return true, w.handleFile(path, display, depth+1, emit)
}

func looksNested(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".a") || strings.HasSuffix(lower, ".ar")
}

func looksLikeZip(data []byte) bool {
	return len(data) >= 4 && data[0] == 'P' && data[1] == 'K'
}

func looksLikeAr(data []byte) bool {
	return len(data) >= 8 && string(data[:7]) == "!<arch>"
}

type arMember struct {
	name string
	data []byte
}

// openAr reads a static archive fully via blakesmith/ar; errors reading
// the global header mean "not an ar archive" and are not fatal.
func openAr(path string) ([]arMember, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, 8)
	if _, err := io.ReadFull(f, magic); err != nil || string(magic[:7]) != "!<arch>" {
		return nil, fmt.Errorf("not an ar archive")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	r := ar.NewReader(f)
	var members []arMember
	for {
		hdr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		data := make([]byte, hdr.Size)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		members = append(members, arMember{name: strings.TrimRight(hdr.Name, "/ "), data: data})
	}
	return members, nil
}
