// Package scanner is the worker-pool driver: it pops work
// items off the walker's channel, extracts archive/zip members into
// scoped temp files, and dispatches each logical object to a process
// callback (the COMDAT or DWARF engine). Modeled on the teacher's
// worker-pool pattern, generalized from golang.org/x/sync/errgroup's
// standard fan-out-with-cancellation idiom in place of a hand-rolled
// atomic error flag: errgroup's context cancellation on first error IS
// its shared `error` atomic.
package scanner

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blakesmith/ar"
	"golang.org/x/sync/errgroup"

	"github.com/objtools/objtools/internal/objerrors"
	"github.com/objtools/objtools/internal/objlog"
	"github.com/objtools/objtools/internal/tempdir"
	"github.com/objtools/objtools/internal/walk"
)

// Process handles one fully-resolved object file on disk (the work
// item's real_path, or the temp file a zip member was extracted to).
type Process func(displayPath, diskPath string) error

// Driver runs Threads workers pulling from a work-item channel.
type Driver struct {
	Threads int
	Temp    *tempdir.Dir
}

// Run spawns d.Threads workers over items, calling process for each
// resolved object. The first non-skip error cancels the group: sibling
// workers observe ctx.Err() at their next pop and exit without further
// processing. Suppressing partial output when an error is set is the
// caller's responsibility — Run itself only reports the error.
func (d *Driver) Run(ctx context.Context, items <-chan walk.WorkItem, process Process) error {
	threads := d.Threads
	if threads < 1 {
		threads = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < threads; i++ {
		g.Go(func() error {
			return d.worker(gctx, items, process)
		})
	}
	return g.Wait()
}

func (d *Driver) worker(ctx context.Context, items <-chan walk.WorkItem, process Process) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-items:
			if !ok {
				return nil
			}
			if err := d.handle(ctx, item, process); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) handle(ctx context.Context, item walk.WorkItem, process Process) error {
	diskPath := item.RealPath
	if item.MemberName != "" {
		extracted, cleanup, err := d.extractMember(item)
		if err != nil {
			objlog.Skip("extracting %s: %v", item.DisplayPath, err)
			return nil
		}
		defer cleanup()
		diskPath = extracted
	}

	info, err := os.Stat(diskPath)
	if err != nil {
		objlog.Skip("cannot stat %s: %v", item.DisplayPath, err)
		return nil
	}
	if info.Size() == 0 {
		objlog.Skip("%s is empty", item.DisplayPath)
		return nil
	}

	if err := process(item.DisplayPath, diskPath); err != nil {
		if objerrors.KindOf(err).Fatal() {
			objlog.Fatal("%v", err)
			return err
		}
		objlog.Skip("%s: %v", item.DisplayPath, err)
		return nil
	}
	return nil
}

// extractMember materialises a work item's archive member into a scoped
// temp file, released by the returned cleanup func on both the success
// and error paths: scoped and deleted when the work item finishes, even
// on error. The container is re-opened fresh rather than carried from
// the walk phase, keeping WorkItem itself a plain (path, name) pair.
func (d *Driver) extractMember(item walk.WorkItem) (string, func(), error) {
	var r io.Reader
	if zr, err := zip.OpenReader(item.RealPath); err == nil {
		defer zr.Close()
		var target *zip.File
		for _, f := range zr.File {
			if f.Name == item.MemberName {
				target = f
				break
			}
		}
		if target == nil {
			return "", func() {}, fmt.Errorf("member %s not found in zip %s", item.MemberName, item.RealPath)
		}
		rc, err := target.Open()
		if err != nil {
			return "", func() {}, err
		}
		defer rc.Close()
		r = rc
	} else {
		f, err := os.Open(item.RealPath)
		if err != nil {
			return "", func() {}, err
		}
		defer f.Close()
		arReader := ar.NewReader(f)
		found := false
		for {
			hdr, err := arReader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", func() {}, err
			}
			if strings.TrimRight(hdr.Name, "/ ") == item.MemberName {
				found = true
				r = io.LimitReader(arReader, hdr.Size)
				break
			}
		}
		if !found {
			return "", func() {}, fmt.Errorf("member %s not found in archive %s", item.MemberName, item.RealPath)
		}
		return d.writeTemp(item.MemberName, r)
	}
	return d.writeTemp(item.MemberName, r)
}

func (d *Driver) writeTemp(name string, r io.Reader) (string, func(), error) {
	path, err := d.Temp.File(name)
	if err != nil {
		return "", func() {}, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return "", func() {}, err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", func() {}, err
	}
	return path, func() { os.Remove(path) }, nil
}
