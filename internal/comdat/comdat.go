// Package comdat implements the COMDAT accounting engine:
// per-object group-section scanning, an order-independent run digest, and
// a similarity-trimmed wasted-bytes report. Grounded on the teacher's
// single-mutex aggregation-map idiom (metrics_cache.go's counters) and on
// the ELF group-section layout documented in original_source's
// comdat_count sources.
package comdat

import (
	"fmt"
	"sort"
	"sync"

	"github.com/objtools/objtools/internal/md5sum"
	"github.com/objtools/objtools/internal/objerrors"
	"github.com/objtools/objtools/internal/objfile"
)

// groupFlagLinkOnce is the ELF group flag GRP_COMDAT: the only group
// flag bit the engine recognises. A flag word without this bit set means
// the group is not a link-once group and is ignored.
const groupFlagLinkOnce = 0x1

// SHT_GROUP's sh_type value, per the ELF gABI.
const sectionTypeGroup = 17

// Entry is one COMDAT aggregation-map value.
type Entry struct {
	TotalSize uint64
	Largest   uint64
	Instances uint32
}

// Aggregator accumulates group-size contributions across every object
// file processed by the worker pool, under a single mutex: one
// op per lock, each O(1) in user work.
type Aggregator struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewAggregator builds an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{entries: make(map[string]*Entry)}
}

// Add folds one group instance's (identifier, size) pair into the map
//.
func (a *Aggregator) Add(identifier string, size uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[identifier]
	if !ok {
		e = &Entry{}
		a.entries[identifier] = e
	}
	e.TotalSize += size
	if size > e.Largest {
		e.Largest = size
	}
	e.Instances++
}

// Snapshot copies the current map, safe to hand to the report builder
// while workers may still be mutating the live aggregator.
func (a *Aggregator) Snapshot() map[string]Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]Entry, len(a.entries))
	for k, v := range a.entries {
		out[k] = *v
	}
	return out
}

// ScanObject processes one logical object: folds its content digest into
// digests, then walks its sections for link-once groups, calling
// agg.Add for each recognised group.
func ScanObject(obj objfile.Object, agg *Aggregator, digests *DigestAggregator) error {
	digests.Add(md5sum.Sum(frame(obj.RawBytes())))

	sections := obj.Sections()
	for _, sec := range sections {
		if sec.Type() != sectionTypeGroup {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return objerrors.NewSkipError("read group section", sec.Name(), err)
		}
		if len(data)%4 != 0 {
			return objerrors.NewFatalParseError("group section size", sec.Name(), fmt.Errorf("%d bytes is not word-aligned", len(data)))
		}
		if len(data) == 0 {
			continue
		}

		order := obj.ByteOrder()
		flag := order.Uint32(data[0:4])
		if flag&groupFlagLinkOnce == 0 {
			continue
		}

		var totalSize uint64
		for off := 4; off+4 <= len(data); off += 4 {
			idx := order.Uint32(data[off : off+4])
			if int(idx) >= len(sections) {
				return objerrors.NewFatalParseError("group member index", sec.Name(), fmt.Errorf("section index %d out of range", idx))
			}
			totalSize += sections[idx].Size()
		}

		identifier, err := obj.SymbolName(int(sec.Link()), int(sec.Info()))
		if err != nil {
			return objerrors.NewFatalParseError("group identifier symbol", sec.Name(), err)
		}

		agg.Add(identifier, totalSize)
	}
	return nil
}

// frame wraps raw file bytes in the literal "Bgn\0" / "End\0" markers the
// per-file digest is defined over.
func frame(raw []byte) []byte {
	out := make([]byte, 0, len(raw)+8)
	out = append(out, 'B', 'g', 'n', 0)
	out = append(out, raw...)
	out = append(out, 'E', 'n', 'd', 0)
	return out
}

// DigestAggregator combines per-file digests into one order-independent
// run digest.
type DigestAggregator struct {
	mu      sync.Mutex
	digests []md5sum.Digest
}

// NewDigestAggregator builds an empty digest aggregator.
func NewDigestAggregator() *DigestAggregator {
	return &DigestAggregator{}
}

// Add appends one per-file digest under lock.
func (d *DigestAggregator) Add(digest md5sum.Digest) {
	d.mu.Lock()
	d.digests = append(d.digests, digest)
	d.mu.Unlock()
}

// Finalize sorts the accumulated digests byte-lexicographically and
// hashes them in that order, making the result independent of ingestion
// order.
func (d *DigestAggregator) Finalize() md5sum.Digest {
	d.mu.Lock()
	sorted := make([]md5sum.Digest, len(d.digests))
	copy(sorted, d.digests)
	d.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool {
		return lessDigest(sorted[i], sorted[j])
	})

	ctx := md5sum.New()
	for _, dg := range sorted {
		ctx.Update(dg[:])
	}
	return ctx.Finalize()
}

func lessDigest(a, b md5sum.Digest) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
