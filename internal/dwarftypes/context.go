package dwarftypes

import (
	"sync"

	"github.com/objtools/objtools/internal/leb128"
	"github.com/objtools/objtools/internal/objfile"
)

// TypeContext is one phase-1 context-map entry: the
// context bytes accumulated by walking outer namespace/type DIEs, and
// the compilation unit's producer string, shared by reference across
// every entry of the same CU.
type TypeContext struct {
	Context  []byte
	Producer *string
}

// ContextMap is the phase-1 shared output: DIE offset -> TypeContext,
// guarded by a single mutex held for one insertion at a time.
type ContextMap struct {
	mu    sync.Mutex
	byOff map[uint64]TypeContext
	total uint64 // total DIE count observed, all tags
}

// NewContextMap builds an empty context map.
func NewContextMap() *ContextMap {
	return &ContextMap{byOff: make(map[uint64]TypeContext)}
}

func (m *ContextMap) insert(offset uint64, ctx TypeContext) {
	m.mu.Lock()
	m.byOff[offset] = ctx
	m.mu.Unlock()
}

func (m *ContextMap) incrTotal(by uint64) {
	m.mu.Lock()
	m.total += by
	m.mu.Unlock()
}

// Snapshot returns the accumulated offset -> TypeContext entries and the
// total DIE count, safe to call once all phase-1 workers have joined
//.
func (m *ContextMap) Snapshot() (map[uint64]TypeContext, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]TypeContext, len(m.byOff))
	for k, v := range m.byOff {
		out[k] = v
	}
	return out, m.total
}

// Lookup resolves a single DIE's recorded context, used by the signature
// scanner's step-5/6 'N' encoding to fetch a referenced type's context
// bytes without re-walking the tree.
func (m *ContextMap) Lookup(offset uint64) (TypeContext, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.byOff[offset]
	return v, ok
}

// BuildContext walks one compilation unit's DIE tree (phase 1),
// recording a TypeContext for every type DIE encountered.
func BuildContext(cu objfile.CompilationUnit, out *ContextMap) {
	producer := cu.Producer
	walkContext(cu.Root, nil, &producer, out)
}

func walkContext(d objfile.DIE, context []byte, producer *string, out *ContextMap) {
	if d == nil {
		return
	}
	out.incrTotal(1)

	tag := d.Tag()
	if isTypeTag(tag) {
		name, _ := d.Name()
		out.insert(d.Offset(), TypeContext{Context: append([]byte(nil), context...), Producer: producer})
		context = extendContext(context, tag, name)
	} else if isNamespaceTag(tag) {
		name, _ := d.Name()
		context = extendContext(context, tag, name)
	}

	for _, child := range d.Children() {
		walkContext(child, context, producer, out)
	}
}

// extendContext appends 'C', ULEB128(tag), NUL-terminated name to the
// running context bytes, as namespace and type DIEs do when their
// children are recursed into.
func extendContext(context []byte, tag uint16, name string) []byte {
	out := append([]byte(nil), context...)
	out = append(out, 'C')
	out = leb128.AppendUnsigned(out, uint64(tag))
	out = append(out, name...)
	out = append(out, 0)
	return out
}
