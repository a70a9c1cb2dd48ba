package dwarftypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objtools/objtools/internal/objfile"
	"github.com/objtools/objtools/internal/objfile/objfiletest"
)

// buildPointerToStruct builds a minimal "pointer to a named struct" type
// tree: the pointer DIE is the signature root, its DW_AT_type reference
// targets a named structure_type DIE with one member. Since the target has
// a name, emitAttributes must take the 'N' context+name shortcut (step 5)
// rather than recursing into the struct body.
func buildPointerToStruct() (*objfiletest.DIE, *objfiletest.DIE) {
	member := &objfiletest.DIE{Off: 300, TagV: tagMember, NameV: "x", HasName: true}
	strct := &objfiletest.DIE{
		Off: 200, TagV: tagStructureType, NameV: "Point", HasName: true,
		Attrs: []objfile.Attribute{objfiletest.Unsigned(atByteSize, 8)},
		Kids:  []objfile.DIE{member},
	}
	ptr := &objfiletest.DIE{
		Off:   100,
		TagV:  tagPointerType,
		Attrs: []objfile.Attribute{objfiletest.Ref(atType, strct)},
	}
	return ptr, strct
}

func newContextsFor(dies ...*objfiletest.DIE) *ContextMap {
	cm := NewContextMap()
	producer := "test"
	for _, d := range dies {
		walkContext(d, nil, &producer, cm)
	}
	return cm
}

func TestComputeSignatureNamedTargetUsesContextNameShortcut(t *testing.T) {
	ptr, strct := buildPointerToStruct()
	contexts := newContextsFor(ptr, strct)
	provider := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: ptr}, {Root: strct}})

	res, err := ComputeSignature(provider, contexts, ptr.Off)
	require.NoError(t, err)
	require.NotEmpty(t, res.Bytes)

	// 'D' tag(pointer) then the 'N' record for the DW_AT_type attribute:
	// 'N' ULEB128(atType) <context bytes> 'E' "Point\0"
	assert.Equal(t, byte('D'), res.Bytes[0])
	assert.Contains(t, res.Bytes, byte('N'), "expected an 'N' record for the named pointee")
	assert.NotZero(t, res.Signature)
}

func TestComputeSignatureUnnamedPointeeFallsBackToGenericReference(t *testing.T) {
	// Same shape as buildPointerToStruct, but the pointee is unnamed: step
	// 5/6 must decline the 'N' shortcut and fall back to the ordinary
	// step-4 'T'/'R' reference encoding instead of dropping the attribute.
	member := &objfiletest.DIE{Off: 300, TagV: tagMember, NameV: "x", HasName: true}
	strct := &objfiletest.DIE{
		Off: 200, TagV: tagStructureType, HasName: false,
		Attrs: []objfile.Attribute{objfiletest.Unsigned(atByteSize, 8)},
		Kids:  []objfile.DIE{member},
	}
	ptr := &objfiletest.DIE{
		Off:   100,
		TagV:  tagPointerType,
		Attrs: []objfile.Attribute{objfiletest.Ref(atType, strct)},
	}

	contexts := newContextsFor(ptr, strct)
	provider := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: ptr}, {Root: strct}})

	res, err := ComputeSignature(provider, contexts, ptr.Off)
	require.NoError(t, err)
	assert.Contains(t, res.Bytes, byte('T'), "expected a 'T' forward-reference record for the unnamed pointee")
	assert.NotContains(t, res.Bytes, byte('N'), "unnamed pointee must not use the context+name shortcut")
}

func TestComputeSignatureNonReferenceTagEmitsTypeAttribute(t *testing.T) {
	// A DW_TAG_typedef is not one of the five step-5/6 reference tags, so
	// its DW_AT_type attribute must still surface via the generic step-4
	// path rather than being silently dropped for lack of priority-table
	// membership.
	target := &objfiletest.DIE{Off: 400, TagV: tagBaseType, NameV: "int", HasName: true}
	alias := &objfiletest.DIE{
		Off:   500,
		TagV:  tagTypedef,
		NameV: "MyInt",
		HasName: true,
		Attrs: []objfile.Attribute{objfiletest.Ref(atType, target)},
	}

	contexts := newContextsFor(alias, target)
	provider := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: alias}, {Root: target}})

	res, err := ComputeSignature(provider, contexts, alias.Off)
	require.NoError(t, err)
	assert.Contains(t, res.Bytes, byte('T'), "expected the typedef's DW_AT_type to surface as a forward reference")
}

func TestComputeSignatureIsDeterministic(t *testing.T) {
	ptr, strct := buildPointerToStruct()
	contexts := newContextsFor(ptr, strct)
	provider := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: ptr}, {Root: strct}})

	r1, err := ComputeSignature(provider, contexts, ptr.Off)
	require.NoError(t, err)
	r2, err := ComputeSignature(provider, contexts, ptr.Off)
	require.NoError(t, err)
	assert.Equal(t, r1.Signature, r2.Signature)
}

func TestEmitReferenceAttrEmitsBackReferenceForRevisitedOffset(t *testing.T) {
	// A self-referential struct: its DW_AT_containing_type (an ordinary
	// reference, not one of the special type-reference tags) points back
	// at itself, so the second visit must produce an 'R' back-reference
	// rather than recursing forever.
	self := &objfiletest.DIE{Off: 50, TagV: tagStructureType, NameV: "Self", HasName: true}
	self.Attrs = []objfile.Attribute{objfiletest.Ref(atContainingType, self)}

	contexts := newContextsFor(self)
	provider := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: self}})

	res, err := ComputeSignature(provider, contexts, self.Off)
	require.NoError(t, err)

	hasBackRef := false
	for _, b := range res.Bytes {
		if b == 'R' {
			hasBackRef = true
		}
	}
	assert.True(t, hasBackRef, "expected a back-reference 'R' record for the self-reference")
}

func TestEmitChildrenSkipsUnnamedTypeChildren(t *testing.T) {
	anon := &objfiletest.DIE{Off: 10, TagV: tagStructureType, HasName: false}
	named := &objfiletest.DIE{Off: 20, TagV: tagStructureType, NameV: "Inner", HasName: true}
	member := &objfiletest.DIE{Off: 30, TagV: tagMember, NameV: "field", HasName: true}
	outer := &objfiletest.DIE{Off: 1, TagV: tagStructureType, NameV: "Outer", HasName: true, Kids: []objfile.DIE{anon, named, member}}

	contexts := newContextsFor(outer)
	provider := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: outer}})

	res, err := ComputeSignature(provider, contexts, outer.Off)
	require.NoError(t, err)

	hasS := false
	for _, b := range res.Bytes {
		if b == 'S' {
			hasS = true
		}
	}
	assert.True(t, hasS, "expected an 'S' record for the named child")

	// Dropping the unnamed type child must leave the canonical bytes unchanged.
	without := &objfiletest.DIE{Off: 1, TagV: tagStructureType, NameV: "Outer", HasName: true, Kids: []objfile.DIE{named, member}}
	provider2 := objfiletest.New(nil, nil, nil, nil, []objfile.CompilationUnit{{Root: without}})
	res2, err := ComputeSignature(provider2, newContextsFor(without), without.Off)
	require.NoError(t, err)
	assert.Equal(t, res2.Bytes, res.Bytes, "the unnamed type child should contribute no bytes")
}
