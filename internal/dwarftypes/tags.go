// Package dwarftypes implements the DWARF type-signature engine: a
// phase-1 context builder, a phase-2 canonical-byte-sequence
// signature scanner matching the published DWARF-4 type-signature
// algorithm, and a count aggregator with producer-string simplification.
// Grounded on original_source/debug_types/typeslib (scan_type.cpp,
// context.cpp) for the tag/attribute tables and on the teacher's
// single-mutex shared-map idiom for the concurrency shape.
package dwarftypes

// DWARF tag values (DWARF4 Table 2.1), referenced here as plain uint16
// constants since objfile.DIE carries tags as uint16.
const (
	tagArrayType             = 0x01
	tagClassType             = 0x02
	tagEnumerationType       = 0x04
	tagFormalParameter       = 0x05
	tagLexicalBlock          = 0x0b
	tagMember                = 0x0d
	tagPointerType           = 0x0f
	tagReferenceType         = 0x10
	tagCompileUnit           = 0x11
	tagStringType            = 0x12
	tagStructureType         = 0x13
	tagSubroutineType        = 0x15
	tagTypedef               = 0x16
	tagUnionType             = 0x17
	tagInheritance           = 0x1c
	tagPtrToMemberType       = 0x1f
	tagSetType               = 0x20
	tagSubrangeType          = 0x21
	tagBaseType              = 0x24
	tagConstType             = 0x26
	tagEnumerator            = 0x28
	tagFileType              = 0x29
	tagFriend                = 0x2a
	tagPackedType            = 0x2d
	tagSubprogram            = 0x2e
	tagTemplateTypeParam     = 0x2f
	tagTemplateValueParam    = 0x30
	tagVariable              = 0x34
	tagVolatileType          = 0x35
	tagRestrictType          = 0x37
	tagInterfaceType         = 0x38
	tagNamespace             = 0x39
	tagUnspecifiedType       = 0x3b
	tagSharedType            = 0x40
	tagRvalueReferenceType   = 0x42
)

// DWARF attribute values (DWARF4 Table 7.5, for the subset the priority
// table and structural algorithm reference).
const (
	atSibling              = 0x01
	atLocation             = 0x02
	atName                 = 0x03
	atOrdering             = 0x09
	atByteSize             = 0x0b
	atBitOffset            = 0x0c
	atBitSize              = 0x0d
	atDiscr                = 0x15
	atDiscrValue           = 0x16
	atVisibility           = 0x17
	atStringLength         = 0x19
	atConstValue           = 0x1c
	atContainingType       = 0x1d
	atDefaultValue         = 0x1e
	atIsOptional           = 0x21
	atLowerBound           = 0x22
	atProducer             = 0x25
	atPrototyped           = 0x27
	atBitStride            = 0x2e
	atUpperBound           = 0x2f
	atAccessibility        = 0x32
	atAddressClass         = 0x33
	atArtificial           = 0x34
	atCount                = 0x37
	atDataMemberLocation   = 0x38
	atDiscrList            = 0x3d
	atEncoding             = 0x3e
	atFriend               = 0x41
	atSegment              = 0x46
	atType                 = 0x49
	atUseLocation          = 0x4a
	atVariableParameter    = 0x4b
	atVirtuality           = 0x4c
	atVtableElemLocation   = 0x4d
	atAllocated            = 0x4e
	atAssociated           = 0x4f
	atDataLocation         = 0x50
	atByteStride           = 0x51
	atUseUTF8              = 0x53
	atBinaryScale          = 0x5b
	atDecimalScale         = 0x5c
	atSmall                = 0x5d
	atDecimalSign          = 0x5e
	atDigitCount           = 0x5f
	atPictureString        = 0x60
	atMutable              = 0x61
	atThreadsScaled        = 0x62
	atExplicit             = 0x63
	atEndianity            = 0x65
	atConstExpr            = 0x6c
	atEnumClass            = 0x6d
	atDataBitOffset        = 0x6b
)

// isTypeTag reports whether tag is one of the tags the context builder
// and type-context map treat as "a type", extended with the
// original_source supplement (DW_TAG_unspecified_type,
// DW_TAG_restrict_type) its distillation dropped.
func isTypeTag(tag uint16) bool {
	switch tag {
	case tagStructureType, tagClassType, tagUnionType, tagBaseType,
		tagPointerType, tagReferenceType, tagRvalueReferenceType,
		tagPtrToMemberType, tagFriend,
		tagUnspecifiedType, tagRestrictType:
		return true
	default:
		return false
	}
}

// isNamespaceTag reports whether tag is a DW_TAG_namespace, the other
// context-extending tag alongside types.
func isNamespaceTag(tag uint16) bool {
	return tag == tagNamespace
}

// isTypeReferenceTag reports whether tag is one of the tags step 5/6 of
// the signature scanner special-cases for the 'N' context+name encoding
//.
func isTypeReferenceTag(tag uint16) bool {
	switch tag {
	case tagPointerType, tagReferenceType, tagRvalueReferenceType, tagPtrToMemberType, tagFriend:
		return true
	default:
		return false
	}
}

// isSubprogramTag reports whether tag is DW_TAG_subprogram, which step 7
// treats the same as a type DIE when naming children for the 'S'
// shortcut.
func isSubprogramTag(tag uint16) bool {
	return tag == tagSubprogram
}
