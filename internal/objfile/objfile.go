// Package objfile defines the object-file provider interface:
// the abstract read surface both engines need from whichever binary-format
// library underlies them. Parsing raw object-file and debug-info
// structures is explicitly out of the core's scope — this
// package is the seam. internal/objfile/elfdwarf is the one concrete
// adapter, built on the standard library's debug/elf and debug/dwarf.
package objfile

import "encoding/binary"

// Section is one entry of an object file's section table, exposing only
// the fields the COMDAT engine needs.
type Section interface {
	Name() string
	Type() uint32
	Flags() uint64
	Link() uint32
	Info() uint32
	Entsize() uint64
	Size() uint64
	Data() ([]byte, error)
}

// Object is read access to one logical object: a plain relocatable file, or
// one member of a static archive, collapsed to "one Object per logical
// member".
type Object interface {
	// RawBytes returns the full literal byte content of the member, used
	// for the per-file digest.
	RawBytes() []byte

	// ByteOrder reports the endianness declared by the file's
	// identification byte; word assembly uses that endianness.
	ByteOrder() binary.ByteOrder

	Sections() []Section

	// SymbolName resolves the COMDAT group identifier: the symbol at
	// symbolIndex within the symbol table whose section index is
	// symtabSection.
	SymbolName(symtabSection, symbolIndex int) (string, error)
}

// AttrKind classifies how an Attribute's value should be read and how the
// signature scanner should encode it.
type AttrKind int

const (
	AttrFlag AttrKind = iota
	AttrSigned
	AttrUnsigned
	AttrString
	AttrBlock
	AttrReference
)

// Attribute is one (attribute_code, form, value) tuple of a DIE.
type Attribute struct {
	Code uint16
	Form uint16
	Kind AttrKind

	Flag     bool
	Signed   int64
	Unsigned uint64
	Str      string
	Block    []byte
	// Ref is the referenced DIE's offset, valid when Kind == AttrReference.
	Ref uint64
}

// DIE is an opaque debug-info entry handle: offset, tag, optional
// name, ordered children, ordered attributes.
type DIE interface {
	Offset() uint64
	Tag() uint16
	Name() (string, bool)
	Children() []DIE
	Attributes() []Attribute
}

// CompilationUnit is one DWARF compile unit: its root DIE plus the
// producer string extracted from DW_AT_producer.
type CompilationUnit struct {
	Offset   uint64
	Producer string
	Root     DIE
}

// DebugProvider is the DWARF-facing half of §6.1: enumerate compilation
// units and resolve a DIE by its debug-info offset (for type-reference
// attributes, which only carry the target's offset).
type DebugProvider interface {
	CompilationUnits() ([]CompilationUnit, error)
	DIEAt(offset uint64) (DIE, error)
}

// Provider is the full object-file provider §6.1 describes: both the
// section/symbol view the COMDAT engine needs and the DWARF view the
// type-signature engine needs, since both are commonly read from the same
// underlying object file.
type Provider interface {
	Object
	DebugProvider
}
