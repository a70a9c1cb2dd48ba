// Package objfiletest builds synthetic objfile.Provider fixtures for
// engine tests, in place of real ELF/DWARF input. The original C++
// implementation tested its COMDAT and DWARF-signature engines against
// hand-built mock object and DIE trees (mock_debug.hpp, make_elf.hpp)
// rather than real binaries; this package is that same fixture style
// carried into Go, so internal/comdat and internal/dwarftypes can be
// tested without fixture binaries checked into the tree.
package objfiletest

import (
	"encoding/binary"

	"github.com/objtools/objtools/internal/objfile"
)

// Section is a hand-built objfile.Section.
type Section struct {
	SecName    string
	SecType    uint32
	SecFlags   uint64
	SecLink    uint32
	SecInfo    uint32
	SecEntsize uint64
	SecData    []byte
}

func (s *Section) Name() string    { return s.SecName }
func (s *Section) Type() uint32    { return s.SecType }
func (s *Section) Flags() uint64   { return s.SecFlags }
func (s *Section) Link() uint32    { return s.SecLink }
func (s *Section) Info() uint32    { return s.SecInfo }
func (s *Section) Entsize() uint64 { return s.SecEntsize }
func (s *Section) Size() uint64    { return uint64(len(s.SecData)) }
func (s *Section) Data() ([]byte, error) {
	return s.SecData, nil
}

// Symbol is one (section, index) -> name binding looked up by SymbolName.
type Symbol struct {
	Section int
	Index   int
	Name    string
}

// DIE is a hand-built objfile.DIE: a tree node plus a flat attribute list.
type DIE struct {
	Off   uint64
	TagV  uint16
	NameV string
	HasName bool
	Attrs []objfile.Attribute
	Kids  []objfile.DIE
}

func (d *DIE) Offset() uint64            { return d.Off }
func (d *DIE) Tag() uint16                { return d.TagV }
func (d *DIE) Name() (string, bool)       { return d.NameV, d.HasName }
func (d *DIE) Children() []objfile.DIE    { return d.Kids }
func (d *DIE) Attributes() []objfile.Attribute { return d.Attrs }

// Ref builds a reference-kind attribute pointing at target's offset.
func Ref(code uint16, target *DIE) objfile.Attribute {
	return objfile.Attribute{Code: code, Kind: objfile.AttrReference, Ref: target.Off}
}

// Str builds a string-kind attribute.
func Str(code uint16, v string) objfile.Attribute {
	return objfile.Attribute{Code: code, Kind: objfile.AttrString, Str: v}
}

// Flag builds a flag-kind attribute.
func Flag(code uint16, v bool) objfile.Attribute {
	return objfile.Attribute{Code: code, Kind: objfile.AttrFlag, Flag: v}
}

// Signed builds a signed-constant attribute (the normalized form the real
// debug/dwarf adapter produces for both *data and *sdata DWARF forms).
func Signed(code uint16, v int64) objfile.Attribute {
	return objfile.Attribute{Code: code, Kind: objfile.AttrSigned, Signed: v}
}

// Unsigned builds an address/unsigned-kind attribute.
func Unsigned(code uint16, v uint64) objfile.Attribute {
	return objfile.Attribute{Code: code, Kind: objfile.AttrUnsigned, Unsigned: v}
}

// Block builds a block-kind attribute (DW_FORM_block*, e.g. DW_AT_location).
func Block(code uint16, v []byte) objfile.Attribute {
	return objfile.Attribute{Code: code, Kind: objfile.AttrBlock, Block: v}
}

// Provider is the synthetic objfile.Provider itself.
type Provider struct {
	Raw      []byte
	Order    binary.ByteOrder
	Secs     []*Section
	Symbols  []Symbol
	Units    []objfile.CompilationUnit
	byOffset map[uint64]objfile.DIE
}

// New builds a Provider and indexes every DIE reachable from units by
// offset, so DIEAt resolves type-reference attributes the way a real
// adapter's flat offset table would.
func New(raw []byte, order binary.ByteOrder, secs []*Section, symbols []Symbol, units []objfile.CompilationUnit) *Provider {
	p := &Provider{Raw: raw, Order: order, Secs: secs, Symbols: symbols, Units: units, byOffset: map[uint64]objfile.DIE{}}
	for _, u := range units {
		p.index(u.Root)
	}
	return p
}

func (p *Provider) index(d objfile.DIE) {
	if d == nil {
		return
	}
	p.byOffset[d.Offset()] = d
	for _, c := range d.Children() {
		p.index(c)
	}
}

func (p *Provider) RawBytes() []byte          { return p.Raw }
func (p *Provider) ByteOrder() binary.ByteOrder { return p.Order }

func (p *Provider) Sections() []objfile.Section {
	out := make([]objfile.Section, 0, len(p.Secs))
	for _, s := range p.Secs {
		out = append(out, s)
	}
	return out
}

func (p *Provider) SymbolName(symtabSection, symbolIndex int) (string, error) {
	for _, s := range p.Symbols {
		if s.Section == symtabSection && s.Index == symbolIndex {
			return s.Name, nil
		}
	}
	return "", errNoSymbol{symtabSection, symbolIndex}
}

func (p *Provider) CompilationUnits() ([]objfile.CompilationUnit, error) {
	return p.Units, nil
}

func (p *Provider) DIEAt(offset uint64) (objfile.DIE, error) {
	d, ok := p.byOffset[offset]
	if !ok {
		return nil, errNoDIE{offset}
	}
	return d, nil
}

type errNoSymbol struct {
	section, index int
}

func (e errNoSymbol) Error() string {
	return "objfiletest: no symbol at section/index pair in fixture"
}

type errNoDIE struct{ offset uint64 }

func (e errNoDIE) Error() string {
	return "objfiletest: no DIE at offset in fixture"
}
