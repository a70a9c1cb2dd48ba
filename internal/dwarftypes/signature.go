package dwarftypes

import (
	"fmt"

	"github.com/objtools/objtools/internal/leb128"
	"github.com/objtools/objtools/internal/md5sum"
	"github.com/objtools/objtools/internal/objerrors"
	"github.com/objtools/objtools/internal/objfile"
)

// Normalised form codes the scanner emits for step 4's 'A' records.
// These reuse the real DWARF form numbers for the category each covers
// (DW_FORM_flag, DW_FORM_string, DW_FORM_block, DW_FORM_sdata): every
// concrete form a producer might use collapses down to one of these four
// representative values.
const (
	formFlag       = 0x0c
	formString     = 0x08
	formBlock      = 0x09
	formSignedData = 0x0d
)

// priorityOrder is the fixed attribute priority table, lowest index
// first. Attributes not present here are dropped from the canonical
// byte sequence entirely.
var priorityOrder = []uint16{
	atName, atAccessibility, atAddressClass, atAllocated, atArtificial,
	atAssociated, atBinaryScale, atBitOffset, atBitSize, atBitStride,
	atByteSize, atByteStride, atConstExpr, atConstValue, atContainingType,
	atCount, atDataBitOffset, atDataLocation, atDataMemberLocation,
	atDecimalScale, atDecimalSign, atDefaultValue, atDigitCount, atDiscr,
	atDiscrList, atDiscrValue, atEncoding, atEnumClass, atEndianity,
	atExplicit, atIsOptional, atLocation, atLowerBound, atMutable,
	atOrdering, atPictureString, atPrototyped, atSmall, atSegment,
	atStringLength, atThreadsScaled, atUpperBound, atUseLocation,
	atUseUTF8, atVariableParameter, atVirtuality, atVisibility,
	atVtableElemLocation,
}

// visited is the insertion-ordered DIE-offset -> 1-based-index map:
// seeded with the signature's root offset, extended as the scanner
// discovers new referenced types, local to one computation.
type visited struct {
	order []uint64
	index map[uint64]int
}

func newVisited(rootOffset uint64) *visited {
	v := &visited{index: make(map[uint64]int)}
	v.add(rootOffset)
	return v
}

func (v *visited) add(offset uint64) int {
	if idx, ok := v.index[offset]; ok {
		return idx
	}
	v.order = append(v.order, offset)
	idx := len(v.order)
	v.index[offset] = idx
	return idx
}

func (v *visited) indexOf(offset uint64) (int, bool) {
	idx, ok := v.index[offset]
	return idx, ok
}

// Result is one signature computation's output: the 64-bit signature and
// the canonical byte sequence it was derived from (the latter mainly of
// interest to tests checking against its pinned byte vectors).
type Result struct {
	Signature uint64
	Bytes     []byte
}

// ComputeSignature runs the full phase-2 algorithm for the
// type DIE at rootOffset.
func ComputeSignature(provider objfile.DebugProvider, contexts *ContextMap, rootOffset uint64) (Result, error) {
	root, err := provider.DIEAt(rootOffset)
	if err != nil {
		return Result{}, objerrors.NewFatalParseError("resolve type DIE", fmt.Sprintf("offset %d", rootOffset), err)
	}
	s := &scanner{provider: provider, contexts: contexts, visited: newVisited(rootOffset)}
	if err := s.emitType(root); err != nil {
		return Result{}, err
	}
	digest := md5sum.Sum(s.buf)
	return Result{Signature: digest.Signature64(), Bytes: s.buf}, nil
}

type scanner struct {
	provider objfile.DebugProvider
	contexts *ContextMap
	visited  *visited
	buf      []byte
}

// emitType is steps 2-7 for a type DIE reached either as the signature's
// root or via a 'T' recursion: context bytes, then self/attributes/children.
func (s *scanner) emitType(die objfile.DIE) error {
	ctx, _ := s.contexts.Lookup(die.Offset())
	s.buf = append(s.buf, ctx.Context...)
	return s.emitFromSelf(die)
}

// emitFromSelf is steps 3-7: self tag, attributes, children. Used both by
// emitType and by step 7's "recurse into step 3 with no context prefix"
// rule for non-type children.
func (s *scanner) emitFromSelf(die objfile.DIE) error {
	s.buf = append(s.buf, 'D')
	s.buf = leb128.AppendUnsigned(s.buf, uint64(die.Tag()))
	if err := s.emitAttributes(die); err != nil {
		return err
	}
	return s.emitChildren(die)
}

func (s *scanner) emitAttributes(die objfile.DIE) error {
	byCode := make(map[uint16]objfile.Attribute, len(die.Attributes()))
	for _, a := range die.Attributes() {
		byCode[a.Code] = a
	}

	for _, code := range priorityOrder {
		attr, ok := byCode[code]
		if !ok {
			continue
		}
		if attr.Kind == objfile.AttrReference {
			if err := s.emitReferenceAttr(code, attr); err != nil {
				return err
			}
			continue
		}
		s.emitValueAttr(code, attr)
	}

	return s.emitTypeAttr(die, byCode)
}

// emitTypeAttr is the type/friend step that runs once per DIE outside the
// priority loop: DW_AT_type (or DW_AT_friend on DW_TAG_friend) is not in
// priorityOrder, so it is never reachable there and is fetched directly
// from byCode instead. Reference-tag DIEs get the step 5/6 name shortcut
// when the target is named; everything else, and unnamed step 5/6
// targets, fall back to the ordinary step 4 attribute handling.
func (s *scanner) emitTypeAttr(die objfile.DIE, byCode map[uint16]objfile.Attribute) error {
	tag := die.Tag()
	code := uint16(atType)
	if tag == tagFriend {
		code = atFriend
	}

	attr, ok := byCode[code]
	if !ok {
		return nil
	}

	if isTypeReferenceTag(tag) && attr.Kind == objfile.AttrReference {
		handled, err := s.emitTypeRefSpecial(code, attr)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}

	if attr.Kind == objfile.AttrReference {
		return s.emitReferenceAttr(code, attr)
	}
	s.emitValueAttr(code, attr)
	return nil
}

// emitTypeRefSpecial implements step 5/6: a reference-tag DIE's type
// attribute, when the target has a name, is encoded as context+name
// rather than recursed into. Returns handled=false when the target is
// unnamed (or unresolvable), so the caller falls through to generic step
// 4 handling as the design directs.
func (s *scanner) emitTypeRefSpecial(code uint16, attr objfile.Attribute) (bool, error) {
	target, err := s.provider.DIEAt(attr.Ref)
	if err != nil {
		return false, nil
	}
	name, hasName := target.Name()
	if !hasName || name == "" {
		return false, nil
	}
	targetCtx, _ := s.contexts.Lookup(target.Offset())

	s.buf = append(s.buf, 'N')
	s.buf = leb128.AppendUnsigned(s.buf, uint64(code))
	s.buf = append(s.buf, targetCtx.Context...)
	s.buf = append(s.buf, 'E')
	s.buf = append(s.buf, name...)
	s.buf = append(s.buf, 0)
	return true, nil
}

// emitReferenceAttr implements the general step-4 reference-attribute
// rule: a back-reference if the target is already visited, otherwise a
// forward marker followed by a full recursive emission of the target.
func (s *scanner) emitReferenceAttr(code uint16, attr objfile.Attribute) error {
	if idx, ok := s.visited.indexOf(attr.Ref); ok {
		s.buf = append(s.buf, 'R')
		s.buf = leb128.AppendUnsigned(s.buf, uint64(code))
		s.buf = leb128.AppendUnsigned(s.buf, uint64(idx))
		return nil
	}

	s.buf = append(s.buf, 'T')
	s.buf = leb128.AppendUnsigned(s.buf, uint64(code))
	s.visited.add(attr.Ref)

	target, err := s.provider.DIEAt(attr.Ref)
	if err != nil {
		return objerrors.NewFatalParseError("resolve referenced type DIE", fmt.Sprintf("offset %d", attr.Ref), err)
	}
	return s.emitType(target)
}

// emitValueAttr implements the non-reference half of step 4: flags,
// strings, blocks, and constants (unsigned values widened into the
// signed path before encoding).
func (s *scanner) emitValueAttr(code uint16, attr objfile.Attribute) {
	s.buf = append(s.buf, 'A')
	s.buf = leb128.AppendUnsigned(s.buf, uint64(code))

	switch attr.Kind {
	case objfile.AttrFlag:
		s.buf = leb128.AppendUnsigned(s.buf, formFlag)
		if attr.Flag {
			s.buf = append(s.buf, 1)
		} else {
			s.buf = append(s.buf, 0)
		}
	case objfile.AttrString:
		s.buf = leb128.AppendUnsigned(s.buf, formString)
		s.buf = append(s.buf, attr.Str...)
		s.buf = append(s.buf, 0)
	case objfile.AttrBlock:
		s.buf = leb128.AppendUnsigned(s.buf, formBlock)
		s.buf = append(s.buf, attr.Block...)
	case objfile.AttrUnsigned:
		s.buf = leb128.AppendUnsigned(s.buf, formSignedData)
		s.buf = leb128.AppendSigned(s.buf, int64(attr.Unsigned))
	default: // AttrSigned
		s.buf = leb128.AppendUnsigned(s.buf, formSignedData)
		s.buf = leb128.AppendSigned(s.buf, attr.Signed)
	}
}

// emitChildren implements step 7: named type/subprogram children are
// recorded by name only (no recursion, since nested type DIEs are
// processed independently through the context map); other children
// continue the same byte sequence from step 3; nested but unnamed type
// DIEs are silently skipped, matching the original algorithm.
func (s *scanner) emitChildren(die objfile.DIE) error {
	// TODO: friend declarations nested under a subprogram are emitted by
	// name like any other named subprogram child; the DW_AT_friend
	// special case is not implemented.
	for _, child := range die.Children() {
		tag := child.Tag()
		name, hasName := child.Name()

		if (isTypeTag(tag) || isSubprogramTag(tag)) && hasName && name != "" {
			s.buf = append(s.buf, 'S')
			s.buf = leb128.AppendUnsigned(s.buf, uint64(tag))
			s.buf = append(s.buf, name...)
			s.buf = append(s.buf, 0)
			continue
		}
		if isTypeTag(tag) {
			continue
		}
		if err := s.emitFromSelf(child); err != nil {
			return err
		}
	}
	s.buf = append(s.buf, 0)
	return nil
}
