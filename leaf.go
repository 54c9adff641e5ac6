// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"bytes"
	"encoding/binary"
)

// LeafKind identifies a type record's shape.
type LeafKind uint16

// Type record leaf kinds.
const (
	LeafModifier  LeafKind = 0x1001
	LeafPointer   LeafKind = 0x1002
	LeafProcedure LeafKind = 0x1008
	LeafMFunction LeafKind = 0x1009

	LeafArgList    LeafKind = 0x1201
	LeafFieldList  LeafKind = 0x1203
	LeafBitfield   LeafKind = 0x1205
	LeafMethodList LeafKind = 0x1206

	LeafArray     LeafKind = 0x1503
	LeafClass     LeafKind = 0x1504
	LeafStructure LeafKind = 0x1505
	LeafUnion     LeafKind = 0x1506
	LeafEnum      LeafKind = 0x1507

	LeafVTShape LeafKind = 0x000A
)

// Sub-leaf kinds appearing inside a FIELDLIST.
const (
	LeafBClass    LeafKind = 0x1400
	LeafVFuncTab  LeafKind = 0x1409
	LeafEnumerate LeafKind = 0x1502
	LeafMember    LeafKind = 0x150D
	LeafMethod    LeafKind = 0x150F
	LeafNestType  LeafKind = 0x1510
	LeafOneMethod LeafKind = 0x1511
)

// Numeric field encoding: a u16 below numericValueMask is the value itself,
// otherwise its low bits select how many bytes follow.
const (
	numericValueMask = 0x8000

	numericChar  = 0x0000 // 8-bit signed
	numericShort = 0x0001 // reserved, zero-width
	numericWord  = 0x0002 // 16-bit
	numericDword = 0x0003 // 32-bit
	numericLong  = 0x0004 // 32-bit signed
)

// minPadByte is the smallest alignment pad byte. A pad byte's low nibble is
// the distance to the next record, the pad byte itself included.
const minPadByte = 0xF1

// A TypeRecord is one decoded leaf out of the type stream payload.
type TypeRecord struct {
	// Kind is the leaf opcode.
	Kind LeafKind
	// Index is the record's type index.
	Index uint32
	// Offset is the record's byte offset relative to the payload start.
	Offset uint32
	// Raw is the leaf body, without the length and kind prefix.
	Raw []byte
	// Leaf is the kind-specific decoded view, nil when Kind is not
	// recognized.
	Leaf interface{}
}

// Name returns the record's declared name, or "" for anonymous leaves.
func (r *TypeRecord) Name() string {
	switch leaf := r.Leaf.(type) {
	case *StructType:
		return leaf.Name
	case *UnionType:
		return leaf.Name
	case *EnumType:
		return leaf.Name
	case *ArrayType:
		return leaf.Name
	}
	return ""
}

// StructType is a STRUCTURE or CLASS leaf.
type StructType struct {
	Count       uint16
	Properties  uint16
	FieldList   uint32
	DerivedFrom uint32
	VShape      uint32
	Size        uint64
	Name        string
}

// UnionType is a UNION leaf.
type UnionType struct {
	Count      uint16
	Properties uint16
	FieldList  uint32
	Size       uint64
	Name       string
}

// EnumType is an ENUM leaf. Tag is the optional second string following the
// name.
type EnumType struct {
	Count          uint16
	Properties     uint16
	UnderlyingType uint32
	FieldList      uint32
	Name           string
	Tag            string
}

// FieldList is a FIELDLIST leaf: a sequence of sub-leaves.
type FieldList struct {
	Fields []interface{}
}

// PointerType is a POINTER leaf.
type PointerType struct {
	UnderlyingType uint32
	Attributes     uint32
}

// ArrayType is an ARRAY leaf.
type ArrayType struct {
	ElementType uint32
	IndexType   uint32
	Size        uint64
	Name        string
}

// BitfieldType is a BITFIELD leaf.
type BitfieldType struct {
	Type     uint32
	Length   uint8
	Position uint8
}

// ProcedureType is a PROCEDURE leaf.
type ProcedureType struct {
	ReturnType        uint32
	CallingConvention uint8
	Attributes        uint8
	ParameterCount    uint16
	ArgList           uint32
}

// MFunctionType is an MFUNCTION leaf.
type MFunctionType struct {
	ReturnType        uint32
	ClassType         uint32
	ThisType          uint32
	CallingConvention uint8
	Attributes        uint8
	ParameterCount    uint16
	ArgList           uint32
	ThisAdjust        int32
}

// ArgList is an ARGLIST leaf.
type ArgList struct {
	Types []uint32
}

// ModifierType is a MODIFIER leaf.
type ModifierType struct {
	Type      uint32
	Modifiers uint16
}

// VTShapeType is a VTSHAPE leaf; Descriptors holds the packed 4-bit slot
// descriptors.
type VTShapeType struct {
	Count       uint16
	Descriptors []byte
}

// MethodListEntry is one occurrence inside a METHODLIST leaf.
type MethodListEntry struct {
	Attributes uint16
	Type       uint32
	VBaseOff   uint32
}

// MethodList is a METHODLIST leaf.
type MethodList struct {
	Methods []MethodListEntry
}

// Enumerate is an enumerator sub-leaf: a numeric value and a name.
type Enumerate struct {
	Attributes uint16
	Value      uint64
	Name       string
}

// Member is a data member sub-leaf.
type Member struct {
	Attributes uint16
	Type       uint32
	Offset     uint64
	Name       string
}

// BaseClass is a BCLASS sub-leaf.
type BaseClass struct {
	Attributes uint16
	Type       uint32
	Offset     uint64
}

// VFuncTab is a VFUNCTAB sub-leaf.
type VFuncTab struct {
	Type uint32
}

// OneMethod is a ONEMETHOD sub-leaf.
type OneMethod struct {
	Attributes uint16
	Type       uint32
	VBaseOff   uint32
	Name       string
}

// Method is a METHOD sub-leaf referencing a METHODLIST.
type Method struct {
	Count      uint16
	MethodList uint32
	Name       string
}

// NestType is a NESTTYPE sub-leaf.
type NestType struct {
	Type uint32
	Name string
}

// leafReader is a cursor over one leaf body. Every read is bounded by the
// record's declared length; overrunning it is a corrupt stream, never a
// panic.
type leafReader struct {
	data []byte
	off  int
}

func (r *leafReader) remaining() int {
	return len(r.data) - r.off
}

func (r *leafReader) u8() (uint8, error) {
	if r.remaining() < 1 {
		return 0, ErrCorruptTypeStream
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *leafReader) u16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrCorruptTypeStream
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

func (r *leafReader) u32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrCorruptTypeStream
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// numeric decodes the tagged numeric union: a u16 with the high bit clear
// is the value, otherwise the low bits select the width of the value that
// follows. Unknown width codes are a corrupt stream.
func (r *leafReader) numeric() (uint64, error) {
	tag, err := r.u16()
	if err != nil {
		return 0, err
	}
	if tag < numericValueMask {
		return uint64(tag), nil
	}

	switch tag & 0x7FFF {
	case numericChar:
		b, err := r.u8()
		if err != nil {
			return 0, err
		}
		return uint64(int64(int8(b))), nil
	case numericShort:
		// Zero-width, nothing follows.
		return uint64(tag), nil
	case numericWord:
		v, err := r.u16()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	case numericDword:
		v, err := r.u32()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	case numericLong:
		v, err := r.u32()
		if err != nil {
			return 0, err
		}
		return uint64(int64(int32(v))), nil
	}
	return 0, ErrCorruptTypeStream
}

// cstring reads a NUL-terminated string. A name truncated by the record end
// is taken as-is, the reader never looks past the body.
func (r *leafReader) cstring() string {
	rest := r.data[r.off:]
	i := bytes.IndexByte(rest, 0)
	if i < 0 {
		r.off = len(r.data)
		return string(rest)
	}
	r.off += i + 1
	return string(rest[:i])
}

// skipPadding consumes alignment pad bytes up to the next sub-leaf.
func (r *leafReader) skipPadding() error {
	for r.remaining() > 0 && r.data[r.off] >= minPadByte {
		skip := int(r.data[r.off] & 0x0F)
		if skip == 0 || skip > r.remaining() {
			return ErrCorruptTypeStream
		}
		r.off += skip
	}
	return nil
}

// decodeLeaf decodes one leaf body into its kind-specific view. Unknown
// kinds yield (nil, nil): framing is preserved by the caller, the body
// stays raw.
func decodeLeaf(kind LeafKind, body []byte) (interface{}, error) {
	r := &leafReader{data: body}

	switch kind {
	case LeafStructure, LeafClass:
		return decodeStruct(r)
	case LeafUnion:
		return decodeUnion(r)
	case LeafEnum:
		return decodeEnum(r)
	case LeafFieldList:
		return decodeFieldList(r)
	case LeafPointer:
		return decodePointer(r)
	case LeafArray:
		return decodeArray(r)
	case LeafBitfield:
		return decodeBitfield(r)
	case LeafProcedure:
		return decodeProcedure(r)
	case LeafMFunction:
		return decodeMFunction(r)
	case LeafArgList:
		return decodeArgList(r)
	case LeafModifier:
		return decodeModifier(r)
	case LeafMethodList:
		return decodeMethodList(r)
	case LeafVTShape:
		return decodeVTShape(r)
	}
	return nil, nil
}

func decodeStruct(r *leafReader) (*StructType, error) {
	var leaf StructType
	var err error

	if leaf.Count, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.Properties, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.FieldList, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.DerivedFrom, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.VShape, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.Size, err = r.numeric(); err != nil {
		return nil, err
	}
	leaf.Name = r.cstring()
	return &leaf, nil
}

func decodeUnion(r *leafReader) (*UnionType, error) {
	var leaf UnionType
	var err error

	if leaf.Count, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.Properties, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.FieldList, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.Size, err = r.numeric(); err != nil {
		return nil, err
	}
	leaf.Name = r.cstring()
	return &leaf, nil
}

func decodeEnum(r *leafReader) (*EnumType, error) {
	var leaf EnumType
	var err error

	if leaf.Count, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.Properties, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.UnderlyingType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.FieldList, err = r.u32(); err != nil {
		return nil, err
	}
	leaf.Name = r.cstring()
	if r.remaining() > 0 {
		leaf.Tag = r.cstring()
	}
	return &leaf, nil
}

func decodeFieldList(r *leafReader) (*FieldList, error) {
	list := FieldList{}

	for {
		if err := r.skipPadding(); err != nil {
			return nil, err
		}
		if r.remaining() == 0 {
			return &list, nil
		}

		kind, err := r.u16()
		if err != nil {
			return nil, err
		}

		field, err := decodeField(LeafKind(kind), r)
		if err != nil {
			return nil, err
		}
		list.Fields = append(list.Fields, field)
	}
}

// decodeField decodes one FIELDLIST sub-leaf. An unknown sub-leaf kind has
// no knowable length and desynchronizes the walk, so it is an error.
func decodeField(kind LeafKind, r *leafReader) (interface{}, error) {
	switch kind {
	case LeafEnumerate:
		var f Enumerate
		var err error
		if f.Attributes, err = r.u16(); err != nil {
			return nil, err
		}
		if f.Value, err = r.numeric(); err != nil {
			return nil, err
		}
		f.Name = r.cstring()
		return &f, nil

	case LeafMember:
		var f Member
		var err error
		if f.Attributes, err = r.u16(); err != nil {
			return nil, err
		}
		if f.Type, err = r.u32(); err != nil {
			return nil, err
		}
		if f.Offset, err = r.numeric(); err != nil {
			return nil, err
		}
		f.Name = r.cstring()
		return &f, nil

	case LeafBClass:
		var f BaseClass
		var err error
		if f.Attributes, err = r.u16(); err != nil {
			return nil, err
		}
		if f.Type, err = r.u32(); err != nil {
			return nil, err
		}
		if f.Offset, err = r.numeric(); err != nil {
			return nil, err
		}
		return &f, nil

	case LeafVFuncTab:
		var f VFuncTab
		// Alignment filler word before the type index.
		if _, err := r.u16(); err != nil {
			return nil, err
		}
		typ, err := r.u32()
		if err != nil {
			return nil, err
		}
		f.Type = typ
		return &f, nil

	case LeafOneMethod:
		var f OneMethod
		var err error
		if f.Attributes, err = r.u16(); err != nil {
			return nil, err
		}
		if f.Type, err = r.u32(); err != nil {
			return nil, err
		}
		if introducesVirtual(f.Attributes) {
			if f.VBaseOff, err = r.u32(); err != nil {
				return nil, err
			}
		}
		f.Name = r.cstring()
		return &f, nil

	case LeafMethod:
		var f Method
		var err error
		if f.Count, err = r.u16(); err != nil {
			return nil, err
		}
		if f.MethodList, err = r.u32(); err != nil {
			return nil, err
		}
		f.Name = r.cstring()
		return &f, nil

	case LeafNestType:
		var f NestType
		// Alignment filler word before the type index.
		if _, err := r.u16(); err != nil {
			return nil, err
		}
		typ, err := r.u32()
		if err != nil {
			return nil, err
		}
		f.Type = typ
		f.Name = r.cstring()
		return &f, nil
	}

	return nil, ErrCorruptTypeStream
}

// introducesVirtual reports whether a method attribute word marks an
// introducing virtual, which carries a vtable base offset.
func introducesVirtual(attr uint16) bool {
	mprop := (attr >> 2) & 0x7
	return mprop == 4 || mprop == 6
}

func decodePointer(r *leafReader) (*PointerType, error) {
	var leaf PointerType
	var err error

	if leaf.UnderlyingType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.Attributes, err = r.u32(); err != nil {
		return nil, err
	}
	return &leaf, nil
}

func decodeArray(r *leafReader) (*ArrayType, error) {
	var leaf ArrayType
	var err error

	if leaf.ElementType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.IndexType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.Size, err = r.numeric(); err != nil {
		return nil, err
	}
	leaf.Name = r.cstring()
	return &leaf, nil
}

func decodeBitfield(r *leafReader) (*BitfieldType, error) {
	var leaf BitfieldType
	var err error

	if leaf.Type, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.Length, err = r.u8(); err != nil {
		return nil, err
	}
	if leaf.Position, err = r.u8(); err != nil {
		return nil, err
	}
	return &leaf, nil
}

func decodeProcedure(r *leafReader) (*ProcedureType, error) {
	var leaf ProcedureType
	var err error

	if leaf.ReturnType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.CallingConvention, err = r.u8(); err != nil {
		return nil, err
	}
	if leaf.Attributes, err = r.u8(); err != nil {
		return nil, err
	}
	if leaf.ParameterCount, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.ArgList, err = r.u32(); err != nil {
		return nil, err
	}
	return &leaf, nil
}

func decodeMFunction(r *leafReader) (*MFunctionType, error) {
	var leaf MFunctionType
	var err error

	if leaf.ReturnType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.ClassType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.ThisType, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.CallingConvention, err = r.u8(); err != nil {
		return nil, err
	}
	if leaf.Attributes, err = r.u8(); err != nil {
		return nil, err
	}
	if leaf.ParameterCount, err = r.u16(); err != nil {
		return nil, err
	}
	if leaf.ArgList, err = r.u32(); err != nil {
		return nil, err
	}
	adjust, err := r.u32()
	if err != nil {
		return nil, err
	}
	leaf.ThisAdjust = int32(adjust)
	return &leaf, nil
}

func decodeArgList(r *leafReader) (*ArgList, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	if int(count)*4 > r.remaining() {
		return nil, ErrCorruptTypeStream
	}

	leaf := ArgList{Types: make([]uint32, count)}
	for i := range leaf.Types {
		if leaf.Types[i], err = r.u32(); err != nil {
			return nil, err
		}
	}
	return &leaf, nil
}

func decodeModifier(r *leafReader) (*ModifierType, error) {
	var leaf ModifierType
	var err error

	if leaf.Type, err = r.u32(); err != nil {
		return nil, err
	}
	if leaf.Modifiers, err = r.u16(); err != nil {
		return nil, err
	}
	return &leaf, nil
}

func decodeMethodList(r *leafReader) (*MethodList, error) {
	leaf := MethodList{}

	for r.remaining() >= 8 {
		var m MethodListEntry
		var err error

		if m.Attributes, err = r.u16(); err != nil {
			return nil, err
		}
		// Alignment filler word.
		if _, err = r.u16(); err != nil {
			return nil, err
		}
		if m.Type, err = r.u32(); err != nil {
			return nil, err
		}
		if introducesVirtual(m.Attributes) {
			if m.VBaseOff, err = r.u32(); err != nil {
				return nil, err
			}
		}
		leaf.Methods = append(leaf.Methods, m)
	}
	return &leaf, nil
}

func decodeVTShape(r *leafReader) (*VTShapeType, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}

	n := (int(count) + 1) / 2
	if n > r.remaining() {
		return nil, ErrCorruptTypeStream
	}

	leaf := VTShapeType{Count: count}
	leaf.Descriptors = append(leaf.Descriptors, r.data[r.off:r.off+n]...)
	r.off += n
	return &leaf, nil
}
