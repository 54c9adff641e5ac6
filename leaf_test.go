// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNumericTaggedValue(t *testing.T) {
	var body []byte
	body = putUint16(body, 0)      // attributes
	body = putUint16(body, 0x8003) // dword follows
	body = putUint32(body, 0xDEADBEEF)
	body = append(body, 'X', 0)

	r := &leafReader{data: body}
	if _, err := r.u16(); err != nil {
		t.Fatalf("attributes read failed, reason: %v", err)
	}
	before := r.off

	value, err := r.numeric()
	if err != nil {
		t.Fatalf("numeric failed, reason: %v", err)
	}
	if value != 0xDEADBEEF {
		t.Errorf("value: got %#x, want 0xDEADBEEF", value)
	}
	name := r.cstring()
	if name != "X" {
		t.Errorf("name: got %q, want %q", name, "X")
	}

	// Tag, dword and name account for every byte consumed.
	if consumed := r.off - before; consumed != 2+4+2 {
		t.Errorf("consumed %d bytes, want %d", consumed, 2+4+2)
	}
}

func TestNumericForms(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		out  uint64
	}{
		{"immediate", []byte{0x2A, 0x00}, 42},
		{"char", []byte{0x00, 0x80, 0xFE}, 0xFFFFFFFFFFFFFFFE},
		{"word", []byte{0x02, 0x80, 0x34, 0x12}, 0x1234},
		{"dword", []byte{0x03, 0x80, 0x78, 0x56, 0x34, 0x12}, 0x12345678},
		{"long", []byte{0x04, 0x80, 0xFF, 0xFF, 0xFF, 0xFF},
			0xFFFFFFFFFFFFFFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &leafReader{data: tt.in}
			got, err := r.numeric()
			if err != nil {
				t.Fatalf("numeric failed, reason: %v", err)
			}
			if got != tt.out {
				t.Errorf("value: got %#x, want %#x", got, tt.out)
			}
			if r.remaining() != 0 {
				t.Errorf("%d bytes left unconsumed", r.remaining())
			}
		})
	}
}

func TestNumericUnknownCode(t *testing.T) {
	r := &leafReader{data: []byte{0x05, 0x80, 0, 0, 0, 0, 0, 0, 0, 0}}
	if _, err := r.numeric(); err != ErrCorruptTypeStream {
		t.Errorf("numeric: got %v, want ErrCorruptTypeStream", err)
	}
}

// A name cut off by the record end is taken as-is, without reading past the
// body.
func TestCStringTruncated(t *testing.T) {
	r := &leafReader{data: []byte("abc")}
	if got := r.cstring(); got != "abc" {
		t.Errorf("cstring: got %q, want %q", got, "abc")
	}
	if r.remaining() != 0 {
		t.Errorf("%d bytes left unconsumed", r.remaining())
	}
}

func TestSkipPadding(t *testing.T) {
	r := &leafReader{data: []byte{0xF3, 0xF2, 0xF1, 0x42}}
	if err := r.skipPadding(); err != nil {
		t.Fatalf("skipPadding failed, reason: %v", err)
	}
	if r.off != 3 {
		t.Errorf("offset: got %d, want 3", r.off)
	}

	// A pad running past the body is corrupt.
	r = &leafReader{data: []byte{0xF8, 0, 0}}
	if err := r.skipPadding(); err != ErrCorruptTypeStream {
		t.Errorf("skipPadding: got %v, want ErrCorruptTypeStream", err)
	}
}

func TestDecodeFieldListMembers(t *testing.T) {
	var body []byte
	body = putUint16(body, uint16(LeafMember))
	body = putUint16(body, 3)      // attributes
	body = putUint32(body, 0x1003) // member type
	body = putUint16(body, 16)     // offset, small form
	body = append(body, "next"...)
	body = append(body, 0)
	body = append(body, 0xF1)
	body = putUint16(body, uint16(LeafBClass))
	body = putUint16(body, 3)
	body = putUint32(body, 0x1002)
	body = putUint16(body, 0)
	body = append(body, 0xF2, 0xF1)
	body = putUint16(body, uint16(LeafNestType))
	body = putUint16(body, 0)
	body = putUint32(body, 0x1004)
	body = append(body, "inner"...)
	body = append(body, 0)

	leaf, err := decodeLeaf(LeafFieldList, body)
	if err != nil {
		t.Fatalf("decodeLeaf failed, reason: %v", err)
	}

	want := &FieldList{Fields: []interface{}{
		&Member{Attributes: 3, Type: 0x1003, Offset: 16, Name: "next"},
		&BaseClass{Attributes: 3, Type: 0x1002},
		&NestType{Type: 0x1004, Name: "inner"},
	}}
	if diff := cmp.Diff(want, leaf); diff != "" {
		t.Errorf("fieldlist mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeFieldListUnknownSubLeaf(t *testing.T) {
	var body []byte
	body = putUint16(body, 0x1999)
	body = putUint32(body, 0)

	if _, err := decodeLeaf(LeafFieldList, body); err != ErrCorruptTypeStream {
		t.Errorf("decodeLeaf: got %v, want ErrCorruptTypeStream", err)
	}
}

func TestDecodeProcedure(t *testing.T) {
	var body []byte
	body = putUint32(body, 0x74) // return type
	body = append(body, 0)       // calling convention
	body = append(body, 0)       // attributes
	body = putUint16(body, 2)
	body = putUint32(body, 0x1007)

	leaf, err := decodeLeaf(LeafProcedure, body)
	if err != nil {
		t.Fatalf("decodeLeaf failed, reason: %v", err)
	}
	want := &ProcedureType{ReturnType: 0x74, ParameterCount: 2,
		ArgList: 0x1007}
	if diff := cmp.Diff(want, leaf); diff != "" {
		t.Errorf("procedure mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeArgList(t *testing.T) {
	var body []byte
	body = putUint32(body, 2)
	body = putUint32(body, 0x74)
	body = putUint32(body, 0x1003)

	leaf, err := decodeLeaf(LeafArgList, body)
	if err != nil {
		t.Fatalf("decodeLeaf failed, reason: %v", err)
	}
	want := &ArgList{Types: []uint32{0x74, 0x1003}}
	if diff := cmp.Diff(want, leaf); diff != "" {
		t.Errorf("arglist mismatch (-want +got):\n%s", diff)
	}

	// A count larger than the body is corrupt, not a panic.
	var short []byte
	short = putUint32(short, 100)
	if _, err := decodeLeaf(LeafArgList, short); err != ErrCorruptTypeStream {
		t.Errorf("decodeLeaf: got %v, want ErrCorruptTypeStream", err)
	}
}

func TestDecodeBitfield(t *testing.T) {
	var body []byte
	body = putUint32(body, 0x75)
	body = append(body, 3, 5)

	leaf, err := decodeLeaf(LeafBitfield, body)
	if err != nil {
		t.Fatalf("decodeLeaf failed, reason: %v", err)
	}
	want := &BitfieldType{Type: 0x75, Length: 3, Position: 5}
	if diff := cmp.Diff(want, leaf); diff != "" {
		t.Errorf("bitfield mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUnionAndArray(t *testing.T) {
	var union []byte
	union = putUint16(union, 2)
	union = putUint16(union, 0)
	union = putUint32(union, 0x1001)
	union = putUint16(union, 4)
	union = append(union, "U"...)
	union = append(union, 0)

	leaf, err := decodeLeaf(LeafUnion, union)
	if err != nil {
		t.Fatalf("decodeLeaf union failed, reason: %v", err)
	}
	wantUnion := &UnionType{Count: 2, FieldList: 0x1001, Size: 4, Name: "U"}
	if diff := cmp.Diff(wantUnion, leaf); diff != "" {
		t.Errorf("union mismatch (-want +got):\n%s", diff)
	}

	var array []byte
	array = putUint32(array, 0x74)
	array = putUint32(array, 0x23)
	array = putUint16(array, 40)
	array = append(array, "arr"...)
	array = append(array, 0)

	leaf, err = decodeLeaf(LeafArray, array)
	if err != nil {
		t.Fatalf("decodeLeaf array failed, reason: %v", err)
	}
	wantArray := &ArrayType{ElementType: 0x74, IndexType: 0x23, Size: 40,
		Name: "arr"}
	if diff := cmp.Diff(wantArray, leaf); diff != "" {
		t.Errorf("array mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	// A struct body missing its tail fields is corrupt.
	var body []byte
	body = putUint16(body, 1)
	body = putUint16(body, 0)

	if _, err := decodeLeaf(LeafStructure, body); err != ErrCorruptTypeStream {
		t.Errorf("decodeLeaf: got %v, want ErrCorruptTypeStream", err)
	}
}
