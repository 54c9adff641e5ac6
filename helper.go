// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"encoding/binary"
	"errors"
)

// Errors
var (

	// ErrBadSignature is returned when neither the v2 nor the v7 MSF
	// signature matches the start of the file.
	ErrBadSignature = errors.New("not a PDB file, MSF signature not found")

	// ErrTruncated is returned when the file ends before a required field.
	ErrTruncated = errors.New("corrupt PDB file, truncated at a required read")

	// ErrInconsistentSize is returned when the header page count disagrees
	// with the actual file size, or a page index points past the file.
	ErrInconsistentSize = errors.New(
		"corrupt PDB file, page count disagrees with file size")

	// ErrInvalidPageSize is returned when the page size is zero or not a
	// multiple of four bytes.
	ErrInvalidPageSize = errors.New("corrupt PDB file, invalid page size")

	// ErrNoSuchStream is returned when a stream id is out of range or marked
	// absent in the directory.
	ErrNoSuchStream = errors.New("no such stream")

	// ErrOutOfBounds is returned on a seek or read past a stream's declared
	// size.
	ErrOutOfBounds = errors.New("read outside stream boundary")

	// ErrUnsupportedVersion is returned for a type stream version outside
	// the known set, and for stream operations on a v2 container.
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrCorruptTypeStream is returned when the type stream header fails its
	// self check, a record overruns the payload, a pad byte is invalid, or a
	// numeric encoding tag is unknown.
	ErrCorruptTypeStream = errors.New("corrupt type stream")

	// ErrCorruptInfoStream is returned when the PDB info stream header does
	// not decode.
	ErrCorruptInfoStream = errors.New("corrupt PDB info stream")

	// ErrNotFound is returned when a type name lookup exhausts every
	// candidate.
	ErrNotFound = errors.New("type name not found")
)

// readAt copies len(buf) bytes of raw file data starting at the physical
// offset.
func (p *File) readAt(buf []byte, offset int64) error {
	end := offset + int64(len(buf))
	if offset < 0 || end > int64(p.size) {
		return ErrTruncated
	}
	copy(buf, p.data[offset:end])
	return nil
}

// ReadUint32 reads a little-endian uint32 at the physical offset.
func (p *File) ReadUint32(offset int64) (uint32, error) {
	if offset < 0 || offset+4 > int64(p.size) {
		return 0, ErrTruncated
	}
	return binary.LittleEndian.Uint32(p.data[offset:]), nil
}

// minPages returns the number of pages needed to hold bytes, rounding up.
func (p *File) minPages(bytes uint32) uint32 {
	return (bytes + p.PageSize - 1) / p.PageSize
}
