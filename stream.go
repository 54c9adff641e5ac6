// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"encoding/binary"
)

// A Stream is a cursor over one logical stream. The stream's bytes live in
// an ordered list of fixed-size pages that are in general not contiguous in
// the file, so every read is decomposed into page-bounded chunks.
//
// All cursors of one File share the container; a Stream is not safe for
// concurrent use.
type Stream struct {
	pdb   *File
	pages []uint32
	size  uint32

	offset uint32

	// Physical position, valid while this cursor is pdb.lastAccessed.
	page      uint32
	posInPage uint32
}

// Size returns the stream length in bytes.
func (s *Stream) Size() uint32 {
	return s.size
}

// Offset returns the cursor's current logical offset.
func (s *Stream) Offset() uint32 {
	return s.offset
}

// Seek positions the cursor at the given logical offset. Seeking to the
// stream end is legal; any following read of more than zero bytes fails.
func (s *Stream) Seek(offset uint64) error {
	if offset > uint64(s.size) {
		return ErrOutOfBounds
	}
	s.offset = uint32(offset)
	s.resync()
	s.pdb.lastAccessed = s
	return nil
}

// resync recomputes the physical position from the logical offset. Needed
// whenever another cursor repositioned the container in between.
func (s *Stream) resync() {
	s.page = s.offset / s.pdb.PageSize
	s.posInPage = s.offset % s.pdb.PageSize
}

// Read fills buf with the next len(buf) logical bytes and advances the
// cursor by exactly that amount. A read past the declared size fails with
// ErrOutOfBounds and consumes nothing.
func (s *Stream) Read(buf []byte) error {
	n := uint32(len(buf))
	if uint64(s.offset)+uint64(n) > uint64(s.size) {
		return ErrOutOfBounds
	}
	if n == 0 {
		return nil
	}

	if s.pdb.lastAccessed != s {
		s.resync()
	}

	pageSize := s.pdb.PageSize
	done := uint32(0)
	for n > 0 {
		chunk := pageSize - s.posInPage
		if chunk > n {
			chunk = n
		}

		// Chunks are not contiguous on disk, translate per page.
		phys := int64(s.pages[s.page])*int64(pageSize) + int64(s.posInPage)
		if err := s.pdb.readAt(buf[done:done+chunk], phys); err != nil {
			return err
		}

		done += chunk
		n -= chunk
		s.offset += chunk
		s.posInPage += chunk
		if s.posInPage == pageSize {
			s.page++
			s.posInPage = 0
		}
	}

	s.pdb.lastAccessed = s
	return nil
}

// ReadAll returns the entire stream contents, leaving the cursor at the
// end.
func (s *Stream) ReadAll() ([]byte, error) {
	if err := s.Seek(0); err != nil {
		return nil, err
	}
	buf := make([]byte, s.size)
	if err := s.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Stream) readByte() (byte, error) {
	var b [1]byte
	err := s.Read(b[:])
	return b[0], err
}

func (s *Stream) readUint16() (uint16, error) {
	var b [2]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (s *Stream) readUint32() (uint32, error) {
	var b [4]byte
	if err := s.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
