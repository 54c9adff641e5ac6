// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"bytes"
	"encoding/binary"
)

// MSF container signatures.
const (
	// SignatureV2 opens a version 2 container.
	SignatureV2 = "Microsoft C/C++ program database 2.00\r\n"

	// SignatureV7 opens a version 7 container.
	SignatureV7 = "Microsoft C/C++ MSF 7.00\r\n"
)

const (
	// The signature is followed by a short binary tag: 0x1A "JG" 0x00 for
	// v2, 0x1A "DS" 0x00 0x00 0x00 for v7.
	tagSizeV2 = 4
	tagSizeV7 = 6

	// streamSizeAbsent marks a directory slot with no stream behind it.
	streamSizeAbsent = 0xFFFFFFFF
)

// parseHeader detects the container version and reads the fixed header. For
// v7 it also bootstraps the root stream through the directory map page.
func (p *File) parseHeader() error {

	if bytes.HasPrefix(p.data, []byte(SignatureV7)) {
		return p.parseHeaderV7()
	}
	if bytes.HasPrefix(p.data, []byte(SignatureV2)) {
		return p.parseHeaderV2()
	}
	if p.size < uint32(len(SignatureV2)) {
		return ErrTruncated
	}
	return ErrBadSignature
}

// parseHeaderV2 recognizes the old format far enough to report the page
// size. The v2 directory layout is interleaved and not decoded.
func (p *File) parseHeaderV2() error {
	p.Version = 2

	offset := int64(len(SignatureV2) + tagSizeV2)
	pageSize, err := p.ReadUint32(offset)
	if err != nil {
		return err
	}
	if pageSize == 0 || pageSize%4 != 0 {
		return ErrInvalidPageSize
	}
	p.PageSize = pageSize
	return nil
}

func (p *File) parseHeaderV7() error {
	p.Version = 7

	offset := int64(len(SignatureV7) + tagSizeV7)
	pageSize, err := p.ReadUint32(offset)
	if err != nil {
		return err
	}
	if pageSize == 0 || pageSize%4 != 0 {
		return ErrInvalidPageSize
	}
	p.PageSize = pageSize

	if p.FreePageMapIndex, err = p.ReadUint32(offset + 4); err != nil {
		return err
	}
	if p.PageCount, err = p.ReadUint32(offset + 8); err != nil {
		return err
	}

	// The header page count must agree with the actual file size.
	if (uint64(p.size)+uint64(p.PageSize)-1)/uint64(p.PageSize) !=
		uint64(p.PageCount) {
		return ErrInconsistentSize
	}

	if p.RootSize, err = p.ReadUint32(offset + 12); err != nil {
		return err
	}

	// A reserved dword sits between the root length and the map page index.
	rootMapPage, err := p.ReadUint32(offset + 20)
	if err != nil {
		return err
	}

	return p.openRootStream(rootMapPage)
}

// openRootStream walks the two levels of indirection to the directory: the
// header names a single map page, the map page holds the directory's page
// list, and those pages hold the directory stream itself.
func (p *File) openRootStream(rootMapPage uint32) error {
	rootPages := p.minPages(p.RootSize)

	// The whole page list must fit inside the one map page.
	if rootPages*4 > p.PageSize {
		return ErrInconsistentSize
	}
	if rootMapPage >= p.PageCount {
		return ErrInconsistentSize
	}

	list := make([]byte, rootPages*4)
	if err := p.readAt(list, int64(rootMapPage)*int64(p.PageSize)); err != nil {
		return err
	}

	pages := make([]uint32, rootPages)
	for i := range pages {
		pages[i] = binary.LittleEndian.Uint32(list[i*4:])
		if pages[i] >= p.PageCount {
			return ErrInconsistentSize
		}
	}

	p.root = &Stream{
		pdb:   p,
		pages: pages,
		size:  p.RootSize,
	}
	return nil
}
