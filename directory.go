// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// Well-known stream ids.
const (
	// StreamRoot is the directory itself.
	StreamRoot = 0
	// StreamPdbInfo carries the version/signature/age header linking the
	// PDB to its executable.
	StreamPdbInfo = 1
	// StreamTypeInfo is the TPI stream.
	StreamTypeInfo = 2
	// StreamDebugInfo is the DBI stream.
	StreamDebugInfo = 3
)

// parseDirectory decodes the stream directory out of the root stream: a
// stream count, every stream's byte length, then the concatenated page
// lists.
func (p *File) parseDirectory() error {

	// An empty root stream is a legal, empty directory.
	if p.root.Size() == 0 {
		return nil
	}

	if err := p.root.Seek(0); err != nil {
		return err
	}

	streamCount, err := p.root.readUint32()
	if err != nil {
		return ErrTruncated
	}

	sizes := make([]uint32, streamCount)
	for i := range sizes {
		if sizes[i], err = p.root.readUint32(); err != nil {
			return ErrTruncated
		}
	}

	p.dir = make([]streamInfo, streamCount)
	for i, size := range sizes {
		p.dir[i].size = size
		if size == streamSizeAbsent || size == 0 {
			continue
		}

		pages := make([]uint32, p.minPages(size))
		for k := range pages {
			if pages[k], err = p.root.readUint32(); err != nil {
				return ErrTruncated
			}
			if pages[k] >= p.PageCount {
				return ErrInconsistentSize
			}
		}
		p.dir[i].pages = pages
	}

	return nil
}

// OpenStream returns a cursor over the stream with the given id, positioned
// at offset zero.
func (p *File) OpenStream(id uint32) (*Stream, error) {
	if p.Version == 2 {
		return nil, ErrUnsupportedVersion
	}
	if id >= uint32(len(p.dir)) {
		return nil, ErrNoSuchStream
	}

	info := p.dir[id]
	if info.size == streamSizeAbsent {
		return nil, ErrNoSuchStream
	}

	s := &Stream{
		pdb:   p,
		pages: info.pages,
		size:  info.size,
	}
	if err := s.Seek(0); err != nil {
		return nil, err
	}
	return s, nil
}
