// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

// Known type stream versions, VC 2.0 through VC 8.0.
const (
	TypesVersionVC2  = 19941610
	TypesVersionVC4  = 19950623
	TypesVersionVC41 = 19950814
	TypesVersionVC50 = 19960307
	TypesVersionVC60 = 19970604
	TypesVersionVC70 = 19990604
	TypesVersionVC71 = 20000404
	TypesVersionVC8  = 20040203
)

// typesVersions is the accepted version set.
var typesVersions = []uint32{
	TypesVersionVC2, TypesVersionVC4, TypesVersionVC41, TypesVersionVC50,
	TypesVersionVC60, TypesVersionVC70, TypesVersionVC71, TypesVersionVC8,
}

// typeHashKeySize is the only key size this reader understands: one u32
// bucket per type record.
const typeHashKeySize = 4

// hashEntry locates one sub-table inside the type hash stream.
type hashEntry struct {
	Offset uint32
	Size   uint32
}

// typesHash is the auxiliary hash stream: bucket parameters and the
// locations of the hash value, type offset and adjustment sub-tables.
type typesHash struct {
	stream      *Stream
	KeySize     uint32
	BucketCount uint32
	Values      hashEntry
	TypeOffsets hashEntry
	Adjustments hashEntry
}

// Types decodes the type information stream.
type Types struct {
	// Version is the type stream version.
	Version uint32
	// HeaderSize is the byte offset of the first record.
	HeaderSize uint32
	// MinTypeIndex is the index of the first record.
	MinTypeIndex uint32
	// MaxTypeIndex is one past the index of the last record.
	MaxTypeIndex uint32
	// PayloadBytes is the record data size following the header.
	PayloadBytes uint32

	pdb    *File
	stream *Stream
	hash   *typesHash

	// offsets is the framing index built on first lookup: payload-relative
	// record offsets in index order.
	offsets []uint32
}

// OpenTypes opens the type stream, validates its header and, when the
// header names a live hash stream, opens the hash auxiliary. Without a
// hash, name lookup degrades to a linear scan.
func (p *File) OpenTypes() (*Types, error) {

	stream, err := p.OpenStream(StreamTypeInfo)
	if err != nil {
		return nil, err
	}

	t := Types{pdb: p, stream: stream}
	if t.Version, err = stream.readUint32(); err != nil {
		return nil, ErrTruncated
	}

	supported := false
	for _, v := range typesVersions {
		if t.Version == v {
			supported = true
			break
		}
	}
	if !supported {
		return nil, ErrUnsupportedVersion
	}

	if t.HeaderSize, err = stream.readUint32(); err != nil {
		return nil, ErrTruncated
	}
	if t.MinTypeIndex, err = stream.readUint32(); err != nil {
		return nil, ErrTruncated
	}
	if t.MaxTypeIndex, err = stream.readUint32(); err != nil {
		return nil, ErrTruncated
	}
	if t.PayloadBytes, err = stream.readUint32(); err != nil {
		return nil, ErrTruncated
	}

	// The header numbers better agree with the actual stream size.
	if t.HeaderSize+t.PayloadBytes != stream.Size() ||
		t.MaxTypeIndex < t.MinTypeIndex {
		return nil, ErrCorruptTypeStream
	}

	hashStreamId, err := stream.readUint16()
	if err != nil {
		return nil, ErrTruncated
	}

	if uint32(hashStreamId) < p.StreamCount() {
		if t.hash, err = p.openTypesHash(uint32(hashStreamId)); err != nil {
			return nil, err
		}
	}

	return &t, nil
}

// openTypesHash opens the hash auxiliary stream and reads its parameter
// block. A hash this reader cannot use is dropped with a warning rather
// than failing the open.
func (p *File) openTypesHash(id uint32) (*typesHash, error) {
	stream, err := p.OpenStream(id)
	if err == ErrNoSuchStream {
		p.logger.Warnf("type hash stream %d absent, using linear lookup", id)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	h := typesHash{stream: stream}
	if h.KeySize, err = stream.readUint32(); err != nil {
		return nil, ErrCorruptTypeStream
	}
	if h.BucketCount, err = stream.readUint32(); err != nil {
		return nil, ErrCorruptTypeStream
	}
	for _, e := range []*hashEntry{&h.Values, &h.TypeOffsets, &h.Adjustments} {
		if e.Offset, err = stream.readUint32(); err != nil {
			return nil, ErrCorruptTypeStream
		}
		if e.Size, err = stream.readUint32(); err != nil {
			return nil, ErrCorruptTypeStream
		}
	}

	if h.KeySize != typeHashKeySize || h.BucketCount == 0 {
		p.logger.Warnf("type hash with key size %d and %d buckets not "+
			"usable, using linear lookup", h.KeySize, h.BucketCount)
		return nil, nil
	}
	return &h, nil
}

// Close releases the decoder's stream handles.
func (t *Types) Close() {
	t.stream = nil
	t.hash = nil
	t.offsets = nil
}

// Count returns the number of records the stream declares.
func (t *Types) Count() uint32 {
	return t.MaxTypeIndex - t.MinTypeIndex
}

// Enumerate decodes every record in index order and hands it to fn. It
// stops early when fn returns false.
func (t *Types) Enumerate(fn func(*TypeRecord) bool) error {
	if err := t.stream.Seek(uint64(t.HeaderSize)); err != nil {
		return ErrCorruptTypeStream
	}

	count := t.Count()
	for i := uint32(0); i < count; i++ {
		rec, err := t.readRecord(i)
		if err != nil {
			return err
		}
		if err = t.skipRecordPadding(); err != nil {
			return err
		}
		if fn != nil && !fn(rec) {
			return nil
		}
	}

	// Ran out of types, the payload must be spent too.
	if t.stream.Offset() != t.HeaderSize+t.PayloadBytes {
		return ErrCorruptTypeStream
	}
	return nil
}

// Lookup resolves a type name to its record. With a hash present only the
// name's bucket mates are decoded; identity is still the exact,
// case-sensitive name.
func (t *Types) Lookup(name string) (*TypeRecord, error) {
	if t.hash == nil {
		return t.lookupLinear(name)
	}

	bucket := TypeNameHash(name) % t.hash.BucketCount

	if err := t.buildOffsets(); err != nil {
		return nil, err
	}

	if err := t.hash.stream.Seek(uint64(t.hash.Values.Offset)); err != nil {
		return nil, ErrCorruptTypeStream
	}
	n := t.hash.Values.Size / 4
	if n > uint32(len(t.offsets)) {
		n = uint32(len(t.offsets))
	}

	for i := uint32(0); i < n; i++ {
		v, err := t.hash.stream.readUint32()
		if err != nil {
			return nil, ErrCorruptTypeStream
		}
		if v != bucket {
			continue
		}

		rec, err := t.recordAt(i)
		if err != nil {
			return nil, err
		}
		if rec.Name() == name {
			return rec, nil
		}

		// The values walk continues, reposition after the candidate detour.
		off := uint64(t.hash.Values.Offset) + uint64(i+1)*4
		if err = t.hash.stream.Seek(off); err != nil {
			return nil, ErrCorruptTypeStream
		}
	}
	return nil, ErrNotFound
}

// lookupLinear scans every record for the name.
func (t *Types) lookupLinear(name string) (*TypeRecord, error) {
	var found *TypeRecord
	err := t.Enumerate(func(rec *TypeRecord) bool {
		if rec.Name() == name {
			found = rec
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// recordAt decodes the record with the given zero-based position using the
// framing index.
func (t *Types) recordAt(i uint32) (*TypeRecord, error) {
	off := uint64(t.HeaderSize) + uint64(t.offsets[i])
	if err := t.stream.Seek(off); err != nil {
		return nil, ErrCorruptTypeStream
	}
	return t.readRecord(i)
}

// readRecord decodes one record at the cursor. i is the record's zero-based
// position, used only to derive the type index.
func (t *Types) readRecord(i uint32) (*TypeRecord, error) {
	offset := t.stream.Offset() - t.HeaderSize

	recordLen, err := t.stream.readUint16()
	if err != nil {
		return nil, ErrCorruptTypeStream
	}
	if recordLen < 2 {
		return nil, ErrCorruptTypeStream
	}
	kind, err := t.stream.readUint16()
	if err != nil {
		return nil, ErrCorruptTypeStream
	}

	body := make([]byte, recordLen-2)
	if err = t.stream.Read(body); err != nil {
		// The declared length overruns the payload.
		return nil, ErrCorruptTypeStream
	}

	leaf, err := decodeLeaf(LeafKind(kind), body)
	if err != nil {
		return nil, err
	}

	return &TypeRecord{
		Kind:   LeafKind(kind),
		Index:  t.MinTypeIndex + i,
		Offset: offset,
		Raw:    body,
		Leaf:   leaf,
	}, nil
}

// skipRecordPadding consumes the 0..3 alignment bytes after a record. A
// byte below the pad range is the next record's start and is pushed back.
func (t *Types) skipRecordPadding() error {
	end := t.HeaderSize + t.PayloadBytes

	for t.stream.Offset() < end {
		b, err := t.stream.readByte()
		if err != nil {
			return ErrCorruptTypeStream
		}
		if b < minPadByte {
			return t.stream.Seek(uint64(t.stream.Offset() - 1))
		}

		skip := uint32(b & 0x0F)
		if skip == 0 || t.stream.Offset()-1+skip > end {
			return ErrCorruptTypeStream
		}
		// The pad byte itself counts against the skip.
		if err = t.stream.Seek(uint64(t.stream.Offset() - 1 + skip)); err != nil {
			return ErrCorruptTypeStream
		}
	}
	return nil
}

// buildOffsets walks the record framing once and memoizes every record's
// payload-relative offset.
func (t *Types) buildOffsets() error {
	if t.offsets != nil {
		return nil
	}

	if err := t.stream.Seek(uint64(t.HeaderSize)); err != nil {
		return ErrCorruptTypeStream
	}

	count := t.Count()
	offsets := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		offsets = append(offsets, t.stream.Offset()-t.HeaderSize)

		recordLen, err := t.stream.readUint16()
		if err != nil || recordLen < 2 {
			return ErrCorruptTypeStream
		}
		next := uint64(t.stream.Offset()) + uint64(recordLen)
		if err = t.stream.Seek(next); err != nil {
			return ErrCorruptTypeStream
		}
		if err = t.skipRecordPadding(); err != nil {
			return err
		}
	}

	t.offsets = offsets
	return nil
}
