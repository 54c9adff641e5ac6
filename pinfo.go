// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"github.com/google/uuid"
)

// PDB info stream versions. Only VC70 and later carry a GUID.
const (
	InfoVersionVC2  = 19941610
	InfoVersionVC4  = 19950623
	InfoVersionVC41 = 19950814
	InfoVersionVC50 = 19960307
	InfoVersionVC98 = 19970604
	InfoVersionVC70 = 20000404
)

// Info is the decoded header of the PDB info stream (stream 1). Signature,
// age and GUID are what a debugger matches against the executable's debug
// directory.
type Info struct {
	Version   uint32
	Signature uint32
	Age       uint32
	GUID      uuid.UUID
}

// OpenInfo decodes the PDB info stream header.
func (p *File) OpenInfo() (*Info, error) {
	s, err := p.OpenStream(StreamPdbInfo)
	if err != nil {
		return nil, err
	}

	info := Info{}
	if info.Version, err = s.readUint32(); err != nil {
		return nil, ErrTruncated
	}
	if info.Signature, err = s.readUint32(); err != nil {
		return nil, ErrTruncated
	}
	if info.Age, err = s.readUint32(); err != nil {
		return nil, ErrTruncated
	}

	if info.Version < InfoVersionVC70 {
		return &info, nil
	}

	var raw [16]byte
	if err = s.Read(raw[:]); err != nil {
		return nil, ErrTruncated
	}

	// On disk the GUID's first three fields are little-endian; reorder to
	// RFC 4122 byte order before handing it to the uuid package.
	var rfc [16]byte
	rfc[0], rfc[1], rfc[2], rfc[3] = raw[3], raw[2], raw[1], raw[0]
	rfc[4], rfc[5] = raw[5], raw[4]
	rfc[6], rfc[7] = raw[7], raw[6]
	copy(rfc[8:], raw[8:])

	info.GUID, err = uuid.FromBytes(rfc[:])
	if err != nil {
		return nil, ErrCorruptInfoStream
	}
	return &info, nil
}
