// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"encoding/binary"
	"math/bits"
)

// TypeNameHash computes the case-insensitive rotational hash the type hash
// stream buckets names with. The terminating NUL takes part: the 0..3 bytes
// past the last whole dword fold into a tail value, every remaining
// little-endian dword is upper-cased with a 0xDFDFDFDF mask and rotated
// into the sum. The bucket is the hash modulo the bucket count.
func TypeNameHash(name string) uint32 {
	// The terminating NUL is hashed too.
	b := make([]byte, len(name)+1)
	copy(b, name)
	n := len(b)

	var tail uint32
	for n&3 != 0 {
		tail = tail<<8 | uint32(b[n-1]&0xDF) // toupper
		n--
	}

	var sum uint32
	for i := 0; i < n; i += 4 {
		w := binary.LittleEndian.Uint32(b[i:])
		sum = bits.RotateLeft32(sum^(w&0xDFDFDFDF), 4)
	}
	return sum ^ tail
}
