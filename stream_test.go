// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pdb

import (
	"bytes"
	"testing"
)

func TestStreamRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{'A'}, 4096)
	payload[4095] = 'B'

	img := buildMSF(t, 0x400, []streamSpec{
		{}, // root slot
		{data: payload},
	})
	file := openMSF(t, img)

	if file.StreamCount() != 2 {
		t.Fatalf("stream count: got %d, want 2", file.StreamCount())
	}

	stream, err := file.OpenStream(1)
	if err != nil {
		t.Fatalf("OpenStream failed, reason: %v", err)
	}
	if stream.Size() != 4096 {
		t.Fatalf("size: got %d, want 4096", stream.Size())
	}

	got := make([]byte, 4096)
	if err := stream.Read(got); err != nil {
		t.Fatalf("Read failed, reason: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("read back wrong bytes, got %q... want 4095 x 'A' + 'B'",
			got[:8])
	}

	// The stream is spent.
	if err := stream.Read(make([]byte, 1)); err != ErrOutOfBounds {
		t.Errorf("Read past end: got %v, want ErrOutOfBounds", err)
	}
}

func TestStreamCrossPageRead(t *testing.T) {
	payload := make([]byte, 0x500)
	for i := range payload {
		payload[i] = byte(i * 7)
	}

	// The stream's second page sits physically before its first.
	img := buildMSF(t, 0x400, []streamSpec{
		{},
		{data: payload, reverse: true},
	})
	file := openMSF(t, img)

	stream, err := file.OpenStream(1)
	if err != nil {
		t.Fatalf("OpenStream failed, reason: %v", err)
	}

	// One read spanning the page boundary.
	got := make([]byte, 0x500)
	if err := stream.Read(got); err != nil {
		t.Fatalf("Read failed, reason: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("cross-page read returned bytes out of order")
	}
}

func TestStreamByteAtOffset(t *testing.T) {
	payload := make([]byte, 0x9B7) // deliberately not page aligned
	for i := range payload {
		payload[i] = byte(i ^ (i >> 5))
	}

	img := buildMSF(t, 0x400, []streamSpec{
		{},
		{data: payload},
	})
	file := openMSF(t, img)

	stream, err := file.OpenStream(1)
	if err != nil {
		t.Fatalf("OpenStream failed, reason: %v", err)
	}
	all, err := stream.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed, reason: %v", err)
	}

	var b [1]byte
	for offset := uint64(0); offset < uint64(len(all)); offset++ {
		if err := stream.Seek(offset); err != nil {
			t.Fatalf("Seek(%d) failed, reason: %v", offset, err)
		}
		if err := stream.Read(b[:]); err != nil {
			t.Fatalf("Read at %d failed, reason: %v", offset, err)
		}
		if b[0] != all[offset] {
			t.Fatalf("byte at %d: got %#x, want %#x", offset, b[0], all[offset])
		}
	}
}

func TestStreamZeroLength(t *testing.T) {
	img := buildMSF(t, 0x400, []streamSpec{
		{},
		{data: nil},
	})
	file := openMSF(t, img)

	stream, err := file.OpenStream(1)
	if err != nil {
		t.Fatalf("OpenStream failed, reason: %v", err)
	}
	if stream.Size() != 0 {
		t.Fatalf("size: got %d, want 0", stream.Size())
	}
	if err := stream.Seek(0); err != nil {
		t.Errorf("Seek(0): got %v, want nil", err)
	}
	if err := stream.Read(make([]byte, 1)); err != ErrOutOfBounds {
		t.Errorf("Read: got %v, want ErrOutOfBounds", err)
	}
}

func TestStreamAbsent(t *testing.T) {
	img := buildMSF(t, 0x400, []streamSpec{
		{},
		{absent: true},
		{data: []byte("present")},
	})
	file := openMSF(t, img)

	if _, err := file.OpenStream(1); err != ErrNoSuchStream {
		t.Errorf("OpenStream(1): got %v, want ErrNoSuchStream", err)
	}
	if _, err := file.OpenStream(3); err != ErrNoSuchStream {
		t.Errorf("OpenStream(3): got %v, want ErrNoSuchStream", err)
	}

	// The slot after the absent one still resolves.
	stream, err := file.OpenStream(2)
	if err != nil {
		t.Fatalf("OpenStream(2) failed, reason: %v", err)
	}
	got, err := stream.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed, reason: %v", err)
	}
	if string(got) != "present" {
		t.Errorf("stream 2: got %q, want %q", got, "present")
	}
}

func TestStreamSeekBounds(t *testing.T) {
	img := buildMSF(t, 0x400, []streamSpec{
		{},
		{data: make([]byte, 100)},
	})
	file := openMSF(t, img)

	stream, _ := file.OpenStream(1)
	if err := stream.Seek(100); err != nil {
		t.Errorf("Seek(size): got %v, want nil", err)
	}
	if err := stream.Seek(101); err != ErrOutOfBounds {
		t.Errorf("Seek(size+1): got %v, want ErrOutOfBounds", err)
	}
}

// Two cursors interleaving reads must not disturb each other, whichever of
// them repositioned the container last.
func TestStreamInterleavedCursors(t *testing.T) {
	first := make([]byte, 0x800)
	second := make([]byte, 0x800)
	for i := range first {
		first[i] = byte(i)
		second[i] = byte(255 - i%256)
	}

	img := buildMSF(t, 0x400, []streamSpec{
		{},
		{data: first},
		{data: second, reverse: true},
	})
	file := openMSF(t, img)

	a, err := file.OpenStream(1)
	if err != nil {
		t.Fatalf("OpenStream(1) failed, reason: %v", err)
	}
	b, err := file.OpenStream(2)
	if err != nil {
		t.Fatalf("OpenStream(2) failed, reason: %v", err)
	}

	var gotA, gotB []byte
	chunk := make([]byte, 0x130)
	for len(gotA) < len(first) {
		n := len(first) - len(gotA)
		if n > len(chunk) {
			n = len(chunk)
		}
		if err := a.Read(chunk[:n]); err != nil {
			t.Fatalf("stream 1 read failed, reason: %v", err)
		}
		gotA = append(gotA, chunk[:n]...)

		if err := b.Read(chunk[:n]); err != nil {
			t.Fatalf("stream 2 read failed, reason: %v", err)
		}
		gotB = append(gotB, chunk[:n]...)
	}

	if !bytes.Equal(gotA, first) {
		t.Error("interleaved reads corrupted stream 1")
	}
	if !bytes.Equal(gotB, second) {
		t.Error("interleaved reads corrupted stream 2")
	}
}
