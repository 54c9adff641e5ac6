// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package pdb implements a reader for Microsoft Program Database (PDB)
// files: the MSF page/stream container and the type information (TPI)
// stream.
package pdb

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/saferwall/pdb/log"
)

// A File represents an open PDB file.
type File struct {
	// Version is the container version from the signature, 2 or 7.
	Version uint8
	// PageSize is the size in bytes of one page.
	PageSize uint32
	// PageCount is the total number of pages in the file.
	PageCount uint32
	// FreePageMapIndex is the page index of the free page map. Readers treat
	// it as opaque.
	FreePageMapIndex uint32
	// RootSize is the byte length of the stream directory.
	RootSize uint32

	root *Stream
	dir  []streamInfo

	data mmap.MMap
	size uint32
	f    *os.File
	opts *Options

	// lastAccessed is the cursor that last positioned the container. A
	// cursor that finds itself here may keep reading without recomputing its
	// physical position.
	lastAccessed *Stream

	logger *log.Helper
}

// streamInfo is one directory slot: a byte length and the ordered physical
// page list. A length of streamSizeAbsent marks a slot that must not be
// opened.
type streamInfo struct {
	size  uint32
	pages []uint32
}

// Options for parsing.
type Options struct {

	// A custom logger.
	Logger log.Logger
}

// New instantiates a file instance with options given a file name.
func New(name string, opts *Options) (*File, error) {

	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	// Memory map the file instead of using read/write.
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	file := File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}

	file.logger = newLogHelper(file.opts)
	file.data = data
	file.size = uint32(len(file.data))
	file.f = f
	return &file, nil
}

// NewBytes instantiates a file instance with options given a memory buffer.
func NewBytes(data []byte, opts *Options) (*File, error) {

	file := File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}

	file.logger = newLogHelper(file.opts)
	file.data = data
	file.size = uint32(len(file.data))
	return &file, nil
}

func newLogHelper(opts *Options) *log.Helper {
	if opts.Logger == nil {
		logger := log.NewStdLogger(os.Stderr)
		return log.NewHelper(log.NewFilter(logger,
			log.FilterLevel(log.LevelError)))
	}
	return log.NewHelper(opts.Logger)
}

// Close closes the File.
func (p *File) Close() error {
	if p.data != nil {
		_ = p.data.Unmap()
	}

	if p.f != nil {
		return p.f.Close()
	}
	return nil
}

// Parse reads the MSF header, bootstraps the root stream and decodes the
// stream directory. For a v2 container only the header is recognized;
// stream operations on it fail with ErrUnsupportedVersion.
func (p *File) Parse() error {

	err := p.parseHeader()
	if err != nil {
		return err
	}

	if p.Version == 2 {
		p.logger.Warnf("v2 container, stream directory not decoded")
		return nil
	}

	return p.parseDirectory()
}

// StreamCount returns the number of streams declared by the directory.
func (p *File) StreamCount() uint32 {
	return uint32(len(p.dir))
}
