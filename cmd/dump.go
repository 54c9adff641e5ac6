// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"text/tabwriter"

	pdbparser "github.com/saferwall/pdb"
)

func open(filename string) *pdbparser.File {
	file, err := pdbparser.New(filename, &pdbparser.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening %s failed, reason: %v\n", filename, err)
		os.Exit(1)
	}
	if err := file.Parse(); err != nil {
		file.Close()
		fmt.Fprintf(os.Stderr, "parsing %s failed, reason: %v\n", filename, err)
		os.Exit(1)
	}
	return file
}

func dumpInfo(filename string) {
	file := open(filename)
	defer file.Close()

	fmt.Printf("MSF version   : %d\n", file.Version)
	fmt.Printf("Page size     : %#x\n", file.PageSize)
	fmt.Printf("Page count    : %d\n", file.PageCount)
	fmt.Printf("Streams       : %d\n", file.StreamCount())

	info, err := file.OpenInfo()
	if err != nil {
		fmt.Fprintf(os.Stderr, "PDB info stream not readable, reason: %v\n", err)
		return
	}
	fmt.Printf("Info version  : %d\n", info.Version)
	fmt.Printf("Signature     : %#x\n", info.Signature)
	fmt.Printf("Age           : %d\n", info.Age)
	if info.Version >= pdbparser.InfoVersionVC70 {
		fmt.Printf("GUID          : %s\n", info.GUID)
	}
}

func dumpStreams(filename string, dumpId int) {
	file := open(filename)
	defer file.Close()

	if dumpId >= 0 {
		stream, err := file.OpenStream(uint32(dumpId))
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening stream %d failed, reason: %v\n",
				dumpId, err)
			os.Exit(1)
		}
		data, err := stream.ReadAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading stream %d failed, reason: %v\n",
				dumpId, err)
			os.Exit(1)
		}
		fmt.Print(hex.Dump(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSIZE\t")
	for id := uint32(0); id < file.StreamCount(); id++ {
		stream, err := file.OpenStream(id)
		if err != nil {
			fmt.Fprintf(w, "%d\tabsent\t\n", id)
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t\n", id, stream.Size())
	}
	w.Flush()
}

func dumpTypes(filename, name string) {
	file := open(filename)
	defer file.Close()

	types, err := file.OpenTypes()
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening type stream failed, reason: %v\n", err)
		os.Exit(1)
	}
	defer types.Close()

	if name != "" {
		rec, err := types.Lookup(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lookup of %q failed, reason: %v\n", name, err)
			os.Exit(1)
		}
		printRecord(rec)
		return
	}

	err = types.Enumerate(func(rec *pdbparser.TypeRecord) bool {
		printRecord(rec)
		return true
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "enumerating types failed, reason: %v\n", err)
		os.Exit(1)
	}
}

func printRecord(rec *pdbparser.TypeRecord) {
	switch leaf := rec.Leaf.(type) {
	case *pdbparser.StructType:
		fmt.Printf("%#x struct %s size=%d members=%d fieldlist=%#x\n",
			rec.Index, leaf.Name, leaf.Size, leaf.Count, leaf.FieldList)
	case *pdbparser.UnionType:
		fmt.Printf("%#x union %s size=%d members=%d fieldlist=%#x\n",
			rec.Index, leaf.Name, leaf.Size, leaf.Count, leaf.FieldList)
	case *pdbparser.EnumType:
		fmt.Printf("%#x enum %s members=%d fieldlist=%#x\n",
			rec.Index, leaf.Name, leaf.Count, leaf.FieldList)
	case *pdbparser.FieldList:
		fmt.Printf("%#x fieldlist with %d entries\n",
			rec.Index, len(leaf.Fields))
		for _, field := range leaf.Fields {
			if e, ok := field.(*pdbparser.Enumerate); ok {
				fmt.Printf("\t%s = %d\n", e.Name, e.Value)
			}
		}
	case *pdbparser.PointerType:
		fmt.Printf("%#x pointer to %#x\n", rec.Index, leaf.UnderlyingType)
	case *pdbparser.ArrayType:
		fmt.Printf("%#x array %s of %#x size=%d\n",
			rec.Index, leaf.Name, leaf.ElementType, leaf.Size)
	default:
		fmt.Printf("%#x leaf %#x (%d bytes)\n",
			rec.Index, uint16(rec.Kind), len(rec.Raw))
	}
}
