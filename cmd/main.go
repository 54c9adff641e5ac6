// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dumpStreamId int
	lookupName   string
)

func main() {

	rootCmd := &cobra.Command{
		Use:   "pdbdump",
		Short: "A PDB/MSF parser built for speed and malware-analysis in mind",
	}

	infoCmd := &cobra.Command{
		Use:   "info <pdb file>",
		Short: "Print container metadata and the PDB info stream",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dumpInfo(args[0])
		},
	}

	streamsCmd := &cobra.Command{
		Use:   "streams <pdb file>",
		Short: "List streams, or hex-dump one with --dump",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dumpStreams(args[0], dumpStreamId)
		},
	}
	streamsCmd.Flags().IntVar(&dumpStreamId, "dump", -1,
		"Hex-dump the stream with this id")

	typesCmd := &cobra.Command{
		Use:   "types <pdb file>",
		Short: "Enumerate type records, or look one up with --name",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dumpTypes(args[0], lookupName)
		},
	}
	typesCmd.Flags().StringVar(&lookupName, "name", "",
		"Look up a single type by name")

	rootCmd.AddCommand(infoCmd, streamsCmd, typesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
