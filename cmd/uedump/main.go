// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// uedump is the thin CLI shell around the walker/layout/fname/remote/
// emulate core: flag parsing, input-mode selection and output writing
// only, mirroring how little cmd/pedumper.go itself does around the
// teacher's peparser library.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "uedump",
		Short: "A reflection-data dumper for Unreal-Engine-style game processes",
		Long:  "uedump walks a running process or memory snapshot's GUObjectArray and dumps its reflection data as JSON.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.1.0")
		},
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newDumpCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
