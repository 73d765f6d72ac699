// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/internal/httpx"
	"github.com/pkgsmith/pkgsmith/pkg/install"
	"github.com/pkgsmith/pkgsmith/pkg/manifest"
)

var checkCmd = &cobra.Command{
	Use:   "check <manifest.toml>",
	Short: "Validate every declared source of a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		pkg, err := manifest.Decode(f)
		f.Close()
		if err != nil {
			return err
		}

		fmt.Println(color.BlueString(">> validating %s", pkg.ID()))

		client := &httpx.WithUserAgent{BasicClient: http.DefaultClient, UserAgent: "pkgsmith"}
		ok := true
		for _, osName := range sortedKeys(pkg.Sources) {
			for _, arch := range sortedKeys(pkg.Sources[osName]) {
				fmt.Println(color.BlueString(">> validating sources for target %s.%s", osName, arch))

				tmpDir, err := os.MkdirTemp("", "pkgsmith-check-*")
				if err != nil {
					return err
				}
				// Fetching never touches the root, so a throwaway fs will do.
				ins, events := install.New(pkg, memfs.New(), osfs.New(tmpDir), client)
				done := showProgress(1, events)
				_, err = ins.Run(cmd.Context(), install.Opts{OS: osName, Arch: arch, Stage: install.StageFetchSources})
				<-done
				os.RemoveAll(tmpDir)
				if err != nil {
					ok = false
					fmt.Println(color.RedString("%v", err))
				}
			}
		}
		if !ok {
			return errors.New("validation failed")
		}
		fmt.Println(color.GreenString(">> validation succeeded"))
		return nil
	},
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
