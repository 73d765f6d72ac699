// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Command pkgsmith installs prebuilt executables into a per-user root,
// indexed through an append-only transaction log.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/store"
)

var rootCmd = &cobra.Command{
	Use:           "pkgsmith",
	Short:         "A user-space package manager for prebuilt executables",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// rootDir resolves the installation root. HOME is the sole process-wide
// input; everything else flows from it.
func rootDir() (string, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return "", errors.New("HOME directory not set")
	}
	return filepath.Join(home, ".pkg"), nil
}

// openRoot returns the root filesystem and the store projected over it.
func openRoot() (billy.Filesystem, *store.Store, error) {
	dir, err := rootDir()
	if err != nil {
		return nil, nil, err
	}
	root := osfs.New(dir)
	storeFS, err := root.Chroot("store")
	if err != nil {
		return nil, nil, err
	}
	return root, store.NewStore(store.NewStorage(storeFS)), nil
}

func main() {
	rootCmd.AddCommand(installCmd, removeCmd, listCmd, checkCmd, repoCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
