// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"path"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/manifest"
	"github.com/pkgsmith/pkgsmith/pkg/store"
)

var removeCmd = &cobra.Command{
	Use:   "remove <name@version>",
	Short: "Remove an installed package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, st, err := openRoot()
		if err != nil {
			return err
		}
		id, err := manifest.ParseID(args[0])
		if err != nil {
			return err
		}
		meta, err := st.FindInstalledPackage(id.String())
		if err != nil {
			return err
		}
		if meta == nil {
			return errors.Wrap(store.ErrNotInstalled, id.String())
		}

		fmt.Println(color.BlueString(">> removing %s", id))

		// Unpublish this package's own symlinks; shared blobs stay behind for
		// whoever still references them.
		for _, c := range meta.Content {
			if !c.Published {
				continue
			}
			link := path.Join("bin", c.Filename)
			target, err := root.Readlink(link)
			if err != nil || target != path.Join("..", "content", c.Checksum) {
				continue
			}
			if err := root.Remove(link); err != nil {
				return errors.Wrapf(err, "unlinking %s", link)
			}
			fmt.Println(color.WhiteString("unpublishing %s", c.Filename))
		}

		if err := store.GC(root, st, id.String()); err != nil {
			return err
		}
		if _, err := st.Add(store.NewRemove(id)); err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓ removed %s", id))
		return nil
	},
}
