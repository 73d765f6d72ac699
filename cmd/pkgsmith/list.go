// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/pkg/manifest"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := openRoot()
		if err != nil {
			return err
		}
		fmt.Println(color.BlueString(">> fetching installed packages"))
		installed, err := st.ListInstalled()
		if err != nil {
			return err
		}
		for _, meta := range installed {
			id, err := manifest.ParseID(meta.ID)
			if err != nil {
				return err
			}
			at := time.Unix(int64(meta.CreatedAt), 0).UTC().Format(time.RFC3339)
			fmt.Printf("- %s %s\n",
				color.GreenString("%s", id.Name),
				color.WhiteString("(version %s at %s)", id.Version, at))
		}
		return nil
	},
}
