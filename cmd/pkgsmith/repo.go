// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/internal/uri"
	"github.com/pkgsmith/pkgsmith/pkg/repo"
	"github.com/pkgsmith/pkgsmith/pkg/store"
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage package repositories",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <owner/name | url>",
	Short: "Add a package repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, st, err := openRoot()
		if err != nil {
			return err
		}
		remote, err := uri.CanonicalizeRepoURI(args[0])
		if err != nil {
			return err
		}
		name := uri.RepoName(remote)
		meta, err := st.FindAddedRepository(name)
		if err != nil {
			return err
		}
		if meta != nil {
			return errors.Wrap(repo.ErrAlreadyAdded, name)
		}

		fmt.Println(color.BlueString(">> adding repository %s", name))
		fmt.Println(color.WhiteString("pulling %s", remote))

		rec, err := repo.Add(cmd.Context(), root, args[0])
		if err != nil {
			return err
		}
		if _, err := st.Add(store.NewAddRepository(*rec)); err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓ added %s (%d packages)", rec.Name, len(rec.Packages)))
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List added repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := openRoot()
		if err != nil {
			return err
		}
		fmt.Println(color.BlueString(">> fetching repositories"))
		repos, err := st.ListRepositories()
		if err != nil {
			return err
		}
		for _, meta := range repos {
			at := time.Unix(int64(meta.CreatedAt), 0).UTC().Format(time.RFC3339)
			fmt.Printf("%s %s\n", color.GreenString("%s", meta.Name), color.WhiteString("(at %s)", at))
		}
		return nil
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove an added repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, st, err := openRoot()
		if err != nil {
			return err
		}
		meta, err := st.FindAddedRepository(args[0])
		if err != nil {
			return err
		}
		if meta == nil {
			return errors.Wrap(repo.ErrNotAdded, args[0])
		}

		fmt.Println(color.BlueString(">> removing repository %s", meta.Name))
		if err := repo.Remove(root, meta.Name); err != nil {
			return err
		}
		if _, err := st.Add(store.NewRemoveRepository(meta.Name)); err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓ removed %s", meta.Name))
		return nil
	},
}

func init() {
	repoCmd.AddCommand(repoAddCmd, repoListCmd, repoRemoveCmd)
}
