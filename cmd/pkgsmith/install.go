// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/pkgsmith/pkgsmith/internal/httpx"
	"github.com/pkgsmith/pkgsmith/pkg/install"
	"github.com/pkgsmith/pkgsmith/pkg/manifest"
	"github.com/pkgsmith/pkgsmith/pkg/repo"
	"github.com/pkgsmith/pkgsmith/pkg/store"
)

var (
	installForce     bool
	installNoPublish bool
)

// resolvePackage loads a manifest from a file path, or resolves a
// name@version id against the packages carried by added repositories.
func resolvePackage(st *store.Store, arg string) (*manifest.Package, error) {
	if _, err := os.Stat(arg); err == nil {
		f, err := os.Open(arg)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return manifest.Decode(f)
	}
	id, err := manifest.ParseID(arg)
	if err != nil {
		return nil, err
	}
	pkg, err := repo.FindPackage(st, id)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, errors.Errorf("package not found: %s", id)
	}
	return pkg, nil
}

var installCmd = &cobra.Command{
	Use:   "install <manifest.toml | name@version>",
	Short: "Install a package",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, st, err := openRoot()
		if err != nil {
			return err
		}
		pkg, err := resolvePackage(st, args[0])
		if err != nil {
			return err
		}
		id := pkg.ID()

		if !installForce {
			meta, err := st.FindInstalledPackage(id.String())
			if err != nil {
				return err
			}
			if meta != nil {
				return errors.Wrap(store.ErrAlreadyInstalled, id.String())
			}
		}

		fmt.Println(color.BlueString(">> installing %s", id))

		tmpDir, err := os.MkdirTemp("", "pkgsmith-*")
		if err != nil {
			return err
		}
		defer os.RemoveAll(tmpDir)

		stage := install.StagePublish
		if installNoPublish {
			stage = install.StagePackage
		}
		client := &httpx.WithUserAgent{BasicClient: http.DefaultClient, UserAgent: "pkgsmith"}
		ins, events := install.New(pkg, root, osfs.New(tmpDir), client)
		done := showProgress(int(stage)+1, events)
		content, err := ins.Run(cmd.Context(), install.Opts{
			OS:    runtime.GOOS,
			Arch:  runtime.GOARCH,
			Force: installForce,
			Stage: stage,
		})
		<-done
		if err != nil {
			return err
		}

		if _, err := st.Add(store.NewInstall(id, content)); err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓ installed %s", id))
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "reinstall even when the package is already installed")
	installCmd.Flags().BoolVar(&installNoPublish, "no-publish", false, "stop after the package stage, leaving bin/ untouched")
}
