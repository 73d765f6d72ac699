// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"io/fs"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// GC removes content blobs that no live install references and unlinks bin
// symlinks that no longer resolve to a blob under content/. The package named
// by excludeID is treated as removed even though its RemovePackage
// transaction has not been written yet: GC runs before the append so that a
// crash leaves at most an extra blob, never a dangling reference.
func GC(root billy.Filesystem, s *Store, excludeID string) error {
	installed, err := s.ListInstalled()
	if err != nil {
		return err
	}
	live := make(map[string]bool)
	for _, meta := range installed {
		if meta.ID == excludeID {
			continue
		}
		for _, c := range meta.Content {
			live[c.Checksum] = true
		}
	}

	entries, err := root.ReadDir("content")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrap(err, "listing content")
	}
	for _, e := range entries {
		if !live[e.Name()] {
			if err := root.Remove(path.Join("content", e.Name())); err != nil {
				return errors.Wrapf(err, "removing blob %s", e.Name())
			}
		}
	}

	entries, err = root.ReadDir("bin")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.Wrap(err, "listing bin")
	}
	for _, e := range entries {
		link := path.Join("bin", e.Name())
		fi, err := root.Lstat(link)
		if err != nil || fi.Mode()&fs.ModeSymlink == 0 {
			continue
		}
		target, err := root.Readlink(link)
		if err != nil {
			return errors.Wrapf(err, "reading symlink %s", link)
		}
		if !path.IsAbs(target) {
			target = path.Join("bin", target)
		}
		target = path.Clean(target)
		dangling := !strings.HasPrefix(target, "content/")
		if !dangling {
			if _, err := root.Lstat(target); err != nil {
				dangling = true
			}
		}
		if dangling {
			if err := root.Remove(link); err != nil {
				return errors.Wrapf(err, "unlinking %s", link)
			}
		}
	}
	return nil
}
