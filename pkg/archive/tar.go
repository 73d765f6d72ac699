// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// ExtractTar writes the contents of a tar stream to a filesystem. Entries
// whose cleaned path would escape the filesystem root fail the extraction;
// directories and regular files are materialised, symlinks and all other
// entry types are skipped.
func ExtractTar(tr *tar.Reader, fs billy.Filesystem) error {
	for {
		h, err := tr.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return errors.Wrap(ErrCorrupt, err.Error())
		}
		name := path.Clean(h.Name)
		if name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
			return errors.Errorf("archive entry escapes extraction root: %s", h.Name)
		}
		switch h.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(name, h.FileInfo().Mode()); err != nil {
				return err
			}
		case tar.TypeReg:
			if dir := path.Dir(name); dir != "." {
				if err := fs.MkdirAll(dir, 0o755); err != nil {
					return err
				}
			}
			f, err := fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, h.FileInfo().Mode())
			if err != nil {
				return err
			}
			if _, err := io.CopyN(f, tr, h.Size); err != nil {
				f.Close()
				return errors.Wrap(ErrCorrupt, err.Error())
			}
			if err := f.Close(); err != nil {
				return err
			}
		default:
			// Symlinks, devices and the GNU extension types have no place in
			// a source drop; skipping them keeps the staging root inert.
			continue
		}
	}
}
