// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive detects and unpacks source archive formats.
package archive

import (
	"compress/gzip"
	"io"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Format describes how a downloaded source is materialised.
type Format int

const (
	// RawFormat stores the transferred bytes verbatim under their basename.
	RawFormat Format = iota
	// TarGzFormat unpacks a gzip-compressed tar archive.
	TarGzFormat
	// TarXzFormat unpacks an xz-compressed tar archive.
	TarXzFormat
)

// ErrCorrupt is the base error for undecodable archives.
var ErrCorrupt = errors.New("corrupt archive")

// FormatForPath derives the unpack mode from a URL path. Only the .tar.gz
// and .tar.xz suffixes select archive handling.
func FormatForPath(p string) Format {
	name := path.Base(p)
	switch {
	case strings.HasSuffix(name, ".tar.gz"):
		return TarGzFormat
	case strings.HasSuffix(name, ".tar.xz"):
		return TarXzFormat
	default:
		return RawFormat
	}
}

// Decompress wraps r in the decompressor matching f. RawFormat is invalid.
func Decompress(f Format, r io.Reader) (io.Reader, error) {
	switch f {
	case TarGzFormat:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		return zr, nil
	case TarXzFormat:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, errors.Wrap(ErrCorrupt, err.Error())
		}
		return xr, nil
	default:
		return nil, errors.Errorf("format %d is not compressed", f)
	}
}
