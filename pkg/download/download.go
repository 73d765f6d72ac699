// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package download fetches package sources over HTTPS and stages them.
package download

import (
	"archive/tar"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"

	"github.com/pkgsmith/pkgsmith/internal/hashio"
	"github.com/pkgsmith/pkgsmith/internal/httpx"
	"github.com/pkgsmith/pkgsmith/pkg/archive"
)

var (
	// ErrUnsafeScheme rejects cleartext http sources.
	ErrUnsafeScheme = errors.New("'http' scheme is unsafe and unsupported")
	// ErrUnsupportedScheme rejects everything that is not https.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
)

// Fetch downloads rawURL into dest, streaming the transferred bytes through a
// SHA-256 state, and returns the hex digest of the transfer. URLs ending in
// .tar.gz or .tar.xz are unpacked into dest; all other payloads are written
// verbatim to dest under their basename. The digest always covers the bytes
// on the wire, not the decompressed payload.
func Fetch(ctx context.Context, client httpx.BasicClient, rawURL string, dest billy.Filesystem) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "parsing source url %q", rawURL)
	}
	switch u.Scheme {
	case "https":
	case "http":
		return "", errors.Wrap(ErrUnsafeScheme, rawURL)
	default:
		return "", errors.Wrapf(ErrUnsupportedScheme, "'%s'", u.Scheme)
	}
	basename := path.Base(u.Path)
	if basename == "." || basename == "/" {
		return "", errors.Errorf("source url %q has no filename", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "creating request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "downloading %s", rawURL)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("downloading %s: %s", rawURL, resp.Status)
	}

	hr := hashio.NewReader(resp.Body)
	switch f := archive.FormatForPath(u.Path); f {
	case archive.TarGzFormat, archive.TarXzFormat:
		dr, err := archive.Decompress(f, hr)
		if err != nil {
			return "", errors.Wrapf(err, "unpacking %s", basename)
		}
		if err := archive.ExtractTar(tar.NewReader(dr), dest); err != nil {
			return "", errors.Wrapf(err, "unpacking %s", basename)
		}
	default:
		out, err := dest.OpenFile(basename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
		if err != nil {
			return "", errors.Wrapf(err, "creating %s", basename)
		}
		if _, err := io.Copy(out, hr); err != nil {
			out.Close()
			return "", errors.Wrapf(err, "writing %s", basename)
		}
		if err := out.Close(); err != nil {
			return "", err
		}
	}
	// The decompressor may stop short of the stream's trailing bytes; drain
	// so the digest covers the whole transfer.
	if _, err := io.Copy(io.Discard, hr); err != nil {
		return "", errors.Wrapf(err, "draining %s", rawURL)
	}
	return hr.Sum(), nil
}
