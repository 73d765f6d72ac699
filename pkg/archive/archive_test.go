// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
)

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"/dl/foo-1.0.0.tar.gz", TarGzFormat},
		{"/dl/foo-1.0.0.tar.xz", TarXzFormat},
		{"/dl/foo-1.0.0.tgz", RawFormat},
		{"/dl/foo", RawFormat},
		{"/dl/foo.tar", RawFormat},
	}
	for _, tc := range tests {
		if got := FormatForPath(tc.path); got != tc.want {
			t.Errorf("FormatForPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func writeTar(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, body := range entries {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o755, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractTar(t *testing.T) {
	raw := writeTar(t, map[string]string{
		"foo-1.0.0/bin/foo": "#!/bin/sh\necho foo",
		"foo-1.0.0/LICENSE": "MIT",
	})
	fs := memfs.New()
	if err := ExtractTar(tar.NewReader(bytes.NewReader(raw)), fs); err != nil {
		t.Fatalf("ExtractTar: %v", err)
	}
	got, err := util.ReadFile(fs, "foo-1.0.0/bin/foo")
	if err != nil {
		t.Fatalf("reading extracted file: %v", err)
	}
	if !strings.Contains(string(got), "echo foo") {
		t.Errorf("extracted content = %q", got)
	}
}

func TestExtractTarRejectsEscape(t *testing.T) {
	for _, name := range []string{"../evil", "a/../../evil", "/abs/evil"} {
		raw := writeTar(t, map[string]string{name: "boom"})
		err := ExtractTar(tar.NewReader(bytes.NewReader(raw)), memfs.New())
		if err == nil {
			t.Errorf("ExtractTar accepted escaping entry %q", name)
		}
	}
}

func TestExtractTarSkipsSymlinks(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{Name: "link", Linkname: "/etc/passwd", Typeflag: tar.TypeSymlink}); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	fs := memfs.New()
	if err := ExtractTar(tar.NewReader(&buf), fs); err != nil {
		t.Fatalf("ExtractTar: %v", err)
	}
	if _, err := fs.Lstat("link"); err == nil {
		t.Error("symlink entry was materialised")
	}
}

func TestExtractTarTruncated(t *testing.T) {
	raw := writeTar(t, map[string]string{"foo": strings.Repeat("x", 4096)})
	err := ExtractTar(tar.NewReader(bytes.NewReader(raw[:len(raw)-2048])), memfs.New())
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("ExtractTar(truncated) = %v, want ErrCorrupt", err)
	}
}

func TestDecompressGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	r, err := Decompress(TarGzFormat, &buf)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Errorf("decompressed = %q", got)
	}
}

func TestDecompressGarbage(t *testing.T) {
	if _, err := Decompress(TarGzFormat, strings.NewReader("not gzip")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Decompress garbage = %v, want ErrCorrupt", err)
	}
}
