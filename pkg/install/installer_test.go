// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"

	"github.com/pkgsmith/pkgsmith/pkg/manifest"
	"github.com/pkgsmith/pkgsmith/pkg/store"
)

const fooBody = "#!/bin/sh\necho foo"

func fooArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	if err := tw.WriteHeader(&tar.Header{Name: "foo-1.0.0/bin/foo", Mode: 0o755, Size: int64(len(fooBody)), Typeflag: tar.TypeReg}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(fooBody)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func hexSum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// serveArchive exposes raw under /foo-1.0.0.tar.gz and returns a manifest
// declaring it for linux/amd64.
func serveArchive(t *testing.T, raw []byte, script string) (*httptest.Server, *manifest.Package) {
	t.Helper()
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(raw)
	}))
	t.Cleanup(srv.Close)
	pkg := &manifest.Package{
		Name:    "foo",
		Version: "1.0.0",
		Sources: map[string]map[string][]manifest.Source{
			"linux": {"amd64": {{URL: srv.URL + "/foo-1.0.0.tar.gz", Checksum: hexSum(raw)}}},
		},
		Install: script,
	}
	return srv, pkg
}

// drain collects every event until the pipeline closes the channel.
func drain(events <-chan Event) func() []Event {
	done := make(chan []Event, 1)
	go func() {
		var all []Event
		for ev := range events {
			all = append(all, ev)
		}
		done <- all
	}()
	return func() []Event { return <-done }
}

func runPipeline(t *testing.T, pkg *manifest.Package, client *http.Client, opts Opts) (billy.Filesystem, []store.Content, []Event, error) {
	t.Helper()
	root, tmp := memfs.New(), memfs.New()
	ins, events := New(pkg, root, tmp, client)
	collect := drain(events)
	content, err := ins.Run(context.Background(), opts)
	return root, content, collect(), err
}

func TestRunFullInstall(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo AS foo\nPUBLISH foo")

	root, content, events, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StagePublish})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	wantSum := hexSum([]byte(fooBody))
	if len(content) != 1 {
		t.Fatalf("content = %+v", content)
	}
	got := content[0]
	if got.Checksum != wantSum || got.Filename != "foo" || !got.Published || got.Type != store.Executable {
		t.Errorf("content record = %+v", got)
	}

	blob, err := util.ReadFile(root, "content/"+wantSum)
	if err != nil {
		t.Fatalf("blob: %v", err)
	}
	if string(blob) != fooBody {
		t.Errorf("blob bytes = %q", blob)
	}
	target, err := root.Readlink("bin/foo")
	if err != nil {
		t.Fatalf("bin/foo: %v", err)
	}
	if target != "../content/"+wantSum {
		t.Errorf("symlink target = %q", target)
	}

	assertEventOrder(t, events, []Stage{StageFetchSources, StageEvalScript, StagePackage, StagePublish})
}

// assertEventOrder checks EnterStage(s) … Message* … ExitStage(s) per stage.
func assertEventOrder(t *testing.T, events []Event, stages []Stage) {
	t.Helper()
	idx := 0
	for _, stage := range stages {
		if idx >= len(events) {
			t.Fatalf("events exhausted at %d, want EnterStage(%v)", idx, stage)
		}
		if events[idx].Kind != EnterStage || events[idx].Stage != stage {
			t.Fatalf("event %d = %+v, want EnterStage(%v)", idx, events[idx], stage)
		}
		idx++
		for idx < len(events) && events[idx].Kind == Message {
			idx++
		}
		if idx >= len(events) || events[idx].Kind != ExitStage || events[idx].Stage != stage {
			t.Fatalf("event %d: missing ExitStage(%v)", idx, stage)
		}
		idx++
	}
	if idx != len(events) {
		t.Errorf("%d trailing events: %+v", len(events)-idx, events[idx:])
	}
}

func TestRunStageCeiling(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo AS foo\nPUBLISH foo")

	root, _, events, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageFetchSources})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := root.Lstat("content"); err == nil {
		t.Error("content/ created below the stage ceiling")
	}
	assertEventOrder(t, events, []Stage{StageFetchSources})
}

func TestRunNoSourcesForTarget(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("network contacted despite missing target")
	}))
	defer srv.Close()
	pkg := &manifest.Package{Name: "foo", Version: "1.0.0", Sources: map[string]map[string][]manifest.Source{}}

	_, _, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "plan9", Arch: "386", Stage: StagePublish})
	if !errors.Is(err, manifest.ErrNoSourcesForTarget) {
		t.Errorf("Run = %v, want ErrNoSourcesForTarget", err)
	}
}

func TestRunChecksumMismatch(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo")
	pkg.Sources["linux"]["amd64"][0].Checksum = "zzz"

	root, _, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StagePublish})
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("Run = %v, want ErrChecksumMismatch", err)
	}
	if _, err := root.Lstat("content"); err == nil {
		t.Error("content blob written despite checksum mismatch")
	}
}

func TestRunGlobResolution(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/fo* AS foo\nPUBLISH foo")

	_, content, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(content) != 1 || content[0].Filename != "foo" {
		t.Errorf("content = %+v", content)
	}
}

func TestRunGlobNoMatch(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/bar-*/bin/bar")

	_, _, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript})
	if !errors.Is(err, ErrNoMatch) {
		t.Errorf("Run = %v, want ErrNoMatch", err)
	}
}

func TestRunGlobPrefixEscapeStaysInTmp(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE ../../sources/foo-1.0.0/bin/fo* AS foo")

	// The traversal run is clamped to the staging root, so the glob still
	// resolves to the extracted file.
	_, content, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(content) != 1 || content[0].Checksum != hexSum([]byte(fooBody)) {
		t.Errorf("content = %+v", content)
	}
}

func TestRunMissingSource(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/nonexistent")

	_, _, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript})
	if !errors.Is(err, ErrMissingSource) {
		t.Errorf("Run = %v, want ErrMissingSource", err)
	}
}

func TestRunPublishErrors(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		wantErr error
	}{
		{"separator in target", "PACKAGE sources/foo-1.0.0/bin/foo AS foo\nPUBLISH bin/foo", ErrInvalidPublishTarget},
		{"unpackaged target", "PACKAGE sources/foo-1.0.0/bin/foo AS foo\nPUBLISH bar", ErrPublishOfUnpackaged},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := fooArchive(t)
			srv, pkg := serveArchive(t, raw, tc.script)
			_, _, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript})
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Run = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestRunDefaultFilenameFromBasename(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo\nPUBLISH foo")

	_, content, _, err := runPipeline(t, pkg, srv.Client(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(content) != 1 || content[0].Filename != "foo" || !content[0].Published {
		t.Errorf("content = %+v", content)
	}
}

func TestRunCancellation(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo")

	root, tmp := memfs.New(), memfs.New()
	ins, events := New(pkg, root, tmp, srv.Client())
	collect := drain(events)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ins.Run(ctx, Opts{OS: "linux", Arch: "amd64", Stage: StagePublish})
	collect()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if _, err := root.Lstat("content"); err == nil {
		t.Error("cancelled run materialised content")
	}
}

func TestRunClearsStaging(t *testing.T) {
	raw := fooArchive(t)
	srv, pkg := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo AS foo")

	root, tmp := memfs.New(), memfs.New()
	ins, events := New(pkg, root, tmp, srv.Client())
	collect := drain(events)
	if _, err := ins.Run(context.Background(), Opts{OS: "linux", Arch: "amd64", Stage: StageEvalScript}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	collect()
	entries, err := tmp.ReadDir("/")
	if err == nil && len(entries) != 0 {
		t.Errorf("staging not cleared: %v", entries)
	}
}

func TestRunSharedBlobAcrossPackages(t *testing.T) {
	// Two packages shipping byte-identical executables produce one blob.
	raw := fooArchive(t)
	srvFoo, pkgFoo := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo AS foo\nPUBLISH foo")
	_, pkgBar := serveArchive(t, raw, "PACKAGE sources/foo-1.0.0/bin/foo AS bar\nPUBLISH bar")
	pkgBar.Name = "bar"
	pkgBar.Sources = pkgFoo.Sources

	root := memfs.New()
	for _, pkg := range []*manifest.Package{pkgFoo, pkgBar} {
		ins, events := New(pkg, root, memfs.New(), srvFoo.Client())
		collect := drain(events)
		if _, err := ins.Run(context.Background(), Opts{OS: "linux", Arch: "amd64", Stage: StagePublish}); err != nil {
			t.Fatalf("Run(%s): %v", pkg.Name, err)
		}
		collect()
	}

	entries, err := root.ReadDir("content")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("content/ holds %d blobs, want 1", len(entries))
	}
	for _, link := range []string{"bin/foo", "bin/bar"} {
		if _, err := root.Readlink(link); err != nil {
			t.Errorf("%s missing: %v", link, err)
		}
	}
}
