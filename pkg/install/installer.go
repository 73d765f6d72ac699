// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package install

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"

	"github.com/pkgsmith/pkgsmith/internal/glob"
	"github.com/pkgsmith/pkgsmith/internal/httpx"
	"github.com/pkgsmith/pkgsmith/pkg/download"
	"github.com/pkgsmith/pkgsmith/pkg/manifest"
	"github.com/pkgsmith/pkgsmith/pkg/pkgscript"
	"github.com/pkgsmith/pkgsmith/pkg/store"
)

var (
	// ErrNoMatch is returned when a PACKAGE glob matches nothing.
	ErrNoMatch = glob.ErrNoMatch
	// ErrMissingSource is returned when a PACKAGE path does not name a
	// regular file in the staging directory.
	ErrMissingSource = errors.New("no such source file")
	// ErrInvalidPublishTarget rejects PUBLISH targets with path separators.
	ErrInvalidPublishTarget = errors.New("publish target must contain only the filename")
	// ErrPublishOfUnpackaged rejects PUBLISH of a name no PACKAGE produced.
	ErrPublishOfUnpackaged = errors.New("unable to publish unknown target")
	// ErrChecksumMismatch is returned when a fetched source does not hash to
	// its declared checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Opts selects the target platform and the stage ceiling for one run.
type Opts struct {
	OS    string
	Arch  string
	Force bool
	Stage Stage
}

// staged couples a resolved staging path with its pending content record.
type staged struct {
	path    string
	content store.Content
}

// Installer runs the four-stage pipeline for a single package. The root
// filesystem is the installation root; tmp is a scratch filesystem holding
// staged sources and is cleared when the run ends.
type Installer struct {
	pkg    *manifest.Package
	root   billy.Filesystem
	tmp    billy.Filesystem
	client httpx.BasicClient
	events chan Event
	staged []staged
}

// New prepares an installer and hands back the event channel its run will
// report on. The channel is bounded; the consumer must keep draining it for
// the duration of the run.
func New(pkg *manifest.Package, root, tmp billy.Filesystem, client httpx.BasicClient) (*Installer, <-chan Event) {
	events := make(chan Event, 10)
	return &Installer{pkg: pkg, root: root, tmp: tmp, client: client, events: events}, events
}

func (i *Installer) send(ctx context.Context, ev Event) error {
	select {
	case i.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Installer) info(ctx context.Context, text string) error {
	return i.send(ctx, Event{Kind: Message, Type: Info, Text: text})
}

// Run executes stages in order up to and including opts.Stage and returns the
// content records produced by the script. The event channel is closed when
// the run ends; staging state is cleared on every exit.
func (i *Installer) Run(ctx context.Context, opts Opts) ([]store.Content, error) {
	defer close(i.events)
	defer i.cleanup()

	stages := []struct {
		stage Stage
		fn    func(context.Context, Opts) error
	}{
		{StageFetchSources, i.fetchSources},
		{StageEvalScript, i.evalScript},
		{StagePackage, i.packageContent},
		{StagePublish, i.publish},
	}
	for _, st := range stages {
		if st.stage > opts.Stage {
			break
		}
		if err := i.send(ctx, Event{Kind: EnterStage, Stage: st.stage}); err != nil {
			return nil, err
		}
		if err := st.fn(ctx, opts); err != nil {
			return nil, err
		}
		if err := i.send(ctx, Event{Kind: ExitStage, Stage: st.stage}); err != nil {
			return nil, err
		}
	}

	content := make([]store.Content, 0, len(i.staged))
	for _, st := range i.staged {
		content = append(content, st.content)
	}
	return content, nil
}

func (i *Installer) cleanup() {
	entries, err := i.tmp.ReadDir("/")
	if err != nil {
		return
	}
	for _, e := range entries {
		util.RemoveAll(i.tmp, e.Name())
	}
}

func (i *Installer) fetchSources(ctx context.Context, opts Opts) error {
	sources, err := i.pkg.SourcesFor(opts.OS, opts.Arch)
	if err != nil {
		return err
	}
	if err := i.tmp.MkdirAll("sources", 0o755); err != nil {
		return err
	}
	dest, err := i.tmp.Chroot("sources")
	if err != nil {
		return err
	}
	for _, source := range sources {
		if err := i.info(ctx, "downloading "+source.URL); err != nil {
			return err
		}
		checksum, err := download.Fetch(ctx, i.client, source.URL, dest)
		if err != nil {
			return err
		}
		if checksum != source.Checksum {
			return errors.Wrapf(ErrChecksumMismatch,
				"for source '%s' (expected: '%s', got: '%s')", source.URL, source.Checksum, checksum)
		}
	}
	return nil
}

// resolveWithinTmp clamps p to a relative path inside the staging root, so
// neither absolute paths nor ".." runs can reach outside it.
func resolveWithinTmp(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func (i *Installer) evalScript(ctx context.Context, _ Opts) error {
	if err := i.tmp.MkdirAll("output/bin", 0o755); err != nil {
		return err
	}
	script, err := pkgscript.Parse(i.pkg.Install)
	if err != nil {
		return err
	}
	for _, instr := range script.Body {
		if err := i.info(ctx, instr.String()); err != nil {
			return err
		}
		switch instr := instr.(type) {
		case pkgscript.PackageInstruction:
			if err := i.evalPackage(instr); err != nil {
				return err
			}
		case pkgscript.PublishInstruction:
			if err := i.evalPublish(instr); err != nil {
				return err
			}
		}
	}
	return nil
}

func (i *Installer) evalPackage(instr pkgscript.PackageInstruction) error {
	source := resolveWithinTmp(instr.Source)
	if strings.ContainsRune(source, '*') {
		resolved, err := glob.FindFirst(i.tmp, source)
		if err != nil {
			return err
		}
		source = resolved
	}
	fi, err := i.tmp.Lstat(source)
	if err != nil {
		return errors.Wrapf(ErrMissingSource, "%s", instr.Source)
	}
	if !fi.Mode().IsRegular() {
		return errors.Wrapf(ErrMissingSource, "%s is not a regular file", instr.Source)
	}
	filename := instr.Target
	if filename == "" {
		filename = path.Base(source)
	}
	data, err := util.ReadFile(i.tmp, source)
	if err != nil {
		return errors.Wrapf(err, "reading %s", source)
	}
	sum := sha256.Sum256(data)
	entry := staged{
		path: source,
		content: store.Content{
			Checksum: hex.EncodeToString(sum[:]),
			Filename: filename,
			Type:     store.Executable,
		},
	}
	// The content map is keyed by resolved path: packaging the same path
	// again replaces its record in place.
	for idx := range i.staged {
		if i.staged[idx].path == source {
			i.staged[idx] = entry
			return nil
		}
	}
	i.staged = append(i.staged, entry)
	return nil
}

func (i *Installer) evalPublish(instr pkgscript.PublishInstruction) error {
	if strings.ContainsRune(instr.Target, '/') || strings.ContainsRune(instr.Target, os.PathSeparator) {
		return errors.Wrapf(ErrInvalidPublishTarget, "%s", instr.Target)
	}
	for idx := range i.staged {
		if i.staged[idx].content.Filename == instr.Target {
			i.staged[idx].content.Published = true
			return nil
		}
	}
	return errors.Wrapf(ErrPublishOfUnpackaged, "%s", instr.Target)
}

func (i *Installer) packageContent(ctx context.Context, _ Opts) error {
	if err := i.root.MkdirAll("content", 0o755); err != nil {
		return err
	}
	for _, st := range i.staged {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := i.tmp.Open(st.path)
		if err != nil {
			return errors.Wrapf(err, "opening staged %s", st.path)
		}
		mode := os.FileMode(0o644)
		if st.content.Type == store.Executable {
			mode = 0o755
		}
		dst, err := i.root.OpenFile(path.Join("content", st.content.Checksum), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
		if err != nil {
			src.Close()
			return errors.Wrapf(err, "creating blob %s", st.content.Checksum)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errors.Wrapf(err, "writing blob %s", st.content.Checksum)
		}
	}
	return nil
}

func (i *Installer) publish(ctx context.Context, _ Opts) error {
	if err := i.root.MkdirAll("bin", 0o755); err != nil {
		return err
	}
	for _, st := range i.staged {
		if !st.content.Published {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		link := path.Join("bin", st.content.Filename)
		if err := i.root.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "unlinking %s", link)
		}
		if err := i.root.Symlink(path.Join("..", "content", st.content.Checksum), link); err != nil {
			return errors.Wrapf(err, "publishing %s", st.content.Filename)
		}
	}
	return nil
}
