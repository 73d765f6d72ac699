// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest defines the static package manifest and its TOML decoding.
package manifest

import (
	"io"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

var (
	// ErrManifestInvalid is returned when a decoded manifest fails validation.
	ErrManifestInvalid = errors.New("invalid package manifest")
	// ErrNoSourcesForTarget is returned when a manifest declares no sources
	// for the requested (os, arch) pair.
	ErrNoSourcesForTarget = errors.New("no sources found for target")
)

// Source is a single downloadable input of a package.
type Source struct {
	URL      string `toml:"url"`
	Checksum string `toml:"checksum"`
}

// Package is an immutable manifest value. Sources maps OS to architecture to
// an ordered list of sources.
type Package struct {
	Name        string                         `toml:"name"`
	Version     string                         `toml:"version"`
	Description string                         `toml:"description"`
	Sources     map[string]map[string][]Source `toml:"sources"`
	Install     string                         `toml:"install"`
}

// ID returns the package identity.
func (p *Package) ID() ID {
	return ID{Name: p.Name, Version: p.Version}
}

// SourcesFor returns the ordered source list declared for the given target.
func (p *Package) SourcesFor(os, arch string) ([]Source, error) {
	targets, ok := p.Sources[os]
	if ok {
		if sources := targets[arch]; len(sources) > 0 {
			return sources, nil
		}
	}
	return nil, errors.Wrapf(ErrNoSourcesForTarget, "%s.%s", os, arch)
}

// Validate checks the structural invariants of a decoded manifest.
func (p *Package) Validate() error {
	if p.Name == "" {
		return errors.Wrap(ErrManifestInvalid, "name must not be empty")
	}
	if p.Version == "" {
		return errors.Wrap(ErrManifestInvalid, "version must not be empty")
	}
	for os, targets := range p.Sources {
		for arch, sources := range targets {
			for _, s := range sources {
				if s.URL == "" || s.Checksum == "" {
					return errors.Wrapf(ErrManifestInvalid, "source for %s.%s must declare url and checksum", os, arch)
				}
			}
		}
	}
	return nil
}

// Decode reads and validates a TOML manifest.
func Decode(r io.Reader) (*Package, error) {
	var p Package
	if err := toml.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(ErrManifestInvalid, err.Error())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
