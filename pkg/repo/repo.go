// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package repo manages git-backed package repositories.
package repo

import (
	"context"
	"io/fs"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	git "github.com/go-git/go-git/v5"
	gitcache "github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"

	"github.com/pkgsmith/pkgsmith/internal/uri"
	"github.com/pkgsmith/pkgsmith/pkg/manifest"
	"github.com/pkgsmith/pkgsmith/pkg/store"
)

var (
	// ErrAlreadyAdded is returned when the repository name is already live.
	ErrAlreadyAdded = errors.New("repository already added")
	// ErrNotAdded is returned when removing a repository that is not live.
	ErrNotAdded = errors.New("repository is not added")
)

// indexFile is the repository's package listing at its root.
type indexFile struct {
	Packages []string `yaml:"packages"`
}

// dirName flattens a repository name into a single path component.
func dirName(name string) string {
	return strings.ReplaceAll(name, "/", "-")
}

// Add clones the repository named by ref under root/repos and returns the
// record to append to the store: the canonical remote, the HEAD hash as the
// version, and every manifest listed in the repository's index.yaml.
func Add(ctx context.Context, root billy.Filesystem, ref string) (*store.Repository, error) {
	remote, err := uri.CanonicalizeRepoURI(ref)
	if err != nil {
		return nil, err
	}
	name := uri.RepoName(remote)

	dir := path.Join("repos", dirName(name))
	if err := root.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	wt, err := root.Chroot(dir)
	if err != nil {
		return nil, err
	}
	dot, err := wt.Chroot(git.GitDirName)
	if err != nil {
		return nil, err
	}
	storer := filesystem.NewStorage(dot, gitcache.NewObjectLRUDefault())
	r, err := git.CloneContext(ctx, storer, wt, &git.CloneOptions{URL: remote, Depth: 1})
	if err != nil {
		return nil, errors.Wrapf(err, "cloning %s", remote)
	}
	head, err := r.Head()
	if err != nil {
		return nil, errors.Wrap(err, "resolving HEAD")
	}

	packages, err := LoadPackages(wt)
	if err != nil {
		return nil, err
	}
	return &store.Repository{
		Name:     name,
		Remote:   remote,
		Version:  head.Hash().String(),
		Packages: packages,
	}, nil
}

// LoadPackages decodes every manifest listed in the repository's index.yaml.
func LoadPackages(wt billy.Filesystem) ([]manifest.Package, error) {
	data, err := util.ReadFile(wt, "index.yaml")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("repository has no index.yaml")
		}
		return nil, errors.Wrap(err, "reading index.yaml")
	}
	var index indexFile
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, errors.Wrap(err, "decoding index.yaml")
	}
	packages := make([]manifest.Package, 0, len(index.Packages))
	for _, p := range index.Packages {
		f, err := wt.Open(p)
		if err != nil {
			return nil, errors.Wrapf(err, "opening manifest %s", p)
		}
		pkg, err := manifest.Decode(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "manifest %s", p)
		}
		packages = append(packages, *pkg)
	}
	return packages, nil
}

// Remove deletes the repository's clone from root/repos.
func Remove(root billy.Filesystem, name string) error {
	return util.RemoveAll(root, path.Join("repos", dirName(name)))
}

// FindPackage resolves id against the packages carried by live repositories,
// newest repository first. Returns nil when no repository carries it.
func FindPackage(s *store.Store, id manifest.ID) (*manifest.Package, error) {
	repos, err := s.ListRepositories()
	if err != nil {
		return nil, err
	}
	for _, meta := range repos {
		for i := range meta.Packages {
			p := meta.Packages[i]
			if p.Name == id.Name && p.Version == id.Version {
				return &p, nil
			}
		}
	}
	return nil, nil
}
