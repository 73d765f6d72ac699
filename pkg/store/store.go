// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"github.com/pkg/errors"

	"github.com/pkgsmith/pkgsmith/internal/cache"
)

var (
	// ErrAlreadyInstalled is returned when installing a package id that is
	// already live.
	ErrAlreadyInstalled = errors.New("package is already installed")
	// ErrNotInstalled is returned when removing a package id that is not live.
	ErrNotInstalled = errors.New("package is not installed")
)

// PackageMeta is the replayed view of one live installed package.
type PackageMeta struct {
	ID        string
	CreatedAt uint64
	Content   []Content
}

// RepositoryMeta is the replayed view of one live added repository.
type RepositoryMeta struct {
	Repository
	CreatedAt uint64
}

// Store projects the semantic view over a Storage. Replay results are cached
// per root digest; the cache is dropped on every successful Add.
type Store struct {
	storage *Storage
	cache   cache.Cache
}

// NewStore wraps a Storage.
func NewStore(storage *Storage) *Store {
	return &Store{storage: storage, cache: &cache.CoalescingMemoryCache{}}
}

// Add links tx to the current chain head and persists it.
func (s *Store) Add(tx *Transaction) (string, error) {
	root, err := s.storage.Root()
	if err != nil {
		return "", err
	}
	tx.Before = root
	digest, err := s.storage.Add(tx)
	if err != nil {
		return "", err
	}
	s.cache.Clear()
	return digest, nil
}

// ListInstalled replays the chain newest-first and returns the live installed
// packages in newest-first installation order.
func (s *Store) ListInstalled() ([]PackageMeta, error) {
	root, err := s.storage.Root()
	if err != nil {
		return nil, err
	}
	v, err := s.cache.GetOrSet("installed\x00"+root, func() (any, error) {
		seen := make(map[string]bool)
		var installed []PackageMeta
		err := s.storage.Walk(func(_ string, tx *Transaction) (bool, error) {
			switch tx.Kind {
			case KindInstallPackage:
				if !seen[tx.PackageID] {
					seen[tx.PackageID] = true
					installed = append(installed, PackageMeta{
						ID:        tx.PackageID,
						CreatedAt: tx.CreatedAt,
						Content:   tx.Content,
					})
				}
			case KindRemovePackage:
				seen[tx.PackageID] = true
			}
			return true, nil
		})
		return installed, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]PackageMeta), nil
}

// FindInstalledPackage returns the live install of id, or nil when id is not
// installed.
func (s *Store) FindInstalledPackage(id string) (*PackageMeta, error) {
	var found *PackageMeta
	err := s.storage.Walk(func(_ string, tx *Transaction) (bool, error) {
		switch tx.Kind {
		case KindInstallPackage:
			if tx.PackageID == id {
				found = &PackageMeta{ID: tx.PackageID, CreatedAt: tx.CreatedAt, Content: tx.Content}
				return false, nil
			}
		case KindRemovePackage:
			if tx.PackageID == id {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// ListRepositories replays the chain and returns the live added repositories
// in newest-first order.
func (s *Store) ListRepositories() ([]RepositoryMeta, error) {
	root, err := s.storage.Root()
	if err != nil {
		return nil, err
	}
	v, err := s.cache.GetOrSet("repositories\x00"+root, func() (any, error) {
		seen := make(map[string]bool)
		var repos []RepositoryMeta
		err := s.storage.Walk(func(_ string, tx *Transaction) (bool, error) {
			switch tx.Kind {
			case KindAddRepository:
				if !seen[tx.Repository.Name] {
					seen[tx.Repository.Name] = true
					repos = append(repos, RepositoryMeta{Repository: *tx.Repository, CreatedAt: tx.CreatedAt})
				}
			case KindRemoveRepository:
				seen[tx.RepoName] = true
			}
			return true, nil
		})
		return repos, err
	})
	if err != nil {
		return nil, err
	}
	return v.([]RepositoryMeta), nil
}

// FindAddedRepository returns the live repository named name, or nil.
func (s *Store) FindAddedRepository(name string) (*RepositoryMeta, error) {
	var found *RepositoryMeta
	err := s.storage.Walk(func(_ string, tx *Transaction) (bool, error) {
		switch tx.Kind {
		case KindAddRepository:
			if tx.Repository.Name == name {
				found = &RepositoryMeta{Repository: *tx.Repository, CreatedAt: tx.CreatedAt}
				return false, nil
			}
		case KindRemoveRepository:
			if tx.RepoName == name {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
