// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pkg/errors"
)

// ErrCorruption is returned when a transaction file fails self-verification
// or cannot be decoded.
var ErrCorruption = errors.New("store corruption")

// Storage is the byte-level layer over the store directory: one file per
// transaction named by the SHA-256 of its bytes, plus the mutable root
// pointer file.
type Storage struct {
	fs billy.Filesystem
}

// NewStorage returns a Storage over the given store directory.
func NewStorage(fsys billy.Filesystem) *Storage {
	return &Storage{fs: fsys}
}

// Root returns the digest of the newest transaction, or "" when the store is
// empty.
func (s *Storage) Root() (string, error) {
	data, err := util.ReadFile(s.fs, "root")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", errors.Wrap(err, "reading root pointer")
	}
	return strings.TrimSpace(string(data)), nil
}

// Read loads and verifies the transaction stored under digest.
func (s *Storage) Read(digest string) (*Transaction, error) {
	data, err := util.ReadFile(s.fs, digest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Errorf("transaction '%s' does not exist", digest)
		}
		return nil, errors.Wrapf(err, "reading transaction '%s'", digest)
	}
	sum := sha256.Sum256(data)
	if actual := hex.EncodeToString(sum[:]); actual != digest {
		return nil, errors.Wrapf(ErrCorruption, "checksum mismatch (expected: '%s', got: '%s')", digest, actual)
	}
	tx, err := Decode(data)
	if err != nil {
		return nil, errors.Wrapf(ErrCorruption, "decoding transaction '%s': %s", digest, err)
	}
	return tx, nil
}

// Add persists tx under its digest and then moves the root pointer. The
// pointer is only updated after the transaction file has been written.
func (s *Storage) Add(tx *Transaction) (string, error) {
	data, err := Encode(tx)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if err := util.WriteFile(s.fs, digest, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing transaction '%s'", digest)
	}
	if err := util.WriteFile(s.fs, "root.next", []byte(digest), 0o644); err != nil {
		return "", errors.Wrap(err, "writing root pointer")
	}
	// Rename is atomic on the real filesystem; in-memory filesystems refuse
	// to rename over an existing target, so clear it first on failure.
	if err := s.fs.Rename("root.next", "root"); err != nil {
		if err := s.fs.Remove("root"); err != nil {
			return "", errors.Wrap(err, "replacing root pointer")
		}
		if err := s.fs.Rename("root.next", "root"); err != nil {
			return "", errors.Wrap(err, "replacing root pointer")
		}
	}
	return digest, nil
}

// Walk visits transactions newest-first, following each Before link. The
// visit callback returns whether to continue.
func (s *Storage) Walk(visit func(digest string, tx *Transaction) (bool, error)) error {
	digest, err := s.Root()
	if err != nil {
		return err
	}
	for digest != "" {
		tx, err := s.Read(digest)
		if err != nil {
			return err
		}
		cont, err := visit(digest, tx)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		digest = tx.Before
	}
	return nil
}
