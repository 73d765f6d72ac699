// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the append-only, content-addressed transaction log
// and the queries derived from it.
package store

import (
	"time"

	"github.com/pkgsmith/pkgsmith/pkg/manifest"
)

// ContentType classifies a content blob.
type ContentType uint8

const (
	// Executable is currently the only content type.
	Executable ContentType = iota
)

// Content describes one materialised file of an installed package.
type Content struct {
	Checksum  string
	Filename  string
	Type      ContentType
	Published bool
}

// Kind discriminates transaction payloads. The tag values are part of the
// on-disk encoding and must not be reordered.
type Kind uint8

const (
	KindInstallPackage Kind = iota
	KindRemovePackage
	KindAddRepository
	KindRemoveRepository
)

// Repository is the payload of an AddRepository transaction.
type Repository struct {
	Name     string
	Remote   string
	Version  string
	Packages []manifest.Package
}

// Transaction is one immutable record in the chain. Before holds the digest
// of the preceding transaction and is empty for the first. Which payload
// fields are meaningful depends on Kind.
type Transaction struct {
	Kind      Kind
	Before    string
	CreatedAt uint64

	PackageID  string      // KindInstallPackage, KindRemovePackage
	Content    []Content   // KindInstallPackage
	Repository *Repository // KindAddRepository
	RepoName   string      // KindRemoveRepository
}

func newTransaction(kind Kind) *Transaction {
	return &Transaction{Kind: kind, CreatedAt: uint64(time.Now().Unix())}
}

// NewInstall builds an InstallPackage transaction.
func NewInstall(id manifest.ID, content []Content) *Transaction {
	tx := newTransaction(KindInstallPackage)
	tx.PackageID = id.String()
	tx.Content = content
	return tx
}

// NewRemove builds a RemovePackage transaction.
func NewRemove(id manifest.ID) *Transaction {
	tx := newTransaction(KindRemovePackage)
	tx.PackageID = id.String()
	return tx
}

// NewAddRepository builds an AddRepository transaction.
func NewAddRepository(repo Repository) *Transaction {
	tx := newTransaction(KindAddRepository)
	tx.Repository = &repo
	return tx
}

// NewRemoveRepository builds a RemoveRepository transaction.
func NewRemoveRepository(name string) *Transaction {
	tx := newTransaction(KindRemoveRepository)
	tx.RepoName = name
	return tx
}
