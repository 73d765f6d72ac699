// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package hashio provides hashing wrappers over byte streams.
package hashio

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Reader is an io.Reader that feeds every byte read through an incremental
// SHA-256 state. Buffer boundaries and short reads of the underlying reader
// are preserved and nothing is buffered beyond the caller's own reads.
type Reader struct {
	r io.Reader
	h hash.Hash
}

// NewReader wraps r in a checksumming Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, h: sha256.New()}
}

// Read reads from the underlying reader, updating the digest state with
// exactly the bytes transferred.
func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.h.Write(p[:n])
	}
	return n, err
}

// Sum returns the lowercase hex SHA-256 of all bytes read so far. It is
// meaningful once the stream has been fully drained.
func (r *Reader) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}

var _ io.Reader = &Reader{}
