// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"encoding/binary"
	"sort"

	"github.com/pkg/errors"

	"github.com/pkgsmith/pkgsmith/pkg/manifest"
)

// The on-disk transaction encoding is deterministic so that a transaction's
// digest is stable: varint integers, length-prefixed UTF-8 strings, a single
// tag byte for options and enums, map keys in sorted order.

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) uvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	e.buf.Write(tmp[:n])
}

func (e *encoder) string(s string) {
	e.uvarint(uint64(len(s)))
	e.buf.WriteString(s)
}

func (e *encoder) bool(b bool) {
	if b {
		e.buf.WriteByte(1)
	} else {
		e.buf.WriteByte(0)
	}
}

func (e *encoder) option(s string) {
	if s == "" {
		e.buf.WriteByte(0)
		return
	}
	e.buf.WriteByte(1)
	e.string(s)
}

func (e *encoder) content(c Content) {
	e.string(c.Checksum)
	e.string(c.Filename)
	e.buf.WriteByte(byte(c.Type))
	e.bool(c.Published)
}

func (e *encoder) pkg(p manifest.Package) {
	e.string(p.Name)
	e.string(p.Version)
	e.string(p.Description)
	e.string(p.Install)
	oses := make([]string, 0, len(p.Sources))
	for os := range p.Sources {
		oses = append(oses, os)
	}
	sort.Strings(oses)
	e.uvarint(uint64(len(oses)))
	for _, os := range oses {
		e.string(os)
		archs := make([]string, 0, len(p.Sources[os]))
		for arch := range p.Sources[os] {
			archs = append(archs, arch)
		}
		sort.Strings(archs)
		e.uvarint(uint64(len(archs)))
		for _, arch := range archs {
			e.string(arch)
			sources := p.Sources[os][arch]
			e.uvarint(uint64(len(sources)))
			for _, s := range sources {
				e.string(s.URL)
				e.string(s.Checksum)
			}
		}
	}
}

// Encode serialises tx into its canonical byte sequence.
func Encode(tx *Transaction) ([]byte, error) {
	var e encoder
	e.buf.WriteByte(byte(tx.Kind))
	e.option(tx.Before)
	e.uvarint(tx.CreatedAt)
	switch tx.Kind {
	case KindInstallPackage:
		e.string(tx.PackageID)
		e.uvarint(uint64(len(tx.Content)))
		for _, c := range tx.Content {
			e.content(c)
		}
	case KindRemovePackage:
		e.string(tx.PackageID)
	case KindAddRepository:
		if tx.Repository == nil {
			return nil, errors.New("add-repository transaction without repository")
		}
		e.string(tx.Repository.Name)
		e.string(tx.Repository.Remote)
		e.string(tx.Repository.Version)
		e.uvarint(uint64(len(tx.Repository.Packages)))
		for _, p := range tx.Repository.Packages {
			e.pkg(p)
		}
	case KindRemoveRepository:
		e.string(tx.RepoName)
	default:
		return nil, errors.Errorf("unknown transaction kind %d", tx.Kind)
	}
	return e.buf.Bytes(), nil
}

type decoder struct {
	data []byte
	pos  int
}

var errTruncated = errors.New("truncated transaction")

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, errTruncated
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) uvarint() (uint64, error) {
	v, n := binary.Uvarint(d.data[d.pos:])
	if n <= 0 {
		return 0, errTruncated
	}
	d.pos += n
	return v, nil
}

func (d *decoder) string() (string, error) {
	n, err := d.uvarint()
	if err != nil {
		return "", err
	}
	if uint64(len(d.data)-d.pos) < n {
		return "", errTruncated
	}
	s := string(d.data[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

func (d *decoder) bool() (bool, error) {
	b, err := d.byte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("invalid bool tag %d", b)
	}
}

func (d *decoder) option() (string, error) {
	present, err := d.bool()
	if err != nil || !present {
		return "", err
	}
	return d.string()
}

func (d *decoder) content() (Content, error) {
	var c Content
	var err error
	if c.Checksum, err = d.string(); err != nil {
		return c, err
	}
	if c.Filename, err = d.string(); err != nil {
		return c, err
	}
	t, err := d.byte()
	if err != nil {
		return c, err
	}
	c.Type = ContentType(t)
	c.Published, err = d.bool()
	return c, err
}

func (d *decoder) pkg() (manifest.Package, error) {
	var p manifest.Package
	var err error
	if p.Name, err = d.string(); err != nil {
		return p, err
	}
	if p.Version, err = d.string(); err != nil {
		return p, err
	}
	if p.Description, err = d.string(); err != nil {
		return p, err
	}
	if p.Install, err = d.string(); err != nil {
		return p, err
	}
	nos, err := d.uvarint()
	if err != nil {
		return p, err
	}
	if nos > 0 {
		p.Sources = make(map[string]map[string][]manifest.Source, nos)
	}
	for i := uint64(0); i < nos; i++ {
		os, err := d.string()
		if err != nil {
			return p, err
		}
		narch, err := d.uvarint()
		if err != nil {
			return p, err
		}
		targets := make(map[string][]manifest.Source, narch)
		for j := uint64(0); j < narch; j++ {
			arch, err := d.string()
			if err != nil {
				return p, err
			}
			nsrc, err := d.uvarint()
			if err != nil {
				return p, err
			}
			sources := make([]manifest.Source, 0, nsrc)
			for k := uint64(0); k < nsrc; k++ {
				var s manifest.Source
				if s.URL, err = d.string(); err != nil {
					return p, err
				}
				if s.Checksum, err = d.string(); err != nil {
					return p, err
				}
				sources = append(sources, s)
			}
			targets[arch] = sources
		}
		p.Sources[os] = targets
	}
	return p, nil
}

// Decode parses a canonical byte sequence back into a Transaction. Trailing
// bytes are an error: anything that does not round-trip bytewise would break
// the digest-equals-filename invariant.
func Decode(data []byte) (*Transaction, error) {
	d := decoder{data: data}
	kind, err := d.byte()
	if err != nil {
		return nil, err
	}
	tx := &Transaction{Kind: Kind(kind)}
	if tx.Before, err = d.option(); err != nil {
		return nil, err
	}
	if tx.CreatedAt, err = d.uvarint(); err != nil {
		return nil, err
	}
	switch tx.Kind {
	case KindInstallPackage:
		if tx.PackageID, err = d.string(); err != nil {
			return nil, err
		}
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < n; i++ {
			c, err := d.content()
			if err != nil {
				return nil, err
			}
			tx.Content = append(tx.Content, c)
		}
	case KindRemovePackage:
		if tx.PackageID, err = d.string(); err != nil {
			return nil, err
		}
	case KindAddRepository:
		repo := &Repository{}
		if repo.Name, err = d.string(); err != nil {
			return nil, err
		}
		if repo.Remote, err = d.string(); err != nil {
			return nil, err
		}
		if repo.Version, err = d.string(); err != nil {
			return nil, err
		}
		n, err := d.uvarint()
		if err != nil {
			return nil, err
		}
		for i := uint64(0); i < n; i++ {
			p, err := d.pkg()
			if err != nil {
				return nil, err
			}
			repo.Packages = append(repo.Packages, p)
		}
		tx.Repository = repo
	case KindRemoveRepository:
		if tx.RepoName, err = d.string(); err != nil {
			return nil, err
		}
	default:
		return nil, errors.Errorf("unknown transaction kind %d", kind)
	}
	if d.pos != len(data) {
		return nil, errors.Errorf("trailing bytes after transaction (%d of %d consumed)", d.pos, len(data))
	}
	return tx, nil
}
