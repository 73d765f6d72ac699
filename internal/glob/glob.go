// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package glob resolves single-'*' patterns against a directory listing.
package glob

import (
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"
)

// ErrNoMatch is returned when no directory entry matches the pattern.
var ErrNoMatch = errors.New("no such file found for pattern")

// FindFirst resolves a pattern containing a single '*' against fsys. The part
// before the '*' is treated as a literal prefix; the parent directory of that
// prefix is listed and the first entry matching the full pattern is returned.
// The '*' does not cross path separators.
func FindFirst(fsys billy.Filesystem, pattern string) (string, error) {
	idx := strings.IndexByte(pattern, '*')
	if idx < 0 {
		return "", errors.Errorf("pattern %q contains no glob", pattern)
	}
	dir := path.Dir(pattern[:idx])
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(ErrNoMatch, "%s", pattern)
	}
	for _, e := range entries {
		name := path.Join(dir, e.Name())
		ok, err := path.Match(pattern, name)
		if err != nil {
			return "", errors.Wrapf(err, "invalid pattern %q", pattern)
		}
		if ok {
			return name, nil
		}
	}
	return "", errors.Wrapf(ErrNoMatch, "%s", pattern)
}
