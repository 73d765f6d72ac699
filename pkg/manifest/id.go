// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"strings"

	"github.com/pkg/errors"
)

// ID identifies a package as the (name, version) pair, rendered "name@version".
type ID struct {
	Name    string
	Version string
}

func (id ID) String() string {
	return id.Name + "@" + id.Version
}

// ParseID parses a "name@version" identifier.
func ParseID(s string) (ID, error) {
	name, version, ok := strings.Cut(s, "@")
	if !ok || name == "" || version == "" {
		return ID{}, errors.Errorf("invalid package id %q (expected name@version)", s)
	}
	return ID{Name: name, Version: version}, nil
}
