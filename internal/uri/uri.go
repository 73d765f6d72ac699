// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

// Package uri canonicalizes package repository references.
package uri

import (
	"net/url"
	re "regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	// NOTE: This is non-exhaustive and should be expanded as necessary.
	shorthandRE = re.MustCompile(`^[\w-]+/[\w\-\.]+$`)
	githubRE    = re.MustCompile(`(?i)\bgithub(\.com)?[:/]([\w-]+/[\w\-\.]+)`)
)

var errUnsupportedRepo = errors.New("unsupported repo reference")

// CanonicalizeRepoURI parses repo references into a canonical HTTPS git
// remote. A bare "owner/name" shorthand resolves to github.com.
func CanonicalizeRepoURI(ref string) (string, error) {
	if ref == "" {
		return "", errors.New("no repo reference")
	}
	if shorthandRE.MatchString(ref) {
		return "https://github.com/" + strings.TrimSuffix(ref, ".git") + ".git", nil
	}
	if m := githubRE.FindStringSubmatch(ref); m != nil {
		return "https://github.com/" + strings.TrimSuffix(strings.ToLower(m[2]), ".git") + ".git", nil
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" || u.User.String() != "" {
		return "", errors.Wrap(errUnsupportedRepo, ref)
	}
	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	return u.String(), nil
}

// RepoName derives the store-facing repository name from a reference: the
// "owner/name" pair for well-known hosts, the host-relative path otherwise.
func RepoName(ref string) string {
	if m := githubRE.FindStringSubmatch(ref); m != nil {
		return strings.TrimSuffix(m[2], ".git")
	}
	if u, err := url.Parse(ref); err == nil && u.Host != "" {
		return strings.TrimSuffix(strings.TrimPrefix(u.Path, "/"), ".git")
	}
	return strings.TrimSuffix(ref, ".git")
}
