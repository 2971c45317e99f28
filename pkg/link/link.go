// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package link represents a single URL or local-filesystem reference to a
// distribution archive, discovered while crawling an index or parsed out of a
// requirements file.
package link

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Link is a normalized reference to a file: either a URL (http, https, or
// explicit file://) or a bare local filesystem path.
type Link struct {
	raw string
	u   *url.URL
}

// Wrap parses raw as a Link.  A bare path with no scheme (e.g. "./dist/foo.whl"
// or "/abs/path/foo.tar.gz") is treated as a local path.
func Wrap(raw string) (*Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("link.Wrap: empty link")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("link.Wrap: %w", err)
	}
	return &Link{raw: raw, u: u}, nil
}

// MustWrap is like Wrap but panics on error; useful for static test fixtures.
func MustWrap(raw string) *Link {
	l, err := Wrap(raw)
	if err != nil {
		panic(err)
	}
	return l
}

// URL returns the link as a string, suitable for display or re-parsing.
func (l *Link) URL() string {
	return l.raw
}

// Scheme returns the URL scheme, or "" for a bare local path.
func (l *Link) Scheme() string {
	return l.u.Scheme
}

// IsLocal reports whether this Link refers to a path on the local filesystem:
// either a bare path, or an explicit file:// URL.
func (l *Link) IsLocal() bool {
	return l.u.Scheme == "" || l.u.Scheme == "file"
}

// IsRemote reports whether this Link must be fetched over the network.
func (l *Link) IsRemote() bool {
	return !l.IsLocal()
}

// LocalPath returns the filesystem path this Link refers to, without any URL
// fragment.  It is only meaningful when IsLocal is true.
func (l *Link) LocalPath() string {
	if l.u.Scheme == "file" {
		return l.u.Path
	}
	if i := strings.IndexByte(l.raw, '#'); i >= 0 {
		return l.raw[:i]
	}
	return l.raw
}

// Filename returns the basename of the link's path, with any URL fragment or
// query string stripped.
func (l *Link) Filename() string {
	return path.Base(l.u.Path)
}

// Fragment returns the URL fragment (e.g. "sha256=deadbeef..."), if any.
func (l *Link) Fragment() string {
	return l.u.Fragment
}

// Equal reports whether two Links refer to the same resource, comparing by
// normalized URL rather than by raw string (so "http://x/y" and "HTTP://X/y"
// are equal, but differing fragments are not considered -- a fragment is
// metadata about the referenced content, not part of its identity).
func (l *Link) Equal(other *Link) bool {
	if other == nil {
		return false
	}
	a, b := *l.u, *other.u
	a.Fragment, b.Fragment = "", ""
	return strings.EqualFold(a.String(), b.String())
}

func (l *Link) String() string {
	return l.raw
}
