// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package fetcher maps a requirement's project name to the seed Links a
// Crawler should start from.
package fetcher

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/wickman/pex/pkg/link"
)

// Fetcher produces the seed Links to crawl for a given project name.
type Fetcher interface {
	URLs(projectName string) ([]*link.Link, error)
}

//nolint:gochecknoglobals // Would be 'const'.
var normalizeRE = regexp.MustCompile(`[-_.]+`)

// Normalize implements the PEP 503 project-name normalization rule.
func Normalize(name string) string {
	return strings.ToLower(normalizeRE.ReplaceAllLiteralString(name, "-"))
}

// IndexFetcher locates packages by combining a PEP 503 simple-repository base
// URL with the normalized project name.
type IndexFetcher struct {
	Index string
}

const DefaultIndex = "https://pypi.org/simple/"

func NewIndexFetcher(index string) *IndexFetcher {
	if index == "" {
		index = DefaultIndex
	}
	return &IndexFetcher{Index: index}
}

func (f *IndexFetcher) URLs(projectName string) ([]*link.Link, error) {
	u, err := url.Parse(f.Index)
	if err != nil {
		return nil, err
	}
	u.Path = path.Join(u.Path, Normalize(projectName)) + "/"
	l, err := link.Wrap(u.String())
	if err != nil {
		return nil, err
	}
	return []*link.Link{l}, nil
}

// RepoFetcher locates packages in a fixed list of base URLs (flat repository
// directories, or a cache directory), regardless of project name.
type RepoFetcher struct {
	Repos []string
}

func NewRepoFetcher(repos ...string) *RepoFetcher {
	return &RepoFetcher{Repos: repos}
}

func (f *RepoFetcher) URLs(string) ([]*link.Link, error) {
	links := make([]*link.Link, 0, len(f.Repos))
	for _, repo := range f.Repos {
		l, err := link.Wrap(repo)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, nil
}

// Collect runs every fetcher's URLs method against projectName and returns
// the concatenated, URL-deduplicated result, preserving fetcher order.
func Collect(fetchers []Fetcher, projectName string) ([]*link.Link, error) {
	seen := make(map[string]bool)
	var out []*link.Link
	for _, f := range fetchers {
		links, err := f.URLs(projectName)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			key := strings.ToLower(l.URL())
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, l)
		}
	}
	return out, nil
}
