// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"

	"github.com/wickman/pex/pkg/crawl"
	"github.com/wickman/pex/pkg/fetcher"
	"github.com/wickman/pex/pkg/iterate"
	"github.com/wickman/pex/pkg/pkgfile"
)

// ResolverOptionsBuilder accumulates indexes, repositories, allow-lists, and
// precedence from CLI flags and requirements-file directives (§4.11) into
// one immutable ResolverOptions snapshot.
type ResolverOptionsBuilder struct {
	fetchers         []fetcher.Fetcher
	allowAllExternal bool
	allowExternal    map[string]bool
	allowUnverified  map[string]bool
	precedence       []iterate.PackageKind
}

// NewResolverOptionsBuilder returns a builder seeded with the default PyPI
// index and the default wheel/egg/source precedence.
func NewResolverOptionsBuilder() *ResolverOptionsBuilder {
	return &ResolverOptionsBuilder{
		fetchers:        []fetcher.Fetcher{fetcher.NewIndexFetcher("")},
		allowExternal:   make(map[string]bool),
		allowUnverified: make(map[string]bool),
		precedence:      append([]iterate.PackageKind(nil), iterate.DefaultPrecedence...),
	}
}

func (b *ResolverOptionsBuilder) AddIndex(index string) *ResolverOptionsBuilder {
	b.fetchers = append(b.fetchers, fetcher.NewIndexFetcher(index))
	return b
}

// SetIndex replaces whatever sole index is currently configured, dropping
// every other IndexFetcher but keeping repository fetchers -- the effect of
// "-i"/"--index-url", as distinct from "--extra-index-url" (AddIndex).
func (b *ResolverOptionsBuilder) SetIndex(index string) *ResolverOptionsBuilder {
	b.ClearIndices()
	return b.AddIndex(index)
}

func (b *ResolverOptionsBuilder) AddRepository(repo string) *ResolverOptionsBuilder {
	b.fetchers = append(b.fetchers, fetcher.NewRepoFetcher(repo))
	return b
}

// ClearIndices drops every IndexFetcher, keeping repository (find-links)
// fetchers -- the effect of a "-i" seen after repositories were already
// added, or of --no-index.
func (b *ResolverOptionsBuilder) ClearIndices() *ResolverOptionsBuilder {
	var kept []fetcher.Fetcher
	for _, f := range b.fetchers {
		if _, ok := f.(*fetcher.IndexFetcher); !ok {
			kept = append(kept, f)
		}
	}
	b.fetchers = kept
	return b
}

func (b *ResolverOptionsBuilder) AllowAllExternal() *ResolverOptionsBuilder {
	b.allowAllExternal = true
	return b
}

func (b *ResolverOptionsBuilder) AllowExternal(name string) *ResolverOptionsBuilder {
	b.allowExternal[fetcher.Normalize(name)] = true
	return b
}

// AllowUnverified is recorded but never consulted; see SPEC_FULL.md's §9
// open-question decision for --allow-unverified.
func (b *ResolverOptionsBuilder) AllowUnverified(name string) *ResolverOptionsBuilder {
	b.allowUnverified[fetcher.Normalize(name)] = true
	return b
}

// NoUseWheel removes Wheel from the precedence, so the resolver never
// selects a pre-built wheel even when one is available.
func (b *ResolverOptionsBuilder) NoUseWheel() *ResolverOptionsBuilder {
	var kept []iterate.PackageKind
	for _, k := range b.precedence {
		if k != iterate.KindWheel {
			kept = append(kept, k)
		}
	}
	b.precedence = kept
	return b
}

// Build freezes the accumulated options into an immutable snapshot.
func (b *ResolverOptionsBuilder) Build() *ResolverOptions {
	return &ResolverOptions{
		Fetchers:         append([]fetcher.Fetcher(nil), b.fetchers...),
		Precedence:       append([]iterate.PackageKind(nil), b.precedence...),
		AllowAllExternal: b.allowAllExternal,
		allowExternal:    copySet(b.allowExternal),
		allowUnverified:  copySet(b.allowUnverified),
	}
}

// ResolverOptions is an immutable configuration snapshot used to build the
// Finder a Resolver searches with.
type ResolverOptions struct {
	Fetchers         []fetcher.Fetcher
	Precedence       []iterate.PackageKind
	AllowAllExternal bool
	allowExternal    map[string]bool
	allowUnverified  map[string]bool
}

// AllowsExternal reports whether name's links may be followed off the index
// page (e.g. to a project homepage) during crawling.
func (o *ResolverOptions) AllowsExternal(name string) bool {
	return o.AllowAllExternal || o.allowExternal[fetcher.Normalize(name)]
}

func (o *ResolverOptions) AllowsUnverified(name string) bool {
	return o.allowUnverified[fetcher.Normalize(name)]
}

// Finder builds a resolvable.Finder that, per requirement, crawls with
// follow_links set according to AllowsExternal(req.Name).
func (o *ResolverOptions) Finder(crawler *crawl.Crawler) *OptionsFinder {
	return &OptionsFinder{opts: o, crawler: crawler}
}

// OptionsFinder adapts a ResolverOptions snapshot into the resolvable.Finder
// interface, building a fresh iterate.Iterator per call so that follow_links
// can vary by requirement name.
type OptionsFinder struct {
	opts    *ResolverOptions
	crawler *crawl.Crawler
}

func (f *OptionsFinder) Iter(ctx context.Context, req pkgfile.Requirement) ([]pkgfile.Package, error) {
	it := &iterate.Iterator{
		Crawler:     f.crawler,
		Fetchers:    f.opts.Fetchers,
		Precedence:  f.opts.Precedence,
		FollowLinks: f.opts.AllowsExternal(req.Name),
	}
	return it.Iter(ctx, req)
}

func copySet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
