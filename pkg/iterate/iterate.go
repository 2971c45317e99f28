// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package iterate implements the requirement -> candidate-package pipeline:
// crawl fetcher-provided seed URLs, parse the discovered links into Packages,
// filter to those that satisfy the requirement, and rank by preference.
package iterate

import (
	"context"
	"sort"

	"github.com/wickman/pex/pkg/crawl"
	"github.com/wickman/pex/pkg/fetcher"
	"github.com/wickman/pex/pkg/pkgfile"
)

// PackageKind identifies a pkgfile.Package's concrete variant, for precedence
// ranking.
type PackageKind int

const (
	KindSource PackageKind = iota
	KindEgg
	KindWheel
)

// DefaultPrecedence ranks wheels highest, then eggs, then sdists -- binaries
// before source.
//
//nolint:gochecknoglobals // Would be 'const'.
var DefaultPrecedence = []PackageKind{KindSource, KindEgg, KindWheel}

func kindOf(pkg pkgfile.Package) (PackageKind, bool) {
	switch pkg.(type) {
	case *pkgfile.SourcePackage:
		return KindSource, true
	case *pkgfile.EggPackage:
		return KindEgg, true
	case *pkgfile.WheelPackage:
		return KindWheel, true
	default:
		return 0, false
	}
}

// Iterator collects candidate packages for a requirement from a set of
// Fetchers, by crawling their seed URLs.
type Iterator struct {
	Crawler     *crawl.Crawler
	Fetchers    []fetcher.Fetcher
	Precedence  []PackageKind
	FollowLinks bool
}

func (it *Iterator) fillDefaults() {
	if it.Crawler == nil {
		it.Crawler = &crawl.Crawler{}
	}
	if len(it.Fetchers) == 0 {
		it.Fetchers = []fetcher.Fetcher{fetcher.NewIndexFetcher("")}
	}
	if it.Precedence == nil {
		it.Precedence = DefaultPrecedence
	}
}

// precedenceRank returns pkg's rank in it.Precedence (higher is preferred),
// and whether pkg's variant appears in the precedence tuple at all.
func (it *Iterator) precedenceRank(pkg pkgfile.Package) (int, bool) {
	kind, ok := kindOf(pkg)
	if !ok {
		return -1, false
	}
	for rank, k := range it.Precedence {
		if k == kind {
			return rank, true
		}
	}
	return -1, false
}

// Iter returns the packages satisfying req, best match first: ranked by
// version (descending), then precedence rank (descending), then local before
// remote.
func (it *Iterator) Iter(ctx context.Context, req pkgfile.Requirement) ([]pkgfile.Package, error) {
	it.fillDefaults()

	seeds, err := fetcher.Collect(it.Fetchers, req.Name)
	if err != nil {
		return nil, err
	}

	links := it.Crawler.Crawl(ctx, seeds, it.FollowLinks)

	var candidates []pkgfile.Package
	for _, l := range links {
		pkg, err := pkgfile.FromHref(l)
		if err != nil || pkg == nil {
			continue
		}
		if _, inPrecedence := it.precedenceRank(pkg); !inPrecedence {
			continue
		}
		if !pkg.Satisfies(req) {
			continue
		}
		candidates = append(candidates, pkg)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if c := a.Version().Cmp(b.Version()); c != 0 {
			return c > 0
		}
		rankA, _ := it.precedenceRank(a)
		rankB, _ := it.precedenceRank(b)
		if rankA != rankB {
			return rankA > rankB
		}
		return localRank(a) > localRank(b)
	})

	return candidates, nil
}

func localRank(pkg pkgfile.Package) int {
	if pkg.Local() {
		return 1
	}
	return 0
}
