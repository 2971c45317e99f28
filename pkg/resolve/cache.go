// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wickman/pex/pkg/fetchctx"
	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/resolvable"
	"github.com/wickman/pex/pkg/translate"
)

// CachingFinder overlays a local-cache-only Finder ahead of a network one.
// An exact requirement with any cache hit never touches the network. An
// inexact requirement trusts the cache for TTL before falling back.
type CachingFinder struct {
	Cache   resolvable.Finder
	Network resolvable.Finder
	TTL     time.Duration
}

func (c *CachingFinder) Iter(ctx context.Context, req pkgfile.Requirement) ([]pkgfile.Package, error) {
	cached, err := c.Cache.Iter(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		if req.Exact() {
			return cached, nil
		}
		if c.TTL > 0 {
			if fresh := freshEnough(cached, c.TTL); len(fresh) > 0 {
				return fresh, nil
			}
		}
	}
	return c.Network.Iter(ctx, req)
}

// freshEnough keeps every remote candidate (the cache-only fetcher never
// produces one, but a custom Cache Finder might) and every local candidate
// whose file mtime is within ttl; it's the TTL clock CachingTranslator
// refreshes on every fetch or cache-copy.
func freshEnough(pkgs []pkgfile.Package, ttl time.Duration) []pkgfile.Package {
	var out []pkgfile.Package
	for _, p := range pkgs {
		if p.Remote() {
			out = append(out, p)
			continue
		}
		info, err := os.Stat(p.Link().LocalPath())
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < ttl {
			out = append(out, p)
		}
	}
	return out
}

// CachingTranslator wraps a Translator with a local cache directory: a
// remote package is fetched into the cache, refreshing its mtime even if
// already present (that refresh is the TTL clock CachingFinder reads), and a
// translated artifact that lands outside the cache directory is copied in.
type CachingTranslator struct {
	Fetcher    *fetchctx.Context
	CacheDir   string
	Translator translate.Translator
}

func (c *CachingTranslator) fillDefaults() {
	if c.Fetcher == nil {
		c.Fetcher = &fetchctx.Context{}
	}
}

func (c *CachingTranslator) Translate(ctx context.Context, pkg pkgfile.Package, compat pkgfile.CompatContext) (*translate.Distribution, error) {
	c.fillDefaults()

	if pkg.Remote() {
		local, err := c.Fetcher.Fetch(ctx, pkg.Link(), c.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("resolve: caching fetch of %s: %w", pkg, err)
		}
		touch(local)
	}

	dist, err := c.Translator.Translate(ctx, pkg, compat)
	if err != nil || dist == nil {
		return dist, err
	}

	if sameDir(dist.Path, c.CacheDir) {
		return dist, nil
	}

	dest := filepath.Join(c.CacheDir, filepath.Base(dist.Path))
	if err := copyIntoCache(dist.Path, dest); err != nil {
		return nil, fmt.Errorf("resolve: caching %s: %w", dist.Path, err)
	}
	touch(dest)
	dist.Path = dest
	return dist, nil
}

func sameDir(path, dir string) bool {
	a, errA := filepath.Abs(filepath.Dir(path))
	b, errB := filepath.Abs(dir)
	return errA == nil && errB == nil && a == b
}

func touch(path string) {
	now := time.Now()
	_ = os.Chtimes(path, now, now)
}

// copyIntoCache copies src to dst via a sibling temp file and rename, and is
// a no-op if dst already exists.
func copyIntoCache(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	content, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	tmp := dst + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
