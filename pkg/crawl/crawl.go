// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package crawl discovers distribution Links reachable from a set of seed
// Links, optionally following "rel=homepage"/"rel=download" links found along
// the way.
package crawl

import (
	"bytes"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/datawire/dlib/dlog"
	"golang.org/x/net/html"

	"github.com/wickman/pex/pkg/fetchctx"
	"github.com/wickman/pex/pkg/htmlutil"
	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/python/pep629"
)

// relSkipExtensions are archive suffixes that never need following as
// rel-links, even when they're tagged rel="download".
//
//nolint:gochecknoglobals // Would be 'const'.
var relSkipExtensions = []string{".zip", ".tar", ".tar.gz", ".tar.bz2", ".tgz", ".exe"}

// relTypes are the rel= attribute values worth following when FollowLinks is set.
//
//nolint:gochecknoglobals // Would be 'const'.
var relTypes = map[string]bool{"homepage": true, "download": true}

// Crawler discovers Links reachable from a set of seeds.
type Crawler struct {
	Context *fetchctx.Context
	// Threads bounds the number of concurrent workers draining the crawl
	// queue. Zero means 1.
	Threads int
}

func (c *Crawler) fillDefaults() {
	if c.Context == nil {
		c.Context = &fetchctx.Context{}
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
}

// Crawl visits each seed (and, if followLinks, every discovered rel-link),
// returning the set of distribution Links found. Each Link is visited at most
// once, deduplicated by URL equality. Output ordering is not guaranteed;
// callers that need deterministic order must sort.
func (c *Crawler) Crawl(ctx context.Context, seeds []*link.Link, followLinks bool) []*link.Link {
	c.fillDefaults()

	var mu sync.Mutex
	cond := sync.NewCond(&mu)
	seen := make(map[string]bool)
	var found []*link.Link
	var queue []*link.Link
	var inFlight int64 // items enqueued-but-not-yet-fully-processed
	stopped := false

	// enqueue adds l to the work queue unless it (by URL) has already been
	// seen. Must be called with mu held.
	enqueue := func(l *link.Link) {
		key := strings.ToLower(l.URL())
		if seen[key] {
			return
		}
		seen[key] = true
		inFlight++
		queue = append(queue, l)
		cond.Signal()
	}

	mu.Lock()
	for _, seed := range seeds {
		enqueue(seed)
	}
	if inFlight == 0 {
		stopped = true
		cond.Broadcast()
	}
	mu.Unlock()

	var wg sync.WaitGroup
	for i := 0; i < c.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				for len(queue) == 0 && !stopped {
					cond.Wait()
				}
				if stopped && len(queue) == 0 {
					mu.Unlock()
					return
				}
				l := queue[0]
				queue = queue[1:]
				mu.Unlock()

				roots, rels := c.crawlOne(ctx, l)

				mu.Lock()
				found = append(found, roots...)
				if followLinks {
					for _, rel := range rels {
						enqueue(rel)
					}
				}
				inFlight--
				if inFlight == 0 {
					stopped = true
					cond.Broadcast()
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	sort.Slice(found, func(i, j int) bool { return found[i].URL() < found[j].URL() })
	return found
}

// crawlOne visits a single link, returning the distribution links discovered
// on it and, separately, the rel= links worth following next. A fetch error
// is logged and treated as "no links found here" -- it never aborts the
// crawl.
func (c *Crawler) crawlOne(ctx context.Context, l *link.Link) (roots, rels []*link.Link) {
	if l.IsLocal() {
		return c.crawlLocal(l)
	}
	return c.crawlRemote(ctx, l)
}

func (c *Crawler) crawlLocal(l *link.Link) (roots, rels []*link.Link) {
	entries, err := os.ReadDir(l.LocalPath())
	if err != nil {
		return nil, nil
	}
	for _, entry := range entries {
		child := filepath.Join(l.LocalPath(), entry.Name())
		childLink, err := link.Wrap(child)
		if err != nil {
			continue
		}
		if entry.IsDir() {
			rels = append(rels, childLink)
		} else {
			roots = append(roots, childLink)
		}
	}
	return roots, rels
}

func (c *Crawler) crawlRemote(ctx context.Context, l *link.Link) (roots, rels []*link.Link) {
	content, err := c.Context.Read(ctx, l)
	if err != nil {
		dlog.Infof(ctx, "crawl: %q: %v", l.URL(), err)
		return nil, nil
	}

	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		dlog.Infof(ctx, "crawl: parsing %q: %v", l.URL(), err)
		return nil, nil
	}

	if err := pep629.HTMLVersionCheck(ctx, doc); err != nil {
		dlog.Warnf(ctx, "crawl: %q: %v", l.URL(), err)
	}

	base, err := url.Parse(l.URL())
	if err != nil {
		return nil, nil
	}

	err = htmlutil.VisitHTML(doc, nil, func(node *html.Node) error {
		if node.Type != html.ElementNode || node.Data != "a" {
			return nil
		}
		href, ok := htmlutil.GetAttr(node, "", "href")
		if !ok || href == "" {
			return nil
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return nil
		}
		childLink, err := link.Wrap(resolved.String())
		if err != nil {
			return nil
		}
		roots = append(roots, childLink)

		rel, ok := htmlutil.GetAttr(node, "", "rel")
		if ok && relTypes[strings.ToLower(rel)] && !hasSkippedExtension(childLink.Filename()) {
			rels = append(rels, childLink)
		}
		return nil
	})
	if err != nil {
		dlog.Infof(ctx, "crawl: walking %q: %v", l.URL(), err)
		return nil, nil
	}

	return roots, rels
}

func hasSkippedExtension(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range relSkipExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
