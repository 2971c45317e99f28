// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package crawl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wickman/pex/pkg/crawl"
	"github.com/wickman/pex/pkg/link"
)

func urls(links []*link.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.URL()
	}
	return out
}

func TestCrawlLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo-1.0.tar.gz"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo-2.0.tar.gz"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	seed, err := link.Wrap(dir)
	require.NoError(t, err)

	var c crawl.Crawler
	found := c.Crawl(context.Background(), []*link.Link{seed}, false)

	names := make(map[string]bool)
	for _, l := range found {
		names[l.Filename()] = true
	}
	assert.True(t, names["foo-1.0.tar.gz"])
	assert.True(t, names["foo-2.0.tar.gz"])
	assert.False(t, names["subdir"])
}

func TestCrawlLocalFollowsSubdirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "bar-1.0.tar.gz"), []byte("x"), 0o644))

	seed, err := link.Wrap(dir)
	require.NoError(t, err)

	c := crawl.Crawler{Threads: 3}
	found := c.Crawl(context.Background(), []*link.Link{seed}, true)

	names := make(map[string]bool)
	for _, l := range found {
		names[l.Filename()] = true
	}
	assert.True(t, names["bar-1.0.tar.gz"])
}

func TestCrawlRemoteIndexPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<a href="foo-1.0.tar.gz">foo-1.0.tar.gz</a>
<a href="foo-2.0.tar.gz">foo-2.0.tar.gz</a>
</body></html>`))
	}))
	defer srv.Close()

	seed, err := link.Wrap(srv.URL + "/simple/foo/")
	require.NoError(t, err)

	c := crawl.Crawler{Threads: 2}
	found := c.Crawl(context.Background(), []*link.Link{seed}, false)

	assert.ElementsMatch(t, []string{
		srv.URL + "/simple/foo/foo-1.0.tar.gz",
		srv.URL + "/simple/foo/foo-2.0.tar.gz",
	}, urls(found))
}

func TestCrawlFollowsRelLinksButSkipsArchiveExtensions(t *testing.T) {
	visited := make(map[string]bool)
	var mux http.ServeMux
	mux.HandleFunc("/simple/foo/", func(w http.ResponseWriter, r *http.Request) {
		visited[r.URL.Path] = true
		_, _ = w.Write([]byte(`<html><body>
<a href="foo-1.0.tar.gz">foo-1.0.tar.gz</a>
<a href="/homepage.html" rel="homepage">homepage</a>
<a href="foo-1.0.tar.gz" rel="download">download archive (should not be followed as a page)</a>
</body></html>`))
	})
	mux.HandleFunc("/homepage.html", func(w http.ResponseWriter, r *http.Request) {
		visited[r.URL.Path] = true
		_, _ = w.Write([]byte(`<html><body>
<a href="extra-3.0.tar.gz">extra-3.0.tar.gz</a>
</body></html>`))
	})
	srv := httptest.NewServer(&mux)
	defer srv.Close()

	seed, err := link.Wrap(srv.URL + "/simple/foo/")
	require.NoError(t, err)

	c := crawl.Crawler{}
	found := c.Crawl(context.Background(), []*link.Link{seed}, true)

	names := make(map[string]bool)
	for _, l := range found {
		names[l.Filename()] = true
	}
	assert.True(t, names["foo-1.0.tar.gz"])
	assert.True(t, names["extra-3.0.tar.gz"], "should have followed rel=homepage to discover extra-3.0.tar.gz")
	assert.True(t, visited["/homepage.html"])
}

func TestCrawlDeduplicatesSeeds(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`<html><body><a href="foo-1.0.tar.gz">foo</a></body></html>`))
	}))
	defer srv.Close()

	seed, err := link.Wrap(srv.URL + "/simple/foo/")
	require.NoError(t, err)
	seedDup, err := link.Wrap(srv.URL + "/simple/foo/")
	require.NoError(t, err)

	c := crawl.Crawler{Threads: 4}
	found := c.Crawl(context.Background(), []*link.Link{seed, seedDup}, false)

	assert.Equal(t, 1, hits)
	assert.Len(t, found, 1)
}

func TestCrawlMissingLocalDirReturnsEmpty(t *testing.T) {
	seed, err := link.Wrap("/nonexistent/path/does-not-exist")
	require.NoError(t, err)

	var c crawl.Crawler
	found := c.Crawl(context.Background(), []*link.Link{seed}, false)
	assert.Empty(t, found)
}
