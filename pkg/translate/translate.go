// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package translate turns a located pkgfile.Package into a Distribution: a
// locally-available archive plus its parsed control-file metadata. A
// pre-built package (egg, wheel) is fetched and checked for compatibility; a
// source package is unpacked and built into a wheel first.
package translate

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/datawire/dlib/dexec"
	"github.com/datawire/dlib/dlog"

	"github.com/wickman/pex/pkg/fetchctx"
	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/python/pep440"
	"github.com/wickman/pex/pkg/python/pypa/direct_url"
)

// Distribution is a fully located package: its on-disk archive path plus the
// parsed contents of its METADATA (wheel) or PKG-INFO (egg) control file.
type Distribution struct {
	Package  pkgfile.Package
	Path     string
	Metadata textproto.MIMEHeader
	Origin   direct_url.DirectURL
}

func (d *Distribution) Name() string            { return d.Package.Name() }
func (d *Distribution) Version() pep440.Version { return d.Package.Version() }

// RequiresDist returns the distribution's declared dependencies as raw PEP
// 508 requirement strings; pkg/pep508 parses the environment marker on each.
func (d *Distribution) RequiresDist() []string {
	return d.Metadata.Values("Requires-Dist")
}

// RequiresPython returns the distribution's Requires-Python field, if any.
func (d *Distribution) RequiresPython() string {
	return d.Metadata.Get("Requires-Python")
}

// Translator turns a located Package into a Distribution.
//
// Translate returns (nil, nil) -- not an error -- for any of its documented
// non-fatal failure modes: an archive it can't read, a build that fails, or
// a built artifact that turns out incompatible. Those are routine outcomes
// of walking a package index, handled by trying the next candidate rather
// than aborting a resolve.
type Translator interface {
	Translate(ctx context.Context, pkg pkgfile.Package, compat pkgfile.CompatContext) (*Distribution, error)
}

// BinaryTranslator handles pre-built packages -- Egg or Wheel -- that need
// only be fetched, checked for compatibility, and have their metadata read.
type BinaryTranslator struct {
	Fetcher  *fetchctx.Context
	CacheDir string
}

func (t *BinaryTranslator) fillDefaults() {
	if t.Fetcher == nil {
		t.Fetcher = &fetchctx.Context{}
	}
}

func (t *BinaryTranslator) Translate(ctx context.Context, pkg pkgfile.Package, compat pkgfile.CompatContext) (*Distribution, error) {
	switch pkg.(type) {
	case *pkgfile.EggPackage, *pkgfile.WheelPackage:
	default:
		return nil, nil //nolint:nilnil // not this translator's variant
	}
	if !pkg.Compatible(compat) {
		return nil, nil //nolint:nilnil // incompatible, try the next candidate
	}
	t.fillDefaults()

	local, err := t.Fetcher.Fetch(ctx, pkg.Link(), t.CacheDir)
	if err != nil {
		dlog.Infof(ctx, "translate: fetch %s: %v", pkg, err)
		return nil, nil //nolint:nilnil // fetch failure is non-fatal here
	}

	meta, err := readArchiveMetadata(local)
	if err != nil {
		dlog.Infof(ctx, "translate: read metadata for %s: %v", pkg, err)
		return nil, nil //nolint:nilnil // unreadable archive is non-fatal here
	}

	origin := originFor(pkg)
	if err := direct_url.WriteSidecar(local, origin); err != nil {
		dlog.Infof(ctx, "translate: write provenance sidecar for %s: %v", pkg, err)
	}

	return &Distribution{Package: pkg, Path: local, Metadata: meta, Origin: origin}, nil
}

// SourceTranslator builds a source distribution into a wheel by shelling out
// to pip, then treats the built wheel exactly as a BinaryTranslator would.
type SourceTranslator struct {
	Fetcher   *fetchctx.Context
	CacheDir  string
	BuildDir  string
	PythonExe string // defaults to "python3"
}

func (t *SourceTranslator) fillDefaults() {
	if t.Fetcher == nil {
		t.Fetcher = &fetchctx.Context{}
	}
	if t.PythonExe == "" {
		t.PythonExe = "python3"
	}
}

func (t *SourceTranslator) Translate(ctx context.Context, pkg pkgfile.Package, compat pkgfile.CompatContext) (*Distribution, error) {
	if _, ok := pkg.(*pkgfile.SourcePackage); !ok {
		return nil, nil //nolint:nilnil // not this translator's variant
	}
	t.fillDefaults()

	local, err := t.Fetcher.Fetch(ctx, pkg.Link(), t.CacheDir)
	if err != nil {
		dlog.Infof(ctx, "translate: fetch %s: %v", pkg, err)
		return nil, nil //nolint:nilnil // fetch failure is non-fatal here
	}

	outDir := t.BuildDir
	if outDir == "" {
		outDir, err = os.MkdirTemp("", "pex-build-")
		if err != nil {
			return nil, err
		}
	}

	cmd := dexec.CommandContext(ctx, t.PythonExe, "-m", "pip", "wheel",
		"--no-deps", "--no-build-isolation", "--wheel-dir", outDir, local)
	cmd.DisableLogging = true
	if _, err := cmd.Output(); err != nil {
		dlog.Infof(ctx, "translate: build %s: %v", pkg, err)
		return nil, nil //nolint:nilnil // build failure is non-fatal here
	}

	built, err := newestWheel(outDir)
	if err != nil {
		dlog.Infof(ctx, "translate: locate built wheel for %s: %v", pkg, err)
		return nil, nil //nolint:nilnil // no wheel produced is non-fatal here
	}

	builtLink, err := link.Wrap(built)
	if err != nil {
		return nil, nil //nolint:nilnil // unparseable built path is non-fatal here
	}
	builtPkg, err := pkgfile.FromHref(builtLink)
	if err != nil || builtPkg == nil {
		return nil, nil //nolint:nilnil // unrecognizable built artifact is non-fatal here
	}
	if !builtPkg.Compatible(compat) {
		return nil, nil //nolint:nilnil // incompatible after build is non-fatal here
	}

	meta, err := readArchiveMetadata(built)
	if err != nil {
		dlog.Infof(ctx, "translate: read metadata for built %s: %v", pkg, err)
		return nil, nil //nolint:nilnil // unreadable built archive is non-fatal here
	}

	origin := originFor(pkg)
	if err := direct_url.WriteSidecar(built, origin); err != nil {
		dlog.Infof(ctx, "translate: write provenance sidecar for built %s: %v", pkg, err)
	}

	return &Distribution{Package: builtPkg, Path: built, Metadata: meta, Origin: origin}, nil
}

func newestWheel(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".whl") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no wheel produced in %s", dir)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func originFor(pkg pkgfile.Package) direct_url.DirectURL {
	if pkg.Link().IsLocal() {
		return direct_url.DirectURL{URL: pkg.Link().URL(), DirInfo: &direct_url.DirInfo{}}
	}
	return direct_url.DirectURL{URL: pkg.Link().URL(), ArchiveInfo: &direct_url.ArchiveInfo{Hash: pkg.Link().Fragment()}}
}

// ChainedTranslator tries each Translator in order, returning the first
// non-nil Distribution.
type ChainedTranslator struct {
	Translators []Translator
}

func (c ChainedTranslator) Translate(ctx context.Context, pkg pkgfile.Package, compat pkgfile.CompatContext) (*Distribution, error) {
	for _, t := range c.Translators {
		dist, err := t.Translate(ctx, pkg, compat)
		if err != nil {
			return nil, err
		}
		if dist != nil {
			return dist, nil
		}
	}
	return nil, nil //nolint:nilnil // no translator in the chain claimed pkg
}

// Default returns the standard translator chain: a source package is built
// into a wheel and then handled exactly as a pre-built one; egg and wheel
// packages are fetched and verified directly.
func Default(fetcher *fetchctx.Context, cacheDir string) Translator {
	return ChainedTranslator{Translators: []Translator{
		&SourceTranslator{Fetcher: fetcher, CacheDir: cacheDir},
		&BinaryTranslator{Fetcher: fetcher, CacheDir: cacheDir},
	}}
}

// distInfoDir scans a wheel's member names for its single top-level
// "*.dist-info" directory, erroring if there isn't exactly one.
func distInfoDir(names []string) (string, error) {
	var found string
	for _, n := range names {
		dir := n
		if idx := strings.IndexByte(dir, '/'); idx >= 0 {
			dir = dir[:idx]
		}
		if strings.HasSuffix(dir, ".dist-info") {
			if found != "" && found != dir {
				return "", fmt.Errorf("multiple .dist-info directories")
			}
			found = dir
		}
	}
	if found == "" {
		return "", fmt.Errorf("no .dist-info directory")
	}
	return found, nil
}

// readArchiveMetadata opens the wheel's METADATA or the egg's PKG-INFO
// control file and parses it as RFC 822-ish key/value headers.
func readArchiveMetadata(path string) (textproto.MIMEHeader, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer zr.Close()

	var target string
	switch {
	case strings.HasSuffix(path, ".whl"):
		names := make([]string, len(zr.File))
		for i, f := range zr.File {
			names[i] = f.Name
		}
		dir, err := distInfoDir(names)
		if err != nil {
			return nil, err
		}
		target = dir + "/METADATA"
	case strings.HasSuffix(path, ".egg"):
		target = "EGG-INFO/PKG-INFO"
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", path)
	}

	for _, f := range zr.File {
		if f.Name != target {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return parseControlFile(rc)
	}
	return nil, fmt.Errorf("%s: control file %s not found", path, target)
}

// parseControlFile reads a METADATA/PKG-INFO/WHEEL-style control file as
// MIME headers. A trailing "\r\n\r\n\r\n" is appended so that a file with no
// terminating blank line (or no body at all) still parses cleanly.
func parseControlFile(r io.Reader) (textproto.MIMEHeader, error) {
	tp := textproto.NewReader(bufio.NewReader(io.MultiReader(r, strings.NewReader("\r\n\r\n\r\n"))))
	return tp.ReadMIMEHeader()
}
