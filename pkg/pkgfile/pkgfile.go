// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package pkgfile classifies a distribution Link into one of the three
// package variants (source, egg, wheel) and answers whether a given package
// satisfies a Requirement or is installable on a given interpreter.
package pkgfile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/python/pep425"
	"github.com/wickman/pex/pkg/python/pep440"
)

//nolint:gochecknoglobals // Would be 'const'.
var normalizeRE = regexp.MustCompile(`[-_.]+`)

// Canonicalize implements the PEP 503 project-name normalization rule: the
// name used to compare two Requirement/Package names for equality.
func Canonicalize(name string) string {
	return strings.ToLower(normalizeRE.ReplaceAllLiteralString(name, "-"))
}

// Requirement is a project name plus a set of version specifiers and an
// optional set of named extras.
type Requirement struct {
	Name       string
	Specifiers pep440.Specifier
	Extras     []string
}

// CanonicalName returns Name run through Canonicalize.
func (r Requirement) CanonicalName() string {
	return Canonicalize(r.Name)
}

// Exact reports whether this requirement pins to a single "== <version>".
func (r Requirement) Exact() bool {
	return len(r.Specifiers) == 1 && r.Specifiers[0].CmpOp == pep440.CmpOpStrictMatch
}

//nolint:gochecknoglobals // Would be 'const'.
var requirementRE = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9._-]*)\s*(?:\[\s*([^\]]*)\s*\])?\s*(.*)$`)

// ParseRequirement parses a pkg_resources-style requirement string: a project
// name, an optional bracketed extras list, and a comma-separated specifier
// tail, e.g. "foo[bar,baz]>=1.0,<2.0". An environment marker, if present, is
// not this function's concern -- callers that read requirement strings off a
// Requires-Dist field strip and evaluate the marker first.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	match := requirementRE.FindStringSubmatch(s)
	if match == nil {
		return Requirement{}, fmt.Errorf("pkgfile.ParseRequirement: %q does not look like a requirement", s)
	}

	var extras []string
	for _, e := range strings.Split(match[2], ",") {
		if e = strings.TrimSpace(e); e != "" {
			extras = append(extras, e)
		}
	}

	specs, err := pep440.ParseSpecifier(strings.TrimSpace(match[3]))
	if err != nil {
		return Requirement{}, fmt.Errorf("pkgfile.ParseRequirement: %q: %w", s, err)
	}

	return Requirement{Name: match[1], Specifiers: specs, Extras: extras}, nil
}

// CompatContext carries the bits of interpreter identity that a package's
// Compatible method needs: the egg-style "major.minor" python tag, the
// platform string, and the full PEP 425 tag set an installer supports.
type CompatContext struct {
	PythonTag   string // e.g. "2.7", matched against an Egg's python tag
	PlatformTag string // e.g. "linux-x86_64", matched against an Egg's platform tag
	Tags        pep425.Installer
}

// Package is a parsed reference to a distribution archive: one of
// SourcePackage, EggPackage, or WheelPackage.
type Package interface {
	Link() *link.Link
	Name() string // canonicalized
	Version() pep440.Version
	Local() bool
	Remote() bool
	Satisfies(req Requirement) bool
	Compatible(ctx CompatContext) bool
	String() string
}

// FromHref dispatches on the link's filename suffix, returning the
// appropriate Package variant. It returns (nil, nil) -- not an error -- for a
// filename that isn't recognized, since a crawled index page routinely
// contains links to things that aren't any kind of Python package.
func FromHref(l *link.Link) (Package, error) {
	filename := l.Filename()
	switch {
	case strings.HasSuffix(filename, ".whl"):
		return newWheelPackage(l, filename)
	case strings.HasSuffix(filename, ".egg"):
		return newEggPackage(l, filename)
	case strings.HasSuffix(filename, ".tar.gz"),
		strings.HasSuffix(filename, ".tar.bz2"),
		strings.HasSuffix(filename, ".zip"):
		return newSourcePackage(l, filename)
	default:
		return nil, nil
	}
}

func satisfiesBase(name string, version pep440.Version, req Requirement) bool {
	if Canonicalize(name) != req.CanonicalName() {
		return false
	}
	return req.Specifiers.Match(version)
}

// splitNameVersion splits a "name-version" stem, where name may itself
// contain dashes; the version is taken to be the shortest PEP-440-parseable
// dash-delimited suffix, growing leftward only as far as necessary.
func splitNameVersion(stem string) (name string, version pep440.Version, ok bool) {
	parts := strings.Split(stem, "-")
	for i := len(parts) - 1; i >= 1; i-- {
		candidate := strings.Join(parts[i:], "-")
		if ver, err := pep440.ParseVersion(candidate); err == nil {
			return strings.Join(parts[:i], "-"), *ver, true
		}
	}
	return "", pep440.Version{}, false
}

//
// Source
//

type SourcePackage struct {
	link    *link.Link
	name    string
	version pep440.Version
}

func newSourcePackage(l *link.Link, filename string) (Package, error) {
	stem := filename
	for _, ext := range []string{".tar.gz", ".tar.bz2", ".zip"} {
		if strings.HasSuffix(stem, ext) {
			stem = strings.TrimSuffix(stem, ext)
			break
		}
	}
	name, version, ok := splitNameVersion(stem)
	if !ok {
		return nil, nil //nolint:nilnil // unrecognized filename, not an error
	}
	return &SourcePackage{link: l, name: name, version: version}, nil
}

func (p *SourcePackage) Link() *link.Link      { return p.link }
func (p *SourcePackage) Name() string          { return Canonicalize(p.name) }
func (p *SourcePackage) Version() pep440.Version { return p.version }
func (p *SourcePackage) Local() bool           { return p.link.IsLocal() }
func (p *SourcePackage) Remote() bool          { return p.link.IsRemote() }

func (p *SourcePackage) Satisfies(req Requirement) bool {
	return satisfiesBase(p.name, p.version, req)
}

// Compatible is always true for a source distribution: it requires a build
// step, not a binary-compatibility check.
func (p *SourcePackage) Compatible(CompatContext) bool { return true }

func (p *SourcePackage) String() string {
	return fmt.Sprintf("SourcePackage(%s==%s)", p.Name(), p.version.String())
}

//
// Egg
//

//nolint:gochecknoglobals // Would be 'const'.
var eggRE = regexp.MustCompile(`^(?P<name>.+)-(?P<version>[^-]+)-py(?P<pyver>[0-9]+(?:\.[0-9]+)?)(?:-(?P<plat>.+))?$`)

type EggPackage struct {
	link     *link.Link
	name     string
	version  pep440.Version
	pyTag    string // e.g. "2.7"; empty means universal
	platform string // empty means universal
}

func newEggPackage(l *link.Link, filename string) (Package, error) {
	stem := strings.TrimSuffix(filename, ".egg")
	match := eggRE.FindStringSubmatch(stem)
	if match == nil {
		// Fall back to plain name-version parsing for eggs with no python tag.
		name, version, ok := splitNameVersion(stem)
		if !ok {
			return nil, nil //nolint:nilnil // unrecognized filename, not an error
		}
		return &EggPackage{link: l, name: name, version: version}, nil
	}
	version, err := pep440.ParseVersion(match[eggRE.SubexpIndex("version")])
	if err != nil {
		return nil, nil //nolint:nilnil // unrecognized filename, not an error
	}
	return &EggPackage{
		link:     l,
		name:     match[eggRE.SubexpIndex("name")],
		version:  *version,
		pyTag:    match[eggRE.SubexpIndex("pyver")],
		platform: match[eggRE.SubexpIndex("plat")],
	}, nil
}

func (p *EggPackage) Link() *link.Link      { return p.link }
func (p *EggPackage) Name() string          { return Canonicalize(p.name) }
func (p *EggPackage) Version() pep440.Version { return p.version }
func (p *EggPackage) Local() bool           { return p.link.IsLocal() }
func (p *EggPackage) Remote() bool          { return p.link.IsRemote() }

func (p *EggPackage) Satisfies(req Requirement) bool {
	return satisfiesBase(p.name, p.version, req)
}

func (p *EggPackage) Compatible(ctx CompatContext) bool {
	if p.pyTag != "" && p.pyTag != ctx.PythonTag {
		return false
	}
	if p.platform != "" && p.platform != ctx.PlatformTag {
		return false
	}
	return true
}

func (p *EggPackage) String() string {
	return fmt.Sprintf("EggPackage(%s==%s)", p.Name(), p.version.String())
}

//
// Wheel
//

//nolint:gochecknoglobals // Would be 'const'.
var wheelRE = regexp.MustCompile(strings.ReplaceAll(`^
	(?P<distribution>[^-]+)
	-(?P<version>[^-]+)
	(?:-(?P<build_n>[0-9]+)(?P<build_l>[^-0-9][^-]*)?)?
	-(?P<python>[^-]+)
	-(?P<abi>[^-]+)
	-(?P<platform>[^-]+)
	$`, "\n\t", ""))

type WheelPackage struct {
	link     *link.Link
	name     string
	version  pep440.Version
	buildN   int
	buildL   string
	hasBuild bool
	tag      pep425.Tag
}

// BuildTag returns the wheel's optional build-tag string (e.g. "2" in
// "foo-1.0-2-py3-none-any.whl"), and whether one was present.
func (p *WheelPackage) BuildTag() (string, bool) {
	if !p.hasBuild {
		return "", false
	}
	return fmt.Sprintf("%d%s", p.buildN, p.buildL), true
}

func newWheelPackage(l *link.Link, filename string) (Package, error) {
	stem := strings.TrimSuffix(filename, ".whl")
	match := wheelRE.FindStringSubmatch(stem)
	if match == nil {
		return nil, nil //nolint:nilnil // unrecognized filename, not an error
	}
	version, err := pep440.ParseVersion(match[wheelRE.SubexpIndex("version")])
	if err != nil {
		return nil, nil //nolint:nilnil // unrecognized filename, not an error
	}
	p := &WheelPackage{
		link:    l,
		name:    match[wheelRE.SubexpIndex("distribution")],
		version: *version,
		tag: pep425.Tag{
			Python:   match[wheelRE.SubexpIndex("python")],
			ABI:      match[wheelRE.SubexpIndex("abi")],
			Platform: match[wheelRE.SubexpIndex("platform")],
		},
	}
	if buildN := match[wheelRE.SubexpIndex("build_n")]; buildN != "" {
		n, _ := strconv.Atoi(buildN)
		p.buildN = n
		p.buildL = match[wheelRE.SubexpIndex("build_l")]
		p.hasBuild = true
	}
	return p, nil
}

func (p *WheelPackage) Link() *link.Link      { return p.link }
func (p *WheelPackage) Name() string          { return Canonicalize(p.name) }
func (p *WheelPackage) Version() pep440.Version { return p.version }
func (p *WheelPackage) Local() bool           { return p.link.IsLocal() }
func (p *WheelPackage) Remote() bool          { return p.link.IsRemote() }
func (p *WheelPackage) Tag() pep425.Tag       { return p.tag }

func (p *WheelPackage) Satisfies(req Requirement) bool {
	return satisfiesBase(p.name, p.version, req)
}

func (p *WheelPackage) Compatible(ctx CompatContext) bool {
	return ctx.Tags.Supports(p.tag)
}

func (p *WheelPackage) String() string {
	return fmt.Sprintf("WheelPackage(%s==%s, %s)", p.Name(), p.version.String(), p.tag.String())
}
