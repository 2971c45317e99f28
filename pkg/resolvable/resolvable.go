// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package resolvable implements the tagged-variant dispatch at the entry of
// a resolve: turning a user-supplied string (a bare requirement, a direct
// package href, or an unsupported VCS URL) into a Resolvable that can
// produce candidate Packages.
package resolvable

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/pkgfile"
)

// ErrInvalidRequirement is returned by a constructor when a string isn't its
// form; Get tries the next registered form rather than failing outright.
var ErrInvalidRequirement = errors.New("resolvable: not a valid requirement string")

// ErrUnsupportedVcs is returned by a Vcs resolvable's Packages: it is
// recognized at parse time so it isn't mistaken for a bare requirement, but
// this repository does not check out version-control sources.
var ErrUnsupportedVcs = errors.New("resolvable: vcs requirements are not supported")

// Finder produces candidate packages for a Requirement; *iterate.Iterator
// satisfies this.
type Finder interface {
	Iter(ctx context.Context, req pkgfile.Requirement) ([]pkgfile.Package, error)
}

// Resolvable is an entity that can be resolved into one or more Packages.
type Resolvable interface {
	// Name is the canonicalized project name this resolvable contributes to.
	Name() string
	// Exact reports whether this resolvable pins to a single known package
	// (a direct href, or a requirement of the form "== <version>").
	Exact() bool
	// Packages resolves this entity into its candidate packages, using
	// finder for any variant that needs to search an index.
	Packages(ctx context.Context, finder Finder) ([]pkgfile.Package, error)
}

type constructor func(raw string) (Resolvable, error)

// registry is the fixed, ordered list of forms Get tries. Order matters: a
// VCS URL must be rejected before it's mistaken for a bare requirement
// string, and a direct package href must be tried before falling through to
// the catch-all requirement parser.
//
//nolint:gochecknoglobals // static ordered dispatch table, not mutable config
var registry = []constructor{
	newVcs,
	newPackage,
	newRequirement,
}

// Get tries each registered form in order and returns the first that parses
// raw successfully.
func Get(raw string) (Resolvable, error) {
	for _, ctor := range registry {
		r, err := ctor(raw)
		if errors.Is(err, ErrInvalidRequirement) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidRequirement, raw)
}

//
// Vcs
//

// compatibleVCS are the URL schemes recognized (but not supported) as
// version-control references.
//
//nolint:gochecknoglobals // Would be 'const'.
var compatibleVCS = []string{"git", "svn", "hg", "bzr"}

// Vcs is a "git+", "svn+", "hg+", or "bzr+" resolvable. It is recognized at
// parse time, so it isn't mistaken for a bare requirement, but is not
// resolvable: Packages always fails with ErrUnsupportedVcs.
type Vcs struct {
	raw string
}

func newVcs(raw string) (Resolvable, error) {
	for _, vcs := range compatibleVCS {
		if strings.HasPrefix(raw, vcs+"+") {
			return &Vcs{raw: raw}, nil
		}
	}
	return nil, ErrInvalidRequirement
}

func (v *Vcs) Name() string { return "" }
func (v *Vcs) Exact() bool { return true }
func (v *Vcs) String() string { return v.raw }

func (v *Vcs) Packages(context.Context, Finder) ([]pkgfile.Package, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedVcs, v.raw)
}

//
// Package
//

// Package wraps a direct reference to a single archive (a local path or a
// URL). Packages returns that one package regardless of what finder offers.
type Package struct {
	pkg pkgfile.Package
}

func newPackage(raw string) (Resolvable, error) {
	l, err := link.Wrap(raw)
	if err != nil {
		return nil, ErrInvalidRequirement
	}
	pkg, err := pkgfile.FromHref(l)
	if err != nil || pkg == nil {
		return nil, ErrInvalidRequirement
	}
	return &Package{pkg: pkg}, nil
}

func (p *Package) Name() string { return p.pkg.Name() }
func (p *Package) Exact() bool { return true }
func (p *Package) String() string { return p.pkg.String() }

func (p *Package) Packages(context.Context, Finder) ([]pkgfile.Package, error) {
	return []pkgfile.Package{p.pkg}, nil
}

//
// Requirement
//

// Requirement wraps a pkgfile.Requirement, the catch-all form: anything that
// parses as "name[extras]specifiers".
type Requirement struct {
	Req pkgfile.Requirement
}

func newRequirement(raw string) (Resolvable, error) {
	req, err := pkgfile.ParseRequirement(raw)
	if err != nil {
		return nil, ErrInvalidRequirement
	}
	return &Requirement{Req: req}, nil
}

func (r *Requirement) Name() string { return r.Req.CanonicalName() }
func (r *Requirement) Exact() bool { return r.Req.Exact() }
func (r *Requirement) String() string { return r.Req.Name + r.Req.Specifiers.String() }

func (r *Requirement) Packages(ctx context.Context, finder Finder) ([]pkgfile.Package, error) {
	return finder.Iter(ctx, r.Req)
}
