// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package resolve drives the transitive dependency resolution loop: given a
// list of Resolvables, it narrows a ResolvableSet for each project name,
// selects and translates the top candidate per name, and walks each
// translated distribution's declared dependencies until nothing new
// surfaces.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/datawire/dlib/dlog"

	"github.com/wickman/pex/pkg/pep508"
	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/resolvable"
	"github.com/wickman/pex/pkg/resolveset"
	"github.com/wickman/pex/pkg/translate"
)

// Unsatisfiable is raised when a name's candidate set narrows to empty; it's
// produced by resolveset.ResolvableSet.Merge and simply propagated here.
type Unsatisfiable = resolveset.Unsatisfiable

// Untranslateable is raised when the selected package for a name cannot be
// turned into a Distribution: every translator in the chain declined it, or
// the built artifact turned out incompatible.
type Untranslateable struct {
	Package pkgfile.Package
}

func (e *Untranslateable) Error() string {
	return fmt.Sprintf("resolve: package %s is not translateable", e.Package)
}

// AmbiguousResolvable is raised when a name would be re-selected to a
// different package during select & expand; the resolver never backtracks.
type AmbiguousResolvable struct {
	Name     string
	Previous pkgfile.Package
	New      pkgfile.Package
}

func (e *AmbiguousResolvable) Error() string {
	return fmt.Sprintf("resolve: %s: already selected %s, cannot also select %s",
		e.Name, e.Previous, e.New)
}

// Resolver drives the narrow/select-expand loop.
type Resolver struct {
	// Finder builds the network candidate-iterator for a resolvable; a
	// *iterate.Iterator, or a per-name-aware ResolverOptions.Finder.
	Finder resolvable.Finder

	Translator translate.Translator
	Compat     pkgfile.CompatContext
	Env        pep508.Environment
}

// Resolve resolves resolvables and every package they transitively depend
// on, returning one Distribution per distinct project name.
func (r *Resolver) Resolve(ctx context.Context, resolvables []resolvable.Resolvable) ([]*translate.Distribution, error) {
	set := resolveset.New()
	selected := make(map[string]pkgfile.Package)
	distributions := make(map[string]*translate.Distribution)
	processed := make(map[resolvable.Resolvable]bool)
	expandedExtras := make(map[string]map[string]bool)

	work := append([]resolvable.Resolvable(nil), resolvables...)

	for len(work) > 0 {
		if err := r.narrow(ctx, set, processed, &work); err != nil {
			return nil, err
		}

		newWork, err := r.selectAndExpand(ctx, set, selected, distributions, expandedExtras)
		if err != nil {
			return nil, err
		}
		work = newWork
	}

	out := make([]*translate.Distribution, 0, len(distributions))
	for _, d := range distributions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// narrow drains work, merging each not-yet-processed resolvable's candidate
// packages into set.
func (r *Resolver) narrow(
	ctx context.Context,
	set *resolveset.ResolvableSet,
	processed map[resolvable.Resolvable]bool,
	work *[]resolvable.Resolvable,
) error {
	for len(*work) > 0 {
		res := (*work)[0]
		*work = (*work)[1:]
		if processed[res] {
			continue
		}
		processed[res] = true

		finder := r.Finder
		if existing := set.Get(res.Name()); len(existing) > 0 {
			// A contributor to a name we've already narrowed doesn't need a
			// fresh network search: the intersection can only shrink the
			// existing compatible set.
			finder = staticFinder(existing)
		}

		candidates, err := res.Packages(ctx, finder)
		if err != nil {
			return fmt.Errorf("resolve: %s: %w", res, err)
		}
		candidates = filterCompatible(candidates, r.Compat)

		if err := set.Merge(res, candidates); err != nil {
			return err
		}
	}
	return nil
}

// selectAndExpand picks the top candidate for every name in set, translates
// any not yet translated, and returns the newly-surfaced requirements.
func (r *Resolver) selectAndExpand(
	ctx context.Context,
	set *resolveset.ResolvableSet,
	selected map[string]pkgfile.Package,
	distributions map[string]*translate.Distribution,
	expandedExtras map[string]map[string]bool,
) ([]resolvable.Resolvable, error) {
	snapshot := set.Packages()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	var newWork []resolvable.Resolvable
	for _, name := range names {
		candidates := snapshot[name]
		if len(candidates) == 0 {
			continue
		}
		top := candidates[0]

		extras := extraSet(set.Extras(name))

		if prev, ok := selected[name]; ok {
			if packageKey(prev) != packageKey(top) {
				return nil, &AmbiguousResolvable{Name: name, Previous: prev, New: top}
			}
			// Even though top was already translated, a newly-merged
			// contributor may have widened set.Extras(name): re-walk
			// RequiresDist under the current extras so an extras-gated
			// dependency that only showed up late still surfaces.
			if supersetOf(expandedExtras[name], extras) {
				continue
			}
			dist := distributions[packageKey(top)]
			newWork = append(newWork, r.expand(ctx, name, dist, extras)...)
			expandedExtras[name] = extras
			continue
		}
		selected[name] = top

		dist, err := r.Translator.Translate(ctx, top, r.Compat)
		if err != nil {
			return nil, fmt.Errorf("resolve: translating %s: %w", top, err)
		}
		if dist == nil {
			return nil, &Untranslateable{Package: top}
		}
		distributions[packageKey(top)] = dist

		newWork = append(newWork, r.expand(ctx, name, dist, extras)...)
		expandedExtras[name] = extras
	}
	return newWork, nil
}

// expand walks dist's declared Requires-Dist, returning a Requirement
// resolvable for each entry whose marker is satisfied under extras.
func (r *Resolver) expand(
	ctx context.Context,
	name string,
	dist *translate.Distribution,
	extras map[string]bool,
) []resolvable.Resolvable {
	var out []resolvable.Resolvable
	for _, raw := range dist.RequiresDist() {
		req, marker, err := pep508.ParseRequirement(raw)
		if err != nil {
			dlog.Infof(ctx, "resolve: skipping unparseable Requires-Dist %q for %s: %v", raw, name, err)
			continue
		}
		if marker != nil && !marker.Eval(r.Env, extras) {
			continue
		}
		out = append(out, &resolvable.Requirement{Req: req})
	}
	return out
}

// supersetOf reports whether done already covers every member of extras --
// i.e. there's nothing new to re-expand.
func supersetOf(done map[string]bool, extras map[string]bool) bool {
	for e := range extras {
		if !done[e] {
			return false
		}
	}
	return true
}

func extraSet(extras []string) map[string]bool {
	out := make(map[string]bool, len(extras))
	for _, e := range extras {
		out[e] = true
	}
	return out
}

func filterCompatible(pkgs []pkgfile.Package, compat pkgfile.CompatContext) []pkgfile.Package {
	var out []pkgfile.Package
	for _, p := range pkgs {
		if p.Compatible(compat) {
			out = append(out, p)
		}
	}
	return out
}

// packageKey identifies a package by its link, for same-archive comparison.
func packageKey(p pkgfile.Package) string {
	return strings.ToLower(p.Link().URL())
}

// staticFinder answers Iter by filtering a fixed, already-fetched package
// list, rather than crawling anything -- the "static iterator over the
// current compatible set" path for a name already narrowed once.
type staticFinder []pkgfile.Package

func (s staticFinder) Iter(_ context.Context, req pkgfile.Requirement) ([]pkgfile.Package, error) {
	var out []pkgfile.Package
	for _, p := range s {
		if p.Satisfies(req) {
			out = append(out, p)
		}
	}
	return out, nil
}
