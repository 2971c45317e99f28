// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package resolveset accumulates, per project name, the intersection of
// every resolvable's candidate packages: the running "what's still
// acceptable for this name" state of a resolve.
package resolveset

import (
	"fmt"
	"strings"
	"sync"

	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/resolvable"
)

// Unsatisfiable is raised when merging a resolvable's packages into a name's
// running set leaves nothing in common.
type Unsatisfiable struct {
	Name        string
	Resolvables []resolvable.Resolvable
}

func (e *Unsatisfiable) Error() string {
	parts := make([]string, len(e.Resolvables))
	for i, r := range e.Resolvables {
		parts[i] = fmt.Sprint(r)
	}
	return fmt.Sprintf("could not satisfy %q: contributors %s share no compatible package",
		e.Name, strings.Join(parts, ", "))
}

// ResolvableSet tracks, for every project name seen so far, the resolvables
// that have contributed to it and the intersection of their candidate
// package lists.
type ResolvableSet struct {
	mu          sync.Mutex
	resolvables map[string][]resolvable.Resolvable
	packages    map[string][]pkgfile.Package
}

// New returns an empty ResolvableSet.
func New() *ResolvableSet {
	return &ResolvableSet{
		resolvables: make(map[string][]resolvable.Resolvable),
		packages:    make(map[string][]pkgfile.Package),
	}
}

// packageKey identifies a package by its link, which is how two packages
// discovered from different resolvables for the same name are recognized as
// "the same archive" during intersection.
func packageKey(p pkgfile.Package) string {
	return strings.ToLower(p.Link().URL())
}

// Merge folds r's candidate packages into name's running set: the first
// contributor to a name seeds the set; every subsequent contributor narrows
// it to the intersection. If the intersection is empty, Merge returns an
// *Unsatisfiable and leaves the set's prior state for name untouched.
func (s *ResolvableSet) Merge(r resolvable.Resolvable, packages []pkgfile.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := r.Name()
	existing, had := s.packages[name]

	var merged []pkgfile.Package
	switch {
	case !had:
		merged = append([]pkgfile.Package(nil), packages...)
	default:
		keep := make(map[string]bool, len(packages))
		for _, p := range packages {
			keep[packageKey(p)] = true
		}
		for _, p := range existing {
			if keep[packageKey(p)] {
				merged = append(merged, p)
			}
		}
	}

	contributors := append(s.resolvables[name], r)
	if len(merged) == 0 {
		return &Unsatisfiable{Name: name, Resolvables: append([]resolvable.Resolvable(nil), contributors...)}
	}

	s.resolvables[name] = contributors
	s.packages[name] = merged
	return nil
}

// Get returns a copy of the current compatible package set for name.
func (s *ResolvableSet) Get(name string) []pkgfile.Package {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pkgfile.Package(nil), s.packages[name]...)
}

// Extras returns the union, in first-seen order, of the named extras
// requested by every contributor to name.
func (s *ResolvableSet) Extras(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, r := range s.resolvables[name] {
		req, ok := r.(*resolvable.Requirement)
		if !ok {
			continue
		}
		for _, e := range req.Req.Extras {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Packages returns a snapshot of the full name -> package-set mapping.
func (s *ResolvableSet) Packages() map[string][]pkgfile.Package {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]pkgfile.Package, len(s.packages))
	for name, pkgs := range s.packages {
		out[name] = append([]pkgfile.Package(nil), pkgs...)
	}
	return out
}
