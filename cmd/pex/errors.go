// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"

	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/resolve"
)

// interpreterSetupError wraps any failure discovering or validating the
// target interpreter, distinct from a failure to resolve or translate a
// package.
type interpreterSetupError struct {
	err error
}

func (e *interpreterSetupError) Error() string { return "setting up interpreter: " + e.err.Error() }
func (e *interpreterSetupError) Unwrap() error { return e.err }

// exitCodeFor maps a resolve failure to the CLI's documented exit codes: 0
// is handled by main() itself (no error at all), 101 is reserved for a
// source distribution the resolver couldn't package, 102 for a failure to
// stand up the target interpreter, and 1 for everything else.
func exitCodeFor(err error) int {
	var setupErr *interpreterSetupError
	if errors.As(err, &setupErr) {
		return 102
	}

	var untranslateable *resolve.Untranslateable
	if errors.As(err, &untranslateable) {
		if _, ok := untranslateable.Package.(*pkgfile.SourcePackage); ok {
			return 101
		}
	}

	return 1
}
