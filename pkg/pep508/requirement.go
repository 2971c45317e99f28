// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep508

import (
	"strings"

	"github.com/wickman/pex/pkg/pkgfile"
)

// ParseRequirement splits a Requires-Dist-style string on its optional
// ";"-delimited marker clause and parses each half: the requirement proper
// (name[extras]specifiers) and, if present, the environment marker that
// gates it.
func ParseRequirement(s string) (pkgfile.Requirement, Marker, error) {
	reqPart, markerPart, hasMarker := splitMarker(s)

	req, err := pkgfile.ParseRequirement(reqPart)
	if err != nil {
		return pkgfile.Requirement{}, nil, err
	}

	if !hasMarker {
		return req, nil, nil
	}

	marker, err := Parse(markerPart)
	if err != nil {
		return pkgfile.Requirement{}, nil, err
	}
	return req, marker, nil
}

// splitMarker splits s on the first ";" that isn't inside a quoted string
// literal.
func splitMarker(s string) (reqPart, markerPart string, hasMarker bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
		}
	}
	return strings.TrimSpace(s), "", false
}
