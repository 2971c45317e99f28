// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Package reqfile parses requirements.txt-format files: a line-oriented
// grammar of bare requirement strings interleaved with directives that
// configure a resolve.ResolverOptionsBuilder (index URLs, find-links
// repositories, external-link allow-lists, precedence) and with recursive
// file inclusion.
package reqfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wickman/pex/pkg/resolvable"
	"github.com/wickman/pex/pkg/resolve"
)

// UnsupportedLine is returned for an editable distribution ("-e ...") or any
// flag-shaped line this parser doesn't recognize.
type UnsupportedLine struct {
	Line string
}

func (e *UnsupportedLine) Error() string {
	return fmt.Sprintf("reqfile: unsupported line: %s", e.Line)
}

// directive is one recognized requirements-file flag, matched by any of its
// spellings and applied to the builder with whatever parameter follows.
type directive struct {
	prefixes []string
	takesArg bool
	apply    func(b *resolve.ResolverOptionsBuilder, arg string)
}

//nolint:gochecknoglobals // static ordered dispatch table, mirrors resolvable.registry
var directives = []directive{
	{[]string{"-i", "--index-url"}, true, func(b *resolve.ResolverOptionsBuilder, arg string) { b.SetIndex(arg) }},
	{[]string{"--extra-index-url"}, true, func(b *resolve.ResolverOptionsBuilder, arg string) { b.AddIndex(arg) }},
	{[]string{"-f", "--find-links"}, true, func(b *resolve.ResolverOptionsBuilder, arg string) { b.AddRepository(arg) }},
	{[]string{"--allow-all-external"}, false, func(b *resolve.ResolverOptionsBuilder, _ string) { b.AllowAllExternal() }},
	{[]string{"--allow-external"}, true, func(b *resolve.ResolverOptionsBuilder, arg string) { b.AllowExternal(arg) }},
	{[]string{"--allow-unverified"}, true, func(b *resolve.ResolverOptionsBuilder, arg string) { b.AllowUnverified(arg) }},
	{[]string{"--no-index"}, false, func(b *resolve.ResolverOptionsBuilder, _ string) { b.ClearIndices() }},
	{[]string{"--no-use-wheel"}, false, func(b *resolve.ResolverOptionsBuilder, _ string) { b.NoUseWheel() }},
}

// FromLines parses lines already read from a requirements file (or
// constructed in-memory) against builder, resolving nested "-r" paths
// relative to relpath. A nil builder starts a fresh one.
func FromLines(lines []string, builder *resolve.ResolverOptionsBuilder, relpath string) ([]resolvable.Resolvable, *resolve.ResolverOptionsBuilder, error) {
	if builder == nil {
		builder = resolve.NewResolverOptionsBuilder()
	}
	if relpath == "" {
		var err error
		relpath, err = os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("reqfile: %w", err)
		}
	}

	var out []resolvable.Resolvable
	for _, raw := range lines {
		got, err := processLine(builder, raw, relpath)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, got...)
	}
	return out, builder, nil
}

// FromFile parses the requirements file at filename, resolving any nested
// "-r" reference relative to filename's own directory.
func FromFile(filename string, builder *resolve.ResolverOptionsBuilder) ([]resolvable.Resolvable, *resolve.ResolverOptionsBuilder, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, fmt.Errorf("reqfile: reading %s: %w", filename, err)
	}
	lines := strings.Split(string(content), "\n")
	return FromLines(lines, builder, filepath.Dir(filename))
}

func processLine(builder *resolve.ResolverOptionsBuilder, raw, relpath string) ([]resolvable.Resolvable, error) {
	line := strings.TrimSpace(raw)
	switch {
	case line == "" || strings.HasPrefix(line, "#"):
		return nil, nil
	case strings.HasPrefix(line, "-e "), line == "-e":
		return nil, &UnsupportedLine{Line: raw}
	}

	if strings.HasPrefix(line, "-r ") || strings.HasPrefix(line, "--requirement") {
		arg, err := parameter(line)
		if err != nil {
			return nil, &UnsupportedLine{Line: raw}
		}
		path := filepath.Join(relpath, arg)
		nested, _, err := FromFile(path, builder)
		if err != nil {
			return nil, err
		}
		return nested, nil
	}

	for _, d := range directives {
		if !matchesAny(line, d.prefixes) {
			continue
		}
		arg := ""
		if d.takesArg {
			var err error
			arg, err = parameter(line)
			if err != nil {
				return nil, &UnsupportedLine{Line: raw}
			}
		}
		d.apply(builder, arg)
		return nil, nil
	}

	if strings.HasPrefix(line, "-") {
		return nil, &UnsupportedLine{Line: raw}
	}

	r, err := resolvable.Get(line)
	if err != nil {
		return nil, fmt.Errorf("reqfile: line %q: %w", raw, err)
	}
	return []resolvable.Resolvable{r}, nil
}

func matchesAny(line string, prefixes []string) bool {
	for _, p := range prefixes {
		if line == p || strings.HasPrefix(line, p+" ") || strings.HasPrefix(line, p+"=") {
			return true
		}
	}
	return false
}

// parameter extracts the value following a directive, accepting both
// "--flag value" and "--flag=value" spellings.
func parameter(line string) (string, error) {
	if idx := strings.IndexByte(line, '='); idx >= 0 {
		if v := strings.TrimSpace(line[idx+1:]); v != "" {
			return v, nil
		}
	}
	fields := strings.Fields(line)
	if len(fields) == 2 {
		return fields[1], nil
	}
	return "", fmt.Errorf("reqfile: unrecognized line format: %s", line)
}
