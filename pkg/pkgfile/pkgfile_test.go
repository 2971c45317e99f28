// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pkgfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/python/pep425"
	"github.com/wickman/pex/pkg/python/pep440"
)

func mustLink(t *testing.T, raw string) *link.Link {
	t.Helper()
	l, err := link.Wrap(raw)
	require.NoError(t, err)
	return l
}

func TestFromHrefSource(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/source/f/foo/foo-1.2.3.tar.gz"))
	require.NoError(t, err)
	require.NotNil(t, pkg)
	src, ok := pkg.(*pkgfile.SourcePackage)
	require.True(t, ok)
	assert.Equal(t, "foo", src.Name())
	assert.Equal(t, "1.2.3", src.Version().String())
	assert.True(t, src.Compatible(pkgfile.CompatContext{}))
}

func TestFromHrefSourceDashedName(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/source/f/foo-bar/foo-bar-1.2.3.tar.gz"))
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "foo-bar", pkg.Name())
	assert.Equal(t, "1.2.3", pkg.Version().String())
}

func TestFromHrefWheel(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/foo-1.2.3-py3-none-any.whl"))
	require.NoError(t, err)
	require.NotNil(t, pkg)
	wh, ok := pkg.(*pkgfile.WheelPackage)
	require.True(t, ok)
	assert.Equal(t, "foo", wh.Name())
	assert.Equal(t, pep425.Tag{Python: "py3", ABI: "none", Platform: "any"}, wh.Tag())
	_, hasBuild := wh.BuildTag()
	assert.False(t, hasBuild)
}

func TestFromHrefWheelWithBuildTag(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/foo-1.2.3-2-py3-none-any.whl"))
	require.NoError(t, err)
	require.NotNil(t, pkg)
	wh := pkg.(*pkgfile.WheelPackage)
	build, ok := wh.BuildTag()
	assert.True(t, ok)
	assert.Equal(t, "2", build)
}

func TestWheelCompatible(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/foo-1.2.3-cp39-cp39-manylinux1_x86_64.whl"))
	require.NoError(t, err)
	wh := pkg.(*pkgfile.WheelPackage)

	compatible := pkgfile.CompatContext{
		Tags: pep425.Installer{{Python: "cp39", ABI: "cp39", Platform: "manylinux1_x86_64"}},
	}
	incompatible := pkgfile.CompatContext{
		Tags: pep425.Installer{{Python: "cp38", ABI: "cp38", Platform: "manylinux1_x86_64"}},
	}
	assert.True(t, wh.Compatible(compatible))
	assert.False(t, wh.Compatible(incompatible))
}

func TestFromHrefEggUniversal(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/foo-1.2.3-py2.7.egg"))
	require.NoError(t, err)
	require.NotNil(t, pkg)
	egg, ok := pkg.(*pkgfile.EggPackage)
	require.True(t, ok)
	assert.Equal(t, "foo", egg.Name())
	assert.True(t, egg.Compatible(pkgfile.CompatContext{PythonTag: "2.7"}))
	assert.False(t, egg.Compatible(pkgfile.CompatContext{PythonTag: "3.9"}))
}

func TestFromHrefEggWithPlatform(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/foo-1.2.3-py2.7-linux-x86_64.egg"))
	require.NoError(t, err)
	egg := pkg.(*pkgfile.EggPackage)
	assert.True(t, egg.Compatible(pkgfile.CompatContext{PythonTag: "2.7", PlatformTag: "linux-x86_64"}))
	assert.False(t, egg.Compatible(pkgfile.CompatContext{PythonTag: "2.7", PlatformTag: "win32"}))
}

func TestFromHrefUnrecognized(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/README.txt"))
	require.NoError(t, err)
	assert.Nil(t, pkg)
}

func TestSatisfies(t *testing.T) {
	pkg, err := pkgfile.FromHref(mustLink(t, "https://pypi.org/packages/foo/foo-1.2.3.tar.gz"))
	require.NoError(t, err)

	specs, err := pep440.ParseSpecifier(">=1.0,<2.0")
	require.NoError(t, err)
	assert.True(t, pkg.Satisfies(pkgfile.Requirement{Name: "Foo", Specifiers: specs}))
	assert.False(t, pkg.Satisfies(pkgfile.Requirement{Name: "Bar", Specifiers: specs}))

	specs2, err := pep440.ParseSpecifier(">=2.0")
	require.NoError(t, err)
	assert.False(t, pkg.Satisfies(pkgfile.Requirement{Name: "Foo", Specifiers: specs2}))
}

func TestParseRequirement(t *testing.T) {
	req, err := pkgfile.ParseRequirement("Foo[bar, baz]>=1.0,<2.0")
	require.NoError(t, err)
	assert.Equal(t, "Foo", req.Name)
	assert.Equal(t, []string{"bar", "baz"}, req.Extras)
	assert.Equal(t, ">=1.0,<2.0", req.Specifiers.String())

	bare, err := pkgfile.ParseRequirement("foo")
	require.NoError(t, err)
	assert.Equal(t, "foo", bare.Name)
	assert.Nil(t, bare.Extras)
	assert.Empty(t, bare.Specifiers)

	_, err = pkgfile.ParseRequirement("   ")
	assert.Error(t, err)
}

func TestCanonicalize(t *testing.T) {
	assert.Equal(t, "foo-bar", pkgfile.Canonicalize("Foo_Bar"))
	assert.Equal(t, "foo-bar", pkgfile.Canonicalize("foo..bar"))
}
