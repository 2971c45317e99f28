// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolveset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wickman/pex/pkg/link"
	"github.com/wickman/pex/pkg/pkgfile"
	"github.com/wickman/pex/pkg/resolvable"
	"github.com/wickman/pex/pkg/resolveset"
)

type fakeResolvable struct {
	name   string
	exact  bool
	extras []string
}

func (f *fakeResolvable) Name() string  { return f.name }
func (f *fakeResolvable) Exact() bool   { return f.exact }
func (f *fakeResolvable) String() string { return f.name }
func (f *fakeResolvable) Packages(context.Context, resolvable.Finder) ([]pkgfile.Package, error) {
	return nil, nil
}

func mustPkg(t *testing.T, href string) pkgfile.Package {
	t.Helper()
	l, err := link.Wrap(href)
	require.NoError(t, err)
	p, err := pkgfile.FromHref(l)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestMergeSeedsThenIntersects(t *testing.T) {
	set := resolveset.New()

	v1 := mustPkg(t, "https://pypi.org/packages/foo/foo-1.0-py3-none-any.whl")
	v2 := mustPkg(t, "https://pypi.org/packages/foo/foo-2.0-py3-none-any.whl")

	require.NoError(t, set.Merge(&fakeResolvable{name: "foo"}, []pkgfile.Package{v1, v2}))
	assert.Len(t, set.Get("foo"), 2)

	require.NoError(t, set.Merge(&fakeResolvable{name: "foo"}, []pkgfile.Package{v1}))
	got := set.Get("foo")
	require.Len(t, got, 1)
	assert.Equal(t, "1.0", got[0].Version().String())
}

func TestMergeEmptyIntersectionIsUnsatisfiable(t *testing.T) {
	set := resolveset.New()

	v1 := mustPkg(t, "https://pypi.org/packages/foo/foo-1.0-py3-none-any.whl")
	v2 := mustPkg(t, "https://pypi.org/packages/foo/foo-2.0-py3-none-any.whl")

	require.NoError(t, set.Merge(&fakeResolvable{name: "foo"}, []pkgfile.Package{v1}))
	err := set.Merge(&fakeResolvable{name: "foo"}, []pkgfile.Package{v2})
	require.Error(t, err)
	var unsat *resolveset.Unsatisfiable
	require.ErrorAs(t, err, &unsat)
	assert.Equal(t, "foo", unsat.Name)
	assert.Len(t, unsat.Resolvables, 2)

	// Prior state is preserved after a failed merge.
	assert.Len(t, set.Get("foo"), 1)
}

func TestExtrasUnionsAcrossContributors(t *testing.T) {
	set := resolveset.New()
	v1 := mustPkg(t, "https://pypi.org/packages/foo/foo-1.0-py3-none-any.whl")

	req1, err := resolvable.Get("foo[a,b]")
	require.NoError(t, err)
	req2, err := resolvable.Get("foo[b,c]")
	require.NoError(t, err)

	require.NoError(t, set.Merge(req1, []pkgfile.Package{v1}))
	require.NoError(t, set.Merge(req2, []pkgfile.Package{v1}))

	assert.Equal(t, []string{"a", "b", "c"}, set.Extras("foo"))
}

func TestPackagesSnapshotsAllNames(t *testing.T) {
	set := resolveset.New()
	v1 := mustPkg(t, "https://pypi.org/packages/foo/foo-1.0-py3-none-any.whl")
	v2 := mustPkg(t, "https://pypi.org/packages/bar/bar-1.0-py3-none-any.whl")

	require.NoError(t, set.Merge(&fakeResolvable{name: "foo"}, []pkgfile.Package{v1}))
	require.NoError(t, set.Merge(&fakeResolvable{name: "bar"}, []pkgfile.Package{v2}))

	snap := set.Packages()
	require.Len(t, snap, 2)
	assert.Len(t, snap["foo"], 1)
	assert.Len(t, snap["bar"], 1)
}
