// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep440_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wickman/pex/pkg/python/pep440"
)

func mustVer(t *testing.T, s string) pep440.Version {
	t.Helper()
	ver, err := pep440.ParseVersion(s)
	require.NoError(t, err)
	return *ver
}

func TestSpecifierMatch(t *testing.T) {
	t.Parallel()
	testcases := []struct {
		spec  string
		ver   string
		match bool
	}{
		{"~=2.2", "2.2.1", true},
		{"~=2.2", "2.3", true},
		{"~=2.2", "3.0", false},
		{"~=1.4.5", "1.4.6", true},
		{"~=1.4.5", "1.5.0", false},
		{"==1.1", "1.1.post1", false},
		{"==1.1.post1", "1.1.post1", true},
		{"==1.1.*", "1.1.post1", true},
		{"==1.1.*", "1.1a1", true},
		{"!=1.1", "1.1.post1", true},
		{"!=1.1.post1", "1.1.post1", false},
		{">=1.0,<2.0", "1.5", true},
		{">=1.0,<2.0", "2.0", false},
		{">1.7", "1.7.1", true},
		{">1.7", "1.7.0.post1", false},
		{">1.7.post2", "1.7.0.post3", true},
	}
	for _, tc := range testcases {
		tc := tc
		t.Run(tc.spec+" "+tc.ver, func(t *testing.T) {
			t.Parallel()
			spec, err := pep440.ParseSpecifier(tc.spec)
			require.NoError(t, err)
			assert.Equal(t, tc.match, spec.Match(mustVer(t, tc.ver)))
		})
	}
}

func TestSpecifierSelectPrefersFinalOverPreRelease(t *testing.T) {
	t.Parallel()
	spec, err := pep440.ParseSpecifier(">=1.0")
	require.NoError(t, err)
	choices := []pep440.Version{
		mustVer(t, "1.0"),
		mustVer(t, "1.1a1"),
		mustVer(t, "1.0.1"),
	}
	best := spec.Select(choices, pep440.ExcludePreReleases{})
	require.NotNil(t, best)
	assert.Equal(t, "1.0.1", best.String())
}

func TestSpecifierSelectFallsBackToPreRelease(t *testing.T) {
	t.Parallel()
	spec, err := pep440.ParseSpecifier(">1.0")
	require.NoError(t, err)
	choices := []pep440.Version{
		mustVer(t, "1.0"),
		mustVer(t, "1.1a1"),
	}
	best := spec.Select(choices, pep440.ExcludePreReleases{})
	require.NotNil(t, best)
	assert.Equal(t, "1.1a1", best.String())
}

func TestSpecifierSelectAllowAll(t *testing.T) {
	t.Parallel()
	spec, err := pep440.ParseSpecifier(">=1.0")
	require.NoError(t, err)
	choices := []pep440.Version{mustVer(t, "1.0"), mustVer(t, "1.1a1")}
	best := spec.Select(choices, pep440.AllowAll{})
	require.NotNil(t, best)
	assert.Equal(t, "1.1a1", best.String())
}
