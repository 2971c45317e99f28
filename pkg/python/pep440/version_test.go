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

func TestParseVersionString(t *testing.T) {
	t.Parallel()
	testcases := map[string]string{
		"1.0":            "1.0",
		"v1.0":           "1.0",
		"1.0.dev456":     "1.0.dev456",
		"1.0a1":          "1.0a1",
		"1.0.alpha1":     "1.0a1",
		"1.0b2.post345":  "1.0b2.post345",
		"1.0-1":          "1.0.post1",
		"1.0.post":       "1.0.post0",
		"1!1.0":          "1!1.0",
		"1.0+ubuntu-1":   "1.0+ubuntu.1",
		"  1.0  ":        "1.0",
		"1.0rc1":         "1.0rc1",
		"1.0c1":          "1.0rc1",
	}
	for in, out := range testcases {
		in, out := in, out
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			ver, err := pep440.ParseVersion(in)
			require.NoError(t, err)
			assert.Equal(t, out, ver.String())
		})
	}
}

func TestParseVersionError(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "abc", "1.0-", "1.0.dev1.*"} {
		in := in
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			_, err := pep440.ParseVersion(in)
			assert.Error(t, err)
		})
	}
}

func TestVersionCmpOrdering(t *testing.T) {
	t.Parallel()
	ordered := []string{
		"1.0.dev456",
		"1.0a1",
		"1.0a2.dev456",
		"1.0a12.dev456",
		"1.0a12",
		"1.0b1.dev456",
		"1.0b2",
		"1.0b2.post345.dev456",
		"1.0b2.post345",
		"1.0rc1.dev456",
		"1.0rc1",
		"1.0",
		"1.0+abc.5",
		"1.0+abc.7",
		"1.0+5",
		"1.0.post456.dev34",
		"1.0.post456",
		"1.1.dev1",
	}
	prev, err := pep440.ParseVersion(ordered[0])
	require.NoError(t, err)
	for _, s := range ordered[1:] {
		cur, err := pep440.ParseVersion(s)
		require.NoError(t, err)
		assert.Truef(t, prev.Cmp(*cur) < 0, "%s should sort before %s", prev, cur)
		prev = cur
	}
}

func TestVersionMajorMinorMicro(t *testing.T) {
	t.Parallel()
	ver, err := pep440.ParseVersion("3.4.5.6")
	require.NoError(t, err)
	assert.Equal(t, 3, ver.Major())
	assert.Equal(t, 4, ver.Minor())
	assert.Equal(t, 5, ver.Micro())
}
