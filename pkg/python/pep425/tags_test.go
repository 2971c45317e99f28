// Copyright (C) 2021  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package pep425_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wickman/pex/pkg/python/pep425"
)

func TestTagDecompress(t *testing.T) {
	t.Parallel()
	tag := pep425.Tag{Python: "py2.py3", ABI: "none", Platform: "any"}
	assert.ElementsMatch(t, []pep425.Tag{
		{Python: "py2", ABI: "none", Platform: "any"},
		{Python: "py3", ABI: "none", Platform: "any"},
	}, tag.Decompress())
}

func TestTagString(t *testing.T) {
	t.Parallel()
	tag := pep425.Tag{Python: "cp39", ABI: "cp39", Platform: "manylinux_2_17_x86_64"}
	assert.Equal(t, "cp39-cp39-manylinux_2_17_x86_64", tag.String())
}

func TestIntersect(t *testing.T) {
	t.Parallel()
	a := []pep425.Tag{{Python: "py2.py3", ABI: "none", Platform: "any"}}
	b := []pep425.Tag{{Python: "cp39", ABI: "cp39", Platform: "manylinux_2_17_x86_64"}, {Python: "py3", ABI: "none", Platform: "any"}}
	assert.True(t, pep425.Intersect(a, b))
	assert.False(t, pep425.Intersect(a, []pep425.Tag{{Python: "py3", ABI: "abi3", Platform: "win32"}}))
}

func TestInstallerPreference(t *testing.T) {
	t.Parallel()
	inst := pep425.Installer{
		{Python: "cp39", ABI: "cp39", Platform: "manylinux_2_17_x86_64"},
		{Python: "py3", ABI: "none", Platform: "any"},
	}
	assert.True(t, inst.Supports(pep425.Tag{Python: "py3", ABI: "none", Platform: "any"}))
	assert.False(t, inst.Supports(pep425.Tag{Python: "py3", ABI: "none", Platform: "win32"}))
	assert.Equal(t, 1, inst.Preference(pep425.Tag{Python: "cp39", ABI: "cp39", Platform: "manylinux_2_17_x86_64"}))
	assert.Equal(t, 2, inst.Preference(pep425.Tag{Python: "py3", ABI: "none", Platform: "any"}))
	assert.Equal(t, 3, inst.Preference(pep425.Tag{Python: "cp38", ABI: "cp38", Platform: "win32"}))
}
