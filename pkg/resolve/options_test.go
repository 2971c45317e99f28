// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package resolve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wickman/pex/pkg/iterate"
	"github.com/wickman/pex/pkg/resolve"
)

func TestResolverOptionsBuilderDefaults(t *testing.T) {
	opts := resolve.NewResolverOptionsBuilder().Build()
	assert.Len(t, opts.Fetchers, 1)
	assert.Equal(t, iterate.DefaultPrecedence, opts.Precedence)
	assert.False(t, opts.AllowsExternal("foo"))
}

func TestResolverOptionsBuilderNoUseWheelDropsWheelPrecedence(t *testing.T) {
	opts := resolve.NewResolverOptionsBuilder().NoUseWheel().Build()
	for _, k := range opts.Precedence {
		assert.NotEqual(t, iterate.KindWheel, k)
	}
}

func TestResolverOptionsBuilderAllowExternalIsPerName(t *testing.T) {
	opts := resolve.NewResolverOptionsBuilder().AllowExternal("Foo_Bar").Build()
	assert.True(t, opts.AllowsExternal("foo-bar"))
	assert.False(t, opts.AllowsExternal("other"))
}

func TestResolverOptionsBuilderAllowAllExternal(t *testing.T) {
	opts := resolve.NewResolverOptionsBuilder().AllowAllExternal().Build()
	assert.True(t, opts.AllowsExternal("anything"))
}

func TestResolverOptionsBuilderAddIndexAppends(t *testing.T) {
	opts := resolve.NewResolverOptionsBuilder().AddIndex("https://example.org/simple/").Build()
	assert.Len(t, opts.Fetchers, 2)
}

func TestResolverOptionsBuilderClearIndicesKeepsRepositories(t *testing.T) {
	opts := resolve.NewResolverOptionsBuilder().
		AddRepository("/var/cache/pex").
		ClearIndices().
		Build()
	assert.Len(t, opts.Fetchers, 1)
}
