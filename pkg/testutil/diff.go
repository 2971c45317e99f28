// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/wickman/pex/pkg/translate"
)

var distSpewConfig = spew.ConfigState{ //nolint:exhaustivestruct
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// DumpDistributions renders a resolved set of distributions as a
// deterministic, order-preserving listing: name, version, origin path, and
// declared Requires-Dist/Requires-Python, one block per distribution.
func DumpDistributions(dists []*translate.Distribution) string {
	ret := new(strings.Builder)
	for _, d := range dists {
		ret.WriteString(d.Name())
		ret.WriteByte(' ')
		ret.WriteString(d.Version().String())
		ret.WriteByte('\n')
		ret.WriteString("path = ")
		ret.WriteString(d.Path)
		ret.WriteByte('\n')
		ret.WriteString("requires_python = ")
		ret.WriteString(d.RequiresPython())
		ret.WriteByte('\n')
		ret.WriteString("requires_dist =\n")
		ret.WriteString(distSpewConfig.Sdump(d.RequiresDist()))
	}
	return ret.String()
}

// AssertEqualDistributions fails t with a unified diff of DumpDistributions
// output for exp and act if the resolved sets differ, rather than testify's
// single-line representation of a []*translate.Distribution -- useful once a
// resolve produces more than a couple of distributions to eyeball.
func AssertEqualDistributions(t *testing.T, exp, act []*translate.Distribution) bool {
	t.Helper()

	expStr := DumpDistributions(exp)
	actStr := DumpDistributions(act)
	if expStr == actStr {
		return true
	}

	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{ //nolint:exhaustivestruct
		A:        difflib.SplitLines(expStr),
		B:        difflib.SplitLines(actStr),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  3,
	})
	t.Errorf("distribution set diff:\n%s", diff)
	return false
}
