// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/wickman/pex/pkg/cliutil"
	"github.com/wickman/pex/pkg/interp"
)

func init() {
	var flags struct {
		Python string
	}

	cmd := &cobra.Command{
		Use:   "inspect [flags] >INTERPRETER.yml",
		Short: "Dump the discovered interpreter identity as YAML",
		Args:  cliutil.WrapPositionalArgs(cobra.NoArgs),
		Long: "Probe a Python interpreter and print its implementation, version, " +
			"platform, and compatibility tags as YAML.",

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			identity, err := interp.Discover(ctx, flags.Python)
			if err != nil {
				return &interpreterSetupError{err: err}
			}

			bs, err := yaml.Marshal(identityOutput{
				Implementation: identity.Implementation,
				Version: fmt.Sprintf("%d.%d.%d",
					identity.VersionInfo.Major, identity.VersionInfo.Minor, identity.VersionInfo.Micro),
				Platform: identity.Platform,
				Tags:     tagStrings(identity),
			})
			if err != nil {
				return fmt.Errorf("pex inspect: %w", err)
			}
			_, err = os.Stdout.Write(bs)
			return err
		},
	}
	cmd.Flags().StringVar(&flags.Python, "python", "python3", "the Python interpreter to inspect")

	argparser.AddCommand(cmd)
}

type identityOutput struct {
	Implementation string   `yaml:"implementation"`
	Version        string   `yaml:"version"`
	Platform       string   `yaml:"platform"`
	Tags           []string `yaml:"tags"`
}

func tagStrings(identity *interp.Identity) []string {
	out := make([]string, 0, len(identity.Tags))
	for _, t := range identity.Tags {
		out = append(out, fmt.Sprintf("%s-%s-%s", t.Python, t.ABI, t.Platform))
	}
	return out
}
