// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/wickman/pex/pkg/cliutil"
	"github.com/wickman/pex/pkg/crawl"
	"github.com/wickman/pex/pkg/fetcher"
	"github.com/wickman/pex/pkg/fetchctx"
	"github.com/wickman/pex/pkg/interp"
	"github.com/wickman/pex/pkg/iterate"
	"github.com/wickman/pex/pkg/reqfile"
	"github.com/wickman/pex/pkg/resolvable"
	"github.com/wickman/pex/pkg/resolve"
	"github.com/wickman/pex/pkg/translate"
)

func init() {
	var flags struct {
		Requirements []string
		FindLinks    []string
		IndexURLs    []string
		NoIndex      bool
		UseWheel     bool
		Build        bool
		CacheDir     string
		CacheTTL     int
		Python       string
		Platform     string
		Threads      int
	}

	cmd := &cobra.Command{
		Use:   "resolve [flags] [REQUIREMENT...] >DISTRIBUTIONS.yml",
		Short: "Resolve requirements into a set of distributions",
		Args:  cliutil.WrapPositionalArgs(cobra.ArbitraryArgs),

		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			builder := resolve.NewResolverOptionsBuilder()
			if len(flags.IndexURLs) > 0 {
				builder.ClearIndices()
				for _, idx := range flags.IndexURLs {
					builder.AddIndex(idx)
				}
			}
			for _, repo := range flags.FindLinks {
				builder.AddRepository(repo)
			}
			if flags.NoIndex {
				builder.ClearIndices()
			}
			if !flags.UseWheel {
				builder.NoUseWheel()
			}

			resolvables := make([]resolvable.Resolvable, 0, len(args))
			for _, raw := range args {
				r, err := resolvable.Get(raw)
				if err != nil {
					return fmt.Errorf("pex resolve: %w", err)
				}
				resolvables = append(resolvables, r)
			}
			for _, path := range flags.Requirements {
				fromFile, _, err := reqfile.FromFile(path, builder)
				if err != nil {
					return fmt.Errorf("pex resolve: %w", err)
				}
				resolvables = append(resolvables, fromFile...)
			}

			identity, err := interp.Discover(ctx, flags.Python)
			if err != nil {
				return &interpreterSetupError{err: err}
			}
			if flags.Platform != "" {
				identity.Platform = flags.Platform
			}

			if flags.CacheDir == "" {
				flags.CacheDir, err = os.MkdirTemp("", "pex-cache-")
				if err != nil {
					return fmt.Errorf("pex resolve: %w", err)
				}
			} else if err := os.MkdirAll(flags.CacheDir, 0o755); err != nil {
				return fmt.Errorf("pex resolve: %w", err)
			}

			fetchCtx := &fetchctx.Context{}
			crawler := &crawl.Crawler{Context: fetchCtx, Threads: flags.Threads}
			opts := builder.Build()
			finder := opts.Finder(crawler)

			var xlate translate.Translator = translate.Default(fetchCtx, flags.CacheDir)
			if !flags.Build {
				xlate = translate.ChainedTranslator{Translators: []translate.Translator{
					&translate.BinaryTranslator{Fetcher: fetchCtx, CacheDir: flags.CacheDir},
				}}
			}

			r := &resolve.Resolver{
				Finder:     finder,
				Translator: xlate,
				Compat:     identity.CompatContext(),
				Env:        identity.Environment(),
			}
			if flags.CacheTTL > 0 {
				cacheOnly := &iterate.Iterator{
					Crawler:     crawler,
					Fetchers:    []fetcher.Fetcher{fetcher.NewRepoFetcher(flags.CacheDir)},
					Precedence:  opts.Precedence,
					FollowLinks: false,
				}
				r.Finder = &resolve.CachingFinder{Cache: cacheOnly, Network: finder, TTL: time.Duration(flags.CacheTTL) * time.Second}
				r.Translator = &resolve.CachingTranslator{Fetcher: fetchCtx, CacheDir: flags.CacheDir, Translator: xlate}
			}

			return runResolve(ctx, r, resolvables)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.Requirements, "requirement", "r", nil,
		"a requirements file to include (may repeat)")
	cmd.Flags().StringArrayVarP(&flags.FindLinks, "find-links", "f", nil,
		"an additional repository URL or path to search (may repeat)")
	cmd.Flags().StringArrayVarP(&flags.IndexURLs, "index-url", "i", nil,
		"a package index URL to search, replacing the default (may repeat)")
	cmd.Flags().BoolVar(&flags.NoIndex, "no-index", false, "never contact a package index")
	cmd.Flags().BoolVar(&flags.UseWheel, "wheel", true, "allow selecting pre-built wheels")
	cmd.Flags().BoolVar(&flags.Build, "build", true, "allow building source distributions")
	cmd.Flags().StringVar(&flags.CacheDir, "cache-dir", "", "directory to cache materialized distributions in")
	cmd.Flags().IntVar(&flags.CacheTTL, "cache-ttl", 0, "how many seconds to trust a cached distribution before re-checking the index")
	cmd.Flags().StringVar(&flags.Python, "python", "python3", "the Python interpreter to resolve for")
	cmd.Flags().StringVar(&flags.Platform, "platform", "", "override the PEP 425 platform tag")
	cmd.Flags().IntVar(&flags.Threads, "threads", 1, "number of concurrent crawler workers")

	argparser.AddCommand(cmd)
}

// distributionOutput is the YAML shape written to stdout, one per resolved
// project name.
type distributionOutput struct {
	Name           string   `yaml:"name"`
	Version        string   `yaml:"version"`
	Path           string   `yaml:"path"`
	RequiresDist   []string `yaml:"requires_dist,omitempty"`
	RequiresPython string   `yaml:"requires_python,omitempty"`
}

func runResolve(ctx context.Context, r *resolve.Resolver, resolvables []resolvable.Resolvable) error {
	dists, err := r.Resolve(ctx, resolvables)
	if err != nil {
		return fmt.Errorf("pex resolve: %w", err)
	}

	out := make([]distributionOutput, 0, len(dists))
	for _, d := range dists {
		out = append(out, distributionOutput{
			Name:           d.Name(),
			Version:        d.Version().String(),
			Path:           d.Path,
			RequiresDist:   d.RequiresDist(),
			RequiresPython: d.RequiresPython(),
		})
	}

	bs, err := yaml.Marshal(out)
	if err != nil {
		return fmt.Errorf("pex resolve: %w", err)
	}
	_, err = os.Stdout.Write(bs)
	return err
}
