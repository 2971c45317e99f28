// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

// Command pex resolves Python package requirements into a set of
// distributions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/datawire/dlib/dlog"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wickman/pex/pkg/cliutil"
)

//nolint:gochecknoglobals // shared by reference so -v can rewrite its level after flag parsing
var logrusLogger = logrus.New()

var argparser = &cobra.Command{
	Use:   "pex {[flags]|SUBCOMMAND...}",
	Short: "Resolve Python package requirements",

	Args: cliutil.OnlySubcommands,
	RunE: cliutil.RunSubcommands,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logrusLogger.SetLevel(logrusLevelFor(verboseCount))
		return nil
	},

	SilenceErrors: true, // main() will handle this after .ExecuteContext() returns
	SilenceUsage:  true, // our FlagErrorFunc will handle it
}

//nolint:gochecknoglobals // set by a persistent flag, read in PersistentPreRunE
var verboseCount int

func init() {
	argparser.SetFlagErrorFunc(cliutil.FlagErrorFunc)
	argparser.SetHelpTemplate(cliutil.HelpTemplate)
	argparser.PersistentFlags().CountVarP(&verboseCount, "verbose", "v",
		"increase logging verbosity; may be repeated")
	logrusLogger.SetFormatter(&logrus.TextFormatter{})
}

func logrusLevelFor(count int) logrus.Level {
	switch {
	case count >= 2:
		return logrus.DebugLevel
	case count == 1:
		return logrus.InfoLevel
	default:
		return logrus.WarnLevel
	}
}

func main() {
	ctx := context.Background()
	ctx = dlog.WithLogger(ctx, dlog.WrapLogrus(logrusLogger))

	if err := argparser.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(argparser.ErrOrStderr(), "%s: error: %v\n", argparser.CommandPath(), err)
		os.Exit(exitCodeFor(err))
	}
}
