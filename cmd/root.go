// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cmd implements the yodeler command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
)

// GlobalOptions are the flags shared by every subcommand.
type GlobalOptions struct {
	LogLevel string
	LogJSON  bool
}

func (o *GlobalOptions) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", "info", "log level: debug, info, warn or error")
	fs.BoolVar(&o.LogJSON, "log-json", false, "log as JSON instead of console text")
}

func (o *GlobalOptions) setupLogging(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(o.LogLevel)
	if err != nil {
		return errors.Wrap(err, errors.KindSchema, "invalid --log-level")
	}
	logging.SetDefault(logging.New(logging.Config{
		Level:  level,
		JSON:   o.LogJSON,
		Output: cmd.ErrOrStderr(),
	}))
	return nil
}

// NewRootCommand builds the yodeler command tree.
func NewRootCommand() *cobra.Command {
	var global GlobalOptions

	root := &cobra.Command{
		Use:          "yodeler",
		Short:        "Resolve a site description into a host and firewall model",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return global.setupLogging(cmd)
		},
	}
	global.addFlags(root.PersistentFlags())

	root.AddCommand(newCompileCommand(), newValidateCommand())
	return root
}

// ExitCode maps an error to a process exit status: 2 for bad input, 1 otherwise.
func ExitCode(err error) int {
	switch errors.GetKind(err) {
	case errors.KindSchema, errors.KindSemantic, errors.KindNotFound, errors.KindConflict:
		return 2
	}
	return 1
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
