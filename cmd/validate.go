// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"github.com/spf13/cobra"

	"grimm.is/yodeler/internal/metrics"
)

func newValidateCommand() *cobra.Command {
	var allowUnknown bool
	c := &cobra.Command{
		Use:   "validate SITE_DIR",
		Short: "Check a site directory without writing any output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := build(args[0], allowUnknown, metrics.NewRegistry())
			if err != nil {
				return err
			}
			printf(cmd, "site '%s' is valid: %d hosts, %d firewall rules\n",
				s.Name, len(s.Hosts), len(s.Firewall.Rules))
			return nil
		},
	}
	c.Flags().BoolVar(&allowUnknown, "allow-unknown-fields", false, "ignore unknown keys in descriptor files")
	return c
}
