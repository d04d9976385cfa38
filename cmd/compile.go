// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"github.com/spf13/cobra"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/metrics"
	"grimm.is/yodeler/internal/site"
)

// CompileOptions configures RunCompile.
type CompileOptions struct {
	SiteDir            string
	OutputDir          string
	Format             string
	MetricsFile        string
	AllowUnknownFields bool
}

func newCompileCommand() *cobra.Command {
	var opts CompileOptions
	c := &cobra.Command{
		Use:   "compile SITE_DIR",
		Short: "Resolve a site directory and write the site model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.SiteDir = args[0]
			path, err := RunCompile(opts)
			if err != nil {
				return err
			}
			printf(cmd, "wrote %s\n", path)
			return nil
		},
	}
	fs := c.Flags()
	fs.StringVarP(&opts.OutputDir, "output", "o", "build", "directory the site model is written under")
	fs.StringVarP(&opts.Format, "format", "f", string(config.FormatYAML), "model format: yaml or json")
	fs.StringVar(&opts.MetricsFile, "metrics-file", "", "write build metrics in Prometheus text format to this file")
	fs.BoolVar(&opts.AllowUnknownFields, "allow-unknown-fields", false, "ignore unknown keys in descriptor files")
	return c
}

// RunCompile builds the site in opts.SiteDir and writes its model. It returns
// the path of the written model.
func RunCompile(opts CompileOptions) (string, error) {
	format := config.Format(opts.Format)
	if format != config.FormatYAML && format != config.FormatJSON {
		return "", errors.Schema("format", opts.Format, "unsupported output format '%s'", opts.Format)
	}

	m := metrics.NewRegistry()
	s, err := build(opts.SiteDir, opts.AllowUnknownFields, m)
	if err != nil {
		return "", err
	}

	path, err := s.Model().WriteFile(opts.OutputDir, format)
	if err != nil {
		return "", err
	}
	logging.WithComponent("cli").Info("site compiled", "site", s.Name, "path", path)

	if opts.MetricsFile != "" {
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			return "", err
		}
	}
	return path, nil
}

func build(dir string, allowUnknown bool, m *metrics.Registry) (*site.Site, error) {
	loadOpts := config.DefaultLoadOptions()
	loadOpts.AllowUnknownFields = allowUnknown

	sd, err := config.LoadSiteDir(dir, loadOpts)
	if err != nil {
		return nil, err
	}
	b, err := site.NewBuilder(sd.Site, m)
	if err != nil {
		return nil, err
	}
	return site.Build(sd, b)
}
