// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
)

// Format is a descriptor file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// FormatOf returns the format implied by a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".hcl":
		return FormatHCL, true
	}
	return "", false
}

// LoadOptions controls how descriptors are loaded
type LoadOptions struct {
	// AllowUnknownFields ignores keys that do not map to a descriptor field.
	AllowUnknownFields bool
}

// DefaultLoadOptions returns strict loading.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{}
}

// Decode decodes data of the given format into out.
func Decode(data []byte, format Format, filename string, out any, opts LoadOptions) error {
	var err error
	switch format {
	case FormatYAML:
	case FormatJSON:
		data, err = jsonToYAML(data)
	case FormatHCL:
		data, err = hclToJSON(data, filename)
		if err == nil {
			data, err = jsonToYAML(data)
		}
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return errors.Attr(errors.Wrapf(err, errors.KindSchema, "%s", filename), "file", filename)
	}

	if opts.AllowUnknownFields {
		err = decodeLenient(data, out)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err = dec.Decode(out); err == io.EOF {
			err = nil
		}
	}
	if err != nil {
		return errors.Attr(errors.Wrapf(err, errors.KindSchema, "%s", filename), "file", filename)
	}
	return nil
}

// decodeLenient decodes data into out after dropping the keys out does not
// know about.
func decodeLenient(data []byte, out any) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return err
	}
	if root.Kind == 0 {
		return nil
	}
	dropUnknownKeys(&root, reflect.TypeOf(out))
	return root.Decode(out)
}

// jsonToYAML re-encodes a JSON document as YAML so every format shares the
// same decoding rules.
func jsonToYAML(data []byte) ([]byte, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return yaml.Marshal(v)
}

// LoadSiteFile loads a site descriptor. The site name defaults to the name of
// the directory holding the file.
func LoadSiteFile(path string, opts LoadOptions) (*Site, error) {
	var site Site
	if err := loadFile(path, &site, opts); err != nil {
		return nil, err
	}
	if site.Name == "" {
		abs, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, errors.Wrap(err, errors.KindInternal, "failed to resolve site directory")
		}
		site.Name = filepath.Base(abs)
	}
	return &site, nil
}

// LoadHostFile loads a host descriptor. The hostname defaults to the file's
// base name without extension.
func LoadHostFile(path string, opts LoadOptions) (*Host, error) {
	var host Host
	if err := loadFile(path, &host, opts); err != nil {
		return nil, err
	}
	if host.Hostname == "" {
		base := filepath.Base(path)
		host.Hostname = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &host, nil
}

func loadFile(path string, out any, opts LoadOptions) error {
	format, ok := FormatOf(path)
	if !ok {
		return errors.Errorf(errors.KindSchema, "unsupported descriptor file %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, errors.KindNotFound, "failed to read %s", path)
	}
	return Decode(data, format, path, out, opts)
}

// SiteDir is a site descriptor plus its host descriptors in load order.
type SiteDir struct {
	Dir   string
	Site  *Site
	Hosts []*Host
}

// siteBaseName is the stem of the site descriptor file.
const siteBaseName = "site"

// LoadSiteDir loads site.{yaml,yml,json,hcl} from dir and every other
// descriptor in it as a host. Hosts are returned sorted by file name so
// that load order is stable between runs.
func LoadSiteDir(dir string, opts LoadOptions) (*SiteDir, error) {
	log := logging.WithComponent("config")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindNotFound, "failed to read site directory %s", dir)
	}

	var sitePath string
	var hostPaths []string

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, ok := FormatOf(name); !ok {
			log.Debug("skipping file", "file", name)
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == siteBaseName {
			if sitePath != "" {
				return nil, errors.Errorf(errors.KindConflict, "multiple site descriptors in %s: %s and %s",
					dir, filepath.Base(sitePath), name)
			}
			sitePath = filepath.Join(dir, name)
			continue
		}
		hostPaths = append(hostPaths, filepath.Join(dir, name))
	}

	if sitePath == "" {
		return nil, errors.Errorf(errors.KindNotFound, "no site descriptor found in %s", dir)
	}
	sort.Strings(hostPaths)

	log.Info("loading site", "dir", dir, "site_file", filepath.Base(sitePath), "hosts", len(hostPaths))

	site, err := LoadSiteFile(sitePath, opts)
	if err != nil {
		return nil, err
	}

	result := &SiteDir{Dir: dir, Site: site}
	for _, p := range hostPaths {
		host, err := LoadHostFile(p, opts)
		if err != nil {
			return nil, err
		}
		result.Hosts = append(result.Hosts, host)
	}
	return result, nil
}
