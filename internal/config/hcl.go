// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// hclToJSON evaluates the top-level attributes of an HCL document and
// returns them as a JSON object. Only literal expressions are supported;
// there are no variables or functions in scope.
//
//	domain    = "example.com"
//	vswitches = [{ name = "sw0", vlans = [{ name = "lan", id = 10, ipv4_subnet = "192.168.1.0/24" }] }]
func hclToJSON(data []byte, filename string) ([]byte, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL: %w", diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to read HCL attributes: %w", diags)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	vals := make(map[string]cty.Value, len(attrs))
	for _, name := range names {
		v, vdiags := attrs[name].Expr.Value(nil)
		if vdiags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate %s: %w", name, vdiags)
		}
		vals[name] = v
	}

	out, err := ctyjson.SimpleJSONValue{Value: cty.ObjectVal(vals)}.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to convert HCL to JSON: %w", err)
	}
	return out, nil
}
