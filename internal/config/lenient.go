// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// keyedValue is implemented by values that check their own mapping keys.
// yamlFields maps each accepted key to the type its value decodes into.
type keyedValue interface {
	yamlFields() map[string]reflect.Type
}

// listValue is implemented by lists that decode their own entries.
type listValue interface {
	yamlElem() reflect.Type
}

var (
	keyedType       = reflect.TypeOf((*keyedValue)(nil)).Elem()
	listType        = reflect.TypeOf((*listValue)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*yaml.Unmarshaler)(nil)).Elem()
)

// dropUnknownKeys removes every mapping key under node that the Go type t
// would reject, so that lenient loads also tolerate unknown keys inside
// values with their own UnmarshalYAML.
func dropUnknownKeys(node *yaml.Node, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	switch node.Kind {
	case yaml.DocumentNode:
		for _, c := range node.Content {
			dropUnknownKeys(c, t)
		}
		return
	case yaml.AliasNode:
		return
	}

	pt := reflect.PointerTo(t)
	switch {
	case pt.Implements(keyedType):
		filterMapping(node, reflect.New(t).Interface().(keyedValue).yamlFields())
	case pt.Implements(listType):
		elem := reflect.New(t).Interface().(listValue).yamlElem()
		if node.Kind == yaml.SequenceNode {
			for _, c := range node.Content {
				dropUnknownKeys(c, elem)
			}
		} else {
			dropUnknownKeys(node, elem)
		}
	case pt.Implements(unmarshalerType):
	case t.Kind() == reflect.Struct:
		filterMapping(node, structFields(t))
	case t.Kind() == reflect.Slice:
		if node.Kind == yaml.SequenceNode {
			for _, c := range node.Content {
				dropUnknownKeys(c, t.Elem())
			}
		}
	}
}

func filterMapping(node *yaml.Node, fields map[string]reflect.Type) {
	if node.Kind != yaml.MappingNode {
		return
	}
	kept := node.Content[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		if key.Value == "<<" {
			kept = append(kept, key, val)
			continue
		}
		ft, ok := fields[key.Value]
		if !ok {
			continue
		}
		dropUnknownKeys(val, ft)
		kept = append(kept, key, val)
	}
	node.Content = kept
}

// structFields returns the yaml keys of t's exported fields.
func structFields(t reflect.Type) map[string]reflect.Type {
	fields := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			continue
		}
		if strings.Contains(opts, "inline") {
			for k, v := range structFields(f.Type) {
				fields[k] = v
			}
			continue
		}
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		fields[name] = f.Type
	}
	return fields
}
