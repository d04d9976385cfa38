// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// VLANRef refers to a VLAN by name or by numeric id. The zero value means no
// reference was given, which resolves to the switch's untagged or default VLAN.
type VLANRef struct {
	set  bool
	id   int
	name string
}

// VLANName returns a reference by name.
func VLANName(name string) VLANRef { return VLANRef{set: true, name: name} }

// VLANID returns a reference by numeric id.
func VLANID(id int) VLANRef { return VLANRef{set: true, id: id} }

// IsZero reports whether no reference was given.
func (r VLANRef) IsZero() bool { return !r.set }

// Name returns the referenced name, if the reference is by name.
func (r VLANRef) Name() (string, bool) { return r.name, r.set && r.name != "" }

// ID returns the referenced id, if the reference is by id.
func (r VLANRef) ID() (int, bool) { return r.id, r.set && r.name == "" }

func (r VLANRef) String() string {
	switch {
	case !r.set:
		return "<none>"
	case r.name != "":
		return r.name
	default:
		return strconv.Itoa(r.id)
	}
}

func (r *VLANRef) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: vlan must be a name or an id", node.Line)
	}
	switch node.ShortTag() {
	case "!!int":
		id, err := strconv.Atoi(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: invalid vlan id %q", node.Line, node.Value)
		}
		*r = VLANID(id)
	case "!!str":
		if node.Value == "" {
			return fmt.Errorf("line %d: vlan name cannot be empty", node.Line)
		}
		*r = VLANName(node.Value)
	default:
		return fmt.Errorf("line %d: vlan must be a name or an id, not %s", node.Line, node.ShortTag())
	}
	return nil
}

func (r VLANRef) MarshalYAML() (any, error) {
	if id, ok := r.ID(); ok {
		return id, nil
	}
	if name, ok := r.Name(); ok {
		return name, nil
	}
	return nil, nil
}

// StringList accepts either a single string or a list of strings.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" {
			return fmt.Errorf("line %d: expected a string or list of strings, got %q", node.Line, node.Value)
		}
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
				return fmt.Errorf("line %d: list entries must be strings, got %q", item.Line, item.Value)
			}
			out = append(out, item.Value)
		}
		*s = out
		return nil
	}
	return fmt.Errorf("line %d: expected a string or list of strings", node.Line)
}

// Port is a single port entry: a number or a range string.
type Port struct {
	Number int
	Range  string
}

func (p Port) String() string {
	if p.Range != "" {
		return p.Range
	}
	return strconv.Itoa(p.Number)
}

// PortList accepts an integer, a string, or a list of either.
type PortList []Port

func (p *PortList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) == 0 {
			return fmt.Errorf("line %d: port list cannot be empty", node.Line)
		}
		out := make(PortList, 0, len(node.Content))
		for _, item := range node.Content {
			port, err := decodePort(item)
			if err != nil {
				return err
			}
			out = append(out, port)
		}
		*p = out
		return nil
	}

	port, err := decodePort(node)
	if err != nil {
		return err
	}
	*p = PortList{port}
	return nil
}

func decodePort(node *yaml.Node) (Port, error) {
	if node.Kind != yaml.ScalarNode {
		return Port{}, fmt.Errorf("line %d: port must be a string or int", node.Line)
	}
	switch node.ShortTag() {
	case "!!int":
		n, err := strconv.Atoi(node.Value)
		if err != nil {
			return Port{}, fmt.Errorf("line %d: invalid port %q", node.Line, node.Value)
		}
		return Port{Number: n}, nil
	case "!!str":
		return Port{Range: node.Value}, nil
	}
	return Port{}, fmt.Errorf("line %d: port must be a string or int, not %s", node.Line, node.ShortTag())
}

// ProtoPort is an explicit protocol and port list action.
type ProtoPort struct {
	Proto   string
	Ports   PortList
	Comment string
}

var protoPortFields = map[string]reflect.Type{
	"proto":   reflect.TypeOf(""),
	"port":    reflect.TypeOf(PortList{}),
	"ports":   reflect.TypeOf(PortList{}),
	"comment": reflect.TypeOf(""),
}

func (ProtoPort) yamlFields() map[string]reflect.Type { return protoPortFields }

func (pp *ProtoPort) UnmarshalYAML(node *yaml.Node) error {
	if err := checkKeys(node, protoPortFields); err != nil {
		return err
	}
	var raw struct {
		Proto   string   `yaml:"proto"`
		Port    PortList `yaml:"port"`
		Ports   PortList `yaml:"ports"`
		Comment string   `yaml:"comment"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Port != nil && raw.Ports != nil {
		return fmt.Errorf("line %d: cannot set both port and ports", node.Line)
	}
	pp.Proto = raw.Proto
	pp.Comment = raw.Comment
	pp.Ports = raw.Port
	if pp.Ports == nil {
		pp.Ports = raw.Ports
	}
	return nil
}

// ActionSpec is either a named service or a proto/port pair.
type ActionSpec struct {
	Service   string
	ProtoPort *ProtoPort
}

// ActionList accepts a service name, a proto/port object, or a list of either.
type ActionList []ActionSpec

func (ActionList) yamlElem() reflect.Type { return reflect.TypeOf(ProtoPort{}) }

func (a *ActionList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		if len(node.Content) == 0 {
			return fmt.Errorf("line %d: action list cannot be empty", node.Line)
		}
		out := make(ActionList, 0, len(node.Content))
		for _, item := range node.Content {
			spec, err := decodeAction(item)
			if err != nil {
				return err
			}
			out = append(out, spec)
		}
		*a = out
		return nil
	}

	spec, err := decodeAction(node)
	if err != nil {
		return err
	}
	*a = ActionList{spec}
	return nil
}

func decodeAction(node *yaml.Node) (ActionSpec, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.ShortTag() != "!!str" {
			return ActionSpec{}, fmt.Errorf("line %d: action must be a service name or a proto/port object", node.Line)
		}
		return ActionSpec{Service: node.Value}, nil
	case yaml.MappingNode:
		var pp ProtoPort
		if err := node.Decode(&pp); err != nil {
			return ActionSpec{}, err
		}
		return ActionSpec{ProtoPort: &pp}, nil
	}
	return ActionSpec{}, fmt.Errorf("line %d: action must be a service name or a proto/port object", node.Line)
}

// Location is one symbolic rule endpoint. Selector fields are pointers so
// that an empty value can be told apart from an absent key.
type Location struct {
	VLAN        VLANRef
	VSwitch     string
	Hostname    *string
	IPSet       *string
	IPv4Address *string
	IPv6Address *string
}

var locationFields = map[string]reflect.Type{
	"vlan":         reflect.TypeOf(VLANRef{}),
	"vswitch":      reflect.TypeOf(""),
	"hostname":     reflect.TypeOf(""),
	"ipset":        reflect.TypeOf(""),
	"ipv4_address": reflect.TypeOf(""),
	"ipv6_address": reflect.TypeOf(""),
}

func (Location) yamlFields() map[string]reflect.Type { return locationFields }

func (l *Location) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: location must be an object", node.Line)
	}
	if err := checkKeys(node, locationFields); err != nil {
		return err
	}
	var raw struct {
		VLAN        VLANRef `yaml:"vlan"`
		VSwitch     string  `yaml:"vswitch"`
		Hostname    *string `yaml:"hostname"`
		IPSet       *string `yaml:"ipset"`
		IPv4Address *string `yaml:"ipv4_address"`
		IPv6Address *string `yaml:"ipv6_address"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*l = Location(raw)
	return nil
}

// LocationList accepts a single location object or a list of them.
type LocationList []Location

func (LocationList) yamlElem() reflect.Type { return reflect.TypeOf(Location{}) }

func (ll *LocationList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var loc Location
		if err := node.Decode(&loc); err != nil {
			return err
		}
		*ll = LocationList{loc}
		return nil
	case yaml.SequenceNode:
		out := make(LocationList, 0, len(node.Content))
		for _, item := range node.Content {
			var loc Location
			if err := item.Decode(&loc); err != nil {
				return err
			}
			out = append(out, loc)
		}
		*ll = out
		return nil
	}
	return fmt.Errorf("line %d: locations must be an object or a list of objects", node.Line)
}

// Rule is one firewall rule as written by the user. Both singular and plural
// keys are accepted for sources and destinations.
type Rule struct {
	Comment      string
	Sources      LocationList
	Destinations LocationList
	AllowAll     bool
	Allow        ActionList
	Forward      ActionList
	// Line is the source line of the rule, when known.
	Line int
}

var ruleFields = map[string]reflect.Type{
	"comment":      reflect.TypeOf(""),
	"source":       reflect.TypeOf(LocationList{}),
	"sources":      reflect.TypeOf(LocationList{}),
	"destination":  reflect.TypeOf(LocationList{}),
	"destinations": reflect.TypeOf(LocationList{}),
	"allow-all":    reflect.TypeOf(false),
	"allow":        reflect.TypeOf(ActionList{}),
	"forward":      reflect.TypeOf(ActionList{}),
}

func (Rule) yamlFields() map[string]reflect.Type { return ruleFields }

func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: rule must be an object", node.Line)
	}
	if err := checkKeys(node, ruleFields); err != nil {
		return err
	}
	var raw struct {
		Comment      string       `yaml:"comment"`
		Source       LocationList `yaml:"source"`
		Sources      LocationList `yaml:"sources"`
		Destination  LocationList `yaml:"destination"`
		Destinations LocationList `yaml:"destinations"`
		AllowAll     bool         `yaml:"allow-all"`
		Allow        ActionList   `yaml:"allow"`
		Forward      ActionList   `yaml:"forward"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	srcs, err := plural(node, "source", raw.Source, raw.Sources)
	if err != nil {
		return err
	}
	dsts, err := plural(node, "destination", raw.Destination, raw.Destinations)
	if err != nil {
		return err
	}

	*r = Rule{
		Comment:      raw.Comment,
		Sources:      srcs,
		Destinations: dsts,
		AllowAll:     raw.AllowAll,
		Allow:        raw.Allow,
		Forward:      raw.Forward,
		Line:         node.Line,
	}
	return nil
}

func plural(node *yaml.Node, key string, one, many LocationList) (LocationList, error) {
	if one != nil && many != nil {
		return nil, fmt.Errorf("line %d: cannot set both %s and %ss", node.Line, key, key)
	}
	if one != nil {
		return one, nil
	}
	return many, nil
}

// checkKeys rejects mapping keys outside allowed. Custom unmarshalers decode
// through fresh decoders, so strict field checking has to happen here. Lenient
// loads strip unknown keys before decoding, see dropUnknownKeys.
func checkKeys(node *yaml.Node, allowed map[string]reflect.Type) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		if _, ok := allowed[key.Value]; !ok {
			return fmt.Errorf("line %d: unknown field %q; expected one of %s", key.Line, key.Value, strings.Join(sortedKeys(allowed), ", "))
		}
	}
	return nil
}

func sortedKeys(m map[string]reflect.Type) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
