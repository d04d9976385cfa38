// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"fmt"
	"net/netip"
	"strings"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/topology"
	"grimm.is/yodeler/internal/validation"
)

// ParseRules parses rules declared by owner. Host names are not checked
// against the site until Resolve.
func (f *Firewall) ParseRules(owner string, rules []config.Rule) ([]*Rule, error) {
	out := make([]*Rule, 0, len(rules))
	for i, cfg := range rules {
		r, err := f.parseRule(fmt.Sprintf("firewall.rules[%d]", i), owner, cfg)
		if err != nil {
			if cfg.Line > 0 {
				err = errors.Attr(err, "line", cfg.Line)
			}
			return nil, errors.Context(err, "invalid rule %d for %s", i+1, owner)
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *Firewall) parseRule(field, owner string, cfg config.Rule) (*Rule, error) {
	if len(cfg.Sources) == 0 {
		return nil, errors.Schema(field+".sources", nil, "source or sources must be specified")
	}
	if len(cfg.Destinations) == 0 {
		return nil, errors.Schema(field+".destinations", nil, "destination or destinations must be specified")
	}

	sources, err := f.parseLocations(field+".sources", cfg.Sources)
	if err != nil {
		return nil, err
	}
	destinations, err := f.parseLocations(field+".destinations", cfg.Destinations)
	if err != nil {
		return nil, err
	}
	actions, err := parseActions(field, cfg)
	if err != nil {
		return nil, err
	}

	r, err := NewRule(owner, cfg.Comment, sources, destinations, actions)
	if err != nil {
		return nil, errors.Attr(err, errors.AttrField, field)
	}
	return r, nil
}

func (f *Firewall) parseLocations(field string, locs config.LocationList) ([]Endpoint, error) {
	out := make([]Endpoint, 0, len(locs))
	for i, loc := range locs {
		e, err := f.parseLocation(fmt.Sprintf("%s[%d]", field, i), loc)
		if err != nil {
			return nil, err
		}
		if e.Kind == KindAll {
			return []Endpoint{e}, nil
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *Firewall) parseLocation(field string, loc config.Location) (Endpoint, error) {
	if loc.VLAN.IsZero() {
		return Endpoint{}, errors.Schema(field+".vlan", nil, "vlan must be specified")
	}

	e, err := f.locationZone(field, loc)
	if err != nil {
		return Endpoint{}, err
	}
	if e.Kind == KindAll {
		return e, nil
	}

	selectors := 0
	for _, s := range []bool{loc.Hostname != nil, loc.IPSet != nil, loc.IPv4Address != nil || loc.IPv6Address != nil} {
		if s {
			selectors++
		}
	}
	if selectors > 1 {
		return Endpoint{}, errors.Schema(field, nil, "only one of hostname, ipset or address may be specified")
	}

	switch {
	case loc.Hostname != nil:
		err = f.locationHostname(field, &e, *loc.Hostname)
	case loc.IPSet != nil:
		err = f.locationIPSet(field, &e, *loc.IPSet)
	case loc.IPv4Address != nil || loc.IPv6Address != nil:
		err = f.locationAddress(field, &e, loc)
	}
	if err != nil {
		return Endpoint{}, err
	}
	return e, nil
}

func (f *Firewall) locationZone(field string, loc config.Location) (Endpoint, error) {
	if name, ok := loc.VLAN.Name(); ok {
		switch strings.ToLower(name) {
		case ZoneAll:
			return LocationAll(), nil
		case ZoneInternet:
			return LocationInternet(), nil
		case ZoneFirewall:
			return LocationFirewall(), nil
		}
	}
	if id, ok := loc.VLAN.ID(); ok && (id < 1 || id > 4094) {
		return Endpoint{}, errors.Schema(field+".vlan", id, "vlan id must be 1-4094")
	}

	vlan, err := f.lookupVLAN(field, loc)
	if err != nil {
		return Endpoint{}, err
	}
	if !vlan.Routable {
		return Endpoint{}, errors.Semantic(errors.KindSemantic, field+".vlan",
			"firewall rules cannot use non-routable vlan '%s'", vlan.Name)
	}
	return Endpoint{Kind: KindVLAN, VLAN: vlan}, nil
}

// lookupVLAN resolves the location's VLAN. The switch may be omitted when the
// VLAN is named or when the site has one switch.
func (f *Firewall) lookupVLAN(field string, loc config.Location) (*topology.VLAN, error) {
	if loc.VSwitch == "" {
		if name, ok := loc.VLAN.Name(); ok {
			if v, ok := f.catalog.VLAN(name); ok {
				return v, nil
			}
			return nil, errors.Semantic(errors.KindNotFound, field+".vlan", "invalid vlan '%s'", name)
		}
		if len(f.catalog.VSwitches) != 1 {
			return nil, errors.Schema(field+".vswitch", nil, "vswitch must be specified when vlan is an id")
		}
		v, err := f.catalog.VSwitches[0].Lookup(loc.VLAN)
		if err != nil {
			return nil, errors.Attr(err, errors.AttrField, field+".vlan")
		}
		return v, nil
	}

	sw, ok := f.catalog.VSwitch(loc.VSwitch)
	if !ok {
		return nil, errors.Semantic(errors.KindNotFound, field+".vswitch", "invalid vswitch '%s'", loc.VSwitch)
	}
	v, err := sw.Lookup(loc.VLAN)
	if err != nil {
		return nil, errors.Attr(err, errors.AttrField, field+".vlan")
	}
	return v, nil
}

func (f *Firewall) locationHostname(field string, e *Endpoint, hostname string) error {
	hostname = strings.ToLower(hostname)
	if err := validation.ValidateHostname(hostname); err != nil {
		return errors.Attr(err, errors.AttrField, field+".hostname")
	}
	switch e.Kind {
	case KindFirewall:
		return errors.Schema(field+".hostname", hostname, "hostname cannot be used with the firewall zone")
	case KindInternet:
		if _, ok := f.ExternalHost(hostname); !ok {
			return errors.Semantic(errors.KindNotFound, field+".hostname",
				"hostname '%s' on the internet zone must be an external host", hostname)
		}
	}
	e.Hostname = hostname
	return nil
}

func (f *Firewall) locationIPSet(field string, e *Endpoint, name string) error {
	if e.Kind == KindFirewall {
		return errors.Schema(field+".ipset", name, "ipset cannot be used with the firewall zone")
	}
	set, ok := f.IPSet(name)
	if !ok {
		return errors.Semantic(errors.KindNotFound, field+".ipset", "invalid ipset '%s'", name)
	}
	e.IPSet = set
	return nil
}

func (f *Firewall) locationAddress(field string, e *Endpoint, loc config.Location) error {
	if e.Kind == KindFirewall {
		return errors.Schema(field, nil, "addresses cannot be used with the firewall zone")
	}

	parse := func(key string, s *string, family netutil.Family) (netip.Prefix, error) {
		if s == nil {
			return netip.Prefix{}, nil
		}
		p, err := parsePrefix(*s, family)
		if err != nil {
			return netip.Prefix{}, errors.Schema(field+"."+key, *s, "%v", err)
		}

		if e.Kind == KindInternet {
			if v, internal := f.catalog.OverlappingVLAN(p); internal {
				return netip.Prefix{}, errors.Semantic(errors.KindSemantic, field+"."+key,
					"internet address %s is inside vlan '%s'", p, v.Name)
			}
			return p, nil
		}

		subnet := e.VLAN.IPv4Subnet
		if family == netutil.IPv6 {
			subnet = e.VLAN.IPv6Subnet
		}
		// a vlan without a subnet for the family puts no bound on the address
		if !subnet.IsValid() {
			return p, nil
		}
		if !subnet.Contains(p.Addr()) || p.Bits() < subnet.Bits() {
			return netip.Prefix{}, errors.Semantic(errors.KindSemantic, field+"."+key,
				"address %s is not in vlan '%s'", p, e.VLAN.Name)
		}
		return p, nil
	}

	var err error
	if e.IPv4, err = parse("ipv4_address", loc.IPv4Address, netutil.IPv4); err != nil {
		return err
	}
	if e.IPv6, err = parse("ipv6_address", loc.IPv6Address, netutil.IPv6); err != nil {
		return err
	}
	return nil
}

// parsePrefix accepts an address or a network in CIDR form.
func parsePrefix(s string, family netutil.Family) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		return netutil.ParseSubnet(s, family)
	}
	a, err := netutil.ParseAddr(s, family)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func parseActions(field string, cfg config.Rule) ([]Action, error) {
	if cfg.AllowAll {
		return AllowAll(), nil
	}

	verb, specs, key := VerbAllow, cfg.Allow, "allow"
	if len(specs) == 0 {
		verb, specs, key = VerbForward, cfg.Forward, "forward"
	}
	if len(specs) == 0 {
		return nil, errors.Schema(field+".allow", nil, "one of allow-all, allow or forward must be specified")
	}

	actions := make([]Action, 0, len(specs))
	for i, spec := range specs {
		afield := fmt.Sprintf("%s.%s[%d]", field, key, i)
		if spec.ProtoPort == nil {
			name := strings.ToLower(spec.Service)
			if err := validation.ValidateAllowlist(name, ServiceNames()); err != nil {
				return nil, errors.Attr(errors.Context(err, "invalid service"), errors.AttrField, afield)
			}
			actions = append(actions, Action{Kind: ActionService, Verb: verb, Service: name})
			continue
		}

		a, err := parseProtoPort(afield, verb, spec.ProtoPort)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func parseProtoPort(field string, verb Verb, pp *config.ProtoPort) (Action, error) {
	proto := strings.ToLower(pp.Proto)
	if proto == "" {
		return Action{}, errors.Schema(field+".proto", nil, "proto must be specified")
	}
	if err := validation.ValidateAllowlist(proto, Protocols); err != nil {
		return Action{}, errors.Attr(err, errors.AttrField, field+".proto")
	}
	if len(pp.Ports) == 0 {
		return Action{}, errors.Schema(field+".port", nil, "port or ports must be specified")
	}

	a := Action{Kind: ActionProtoPort, Verb: verb, Proto: proto, Comment: pp.Comment}
	for i, port := range pp.Ports {
		pfield := fmt.Sprintf("%s.ports[%d]", field, i)
		if port.Range == "" {
			if err := validation.ValidatePortNumber(port.Number); err != nil {
				return Action{}, errors.Attr(err, errors.AttrField, pfield)
			}
			a.Ports = append(a.Ports, port.String())
			continue
		}
		r, err := validation.ValidatePortRange(port.Range)
		if err != nil {
			return Action{}, errors.Attr(err, errors.AttrField, pfield)
		}
		a.Ports = append(a.Ports, r)
	}
	return a, nil
}
