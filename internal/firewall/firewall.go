// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"fmt"
	"math/bits"
	"strings"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/topology"
	"grimm.is/yodeler/internal/validation"
)

// OwnerSite owns rules declared in the site file.
const OwnerSite = "site"

// Stats counts what phase 1 and phase 2 did.
type Stats struct {
	Rules           int
	RulesRemoved    int
	LocationsPruned map[netutil.Family]int
	PayloadsDropped map[netutil.Family]int
}

// Firewall holds the site's ipsets, external hosts and rules.
type Firewall struct {
	catalog *topology.Catalog

	IPSets        []*IPSet
	ExternalHosts []*ExternalHost
	StaticHosts   []*StaticHost
	Rules         []*Rule

	ipsets    map[string]*IPSet
	externals map[string]*ExternalHost
	resolved  bool
	stats     Stats
	log       *logging.Logger
}

// New validates the site level firewall definitions and parses the site rules.
func New(catalog *topology.Catalog, site *config.Site) (*Firewall, error) {
	f := &Firewall{
		catalog:   catalog,
		ipsets:    make(map[string]*IPSet),
		externals: make(map[string]*ExternalHost),
		stats: Stats{
			LocationsPruned: make(map[netutil.Family]int),
			PayloadsDropped: make(map[netutil.Family]int),
		},
		log: logging.WithComponent("firewall"),
	}

	if err := f.parseStaticHosts(site.Firewall.StaticHosts); err != nil {
		return nil, err
	}
	if err := f.parseExternalHosts(site.ExternalHosts); err != nil {
		return nil, err
	}
	if err := f.parseIPSets(site.Firewall.IPSets); err != nil {
		return nil, err
	}

	rules, err := f.ParseRules(OwnerSite, site.Firewall.Rules)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		f.AddRule(r)
	}
	return f, nil
}

// AddRule appends a rule to the site rule list.
func (f *Firewall) AddRule(r *Rule) {
	f.Rules = append(f.Rules, r)
	f.stats.Rules++
}

// IPSet returns the named ipset.
func (f *Firewall) IPSet(name string) (*IPSet, bool) {
	s, ok := f.ipsets[strings.ToLower(name)]
	return s, ok
}

// ExternalHost returns the external host with the given name.
func (f *Firewall) ExternalHost(name string) (*ExternalHost, bool) {
	h, ok := f.externals[strings.ToLower(name)]
	return h, ok
}

// StaticHostNames returns the firewall static host names.
func (f *Firewall) StaticHostNames() []string {
	names := make([]string, 0, len(f.StaticHosts))
	for _, h := range f.StaticHosts {
		names = append(names, h.Hostname)
	}
	return names
}

// Stats returns a copy of the counters.
func (f *Firewall) Stats() Stats {
	s := Stats{
		Rules:           f.stats.Rules,
		RulesRemoved:    f.stats.RulesRemoved,
		LocationsPruned: make(map[netutil.Family]int),
		PayloadsDropped: make(map[netutil.Family]int),
	}
	for k, v := range f.stats.LocationsPruned {
		s.LocationsPruned[k] = v
	}
	for k, v := range f.stats.PayloadsDropped {
		s.PayloadsDropped[k] = v
	}
	return s
}

func (f *Firewall) parseStaticHosts(hosts []config.FirewallStaticHost) error {
	seen := make(map[string]bool)
	for i, cfg := range hosts {
		field := fmt.Sprintf("firewall.static_hosts[%d]", i)

		name := strings.ToLower(cfg.Hostname)
		if err := validation.ValidateHostname(name); err != nil {
			return errors.Attr(err, errors.AttrField, field+".hostname")
		}
		if seen[name] {
			return errors.Semantic(errors.KindConflict, field+".hostname", "duplicate firewall static host '%s'", name)
		}
		seen[name] = true

		h := &StaticHost{Hostname: name}
		var err error
		if cfg.IPv4Address != "" {
			if h.IPv4Address, err = netutil.ParseAddr(cfg.IPv4Address, netutil.IPv4); err != nil {
				return errors.Schema(field+".ipv4_address", cfg.IPv4Address, "%v", err)
			}
		}
		if cfg.IPv6Address != "" {
			if h.IPv6Address, err = netutil.ParseAddr(cfg.IPv6Address, netutil.IPv6); err != nil {
				return errors.Schema(field+".ipv6_address", cfg.IPv6Address, "%v", err)
			}
		}
		f.StaticHosts = append(f.StaticHosts, h)
	}
	return nil
}

func (f *Firewall) parseExternalHosts(hosts []config.ExternalHost) error {
	for i, cfg := range hosts {
		field := fmt.Sprintf("external_hosts[%d]", i)

		if len(cfg.Hostnames) == 0 {
			return errors.Schema(field+".hostnames", nil, "hostnames must be specified")
		}
		h := &ExternalHost{}
		for j, name := range cfg.Hostnames {
			name = strings.ToLower(name)
			if err := validation.ValidateHostname(name); err != nil {
				return errors.Attr(err, errors.AttrField, fmt.Sprintf("%s.hostnames[%d]", field, j))
			}
			if _, dup := f.externals[name]; dup {
				return errors.Semantic(errors.KindConflict, fmt.Sprintf("%s.hostnames[%d]", field, j),
					"duplicate external host '%s'", name)
			}
			f.externals[name] = h
			h.Hostnames = append(h.Hostnames, name)
		}

		var err error
		if cfg.IPv4Address != "" {
			if h.IPv4Address, err = netutil.ParseAddr(cfg.IPv4Address, netutil.IPv4); err != nil {
				return errors.Schema(field+".ipv4_address", cfg.IPv4Address, "%v", err)
			}
		}
		if cfg.IPv6Address != "" {
			if h.IPv6Address, err = netutil.ParseAddr(cfg.IPv6Address, netutil.IPv6); err != nil {
				return errors.Schema(field+".ipv6_address", cfg.IPv6Address, "%v", err)
			}
		}
		if !h.IPv4Address.IsValid() && !h.IPv6Address.IsValid() {
			return errors.Schema(field, nil, "external host '%s' needs an ipv4_address or an ipv6_address", h.Hostnames[0])
		}
		f.ExternalHosts = append(f.ExternalHosts, h)
	}
	return nil
}

func (f *Firewall) parseIPSets(sets []config.IPSet) error {
	for i, cfg := range sets {
		field := fmt.Sprintf("firewall.ipsets[%d]", i)

		set, err := NewIPSet(cfg)
		if err != nil {
			return errors.Context(errors.Attr(err, errors.AttrField, field), "ipset %d", i+1)
		}
		if _, dup := f.ipsets[set.Name]; dup {
			return errors.Semantic(errors.KindConflict, field+".name", "duplicate ipset '%s'", set.Name)
		}
		f.ipsets[set.Name] = set
		f.IPSets = append(f.IPSets, set)
	}
	return nil
}

// NewIPSet validates an ipset. The family and whether entries are networks
// are inferred from the addresses, which must agree.
func NewIPSet(cfg config.IPSet) (*IPSet, error) {
	name := strings.ToLower(cfg.Name)
	if err := validation.ValidateIdentifier(name); err != nil {
		return nil, err
	}

	family, networks, err := netutil.AddressList(cfg.Addresses)
	if err != nil {
		return nil, errors.Errorf(errors.KindSchema, "invalid addresses for ipset '%s': %v", name, err)
	}

	return &IPSet{
		Name:      name,
		Family:    family,
		Networks:  networks,
		HashSize:  hashSize(len(cfg.Addresses)),
		Addresses: append([]string(nil), cfg.Addresses...),
		Comment:   cfg.Comment,
	}, nil
}

// hashSize returns the smallest power of two >= n, at least 1.
func hashSize(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}
