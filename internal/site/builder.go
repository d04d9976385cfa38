// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package site assembles a site from its descriptors. Hosts are loaded one at a
// time with LoadHost; Finalize then runs every check that needs the whole
// site.
package site

import (
	"fmt"
	"net/netip"
	"strings"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/identity"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/metrics"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/roles"
	"grimm.is/yodeler/internal/topology"
)

// Builder loads hosts into a site. It is not safe for concurrent use; hosts
// must be loaded in a stable order since later hosts see earlier ones.
type Builder struct {
	cfg      *config.Site
	catalog  *topology.Catalog
	firewall *firewall.Firewall
	registry *identity.Registry
	resolver *network.Resolver
	metrics  *metrics.Registry

	hosts  []*host.Host
	byName map[string]*host.Host

	finalized bool
	log       *logging.Logger
}

// NewBuilder validates the site descriptor. m may be nil.
func NewBuilder(cfg *config.Site, m *metrics.Registry) (*Builder, error) {
	if m == nil {
		m = metrics.NewRegistry()
	}
	reserved := roles.ReservedNames()

	catalog, err := topology.NewCatalog(cfg, topology.Options{
		ReservedNames: reserved,
		IPv6Disabled:  cfg.IPv6Disabled,
	})
	if err != nil {
		return nil, errors.Context(err, "site '%s'", cfg.Name)
	}

	fw, err := firewall.New(catalog, cfg)
	if err != nil {
		return nil, errors.Context(err, "site '%s'", cfg.Name)
	}

	b := &Builder{
		cfg:      cfg,
		catalog:  catalog,
		firewall: fw,
		registry: identity.NewRegistry(reserved...),
		resolver: network.NewResolver(catalog, cfg.IPv6Disabled),
		metrics:  m,
		byName:   make(map[string]*host.Host),
		log:      logging.WithComponent("site").With("site", cfg.Name),
	}

	vlans := catalog.AllVLANs()
	m.VLANs.Set(float64(len(vlans)))
	b.log.Debug("site validated", "vswitches", len(catalog.VSwitches), "vlans", len(vlans))
	return b, nil
}

// Catalog returns the site's switches and VLANs.
func (b *Builder) Catalog() *topology.Catalog { return b.catalog }

// Firewall returns the site firewall.
func (b *Builder) Firewall() *firewall.Firewall { return b.firewall }

// Hosts returns the hosts loaded so far, in load order.
func (b *Builder) Hosts() []*host.Host {
	out := make([]*host.Host, len(b.hosts))
	copy(out, b.hosts)
	return out
}

// Host returns a loaded host by hostname.
func (b *Builder) Host(hostname string) (*host.Host, bool) {
	h, ok := b.byName[hostname]
	return h, ok
}

// RoleHosts returns the loaded hosts carrying role, in load order.
func (b *Builder) RoleHosts(role string) []*host.Host {
	var out []*host.Host
	for _, h := range b.hosts {
		if h.HasRole(role) {
			out = append(out, h)
		}
	}
	return out
}

// CanonicalHostname maps a hostname or alias of a loaded host to its hostname.
func (b *Builder) CanonicalHostname(name string) (string, bool) {
	return b.registry.CanonicalHostname(name)
}

// Interfaces returns the interfaces of a loaded host.
func (b *Builder) Interfaces(hostname string) []*network.Interface {
	if h, ok := b.byName[hostname]; ok {
		return h.Interfaces
	}
	return nil
}

// LoadHost resolves a host against the site and the hosts loaded before it.
// The host is registered before its own checks run, so a failed load leaves
// the builder unusable.
func (b *Builder) LoadHost(cfg *config.Host) (*host.Host, error) {
	if b.finalized {
		return nil, errors.New(errors.KindInternal, "site already finalized")
	}

	h, err := b.loadHost(cfg)
	if err != nil {
		return nil, errors.Context(err, "host '%s'", cfg.Hostname)
	}

	b.metrics.HostsLoaded.Inc()
	b.log.Info("loaded host", "hostname", h.Hostname, "roles", strings.Join(h.Roles, ","),
		"interfaces", len(h.Interfaces))
	return h, nil
}

func (b *Builder) loadHost(cfg *config.Host) (*host.Host, error) {
	id, err := b.registry.Register(cfg.Hostname, cfg.Aliases)
	if err != nil {
		return nil, err
	}

	h := &host.Host{
		Hostname: id.Hostname,
		Identity: id,
		VM:       cfg.VM(),
		Config:   cfg,
	}
	b.hosts = append(b.hosts, h)
	b.byName[h.Hostname] = h

	hostRoles, err := lookupRoles(cfg.Roles)
	if err != nil {
		return nil, err
	}
	for _, r := range hostRoles {
		h.Roles = append(h.Roles, r.Name())
	}

	ifaces, uplink, err := b.resolver.ResolveHost(cfg)
	if err != nil {
		return nil, err
	}
	h.Interfaces = ifaces
	h.Uplink = uplink

	for _, r := range hostRoles {
		if r.Name() != roles.Common {
			b.registry.AddRole(id, r.Name(), roles.Aliases(r))
		}
		if err := r.ConfigureInterfaces(h, b); err != nil {
			return nil, errors.Context(err, "role '%s'", r.Name())
		}
	}
	if uplink != nil && !hasInterface(h, uplink) {
		h.Interfaces = append(h.Interfaces, uplink)
	}

	if h.PrimaryDomain, err = network.PrimaryDomain(cfg.PrimaryDomain, ifaces); err != nil {
		return nil, err
	}

	external := cfg.ExternalDNS
	if len(external) == 0 {
		external = config.DefaultExternalDNS
	}
	if h.ExternalDNS, err = parseAddrs("external_dns", external); err != nil {
		return nil, err
	}
	if h.LocalDNS, err = parseAddrs("local_dns", cfg.LocalDNS); err != nil {
		return nil, err
	}

	if cfg.Firewall != nil {
		rules, err := b.firewall.ParseRules(h.Hostname, cfg.Firewall.Rules)
		if err != nil {
			return nil, err
		}
		for _, r := range rules {
			b.firewall.AddRule(r)
		}
	}
	for _, r := range hostRoles {
		rules, err := r.AdditionalRules(h, b)
		if err != nil {
			return nil, errors.Context(err, "role '%s'", r.Name())
		}
		for _, rule := range rules {
			b.firewall.AddRule(rule)
		}
	}

	// only the hosts loaded so far; Finalize repeats this against all of them
	if err := b.registry.Validate(id, b.firewall.StaticHostNames(), h.VLANs()); err != nil {
		return nil, err
	}
	return h, nil
}

// lookupRoles returns common followed by the declared roles, without duplicates.
func lookupRoles(names []string) ([]roles.Role, error) {
	common, _ := roles.Lookup(roles.Common)
	out := []roles.Role{common}
	seen := map[string]bool{roles.Common: true}

	for i, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		r, ok := roles.Lookup(name)
		if !ok {
			return nil, errors.Schema(fmt.Sprintf("roles[%d]", i), name,
				"unknown role '%s'; valid roles are %s", name, strings.Join(roles.Names(), ", "))
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, r)
	}
	return out, nil
}

func hasInterface(h *host.Host, iface *network.Interface) bool {
	for _, existing := range h.Interfaces {
		if existing == iface {
			return true
		}
	}
	return false
}

func parseAddrs(field string, values []string) ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(values))
	for i, s := range values {
		a, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Schema(fmt.Sprintf("%s[%d]", field, i), s, "invalid address '%s'", s)
		}
		out = append(out, a)
	}
	return out, nil
}

// addrString renders an address, or "" for the zero Addr.
func addrString(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}

// prefixString renders a prefix, dropping the length of single addresses.
func prefixString(p netip.Prefix) string {
	if !p.IsValid() {
		return ""
	}
	if p.IsSingleIP() {
		return p.Addr().String()
	}
	return p.String()
}
