// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/roles"
	"grimm.is/yodeler/internal/topology"
)

// Site is a fully resolved site.
type Site struct {
	Name     string
	Domain   string
	Catalog  *topology.Catalog
	Firewall *firewall.Firewall
	// Hosts in load order.
	Hosts []*host.Host
}

// Finalize runs the checks that need every host: alias uniqueness across the
// whole site, firewall host resolution, role validation and role instance
// counts. It then fills in the per-VLAN DNS entries. A builder can only be
// finalized once.
func (b *Builder) Finalize() (*Site, error) {
	if b.finalized {
		return nil, errors.New(errors.KindInternal, "site already finalized")
	}
	b.finalized = true

	staticNames := b.firewall.StaticHostNames()
	for _, h := range b.hosts {
		if err := b.registry.Validate(h.Identity, staticNames, h.VLANs()); err != nil {
			return nil, errors.Context(err, "host '%s'", h.Hostname)
		}
	}

	if err := b.firewall.Resolve(b); err != nil {
		return nil, err
	}

	for _, h := range b.hosts {
		for _, name := range h.Roles {
			r, _ := roles.Lookup(name)
			if err := r.Validate(h, b); err != nil {
				return nil, errors.Context(err, "host '%s' role '%s'", h.Hostname, name)
			}
		}
	}

	if err := b.checkInstances(); err != nil {
		return nil, err
	}

	addDNSEntries(b.catalog, b.hosts)
	b.recordStats()

	b.log.Info("site finalized", "hosts", len(b.hosts), "rules", len(b.firewall.Rules))
	return &Site{
		Name:     b.cfg.Name,
		Domain:   b.catalog.Domain,
		Catalog:  b.catalog,
		Firewall: b.firewall,
		Hosts:    b.Hosts(),
	}, nil
}

func (b *Builder) checkInstances() error {
	for _, name := range roles.Names() {
		r, _ := roles.Lookup(name)
		n := len(b.RoleHosts(name))

		if least := r.MinInstances(b); n < least {
			return errors.Semantic(errors.KindSemantic, "roles",
				"site '%s' requires at least %d host(s) with role '%s'; found %d", b.cfg.Name, least, name, n)
		}
		if most := r.MaxInstances(b); n > most {
			return errors.Semantic(errors.KindConflict, "roles",
				"site '%s' allows at most %d host(s) with role '%s'; found %d", b.cfg.Name, most, name, n)
		}
	}
	return nil
}

func (b *Builder) recordStats() {
	stats := b.firewall.Stats()
	b.metrics.FirewallRules.Add(float64(len(b.firewall.Rules)))
	for _, f := range netutil.Families {
		b.metrics.LocationsPruned.WithLabelValues(f.String()).Add(float64(stats.LocationsPruned[f]))
		b.metrics.PayloadsDropped.WithLabelValues(f.String()).Add(float64(stats.PayloadsDropped[f]))
	}
	b.metrics.AliasesRenumbered.Add(float64(b.registry.Renumbered()))
}

// Build loads every host of a site directory in order and finalizes the site.
func Build(dir *config.SiteDir, b *Builder) (*Site, error) {
	for _, cfg := range dir.Hosts {
		if _, err := b.LoadHost(cfg); err != nil {
			return nil, err
		}
	}
	return b.Finalize()
}
