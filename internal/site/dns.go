// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/topology"
)

// addDNSEntries lists, for every VLAN with a domain, the hosts and
// reservations on it that have a known address. Hosts come first in load
// order, then reservations and static hosts in declaration order.
func addDNSEntries(catalog *topology.Catalog, hosts []*host.Host) {
	for _, vlan := range catalog.AllVLANs() {
		vlan.DNSEntries = nil
		if vlan.Domain == "" {
			continue
		}

		for _, h := range hosts {
			for _, iface := range h.Addressed() {
				if iface.VLAN != vlan {
					continue
				}
				v4, v6 := iface.Addr(netutil.IPv4), iface.Addr(netutil.IPv6)
				if !v4.IsValid() && !v6.IsValid() {
					continue
				}
				vlan.DNSEntries = append(vlan.DNSEntries, topology.DNSEntry{
					Hostname:    h.Hostname,
					IPv4Address: v4,
					IPv6Address: v6,
					Aliases:     h.Aliases(),
				})
			}
		}

		for _, r := range vlan.Reservations {
			vlan.DNSEntries = appendVLANHost(vlan.DNSEntries, r, r.Aliases)
		}
		for _, s := range vlan.StaticHosts {
			vlan.DNSEntries = appendVLANHost(vlan.DNSEntries, s, s.Aliases)
		}
	}
}

func appendVLANHost(entries []topology.DNSEntry, h topology.VLANHost, aliases []string) []topology.DNSEntry {
	v4, v6 := h.Addr(netutil.IPv4), h.Addr(netutil.IPv6)
	if !v4.IsValid() && !v6.IsValid() {
		return entries
	}
	return append(entries, topology.DNSEntry{
		Hostname:    h.CanonicalName(),
		IPv4Address: v4,
		IPv6Address: v6,
		Aliases:     aliases,
	})
}
