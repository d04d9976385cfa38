// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package reachability finds the addresses one set of interfaces uses to
// reach another, and the VLANs a set of interfaces cannot reach.
package reachability

import (
	"net/netip"

	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/topology"
)

var (
	LocalhostIPv4 = netip.MustParseAddr("127.0.0.1")
	LocalhostIPv6 = netip.IPv6Loopback()
)

// Match is an address pair usable to reach To from From. Either address may be
// unset, but not both.
type Match struct {
	IPv4 netip.Addr
	IPv6 netip.Addr
	From *network.Interface
	To   *network.Interface
	// Routed is set when the path crosses VLANs through the router.
	Routed bool
}

// Localhost reports whether the match is the loopback pair.
func (m Match) Localhost() bool {
	return m.IPv4 == LocalhostIPv4
}

// Addr returns the address for the family.
func (m Match) Addr(f netutil.Family) netip.Addr {
	if f == netutil.IPv6 {
		return m.IPv6
	}
	return m.IPv4
}

// FindReachable returns the addresses of to that from can reach. Interfaces on
// the same VLAN match directly; interfaces on different routable VLANs of the
// same switch match through the router. When any pair shares an interface or
// a static address, the single loopback match is returned.
//
// Routed matches come first when preferRoutable is set, direct ones otherwise.
// With firstOnly at most one match is returned.
func FindReachable(from, to []*network.Interface, preferRoutable, firstOnly bool) []Match {
	var routed, unrouted []Match

	for _, src := range from {
		if !attached(src) {
			continue
		}
		for _, dst := range to {
			if !attached(dst) {
				continue
			}

			var isRouted bool
			switch {
			case src.VLAN == dst.VLAN:
			case src.VSwitch == dst.VSwitch && src.VLAN.Routable && dst.VLAN.Routable:
				isRouted = true
			default:
				continue
			}

			if sameHost(src, dst) {
				return []Match{{IPv4: LocalhostIPv4, IPv6: LocalhostIPv6, From: src, To: dst}}
			}

			m := Match{
				IPv4:   dst.Addr(netutil.IPv4),
				IPv6:   dst.Addr(netutil.IPv6),
				From:   src,
				To:     dst,
				Routed: isRouted,
			}
			if !m.IPv4.IsValid() && !m.IPv6.IsValid() {
				continue
			}
			if isRouted {
				routed = append(routed, m)
			} else {
				unrouted = append(unrouted, m)
			}
		}
	}

	var matches []Match
	if preferRoutable {
		matches = append(routed, unrouted...)
	} else {
		matches = append(unrouted, routed...)
	}
	if firstOnly && len(matches) > 1 {
		matches = matches[:1]
	}
	return matches
}

// FindFromVLAN returns the addresses any DHCP-addressed host on vlan would use
// to reach to. It never returns the loopback pair.
func FindFromVLAN(vlan *topology.VLAN, to []*network.Interface) []Match {
	client := &network.Interface{
		Name:     "dhcp-client",
		Type:     network.TypeStd,
		VSwitch:  vlan.VSwitch,
		VLAN:     vlan,
		IPv4Mode: network.IPv4DHCP,
	}
	return FindReachable([]*network.Interface{client}, to, true, false)
}

func attached(iface *network.Interface) bool {
	return iface.Addressed() && iface.VLAN != nil
}

func sameHost(a, b *network.Interface) bool {
	if a == b {
		return true
	}
	if v4 := a.Addr(netutil.IPv4); v4.IsValid() && v4 == b.Addr(netutil.IPv4) {
		return true
	}
	if v6 := a.Addr(netutil.IPv6); v6.IsValid() && v6 == b.Addr(netutil.IPv6) {
		return true
	}
	return false
}
