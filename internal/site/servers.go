// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"net/netip"

	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/reachability"
	"grimm.is/yodeler/internal/roles"
	"grimm.is/yodeler/internal/topology"
)

// Servers lists the addresses clients use to reach a service, by family.
type Servers struct {
	IPv4 []string `yaml:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6 []string `yaml:"ipv6,omitempty" json:"ipv6,omitempty"`
}

func (s *Servers) add(matches []reachability.Match) {
	for _, m := range matches {
		s.addAddr(m.Addr(netutil.IPv4))
		s.addAddr(m.Addr(netutil.IPv6))
	}
}

func (s *Servers) addAddr(a netip.Addr) {
	switch {
	case !a.IsValid():
	case a.Is4():
		s.IPv4 = append(s.IPv4, a.String())
	default:
		s.IPv6 = append(s.IPv6, a.String())
	}
}

func (s *Servers) orNil() *Servers {
	if len(s.IPv4) == 0 && len(s.IPv6) == 0 {
		return nil
	}
	return s
}

// RoleHosts returns the hosts carrying role, in load order.
func (s *Site) RoleHosts(role string) []*host.Host {
	var out []*host.Host
	for _, h := range s.Hosts {
		if h.HasRole(role) {
			out = append(out, h)
		}
	}
	return out
}

// vlanServers returns the addresses a DHCP client on v uses to reach every
// holder. Generators hand these out in DHCP options and router adverts.
func vlanServers(v *topology.VLAN, holders []*host.Host) *Servers {
	var s Servers
	for _, h := range holders {
		s.add(reachability.FindFromVLAN(v, h.Interfaces))
	}
	return s.orNil()
}

// nameservers returns one address per reachable DNS host, loopback when h is
// one of them. Without a local DNS server the host's external resolvers are
// used.
func nameservers(h *host.Host, holders []*host.Host) *Servers {
	var s Servers
	for _, dns := range holders {
		s.add(reachability.FindReachable(h.Interfaces, dns.Interfaces, true, true))
	}
	if len(s.IPv4) == 0 && len(s.IPv6) == 0 {
		for _, a := range h.ExternalDNS {
			s.addAddr(a)
		}
	}
	return s.orNil()
}

// timeServers returns the addresses h uses to reach the first NTP host. The
// NTP host itself syncs from outside the site and gets none.
func timeServers(h *host.Host, holders []*host.Host) *Servers {
	if len(holders) == 0 {
		return nil
	}
	var s Servers
	for _, m := range reachability.FindReachable(h.Interfaces, holders[0].Interfaces, true, false) {
		if m.Localhost() {
			return nil
		}
		s.add([]reachability.Match{m})
	}
	return s.orNil()
}

func (s *Site) serviceHolders() (dns, ntp []*host.Host) {
	return s.RoleHosts(roles.DNS), s.RoleHosts(roles.NTP)
}
