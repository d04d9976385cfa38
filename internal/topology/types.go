// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package topology models virtual switches and their VLANs.
package topology

import (
	"net/netip"
	"sort"

	"go4.org/netipx"

	"grimm.is/yodeler/internal/netutil"
)

// Untagged is the id of the native VLAN on a switch.
const Untagged = 0

// VSwitch is a validated virtual switch.
type VSwitch struct {
	Name    string
	Uplinks []string
	// VLANs in declaration order.
	VLANs       []*VLAN
	VLANsByID   map[int]*VLAN
	VLANsByName map[string]*VLAN
	DefaultVLAN *VLAN
}

// VLAN is a validated VLAN with defaults applied.
type VLAN struct {
	Name string
	// ID is 1-4094, or Untagged.
	ID       int
	Default  bool
	Routable bool
	Domain   string

	IPv4Subnet netip.Prefix
	// IPv6Subnet is the zero Prefix when the VLAN has no IPv6 subnet.
	IPv6Subnet   netip.Prefix
	IPv6Disabled bool

	DHCP4Enabled   bool
	DHCP6Managed   bool
	AllowInternet  bool
	AllowDNSUpdate bool
	DHCPRangeIPv4  netipx.IPRange
	// DHCPRangeIPv6 is the zero range when there is no IPv6 subnet.
	DHCPRangeIPv6 netipx.IPRange
	// IPv6PDNetwork is the prefix delegation network number, 0 when IPv6 is disabled.
	IPv6PDNetwork int

	// AccessAll is set when the VLAN may reach every VLAN without firewalling.
	AccessAll   bool
	AccessVLANs []string

	Reservations []*Reservation
	StaticHosts  []*StaticHost

	// DNSEntries is filled in once every host is loaded.
	DNSEntries []DNSEntry

	VSwitch *VSwitch

	knownAliases map[string]struct{}
}

// Untagged reports whether the VLAN is the switch's native VLAN.
func (v *VLAN) Untagged() bool {
	return v.ID == Untagged
}

// HasIPv6 reports whether the VLAN carries an IPv6 subnet.
func (v *VLAN) HasIPv6() bool {
	return v.IPv6Subnet.IsValid()
}

// IsKnownAlias reports whether name is a reservation or static host name or alias on the VLAN.
func (v *VLAN) IsKnownAlias(name string) bool {
	_, ok := v.knownAliases[name]
	return ok
}

// KnownAliases returns every reservation and static host name and alias, sorted.
func (v *VLAN) KnownAliases() []string {
	out := make([]string, 0, len(v.knownAliases))
	for a := range v.knownAliases {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// FindHost returns the reservation or static host named or aliased by name.
// Reservations are searched before static hosts.
func (v *VLAN) FindHost(name string) (VLANHost, bool) {
	for _, r := range v.Reservations {
		if r.Hostname == name || r.HasAlias(name) {
			return r, true
		}
	}
	for _, s := range v.StaticHosts {
		if s.Hostname == name || s.HasAlias(name) {
			return s, true
		}
	}
	return nil, false
}

// VLANHost is a non-managed host known to a VLAN.
type VLANHost interface {
	CanonicalName() string
	Addr(f netutil.Family) netip.Addr
}

// Reservation is a validated DHCP reservation.
type Reservation struct {
	Hostname    string
	MACAddress  string
	IPv4Address netip.Addr
	IPv6Address netip.Addr
	Aliases     []string
}

func (r *Reservation) CanonicalName() string { return r.Hostname }

// Addr returns the address of the given family; the zero Addr when unset.
func (r *Reservation) Addr(f netutil.Family) netip.Addr {
	if f == netutil.IPv6 {
		return r.IPv6Address
	}
	return r.IPv4Address
}

func (r *Reservation) HasAlias(a string) bool { return contains(r.Aliases, a) }

// StaticHost is a validated static host entry.
type StaticHost struct {
	Hostname    string
	IPv4Address netip.Addr
	IPv6Address netip.Addr
	Aliases     []string
}

func (s *StaticHost) CanonicalName() string { return s.Hostname }

func (s *StaticHost) Addr(f netutil.Family) netip.Addr {
	if f == netutil.IPv6 {
		return s.IPv6Address
	}
	return s.IPv4Address
}

func (s *StaticHost) HasAlias(a string) bool { return contains(s.Aliases, a) }

// DNSEntry is one host's record on a VLAN with a domain.
type DNSEntry struct {
	Hostname    string
	IPv4Address netip.Addr
	IPv6Address netip.Addr
	Aliases     []string
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
