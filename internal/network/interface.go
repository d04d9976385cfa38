// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package network binds host interfaces to switches and VLANs and resolves
// their addressing.
package network

import (
	"net/netip"
	"strconv"
	"strings"

	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/topology"
)

// Type is the kind of a host interface.
type Type string

const (
	TypeStd    Type = "std"
	TypeVLAN   Type = "vlan"
	TypePort   Type = "port"
	TypeUplink Type = "uplink"
)

// IPv4Mode is how an interface gets its IPv4 address.
type IPv4Mode int

const (
	IPv4None IPv4Mode = iota
	IPv4DHCP
	IPv4Static
)

func (m IPv4Mode) String() string {
	switch m {
	case IPv4DHCP:
		return "dhcp"
	case IPv4Static:
		return "static"
	default:
		return "none"
	}
}

// DefaultPDPrefixLen is the delegated prefix length requested when none is configured.
const DefaultPDPrefixLen = 56

// Interface is a resolved host interface.
type Interface struct {
	Name    string
	Type    Type
	Comment string
	// Parent is the underlying port of a vlan interface.
	Parent  string
	Macvtap string

	// VSwitch is nil for uplinks not attached to a switch.
	VSwitch *topology.VSwitch
	// VLAN is nil for ports and unattached uplinks.
	VLAN         *topology.VLAN
	FirewallZone string

	IPv4Mode      IPv4Mode
	IPv4Address   netip.Addr
	IPv4Subnet    netip.Prefix
	IPv4PrefixLen int
	// IPv4Gateway is unset on non-routable VLANs.
	IPv4Gateway netip.Addr

	IPv6Address      netip.Addr
	IPv6Subnet       netip.Prefix
	IPv6PrefixLen    int
	IPv6Addresses    []netip.Addr
	IPv6Disabled     bool
	IPv6DHCP         bool
	IPv6Tempaddr     bool
	AcceptRA         bool
	IPv6AskForPrefix bool
	IPv6PDPrefixLen  int

	// IPv6DelegatedPrefixes lists "iface/network" pairs handed out from the delegated prefix.
	IPv6DelegatedPrefixes []string

	WifiSSID string
	WifiPSK  string
}

// DHCP reports whether the IPv4 address is assigned by DHCP.
func (i *Interface) DHCP() bool {
	return i.IPv4Mode == IPv4DHCP
}

// Addr returns the static address for the family; the zero Addr for DHCP or unset addresses.
func (i *Interface) Addr(f netutil.Family) netip.Addr {
	if f == netutil.IPv6 {
		return i.IPv6Address
	}
	if i.IPv4Mode != IPv4Static {
		return netip.Addr{}
	}
	return i.IPv4Address
}

// Addressed reports whether the interface takes part in addressing.
func (i *Interface) Addressed() bool {
	return i.Type == TypeStd || i.Type == TypeVLAN
}

// VLANName returns the VLAN name, or "" when unattached.
func (i *Interface) VLANName() string {
	if i.VLAN == nil {
		return ""
	}
	return i.VLAN.Name
}

// VSwitchName returns the switch name, or "" when unattached.
func (i *Interface) VSwitchName() string {
	if i.VSwitch == nil {
		return ""
	}
	return i.VSwitch.Name
}

// ForVLAN builds the router's interface on a VLAN. The router takes the first
// host address of each subnet.
func ForVLAN(parent string, vlan *topology.VLAN) *Interface {
	name := parent
	if !vlan.Untagged() {
		name = parent + "." + strconv.Itoa(vlan.ID)
	}

	iface := &Interface{
		Name:          name,
		Type:          TypeVLAN,
		Comment:       vlan.Name + " vlan",
		Parent:        parent,
		VSwitch:       vlan.VSwitch,
		VLAN:          vlan,
		FirewallZone:  strings.ToUpper(vlan.Name),
		IPv4Mode:      IPv4Static,
		IPv4Subnet:    vlan.IPv4Subnet,
		IPv4PrefixLen: vlan.IPv4Subnet.Bits(),
		IPv6Disabled:  !vlan.HasIPv6(),
	}
	// a /32 has no first host
	if a, err := netutil.FirstHost(vlan.IPv4Subnet); err == nil {
		iface.IPv4Address = a
	}
	if vlan.HasIPv6() {
		iface.IPv6Subnet = vlan.IPv6Subnet
		iface.IPv6PrefixLen = vlan.IPv6Subnet.Bits()
		if a, err := netutil.FirstHost(vlan.IPv6Subnet); err == nil {
			iface.IPv6Address = a
		}
	}
	return iface
}

// ForPort builds an unaddressed port interface, such as the parent of vlan interfaces.
func ForPort(name, comment string, sw *topology.VSwitch) *Interface {
	return &Interface{
		Name:         name,
		Type:         TypePort,
		Comment:      comment,
		VSwitch:      sw,
		IPv6Disabled: true,
	}
}
