// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall resolves symbolic firewall intent into per-family rules.
//
// Rules are parsed while hosts load (phase 1), when host names cannot be
// checked yet. Once every host is loaded, Resolve canonicalizes host names and
// prunes locations with no address for a family (phase 2).
package firewall

import (
	"net/netip"

	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/topology"
)

// LocationKind distinguishes the special zones from VLAN scoped locations.
type LocationKind int

const (
	KindVLAN LocationKind = iota
	KindAll
	KindInternet
	KindFirewall
)

// Zone names usable in place of a VLAN.
const (
	ZoneAll      = "all"
	ZoneInternet = "internet"
	ZoneFirewall = "firewall"
)

func (k LocationKind) String() string {
	switch k {
	case KindAll:
		return ZoneAll
	case KindInternet:
		return ZoneInternet
	case KindFirewall:
		return ZoneFirewall
	default:
		return "vlan"
	}
}

// Location is a rule endpoint within one address family.
type Location struct {
	Kind LocationKind
	// VLAN is set for KindVLAN only.
	VLAN     *topology.VLAN
	Hostname string
	IPSet    string
	// Address is the literal address or network given for this family. For
	// host names it holds the resolved address once Resolve has run.
	Address netip.Prefix
}

// Zone returns the VLAN name or the special zone name.
func (l Location) Zone() string {
	if l.Kind == KindVLAN && l.VLAN != nil {
		return l.VLAN.Name
	}
	return l.Kind.String()
}

// Payload is the rule body for one address family.
type Payload struct {
	Sources      []Location
	Destinations []Location
}

// ActionKind is the type of an action.
type ActionKind int

const (
	ActionAllowAll ActionKind = iota
	ActionService
	ActionProtoPort
)

// Verb is what an action does to matching traffic.
type Verb string

const (
	VerbAllow   Verb = "allow"
	VerbForward Verb = "forward"
)

// Action is one thing a rule permits.
type Action struct {
	Kind    ActionKind
	Verb    Verb
	Service string
	Proto   string
	// Ports are port numbers or "lo:hi" ranges.
	Ports   []string
	Comment string
}

// Rule is a firewall rule split by address family. A nil payload means the
// rule does not apply to that family.
type Rule struct {
	Comment string
	IPv4    *Payload
	IPv6    *Payload
	Actions []Action
	// Owner is "site" or the hostname that declared the rule.
	Owner string
}

// Payload returns the payload for the family.
func (r *Rule) Payload(f netutil.Family) *Payload {
	if f == netutil.IPv6 {
		return r.IPv6
	}
	return r.IPv4
}

func (r *Rule) setPayload(f netutil.Family, p *Payload) {
	if f == netutil.IPv6 {
		r.IPv6 = p
	} else {
		r.IPv4 = p
	}
}

// Empty reports whether the rule applies to neither family.
func (r *Rule) Empty() bool {
	return r.IPv4 == nil && r.IPv6 == nil
}

// IPSet is a validated, sized address set.
type IPSet struct {
	Name      string
	Family    netutil.Family
	Networks  bool
	HashSize  int
	Addresses []string
	Comment   string
}

// FamilyName returns the set family as ipset spells it.
func (s *IPSet) FamilyName() string {
	if s.Family == netutil.IPv6 {
		return "inet6"
	}
	return "inet"
}

// Type returns "net" for sets of networks and "ip" for sets of addresses.
func (s *IPSet) Type() string {
	if s.Networks {
		return "net"
	}
	return "ip"
}

// ExternalHost is a named host on the internet.
type ExternalHost struct {
	Hostnames   []string
	IPv4Address netip.Addr
	IPv6Address netip.Addr
}

// Addr returns the address for the family; the zero Addr when unset.
func (h *ExternalHost) Addr(f netutil.Family) netip.Addr {
	if f == netutil.IPv6 {
		return h.IPv6Address
	}
	return h.IPv4Address
}

// StaticHost is a name known only to the firewall.
type StaticHost struct {
	Hostname    string
	IPv4Address netip.Addr
	IPv6Address netip.Addr
}
