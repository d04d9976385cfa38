// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"net/netip"
	"strconv"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/topology"
)

// Endpoint is a rule endpoint before it is split by address family.
type Endpoint struct {
	Kind     LocationKind
	VLAN     *topology.VLAN
	Hostname string
	IPSet    *IPSet
	IPv4     netip.Prefix
	IPv6     netip.Prefix
}

// Families returns the address families the endpoint applies to.
func (e Endpoint) Families() []netutil.Family {
	switch {
	case e.IPSet != nil:
		return []netutil.Family{e.IPSet.Family}
	case e.IPv4.IsValid() && !e.IPv6.IsValid():
		return []netutil.Family{netutil.IPv4}
	case e.IPv6.IsValid() && !e.IPv4.IsValid():
		return []netutil.Family{netutil.IPv6}
	case e.Kind == KindVLAN && e.VLAN != nil && !e.VLAN.HasIPv6():
		return []netutil.Family{netutil.IPv4}
	}
	return netutil.Families
}

func (e Endpoint) at(f netutil.Family) Location {
	loc := Location{Kind: e.Kind, VLAN: e.VLAN, Hostname: e.Hostname}
	if e.IPSet != nil {
		loc.IPSet = e.IPSet.Name
	}
	if f == netutil.IPv6 {
		loc.Address = e.IPv6
	} else {
		loc.Address = e.IPv4
	}
	return loc
}

// LocationAll matches every zone.
func LocationAll() Endpoint { return Endpoint{Kind: KindAll} }

// LocationInternet matches the internet zone.
func LocationInternet() Endpoint { return Endpoint{Kind: KindInternet} }

// LocationFirewall matches the firewall itself.
func LocationFirewall() Endpoint { return Endpoint{Kind: KindFirewall} }

// NewLocation returns an endpoint on vlan, optionally narrowed to a host name
// or to literal addresses.
func NewLocation(vlan *topology.VLAN, hostname string, ipv4, ipv6 netip.Addr) Endpoint {
	e := Endpoint{Kind: KindVLAN, VLAN: vlan, Hostname: hostname}
	if ipv4.IsValid() {
		e.IPv4 = netip.PrefixFrom(ipv4, ipv4.BitLen())
	}
	if ipv6.IsValid() {
		e.IPv6 = netip.PrefixFrom(ipv6, ipv6.BitLen())
	}
	return e
}

// DestinationsFromInterfaces returns one endpoint per routable VLAN the
// host's addressed interfaces are on, narrowed to the host name.
func DestinationsFromInterfaces(hostname string, ifaces []*network.Interface) []Endpoint {
	var out []Endpoint
	seen := make(map[*topology.VLAN]bool)
	for _, iface := range ifaces {
		if !iface.Addressed() || iface.VLAN == nil || !iface.VLAN.Routable || seen[iface.VLAN] {
			continue
		}
		seen[iface.VLAN] = true
		out = append(out, NewLocation(iface.VLAN, hostname, netip.Addr{}, netip.Addr{}))
	}
	return out
}

// AllowAll returns the action permitting all traffic.
func AllowAll() []Action {
	return []Action{{Kind: ActionAllowAll, Verb: VerbAllow}}
}

// AllowService returns allow actions for named services. Unknown names panic.
func AllowService(names ...string) []Action {
	out := make([]Action, 0, len(names))
	for _, n := range names {
		if _, ok := Services[n]; !ok {
			panic("firewall: unknown service " + strconv.Quote(n))
		}
		out = append(out, Action{Kind: ActionService, Verb: VerbAllow, Service: n})
	}
	return out
}

// AllowProtoPort returns an allow action for the protocol and ports.
func AllowProtoPort(proto string, ports ...int) Action {
	a := Action{Kind: ActionProtoPort, Verb: VerbAllow, Proto: proto}
	for _, p := range ports {
		a.Ports = append(a.Ports, strconv.Itoa(p))
	}
	return a
}

// NewRule splits sources and destinations by address family. A family is
// kept only when it has at least one source and one destination; a rule with
// no such family is an error.
func NewRule(owner, comment string, sources, destinations []Endpoint, actions []Action) (*Rule, error) {
	r := &Rule{Comment: comment, Owner: owner, Actions: actions}

	for _, f := range netutil.Families {
		p := &Payload{}
		for _, e := range sources {
			if hasFamily(e, f) {
				p.Sources = append(p.Sources, e.at(f))
			}
		}
		for _, e := range destinations {
			if hasFamily(e, f) {
				p.Destinations = append(p.Destinations, e.at(f))
			}
		}
		if len(p.Sources) > 0 && len(p.Destinations) > 0 {
			r.setPayload(f, p)
		}
	}

	if r.Empty() {
		return nil, errors.New(errors.KindSemantic, "sources and destinations have no address family in common")
	}
	return r, nil
}

func hasFamily(e Endpoint, f netutil.Family) bool {
	for _, ef := range e.Families() {
		if ef == f {
			return true
		}
	}
	return false
}
