// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// Family is an IP address family.
type Family int

const (
	IPv4 Family = 4
	IPv6 Family = 6
)

func (f Family) String() string {
	if f == IPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Families lists both families in output order.
var Families = []Family{IPv4, IPv6}

// FamilyOf returns the family of a.
func FamilyOf(a netip.Addr) Family {
	if a.Is4() {
		return IPv4
	}
	return IPv6
}

// ParseAddr parses a literal address of the given family.
func ParseAddr(s string, family Family) (netip.Addr, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("invalid %s address %q", family, s)
	}
	a = a.Unmap()
	if FamilyOf(a) != family {
		return netip.Addr{}, fmt.Errorf("invalid %s address %q", family, s)
	}
	return a, nil
}

// ParseSubnet parses a network in CIDR form. Host bits must be zero.
func ParseSubnet(s string, family Family) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid %s subnet %q", family, s)
	}
	if FamilyOf(p.Addr()) != family {
		return netip.Prefix{}, fmt.Errorf("invalid %s subnet %q", family, s)
	}
	if p.Masked() != p {
		return netip.Prefix{}, fmt.Errorf("invalid %s subnet %q; host bits are set", family, s)
	}
	return p, nil
}

// Offset returns the network address of p plus n. It fails when the result
// falls outside p.
func Offset(p netip.Prefix, n uint64) (netip.Addr, error) {
	base := p.Masked().Addr()
	b := base.As16()

	lo := binary.BigEndian.Uint64(b[8:])
	hi := binary.BigEndian.Uint64(b[:8])
	sum := lo + n
	if sum < lo {
		hi++
	}
	binary.BigEndian.PutUint64(b[8:], sum)
	binary.BigEndian.PutUint64(b[:8], hi)

	a := netip.AddrFrom16(b)
	if base.Is4() {
		a = a.Unmap()
	}
	if !a.IsValid() || !p.Contains(a) || FamilyOf(a) != FamilyOf(base) {
		return netip.Addr{}, fmt.Errorf("offset %d is outside subnet %s", n, p)
	}
	return a, nil
}

// FirstHost returns the network address plus one, the conventional gateway.
func FirstHost(p netip.Prefix) (netip.Addr, error) {
	return Offset(p, 1)
}

// Range returns the inclusive range [lo, hi], or false when lo > hi or the families differ.
func Range(lo, hi netip.Addr) (netipx.IPRange, bool) {
	r := netipx.IPRangeFrom(lo, hi)
	return r, r.IsValid()
}

// SubnetSet collects prefixes for membership tests.
type SubnetSet struct {
	b netipx.IPSetBuilder
}

// Add adds p to the set. Invalid prefixes are ignored.
func (s *SubnetSet) Add(p netip.Prefix) {
	if p.IsValid() {
		s.b.AddPrefix(p)
	}
}

// Build returns the immutable set.
func (s *SubnetSet) Build() (*netipx.IPSet, error) {
	return s.b.IPSet()
}

// AddressList classifies a list of literal addresses or CIDR networks the
// way an ipset needs them: one family, and either all networks or all hosts.
// A CIDR with a full-length prefix counts as a single address.
func AddressList(entries []string) (family Family, networks bool, err error) {
	if len(entries) == 0 {
		return 0, false, fmt.Errorf("address list cannot be empty")
	}

	for i, e := range entries {
		var (
			f   Family
			net bool
		)

		e = strings.TrimSpace(e)
		if strings.Contains(e, "/") {
			p, perr := netip.ParsePrefix(e)
			if perr != nil || p.Masked() != p {
				return 0, false, fmt.Errorf("invalid network %q", e)
			}
			f = FamilyOf(p.Addr())
			net = p.Bits() != p.Addr().BitLen()
		} else {
			a, aerr := netip.ParseAddr(e)
			if aerr != nil {
				return 0, false, fmt.Errorf("invalid address %q", e)
			}
			f = FamilyOf(a.Unmap())
		}

		if i == 0 {
			family, networks = f, net
			continue
		}
		if f != family {
			return 0, false, fmt.Errorf("all address families must match; %q is %s", e, f)
		}
		if net != networks {
			return 0, false, fmt.Errorf("entries must be either all addresses or all networks; %q differs", e)
		}
	}

	return family, networks, nil
}
