// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"net/netip"
	"sort"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/network"
)

// HostDirectory is the view of the loaded site that Resolve needs.
type HostDirectory interface {
	// CanonicalHostname maps a hostname or alias to the hostname.
	CanonicalHostname(name string) (string, bool)
	// Interfaces returns the resolved interfaces of a host.
	Interfaces(hostname string) []*network.Interface
}

// Resolve canonicalizes every host name in the rules once all hosts are
// loaded. A name is tried as a site host or alias, then as an external host,
// then as a reservation or static host on the location's VLAN. Locations
// whose host has no address for a family are dropped from that family; a
// family left without sources or destinations is dropped from the rule, and a
// rule left with no family is removed.
func (f *Firewall) Resolve(dir HostDirectory) error {
	if f.resolved {
		return errors.New(errors.KindInternal, "firewall rules already resolved")
	}

	kept := f.Rules[:0]
	for i, r := range f.Rules {
		for _, fam := range netutil.Families {
			p := r.Payload(fam)
			if p == nil {
				continue
			}

			var err error
			if p.Sources, err = f.resolveLocations(dir, fam, p.Sources); err != nil {
				return errors.Context(err, "invalid rule %d for %s", i+1, r.Owner)
			}
			if p.Destinations, err = f.resolveLocations(dir, fam, p.Destinations); err != nil {
				return errors.Context(err, "invalid rule %d for %s", i+1, r.Owner)
			}

			if len(p.Sources) == 0 || len(p.Destinations) == 0 {
				f.log.Debug("dropping rule payload with no locations left",
					"rule", i+1, "owner", r.Owner, "family", fam.String(), "comment", r.Comment)
				r.setPayload(fam, nil)
				f.stats.PayloadsDropped[fam]++
			}
		}

		if r.Empty() {
			f.log.Debug("removing rule with no payloads", "rule", i+1, "owner", r.Owner, "comment", r.Comment)
			f.stats.RulesRemoved++
			continue
		}
		kept = append(kept, r)
	}
	f.Rules = kept
	f.resolved = true
	return nil
}

func (f *Firewall) resolveLocations(dir HostDirectory, fam netutil.Family, locs []Location) ([]Location, error) {
	var remove []int
	for i := range locs {
		drop, err := f.resolveLocation(dir, fam, &locs[i])
		if err != nil {
			return nil, err
		}
		if drop {
			remove = append(remove, i)
		}
	}

	sort.Sort(sort.Reverse(sort.IntSlice(remove)))
	for _, i := range remove {
		f.log.Debug("dropping location without an address",
			"hostname", locs[i].Hostname, "zone", locs[i].Zone(), "family", fam.String())
		locs = append(locs[:i], locs[i+1:]...)
		f.stats.LocationsPruned[fam]++
	}
	return locs, nil
}

// resolveLocation reports whether loc must be dropped for the family.
func (f *Firewall) resolveLocation(dir HostDirectory, fam netutil.Family, loc *Location) (bool, error) {
	name := loc.Hostname
	if name == "" {
		return false, nil
	}

	if hostname, ok := dir.CanonicalHostname(name); ok {
		loc.Hostname = hostname

		// membership counts every interface; addressed ones win the address
		var iface *network.Interface
		for _, candidate := range dir.Interfaces(hostname) {
			if candidate.VLAN == nil || candidate.VLAN != loc.VLAN {
				continue
			}
			if iface == nil || (candidate.Addressed() && !iface.Addressed()) {
				iface = candidate
			}
		}
		if iface == nil {
			return false, errors.Semantic(errors.KindSemantic, "hostname",
				"host '%s' has no interface on vlan '%s'", hostname, loc.Zone())
		}
		return setAddress(loc, iface.Addr(fam)), nil
	}

	if h, ok := f.ExternalHost(name); ok {
		if loc.Kind != KindInternet {
			return false, errors.Semantic(errors.KindSemantic, "hostname",
				"external host '%s' can only be used with the internet zone", name)
		}
		return setAddress(loc, h.Addr(fam)), nil
	}

	if loc.Kind == KindVLAN && loc.VLAN != nil {
		if h, ok := loc.VLAN.FindHost(name); ok {
			loc.Hostname = h.CanonicalName()
			return setAddress(loc, h.Addr(fam)), nil
		}
	}

	return false, errors.Semantic(errors.KindNotFound, "hostname",
		"unknown hostname '%s' on '%s'", name, loc.Zone())
}

// setAddress stores a as the location's address and reports whether the
// location has none.
func setAddress(loc *Location, a netip.Addr) bool {
	if !a.IsValid() {
		return true
	}
	loc.Address = netip.PrefixFrom(a, a.BitLen())
	return false
}
