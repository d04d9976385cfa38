// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reachability

import (
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/topology"
)

// UnreachableVLANs returns the names of the VLANs that no interface in ifaces
// can reach, skipping any for which ignore returns true. An interface on a
// routable VLAN reaches every routable VLAN on its switch.
func UnreachableVLANs(ifaces []*network.Interface, switches []*topology.VSwitch, ignore func(*topology.VLAN) bool) []string {
	reachable := make(map[*topology.VLAN]bool)

	for _, iface := range ifaces {
		if !attached(iface) {
			continue
		}
		if !iface.VLAN.Routable {
			reachable[iface.VLAN] = true
			continue
		}
		for _, v := range iface.VSwitch.VLANs {
			if v.Routable {
				reachable[v] = true
			}
		}
	}

	var missing []string
	for _, sw := range switches {
		for _, v := range sw.VLANs {
			if reachable[v] || (ignore != nil && ignore(v)) {
				continue
			}
			missing = append(missing, v.Name)
		}
	}
	return missing
}
