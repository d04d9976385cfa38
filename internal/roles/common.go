// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package roles

import (
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/network"
)

// common is applied to every host before its declared roles.
type common struct{ base }

func (common) Name() string { return Common }

// Validate allows one std interface per VLAN and at most one interface on a
// routable VLAN per switch; the router carries the others.
func (common) Validate(h *host.Host, _ Site) error {
	if h.HasRole(Router) {
		return nil
	}

	vlans := make(map[string]bool)
	switches := make(map[string]bool)

	for _, iface := range h.Interfaces {
		if iface.Type != network.TypeStd || iface.VLAN == nil {
			continue
		}
		if vlans[iface.VLAN.Name] {
			return errors.Semantic(errors.KindConflict, "interfaces",
				"host '%s' defines multiple interfaces on vlan '%s'", h.Hostname, iface.VLAN.Name)
		}
		vlans[iface.VLAN.Name] = true

		if !iface.VLAN.Routable {
			continue
		}
		sw := iface.VSwitchName()
		if switches[sw] {
			return errors.Semantic(errors.KindConflict, "interfaces",
				"host '%s' defines interfaces on multiple routable vlans for vswitch '%s'", h.Hostname, sw)
		}
		switches[sw] = true
	}
	return nil
}

// every host carries common, so instance counts do not apply
func (common) MinInstances(Site) int { return 0 }
func (common) MaxInstances(Site) int { return Unlimited }
