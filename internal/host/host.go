// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package host holds a resolved host: its identity, interfaces and roles.
package host

import (
	"net/netip"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/identity"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/topology"
)

// Host is a host being loaded or fully loaded.
type Host struct {
	Hostname      string
	Identity      *identity.Identity
	VM            bool
	PrimaryDomain string
	Roles         []string

	Interfaces []*network.Interface
	Uplink     *network.Interface

	ExternalDNS []netip.Addr
	LocalDNS    []netip.Addr

	Config *config.Host
}

// FQDN returns the hostname qualified by the primary domain, if any.
func (h *Host) FQDN() string {
	if h.PrimaryDomain == "" {
		return h.Hostname
	}
	return h.Hostname + "." + h.PrimaryDomain
}

// Aliases returns the host's current aliases.
func (h *Host) Aliases() []string {
	if h.Identity == nil {
		return nil
	}
	return h.Identity.Aliases()
}

// HasRole reports whether the host carries role.
func (h *Host) HasRole(role string) bool {
	for _, r := range h.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Addressed returns the std and vlan interfaces attached to a VLAN.
func (h *Host) Addressed() []*network.Interface {
	var out []*network.Interface
	for _, iface := range h.Interfaces {
		if iface.Addressed() && iface.VLAN != nil {
			out = append(out, iface)
		}
	}
	return out
}

// VLANs returns the VLANs the host's addressed interfaces are on, in interface order.
func (h *Host) VLANs() []*topology.VLAN {
	var out []*topology.VLAN
	seen := make(map[*topology.VLAN]bool)
	for _, iface := range h.Addressed() {
		if !seen[iface.VLAN] {
			seen[iface.VLAN] = true
			out = append(out, iface.VLAN)
		}
	}
	return out
}
