// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package testutil provides site and host descriptor fixtures and a test
// logger.
package testutil

import (
	"grimm.is/yodeler/internal/config"
)

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// Site returns a two-switch site:
//
//	lan (uplink eno1): public id 10 (default, dual stack), iot id 20, isolated id 30 (not routable)
//	dmz (uplink eno2): dmz untagged
//
// public has a reservation "tv" (alias "telly"), iot a static host "printer".
// The internet host "backup" (alias "offsite") has only an IPv4 address.
func Site() *config.Site {
	return &config.Site{
		Name:   "test",
		Domain: "example.com",
		VSwitches: []config.VSwitch{
			{
				Name:   "lan",
				Uplink: config.StringList{"eno1"},
				VLANs: []config.VLAN{
					{
						Name:       "public",
						ID:         IntPtr(10),
						Default:    true,
						Domain:     "public.example.com",
						IPv4Subnet: "192.168.1.0/24",
						IPv6Subnet: "fd00:1::/64",
						DHCPReservations: []config.Reservation{
							{Hostname: "tv", MACAddress: "00:11:22:33:44:55", IPv4Address: "192.168.1.50", Aliases: config.StringList{"telly"}},
						},
						AccessVLANs: []config.VLANRef{config.VLANName("iot")},
					},
					{
						Name:       "iot",
						ID:         IntPtr(20),
						Domain:     "iot.example.com",
						IPv4Subnet: "192.168.2.0/24",
						StaticHosts: []config.StaticHost{
							{Hostname: "printer", IPv4Address: "192.168.2.9"},
						},
					},
					{
						Name:       "isolated",
						ID:         IntPtr(30),
						Routable:   BoolPtr(false),
						IPv4Subnet: "192.168.3.0/24",
					},
				},
			},
			{
				Name:   "dmz",
				Uplink: config.StringList{"eno2"},
				VLANs: []config.VLAN{
					{Name: "dmz", IPv4Subnet: "10.10.0.0/24", IPv6Subnet: "fd00:10::/64"},
				},
			},
		},
		ExternalHosts: []config.ExternalHost{
			{Hostnames: config.StringList{"backup", "offsite"}, IPv4Address: "203.0.113.5"},
		},
		Firewall: config.Firewall{
			StaticHosts: []config.FirewallStaticHost{
				{Hostname: "vpn", IPv4Address: "198.51.100.1"},
			},
		},
	}
}

// Iface returns a standard interface on the given switch and VLAN name.
func Iface(vswitch, vlan, ipv4 string) config.Interface {
	iface := config.Interface{VSwitch: vswitch, IPv4Address: ipv4}
	if vlan != "" {
		iface.VLAN = config.VLANName(vlan)
	}
	return iface
}

// Host returns a host descriptor with the given roles and interfaces.
func Host(hostname string, roles []string, ifaces ...config.Interface) *config.Host {
	return &config.Host{
		Hostname:   hostname,
		Roles:      config.StringList(roles),
		Interfaces: ifaces,
	}
}
