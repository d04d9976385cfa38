// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config defines the typed site and host descriptors and loads them
// from YAML, JSON or HCL files.
package config

// Site is the top-level site descriptor (site.yaml).
type Site struct {
	Name          string         `yaml:"name,omitempty" json:"name,omitempty"`
	Domain        string         `yaml:"domain,omitempty" json:"domain,omitempty"`
	IPv6Disabled  bool           `yaml:"ipv6_disabled,omitempty" json:"ipv6_disabled,omitempty"`
	VSwitches     []VSwitch      `yaml:"vswitches" json:"vswitches"`
	ExternalHosts []ExternalHost `yaml:"external_hosts,omitempty" json:"external_hosts,omitempty"`
	Firewall      Firewall       `yaml:"firewall,omitempty" json:"firewall,omitempty"`
}

// VSwitch describes a virtual switch and its VLANs.
type VSwitch struct {
	Name   string     `yaml:"name" json:"name"`
	Uplink StringList `yaml:"uplink,omitempty" json:"uplink,omitempty"`
	VLANs  []VLAN     `yaml:"vlans" json:"vlans"`
}

// VLAN describes one layer-2 segment. Pointer fields distinguish an absent
// value from an explicit zero so defaults can be applied.
type VLAN struct {
	Name     string `yaml:"name" json:"name"`
	ID       *int   `yaml:"id,omitempty" json:"id,omitempty"`
	Default  bool   `yaml:"default,omitempty" json:"default,omitempty"`
	Routable *bool  `yaml:"routable,omitempty" json:"routable,omitempty"`
	Domain   string `yaml:"domain,omitempty" json:"domain,omitempty"`

	IPv4Subnet   string `yaml:"ipv4_subnet" json:"ipv4_subnet"`
	IPv6Subnet   string `yaml:"ipv6_subnet,omitempty" json:"ipv6_subnet,omitempty"`
	IPv6Disabled bool   `yaml:"ipv6_disabled,omitempty" json:"ipv6_disabled,omitempty"`

	DHCP4Enabled       *bool `yaml:"dhcp4_enabled,omitempty" json:"dhcp4_enabled,omitempty"`
	DHCP6Managed       bool  `yaml:"dhcp6_managed,omitempty" json:"dhcp6_managed,omitempty"`
	DHCPMinAddressIPv4 *int  `yaml:"dhcp_min_address_ipv4,omitempty" json:"dhcp_min_address_ipv4,omitempty"`
	DHCPMaxAddressIPv4 *int  `yaml:"dhcp_max_address_ipv4,omitempty" json:"dhcp_max_address_ipv4,omitempty"`
	DHCPMinAddressIPv6 *int  `yaml:"dhcp_min_address_ipv6,omitempty" json:"dhcp_min_address_ipv6,omitempty"`
	DHCPMaxAddressIPv6 *int  `yaml:"dhcp_max_address_ipv6,omitempty" json:"dhcp_max_address_ipv6,omitempty"`
	IPv6PDNetwork      *int  `yaml:"ipv6_pd_network,omitempty" json:"ipv6_pd_network,omitempty"`

	AllowInternet  bool `yaml:"allow_internet,omitempty" json:"allow_internet,omitempty"`
	AllowDNSUpdate bool `yaml:"allow_dns_update,omitempty" json:"allow_dns_update,omitempty"`

	AccessVLANs      []VLANRef     `yaml:"access_vlans,omitempty" json:"access_vlans,omitempty"`
	DHCPReservations []Reservation `yaml:"dhcp_reservations,omitempty" json:"dhcp_reservations,omitempty"`
	StaticHosts      []StaticHost  `yaml:"static_hosts,omitempty" json:"static_hosts,omitempty"`
}

// Reservation is a DHCP reservation scoped to a VLAN.
type Reservation struct {
	Hostname    string     `yaml:"hostname" json:"hostname"`
	MACAddress  string     `yaml:"mac_address" json:"mac_address"`
	IPv4Address string     `yaml:"ipv4_address,omitempty" json:"ipv4_address,omitempty"`
	IPv6Address string     `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
	Aliases     StringList `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// StaticHost is a statically addressed, non-managed host on a VLAN.
type StaticHost struct {
	Hostname    string     `yaml:"hostname" json:"hostname"`
	IPv4Address string     `yaml:"ipv4_address" json:"ipv4_address"`
	IPv6Address string     `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
	Aliases     StringList `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// ExternalHost names a host on the internet that rules may reference.
type ExternalHost struct {
	Hostnames   StringList `yaml:"hostnames" json:"hostnames"`
	IPv4Address string     `yaml:"ipv4_address,omitempty" json:"ipv4_address,omitempty"`
	IPv6Address string     `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
}

// Firewall holds the site-level firewall intent.
type Firewall struct {
	StaticHosts []FirewallStaticHost `yaml:"static_hosts,omitempty" json:"static_hosts,omitempty"`
	IPSets      []IPSet              `yaml:"ipsets,omitempty" json:"ipsets,omitempty"`
	Rules       []Rule               `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// FirewallStaticHost reserves a name known only to the firewall.
type FirewallStaticHost struct {
	Hostname    string `yaml:"hostname" json:"hostname"`
	IPv4Address string `yaml:"ipv4_address,omitempty" json:"ipv4_address,omitempty"`
	IPv6Address string `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
}

// IPSet is a named list of addresses or networks.
type IPSet struct {
	Name      string   `yaml:"name" json:"name"`
	Addresses []string `yaml:"addresses" json:"addresses"`
	Comment   string   `yaml:"comment,omitempty" json:"comment,omitempty"`
}
