// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

// DefaultExternalDNS is used when a host does not list its own resolvers.
var DefaultExternalDNS = []string{"8.8.8.8", "9.9.9.9", "1.1.1.1"}

// Host is a per-host descriptor (<hostname>.yaml).
type Host struct {
	Hostname      string      `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	IsVM          *bool       `yaml:"is_vm,omitempty" json:"is_vm,omitempty"`
	PrimaryDomain string      `yaml:"primary_domain,omitempty" json:"primary_domain,omitempty"`
	Roles         StringList  `yaml:"roles,omitempty" json:"roles,omitempty"`
	Aliases       StringList  `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Interfaces    []Interface `yaml:"interfaces,omitempty" json:"interfaces,omitempty"`
	Uplink        *Interface  `yaml:"uplink,omitempty" json:"uplink,omitempty"`
	ExternalDNS   []string    `yaml:"external_dns,omitempty" json:"external_dns,omitempty"`
	LocalDNS      []string    `yaml:"local_dns,omitempty" json:"local_dns,omitempty"`
	Firewall      *HostRules  `yaml:"firewall,omitempty" json:"firewall,omitempty"`
}

// HostRules holds firewall rules declared in a host file.
type HostRules struct {
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// VM reports whether the host is a virtual machine. Hosts are VMs unless stated otherwise.
func (h *Host) VM() bool {
	return h.IsVM == nil || *h.IsVM
}

// Interface describes one host network interface.
type Interface struct {
	Name         string  `yaml:"name,omitempty" json:"name,omitempty"`
	Type         string  `yaml:"type,omitempty" json:"type,omitempty"`
	Comment      string  `yaml:"comment,omitempty" json:"comment,omitempty"`
	VSwitch      string  `yaml:"vswitch,omitempty" json:"vswitch,omitempty"`
	VLAN         VLANRef `yaml:"vlan,omitempty" json:"vlan,omitempty"`
	Macvtap      string  `yaml:"macvtap,omitempty" json:"macvtap,omitempty"`
	FirewallZone string  `yaml:"firewall_zone,omitempty" json:"firewall_zone,omitempty"`

	IPv4Address string `yaml:"ipv4_address,omitempty" json:"ipv4_address,omitempty"`
	IPv4Gateway string `yaml:"ipv4_gateway,omitempty" json:"ipv4_gateway,omitempty"`
	IPv4Subnet  string `yaml:"ipv4_subnet,omitempty" json:"ipv4_subnet,omitempty"`

	IPv6Address      string   `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
	IPv6Subnet       string   `yaml:"ipv6_subnet,omitempty" json:"ipv6_subnet,omitempty"`
	IPv6Addresses    []string `yaml:"ipv6_addresses,omitempty" json:"ipv6_addresses,omitempty"`
	IPv6Disabled     bool     `yaml:"ipv6_disabled,omitempty" json:"ipv6_disabled,omitempty"`
	IPv6DHCP         bool     `yaml:"ipv6_dhcp,omitempty" json:"ipv6_dhcp,omitempty"`
	IPv6Tempaddr     *bool    `yaml:"ipv6_tempaddr,omitempty" json:"ipv6_tempaddr,omitempty"`
	AcceptRA         *bool    `yaml:"accept_ra,omitempty" json:"accept_ra,omitempty"`
	IPv6AskForPrefix bool     `yaml:"ipv6_ask_for_prefix,omitempty" json:"ipv6_ask_for_prefix,omitempty"`
	IPv6PDPrefixLen  *int     `yaml:"ipv6_pd_prefixlen,omitempty" json:"ipv6_pd_prefixlen,omitempty"`

	WifiSSID string `yaml:"wifi_ssid,omitempty" json:"wifi_ssid,omitempty"`
	WifiPSK  string `yaml:"wifi_psk,omitempty" json:"wifi_psk,omitempty"`
}
