// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/topology"
)

// Model is the resolved site as handed to generators. Addresses, networks and
// port ranges are plain strings.
type Model struct {
	BuildID   string    `yaml:"build_id" json:"build_id"`
	Site      string    `yaml:"site" json:"site"`
	Domain    string    `yaml:"domain,omitempty" json:"domain,omitempty"`
	VSwitches []VSwitch `yaml:"vswitches" json:"vswitches"`
	Hosts     []Host    `yaml:"hosts" json:"hosts"`
	IPSets    []IPSet   `yaml:"ipsets,omitempty" json:"ipsets,omitempty"`
	Rules     []Rule    `yaml:"rules,omitempty" json:"rules,omitempty"`
}

type VSwitch struct {
	Name        string   `yaml:"name" json:"name"`
	Uplinks     []string `yaml:"uplinks,omitempty" json:"uplinks,omitempty"`
	DefaultVLAN string   `yaml:"default_vlan,omitempty" json:"default_vlan,omitempty"`
	VLANs       []VLAN   `yaml:"vlans" json:"vlans"`
}

// VLAN is a rendered VLAN. ID is omitted for the untagged VLAN.
type VLAN struct {
	Name           string    `yaml:"name" json:"name"`
	ID             *int      `yaml:"id,omitempty" json:"id,omitempty"`
	Routable       bool      `yaml:"routable" json:"routable"`
	Domain         string    `yaml:"domain,omitempty" json:"domain,omitempty"`
	IPv4Subnet     string    `yaml:"ipv4_subnet" json:"ipv4_subnet"`
	IPv6Subnet     string    `yaml:"ipv6_subnet,omitempty" json:"ipv6_subnet,omitempty"`
	IPv6Disabled   bool      `yaml:"ipv6_disabled,omitempty" json:"ipv6_disabled,omitempty"`
	IPv6PDNetwork  int       `yaml:"ipv6_pd_network,omitempty" json:"ipv6_pd_network,omitempty"`
	DHCP4Enabled   bool      `yaml:"dhcp4_enabled" json:"dhcp4_enabled"`
	DHCP6Managed   bool      `yaml:"dhcp6_managed,omitempty" json:"dhcp6_managed,omitempty"`
	DHCPRangeIPv4  string    `yaml:"dhcp_range_ipv4,omitempty" json:"dhcp_range_ipv4,omitempty"`
	DHCPRangeIPv6  string    `yaml:"dhcp_range_ipv6,omitempty" json:"dhcp_range_ipv6,omitempty"`
	AllowInternet  bool      `yaml:"allow_internet,omitempty" json:"allow_internet,omitempty"`
	AllowDNSUpdate bool      `yaml:"allow_dns_update,omitempty" json:"allow_dns_update,omitempty"`
	AccessVLANs    []string  `yaml:"access_vlans,omitempty" json:"access_vlans,omitempty"`
	Reservations   []Address `yaml:"dhcp_reservations,omitempty" json:"dhcp_reservations,omitempty"`
	StaticHosts    []Address `yaml:"static_hosts,omitempty" json:"static_hosts,omitempty"`
	DNSEntries     []Address `yaml:"dns_entries,omitempty" json:"dns_entries,omitempty"`
	DNSServers     *Servers  `yaml:"dns_servers,omitempty" json:"dns_servers,omitempty"`
	NTPServers     *Servers  `yaml:"ntp_servers,omitempty" json:"ntp_servers,omitempty"`
}

// Address is a named address record: a reservation, static host or DNS entry.
type Address struct {
	Hostname    string   `yaml:"hostname" json:"hostname"`
	MACAddress  string   `yaml:"mac_address,omitempty" json:"mac_address,omitempty"`
	IPv4Address string   `yaml:"ipv4_address,omitempty" json:"ipv4_address,omitempty"`
	IPv6Address string   `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

type Host struct {
	Hostname      string      `yaml:"hostname" json:"hostname"`
	FQDN          string      `yaml:"fqdn" json:"fqdn"`
	VM            bool        `yaml:"is_vm" json:"is_vm"`
	PrimaryDomain string      `yaml:"primary_domain,omitempty" json:"primary_domain,omitempty"`
	Roles         []string    `yaml:"roles" json:"roles"`
	Aliases       []string    `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Interfaces    []Interface `yaml:"interfaces" json:"interfaces"`
	ExternalDNS   []string    `yaml:"external_dns,omitempty" json:"external_dns,omitempty"`
	LocalDNS      []string    `yaml:"local_dns,omitempty" json:"local_dns,omitempty"`
	Nameservers   *Servers    `yaml:"nameservers,omitempty" json:"nameservers,omitempty"`
	NTPServers    *Servers    `yaml:"ntp_servers,omitempty" json:"ntp_servers,omitempty"`
}

type Interface struct {
	Name         string `yaml:"name" json:"name"`
	Type         string `yaml:"type" json:"type"`
	Comment      string `yaml:"comment,omitempty" json:"comment,omitempty"`
	Parent       string `yaml:"parent,omitempty" json:"parent,omitempty"`
	Macvtap      string `yaml:"macvtap,omitempty" json:"macvtap,omitempty"`
	VSwitch      string `yaml:"vswitch,omitempty" json:"vswitch,omitempty"`
	VLAN         string `yaml:"vlan,omitempty" json:"vlan,omitempty"`
	FirewallZone string `yaml:"firewall_zone,omitempty" json:"firewall_zone,omitempty"`

	// IPv4Address is "dhcp" for dynamic addressing.
	IPv4Address   string `yaml:"ipv4_address,omitempty" json:"ipv4_address,omitempty"`
	IPv4PrefixLen int    `yaml:"ipv4_prefixlen,omitempty" json:"ipv4_prefixlen,omitempty"`
	IPv4Gateway   string `yaml:"ipv4_gateway,omitempty" json:"ipv4_gateway,omitempty"`

	IPv6Address           string   `yaml:"ipv6_address,omitempty" json:"ipv6_address,omitempty"`
	IPv6PrefixLen         int      `yaml:"ipv6_prefixlen,omitempty" json:"ipv6_prefixlen,omitempty"`
	IPv6Addresses         []string `yaml:"ipv6_addresses,omitempty" json:"ipv6_addresses,omitempty"`
	IPv6Disabled          bool     `yaml:"ipv6_disabled,omitempty" json:"ipv6_disabled,omitempty"`
	IPv6DHCP              bool     `yaml:"ipv6_dhcp,omitempty" json:"ipv6_dhcp,omitempty"`
	IPv6Tempaddr          bool     `yaml:"ipv6_tempaddr,omitempty" json:"ipv6_tempaddr,omitempty"`
	AcceptRA              bool     `yaml:"accept_ra,omitempty" json:"accept_ra,omitempty"`
	IPv6AskForPrefix      bool     `yaml:"ipv6_ask_for_prefix,omitempty" json:"ipv6_ask_for_prefix,omitempty"`
	IPv6PDPrefixLen       int      `yaml:"ipv6_pd_prefixlen,omitempty" json:"ipv6_pd_prefixlen,omitempty"`
	IPv6DelegatedPrefixes []string `yaml:"ipv6_delegated_prefixes,omitempty" json:"ipv6_delegated_prefixes,omitempty"`

	WifiSSID string `yaml:"wifi_ssid,omitempty" json:"wifi_ssid,omitempty"`
	WifiPSK  string `yaml:"wifi_psk,omitempty" json:"wifi_psk,omitempty"`
}

type IPSet struct {
	Name      string   `yaml:"name" json:"name"`
	Family    string   `yaml:"family" json:"family"`
	Type      string   `yaml:"type" json:"type"`
	HashSize  int      `yaml:"hashsize" json:"hashsize"`
	Addresses []string `yaml:"addresses" json:"addresses"`
	Comment   string   `yaml:"comment,omitempty" json:"comment,omitempty"`
}

type Rule struct {
	Comment string   `yaml:"comment,omitempty" json:"comment,omitempty"`
	Owner   string   `yaml:"owner" json:"owner"`
	IPv4    *Payload `yaml:"ipv4,omitempty" json:"ipv4,omitempty"`
	IPv6    *Payload `yaml:"ipv6,omitempty" json:"ipv6,omitempty"`
	Actions []Action `yaml:"actions" json:"actions"`
}

type Payload struct {
	Sources      []Location `yaml:"sources" json:"sources"`
	Destinations []Location `yaml:"destinations" json:"destinations"`
}

type Location struct {
	Zone     string `yaml:"zone" json:"zone"`
	Hostname string `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	IPSet    string `yaml:"ipset,omitempty" json:"ipset,omitempty"`
	Address  string `yaml:"address,omitempty" json:"address,omitempty"`
}

type Action struct {
	Type    string   `yaml:"type" json:"type"`
	Verb    string   `yaml:"verb" json:"verb"`
	Service string   `yaml:"service,omitempty" json:"service,omitempty"`
	Proto   string   `yaml:"proto,omitempty" json:"proto,omitempty"`
	Ports   []string `yaml:"ports,omitempty" json:"ports,omitempty"`
	Comment string   `yaml:"comment,omitempty" json:"comment,omitempty"`
}

// Model renders the site. Every call gets a new build id.
func (s *Site) Model() *Model {
	m := &Model{
		BuildID: uuid.NewString(),
		Site:    s.Name,
		Domain:  s.Domain,
	}
	dns, ntp := s.serviceHolders()
	for _, sw := range s.Catalog.VSwitches {
		m.VSwitches = append(m.VSwitches, vswitchModel(sw, dns, ntp))
	}
	for _, h := range s.Hosts {
		hm := hostModel(h)
		hm.Nameservers = nameservers(h, dns)
		hm.NTPServers = timeServers(h, ntp)
		m.Hosts = append(m.Hosts, hm)
	}
	for _, set := range s.Firewall.IPSets {
		m.IPSets = append(m.IPSets, IPSet{
			Name:      set.Name,
			Family:    set.FamilyName(),
			Type:      set.Type(),
			HashSize:  set.HashSize,
			Addresses: set.Addresses,
			Comment:   set.Comment,
		})
	}
	for _, r := range s.Firewall.Rules {
		m.Rules = append(m.Rules, ruleModel(r))
	}
	return m
}

func vswitchModel(sw *topology.VSwitch, dns, ntp []*host.Host) VSwitch {
	out := VSwitch{Name: sw.Name, Uplinks: sw.Uplinks}
	if sw.DefaultVLAN != nil {
		out.DefaultVLAN = sw.DefaultVLAN.Name
	}
	for _, v := range sw.VLANs {
		vm := vlanModel(v)
		vm.DNSServers = vlanServers(v, dns)
		vm.NTPServers = vlanServers(v, ntp)
		out.VLANs = append(out.VLANs, vm)
	}
	return out
}

func vlanModel(v *topology.VLAN) VLAN {
	out := VLAN{
		Name:           v.Name,
		Routable:       v.Routable,
		Domain:         v.Domain,
		IPv4Subnet:     prefixString(v.IPv4Subnet),
		IPv6Subnet:     prefixString(v.IPv6Subnet),
		IPv6Disabled:   v.IPv6Disabled,
		IPv6PDNetwork:  v.IPv6PDNetwork,
		DHCP4Enabled:   v.DHCP4Enabled,
		DHCP6Managed:   v.DHCP6Managed,
		AllowInternet:  v.AllowInternet,
		AllowDNSUpdate: v.AllowDNSUpdate,
		AccessVLANs:    v.AccessVLANs,
	}
	if !v.Untagged() {
		id := v.ID
		out.ID = &id
	}
	if v.DHCPRangeIPv4.IsValid() {
		out.DHCPRangeIPv4 = v.DHCPRangeIPv4.String()
	}
	if v.DHCPRangeIPv6.IsValid() {
		out.DHCPRangeIPv6 = v.DHCPRangeIPv6.String()
	}
	for _, r := range v.Reservations {
		out.Reservations = append(out.Reservations, Address{
			Hostname:    r.Hostname,
			MACAddress:  r.MACAddress,
			IPv4Address: addrString(r.IPv4Address),
			IPv6Address: addrString(r.IPv6Address),
			Aliases:     r.Aliases,
		})
	}
	for _, s := range v.StaticHosts {
		out.StaticHosts = append(out.StaticHosts, Address{
			Hostname:    s.Hostname,
			IPv4Address: addrString(s.IPv4Address),
			IPv6Address: addrString(s.IPv6Address),
			Aliases:     s.Aliases,
		})
	}
	for _, e := range v.DNSEntries {
		out.DNSEntries = append(out.DNSEntries, Address{
			Hostname:    e.Hostname,
			IPv4Address: addrString(e.IPv4Address),
			IPv6Address: addrString(e.IPv6Address),
			Aliases:     e.Aliases,
		})
	}
	return out
}

func hostModel(h *host.Host) Host {
	out := Host{
		Hostname:      h.Hostname,
		FQDN:          h.FQDN(),
		VM:            h.VM,
		PrimaryDomain: h.PrimaryDomain,
		Roles:         h.Roles,
		Aliases:       h.Aliases(),
	}
	for _, iface := range h.Interfaces {
		out.Interfaces = append(out.Interfaces, interfaceModel(iface))
	}
	for _, a := range h.ExternalDNS {
		out.ExternalDNS = append(out.ExternalDNS, a.String())
	}
	for _, a := range h.LocalDNS {
		out.LocalDNS = append(out.LocalDNS, a.String())
	}
	return out
}

func interfaceModel(iface *network.Interface) Interface {
	out := Interface{
		Name:                  iface.Name,
		Type:                  string(iface.Type),
		Comment:               iface.Comment,
		Parent:                iface.Parent,
		Macvtap:               iface.Macvtap,
		VSwitch:               iface.VSwitchName(),
		VLAN:                  iface.VLANName(),
		FirewallZone:          iface.FirewallZone,
		IPv4PrefixLen:         iface.IPv4PrefixLen,
		IPv4Gateway:           addrString(iface.IPv4Gateway),
		IPv6Address:           addrString(iface.IPv6Address),
		IPv6PrefixLen:         iface.IPv6PrefixLen,
		IPv6Disabled:          iface.IPv6Disabled,
		IPv6DHCP:              iface.IPv6DHCP,
		IPv6Tempaddr:          iface.IPv6Tempaddr,
		AcceptRA:              iface.AcceptRA,
		IPv6AskForPrefix:      iface.IPv6AskForPrefix,
		IPv6PDPrefixLen:       iface.IPv6PDPrefixLen,
		IPv6DelegatedPrefixes: iface.IPv6DelegatedPrefixes,
		WifiSSID:              iface.WifiSSID,
		WifiPSK:               iface.WifiPSK,
	}
	switch iface.IPv4Mode {
	case network.IPv4DHCP:
		out.IPv4Address = "dhcp"
	case network.IPv4Static:
		out.IPv4Address = iface.IPv4Address.String()
	}
	for _, a := range iface.IPv6Addresses {
		out.IPv6Addresses = append(out.IPv6Addresses, a.String())
	}
	return out
}

func ruleModel(r *firewall.Rule) Rule {
	out := Rule{
		Comment: r.Comment,
		Owner:   r.Owner,
		IPv4:    payloadModel(r.IPv4),
		IPv6:    payloadModel(r.IPv6),
	}
	for _, a := range r.Actions {
		out.Actions = append(out.Actions, Action{
			Type:    actionType(a.Kind),
			Verb:    string(a.Verb),
			Service: a.Service,
			Proto:   a.Proto,
			Ports:   a.Ports,
			Comment: a.Comment,
		})
	}
	return out
}

func actionType(k firewall.ActionKind) string {
	switch k {
	case firewall.ActionAllowAll:
		return "allow-all"
	case firewall.ActionService:
		return "service"
	default:
		return "proto-port"
	}
}

func payloadModel(p *firewall.Payload) *Payload {
	if p == nil {
		return nil
	}
	return &Payload{
		Sources:      locationModels(p.Sources),
		Destinations: locationModels(p.Destinations),
	}
}

func locationModels(locs []firewall.Location) []Location {
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		out = append(out, Location{
			Zone:     l.Zone(),
			Hostname: l.Hostname,
			IPSet:    l.IPSet,
			Address:  prefixString(l.Address),
		})
	}
	return out
}

// Encode writes the model as YAML or JSON.
func (m *Model) Encode(w io.Writer, format config.Format) error {
	switch format {
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return errors.Wrap(err, errors.KindInternal, "failed to encode model")
		}
		return enc.Close()
	case config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return errors.Wrap(err, errors.KindInternal, "failed to encode model")
		}
		return nil
	}
	return errors.Errorf(errors.KindSchema, "unsupported output format '%s'", format)
}

// WriteFile writes the model to <dir>/<site>/site.<format> and returns the path.
func (m *Model) WriteFile(dir string, format config.Format) (string, error) {
	siteDir := filepath.Join(dir, m.Site)
	if err := os.MkdirAll(siteDir, 0o755); err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "failed to create %s", siteDir)
	}

	path := filepath.Join(siteDir, "site."+string(format))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, errors.KindInternal, "failed to create %s", path)
	}
	defer f.Close()

	if err := m.Encode(f, format); err != nil {
		return "", err
	}
	return path, f.Close()
}
