// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package network

import (
	"fmt"
	"net/netip"
	"strings"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/topology"
	"grimm.is/yodeler/internal/validation"
)

// UplinkZone is the firewall zone of an uplink that is not on a VLAN.
const UplinkZone = "INTERNET"

// Resolver validates interfaces against a site's switches.
type Resolver struct {
	catalog      *topology.Catalog
	ipv6Disabled bool
	log          *logging.Logger
}

// NewResolver returns a resolver for the catalog. ipv6Disabled is the site-wide flag.
func NewResolver(catalog *topology.Catalog, ipv6Disabled bool) *Resolver {
	return &Resolver{
		catalog:      catalog,
		ipv6Disabled: ipv6Disabled,
		log:          logging.WithComponent("network"),
	}
}

// Resolve validates one interface definition. Unnamed interfaces are named
// eth<index>.
func (r *Resolver) Resolve(field string, index int, cfg config.Interface) (*Interface, error) {
	iface := &Interface{
		Name:    cfg.Name,
		Type:    Type(strings.ToLower(cfg.Type)),
		Comment: cfg.Comment,
		Macvtap: cfg.Macvtap,
	}
	if iface.Name == "" {
		iface.Name = fmt.Sprintf("eth%d", index)
	}
	if iface.Type == "" {
		iface.Type = TypeStd
	}

	if err := validation.ValidateInterfaceName(iface.Name); err != nil {
		return nil, errors.Attr(err, errors.AttrField, field+".name")
	}
	if err := validation.ValidateAllowlist(string(iface.Type), []string{
		string(TypeStd), string(TypeVLAN), string(TypePort), string(TypeUplink),
	}); err != nil {
		return nil, errors.Context(errors.Attr(err, errors.AttrField, field+".type"), "interface '%s'", iface.Name)
	}

	if err := r.ValidateNetwork(field, cfg, iface); err != nil {
		return nil, errors.Context(err, "interface '%s'", iface.Name)
	}
	if iface.Type == TypePort {
		return iface, nil
	}
	if err := r.ValidateInterface(field, cfg, iface); err != nil {
		return nil, errors.Context(err, "interface '%s'", iface.Name)
	}
	return iface, nil
}

// ValidateNetwork binds iface to its switch and VLAN. Ports only need a valid
// switch, if any. Uplinks without a switch are physical or macvtap interfaces.
func (r *Resolver) ValidateNetwork(field string, cfg config.Interface, iface *Interface) error {
	name := cfg.VSwitch
	if name == "" {
		switch iface.Type {
		case TypePort:
			return nil
		case TypeUplink:
			if !cfg.VLAN.IsZero() {
				return errors.Schema(field+".vswitch", nil, "vswitch must be specified when vlan is set")
			}
			iface.FirewallZone = zoneOr(cfg.FirewallZone, UplinkZone)
			return nil
		}
		if len(r.catalog.VSwitches) != 1 {
			return errors.Schema(field+".vswitch", nil, "vswitch must be specified")
		}
		name = r.catalog.VSwitches[0].Name
	}

	sw, ok := r.catalog.VSwitch(name)
	if !ok {
		return errors.Semantic(errors.KindNotFound, field+".vswitch", "invalid vswitch '%s'", name)
	}
	iface.VSwitch = sw

	if iface.Type == TypePort {
		return nil
	}

	vlan, err := sw.Lookup(cfg.VLAN)
	if err != nil {
		return errors.Attr(err, errors.AttrField, field+".vlan")
	}
	iface.VLAN = vlan
	iface.FirewallZone = zoneOr(cfg.FirewallZone, vlan.Name)
	return nil
}

// ValidateInterface resolves IPv4 and IPv6 addressing for a bound interface.
func (r *Resolver) ValidateInterface(field string, cfg config.Interface, iface *Interface) error {
	if err := r.validateIPv4(field, cfg, iface); err != nil {
		return err
	}
	if err := r.validateIPv6(field, cfg, iface); err != nil {
		return err
	}

	if strings.HasPrefix(iface.Name, "wl") {
		if cfg.WifiSSID == "" || cfg.WifiPSK == "" {
			return errors.Schema(field+".wifi_ssid", nil, "wifi_ssid and wifi_psk must be specified for wireless interfaces")
		}
		iface.WifiSSID = cfg.WifiSSID
		iface.WifiPSK = cfg.WifiPSK
	}
	return nil
}

func (r *Resolver) validateIPv4(field string, cfg config.Interface, iface *Interface) error {
	addr := strings.ToLower(strings.TrimSpace(cfg.IPv4Address))
	if addr == "" {
		return errors.Schema(field+".ipv4_address", nil, "ipv4_address must be specified; use 'dhcp' for dynamic addressing")
	}

	if addr == "dhcp" {
		if iface.VLAN != nil && !iface.VLAN.DHCP4Enabled {
			return errors.Semantic(errors.KindSemantic, field+".ipv4_address",
				"ipv4_address cannot be 'dhcp' when vlan '%s' has dhcp4 disabled", iface.VLAN.Name)
		}
		iface.IPv4Mode = IPv4DHCP
		return nil
	}

	routable := true
	if iface.VLAN != nil {
		iface.IPv4Subnet = iface.VLAN.IPv4Subnet
		routable = iface.VLAN.Routable
	} else {
		if cfg.IPv4Subnet == "" {
			return errors.Schema(field+".ipv4_subnet", nil, "ipv4_subnet must be specified for a static address without a vswitch")
		}
		subnet, err := netutil.ParseSubnet(cfg.IPv4Subnet, netutil.IPv4)
		if err != nil {
			return errors.Schema(field+".ipv4_subnet", cfg.IPv4Subnet, "%v", err)
		}
		iface.IPv4Subnet = subnet
	}

	a, err := validation.ValidateAddressIn(field+".ipv4_address", addr, netutil.IPv4, iface.IPv4Subnet)
	if err != nil {
		return err
	}
	iface.IPv4Mode = IPv4Static
	iface.IPv4Address = a
	iface.IPv4PrefixLen = iface.IPv4Subnet.Bits()

	if !routable {
		return nil
	}
	if cfg.IPv4Gateway != "" {
		gw, err := validation.ValidateAddressIn(field+".ipv4_gateway", cfg.IPv4Gateway, netutil.IPv4, iface.IPv4Subnet)
		if err != nil {
			return err
		}
		iface.IPv4Gateway = gw
		return nil
	}
	if gw, err := netutil.FirstHost(iface.IPv4Subnet); err == nil {
		iface.IPv4Gateway = gw
	}
	return nil
}

func (r *Resolver) validateIPv6(field string, cfg config.Interface, iface *Interface) error {
	disabled := cfg.IPv6Disabled || r.ipv6Disabled
	if iface.VLAN != nil {
		disabled = disabled || iface.VLAN.IPv6Disabled
	}
	if disabled {
		iface.IPv6Disabled = true
		iface.IPv6Address = netip.Addr{}
		iface.IPv6Tempaddr = false
		iface.AcceptRA = false
		iface.IPv6DHCP = false
		return nil
	}

	iface.IPv6DHCP = cfg.IPv6DHCP
	iface.IPv6Tempaddr = cfg.IPv6Tempaddr == nil || *cfg.IPv6Tempaddr
	iface.AcceptRA = cfg.AcceptRA == nil || *cfg.AcceptRA

	if iface.VLAN != nil {
		iface.IPv6Subnet = iface.VLAN.IPv6Subnet
	} else if cfg.IPv6Subnet != "" {
		subnet, err := netutil.ParseSubnet(cfg.IPv6Subnet, netutil.IPv6)
		if err != nil {
			return errors.Schema(field+".ipv6_subnet", cfg.IPv6Subnet, "%v", err)
		}
		iface.IPv6Subnet = subnet
	}

	if cfg.IPv6Address != "" {
		if !iface.IPv6Subnet.IsValid() {
			return errors.Semantic(errors.KindSemantic, field+".ipv6_address",
				"ipv6_address '%s' requires an ipv6 subnet", cfg.IPv6Address)
		}
		a, err := validation.ValidateAddressIn(field+".ipv6_address", cfg.IPv6Address, netutil.IPv6, iface.IPv6Subnet)
		if err != nil {
			return err
		}
		iface.IPv6Address = a
		iface.IPv6PrefixLen = iface.IPv6Subnet.Bits()
	}

	for i, s := range cfg.IPv6Addresses {
		a, err := netutil.ParseAddr(s, netutil.IPv6)
		if err != nil {
			return errors.Schema(fmt.Sprintf("%s.ipv6_addresses[%d]", field, i), s, "%v", err)
		}
		iface.IPv6Addresses = append(iface.IPv6Addresses, a)
	}

	if cfg.IPv6AskForPrefix {
		prefixLen := DefaultPDPrefixLen
		if cfg.IPv6PDPrefixLen != nil {
			prefixLen = *cfg.IPv6PDPrefixLen
		}
		if prefixLen < 48 || prefixLen >= 64 {
			return errors.Schema(field+".ipv6_pd_prefixlen", prefixLen, "ipv6_pd_prefixlen must be at least 48 and less than 64")
		}
		iface.IPv6AskForPrefix = true
		iface.IPv6PDPrefixLen = prefixLen
	}
	return nil
}

// ResolveHost resolves every interface of a host and its optional uplink.
// Interface names must be unique on the host.
func (r *Resolver) ResolveHost(host *config.Host) ([]*Interface, *Interface, error) {
	var (
		ifaces []*Interface
		uplink *Interface
		seen   = make(map[string]bool)
	)

	for i, cfg := range host.Interfaces {
		iface, err := r.Resolve(fmt.Sprintf("interfaces[%d]", i), i, cfg)
		if err != nil {
			return nil, nil, err
		}
		if seen[iface.Name] {
			return nil, nil, errors.Semantic(errors.KindConflict, fmt.Sprintf("interfaces[%d].name", i),
				"duplicate interface name '%s'", iface.Name)
		}
		seen[iface.Name] = true
		ifaces = append(ifaces, iface)
	}

	if host.Uplink != nil {
		cfg := *host.Uplink
		cfg.Type = string(TypeUplink)
		iface, err := r.Resolve("uplink", 0, cfg)
		if err != nil {
			return nil, nil, errors.Context(err, "uplink")
		}
		uplink = iface
	}

	r.log.Debug("resolved interfaces", "hostname", host.Hostname, "count", len(ifaces), "uplink", uplink != nil)
	return ifaces, uplink, nil
}

// PrimaryDomain validates the host's primary domain against its interfaces. An
// empty domain is inherited from the only interface's VLAN.
func PrimaryDomain(domain string, ifaces []*Interface) (string, error) {
	domain = strings.ToLower(domain)
	if domain == "" {
		if len(ifaces) == 1 && ifaces[0].VLAN != nil {
			return ifaces[0].VLAN.Domain, nil
		}
		return "", nil
	}

	for _, iface := range ifaces {
		if iface.VLAN != nil && iface.VLAN.Domain == domain {
			return domain, nil
		}
	}
	return "", errors.Semantic(errors.KindSemantic, "primary_domain",
		"primary_domain '%s' does not match the domain of any interface's vlan", domain)
}

func zoneOr(zone, def string) string {
	if zone != "" {
		return zone
	}
	return strings.ToUpper(def)
}
