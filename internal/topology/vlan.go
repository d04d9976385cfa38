// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/validation"
)

// MaxIPv6PrefixLen is the longest IPv6 prefix a VLAN may use; SLAAC needs a /64.
const MaxIPv6PrefixLen = 64

func (c *Catalog) validateVLAN(field, name string, id int, cfg config.VLAN, ipv6Disabled bool, siblings int) (*VLAN, error) {
	v := &VLAN{
		Name:           name,
		ID:             id,
		Default:        cfg.Default,
		Routable:       boolOr(cfg.Routable, true),
		DHCP4Enabled:   boolOr(cfg.DHCP4Enabled, true),
		DHCP6Managed:   cfg.DHCP6Managed,
		AllowInternet:  cfg.AllowInternet,
		AllowDNSUpdate: cfg.AllowDNSUpdate,
		IPv6Disabled:   cfg.IPv6Disabled || ipv6Disabled,
		knownAliases:   make(map[string]struct{}),
	}

	if err := c.validateDomain(field, v, cfg.Domain, siblings); err != nil {
		return nil, err
	}

	if cfg.IPv4Subnet == "" {
		return nil, errors.Schema(field+".ipv4_subnet", nil, "ipv4_subnet must be specified")
	}
	subnet, err := netutil.ParseSubnet(cfg.IPv4Subnet, netutil.IPv4)
	if err != nil {
		return nil, errors.Schema(field+".ipv4_subnet", cfg.IPv4Subnet, "%v", err)
	}
	v.IPv4Subnet = subnet

	if cfg.IPv6Subnet != "" && !v.IPv6Disabled {
		subnet, err := netutil.ParseSubnet(cfg.IPv6Subnet, netutil.IPv6)
		if err != nil {
			return nil, errors.Schema(field+".ipv6_subnet", cfg.IPv6Subnet, "%v", err)
		}
		if subnet.Bits() > MaxIPv6PrefixLen {
			return nil, errors.Schema(field+".ipv6_subnet", cfg.IPv6Subnet,
				"ipv6_subnet prefix length must be %d or less", MaxIPv6PrefixLen)
		}
		v.IPv6Subnet = subnet
	}

	v.DHCPRangeIPv4, err = dhcpRange(field, "ipv4", v.IPv4Subnet,
		intOr(cfg.DHCPMinAddressIPv4, DefaultDHCPMinIPv4), intOr(cfg.DHCPMaxAddressIPv4, DefaultDHCPMaxIPv4))
	if err != nil {
		return nil, err
	}
	if v.HasIPv6() {
		v.DHCPRangeIPv6, err = dhcpRange(field, "ipv6", v.IPv6Subnet,
			intOr(cfg.DHCPMinAddressIPv6, DefaultDHCPMinIPv6), intOr(cfg.DHCPMaxAddressIPv6, DefaultDHCPMaxIPv6))
		if err != nil {
			return nil, err
		}
	}

	for i, rcfg := range cfg.DHCPReservations {
		res, err := c.validateReservation(fmt.Sprintf("%s.dhcp_reservations[%d]", field, i), v, rcfg)
		if err != nil {
			return nil, err
		}
		v.Reservations = append(v.Reservations, res)
	}
	for i, scfg := range cfg.StaticHosts {
		sh, err := c.validateStaticHost(fmt.Sprintf("%s.static_hosts[%d]", field, i), v, scfg)
		if err != nil {
			return nil, err
		}
		v.StaticHosts = append(v.StaticHosts, sh)
	}

	return v, nil
}

func (c *Catalog) validateDomain(field string, v *VLAN, domain string, siblings int) error {
	domain = strings.ToLower(domain)
	if domain == "" {
		// a switch with a single vlan serves the site domain
		if siblings == 1 {
			v.Domain = c.Domain
		}
		return nil
	}
	if err := validation.ValidateDomain(domain); err != nil {
		return errors.Attr(err, errors.AttrField, field+".domain")
	}
	if c.Domain != "" && !validation.IsSubDomain(c.Domain, domain) {
		return errors.Semantic(errors.KindSemantic, field+".domain",
			"domain '%s' is not a subdomain of the site domain '%s'", domain, c.Domain)
	}
	v.Domain = domain
	return nil
}

func dhcpRange(field, family string, subnet netip.Prefix, min, max int) (r netipx.IPRange, err error) {
	minField := fmt.Sprintf("%s.dhcp_min_address_%s", field, family)
	maxField := fmt.Sprintf("%s.dhcp_max_address_%s", field, family)

	if min < 0 {
		return r, errors.Schema(minField, min, "dhcp_min_address_%s cannot be negative", family)
	}
	if max < 0 {
		return r, errors.Schema(maxField, max, "dhcp_max_address_%s cannot be negative", family)
	}
	lo, err := netutil.Offset(subnet, uint64(min))
	if err != nil {
		return r, errors.Semantic(errors.KindSemantic, minField,
			"dhcp_min_address_%s %d is not in subnet %s", family, min, subnet)
	}
	hi, err := netutil.Offset(subnet, uint64(max))
	if err != nil {
		return r, errors.Semantic(errors.KindSemantic, maxField,
			"dhcp_max_address_%s %d is not in subnet %s", family, max, subnet)
	}
	r, ok := netutil.Range(lo, hi)
	if !ok {
		return r, errors.Semantic(errors.KindSemantic, minField,
			"dhcp_min_address_%s %d is greater than dhcp_max_address_%s %d", family, min, family, max)
	}
	return r, nil
}

func (c *Catalog) validateReservation(field string, v *VLAN, cfg config.Reservation) (*Reservation, error) {
	hostname := strings.ToLower(cfg.Hostname)
	if hostname == "" {
		return nil, errors.Schema(field+".hostname", nil, "hostname must be specified")
	}
	if err := c.claimName(field+".hostname", v, hostname); err != nil {
		return nil, err
	}

	if cfg.MACAddress == "" {
		return nil, errors.Schema(field+".mac_address", nil, "mac_address must be specified for reservation '%s'", hostname)
	}
	mac, err := validation.ValidateMAC(cfg.MACAddress)
	if err != nil {
		return nil, errors.Context(errors.Attr(err, errors.AttrField, field+".mac_address"), "reservation '%s'", hostname)
	}

	res := &Reservation{Hostname: hostname, MACAddress: mac}

	if cfg.IPv4Address != "" {
		if res.IPv4Address, err = validation.ValidateAddressIn(field+".ipv4_address", cfg.IPv4Address, netutil.IPv4, v.IPv4Subnet); err != nil {
			return nil, errors.Context(err, "reservation '%s'", hostname)
		}
	}
	if cfg.IPv6Address != "" {
		if v.HasIPv6() {
			if res.IPv6Address, err = validation.ValidateAddressIn(field+".ipv6_address", cfg.IPv6Address, netutil.IPv6, v.IPv6Subnet); err != nil {
				return nil, errors.Context(err, "reservation '%s'", hostname)
			}
		} else {
			c.log.Warn("ignoring ipv6_address for reservation on vlan without ipv6",
				"vlan", v.Name, "hostname", hostname, "address", cfg.IPv6Address)
		}
	}

	if res.Aliases, err = c.claimAliases(field+".aliases", v, hostname, cfg.Aliases); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Catalog) validateStaticHost(field string, v *VLAN, cfg config.StaticHost) (*StaticHost, error) {
	hostname := strings.ToLower(cfg.Hostname)
	if hostname == "" {
		return nil, errors.Schema(field+".hostname", nil, "hostname must be specified")
	}
	if err := c.claimName(field+".hostname", v, hostname); err != nil {
		return nil, err
	}
	if cfg.IPv4Address == "" {
		return nil, errors.Schema(field+".ipv4_address", nil, "ipv4_address must be specified for static host '%s'", hostname)
	}

	var err error
	sh := &StaticHost{Hostname: hostname}
	if sh.IPv4Address, err = validation.ValidateAddressIn(field+".ipv4_address", cfg.IPv4Address, netutil.IPv4, v.IPv4Subnet); err != nil {
		return nil, errors.Context(err, "static host '%s'", hostname)
	}
	if cfg.IPv6Address != "" {
		if v.HasIPv6() {
			if sh.IPv6Address, err = validation.ValidateAddressIn(field+".ipv6_address", cfg.IPv6Address, netutil.IPv6, v.IPv6Subnet); err != nil {
				return nil, errors.Context(err, "static host '%s'", hostname)
			}
		} else {
			c.log.Warn("ignoring ipv6_address for static host on vlan without ipv6",
				"vlan", v.Name, "hostname", hostname, "address", cfg.IPv6Address)
		}
	}

	if sh.Aliases, err = c.claimAliases(field+".aliases", v, hostname, cfg.Aliases); err != nil {
		return nil, err
	}
	return sh, nil
}

// claimName records name as a known alias of v. Names must be valid hostnames,
// unique across every vlan in the site, and not reserved for roles.
func (c *Catalog) claimName(field string, v *VLAN, name string) error {
	if err := validation.ValidateHostname(name); err != nil {
		return errors.Attr(err, errors.AttrField, field)
	}
	if c.Reserved(name) {
		return errors.Semantic(errors.KindConflict, field, "'%s' is a role name and cannot be used as a hostname or alias", name)
	}
	if v.IsKnownAlias(name) {
		return errors.Semantic(errors.KindConflict, field, "duplicate hostname or alias '%s' in vlan '%s'", name, v.Name)
	}
	for _, other := range c.vlans {
		if other.IsKnownAlias(name) {
			return errors.Semantic(errors.KindConflict, field,
				"hostname or alias '%s' in vlan '%s' is already used in vlan '%s'", name, v.Name, other.Name)
		}
	}
	v.knownAliases[name] = struct{}{}
	return nil
}

func (c *Catalog) claimAliases(field string, v *VLAN, hostname string, aliases []string) ([]string, error) {
	var out []string
	for i, alias := range aliases {
		alias = strings.ToLower(alias)
		if alias == hostname {
			continue
		}
		if err := c.claimName(fmt.Sprintf("%s[%d]", field, i), v, alias); err != nil {
			return nil, err
		}
		out = append(out, alias)
	}
	return out, nil
}

// Lookup resolves ref on the switch. The zero ref resolves to the untagged
// VLAN, falling back to the default VLAN.
func (sw *VSwitch) Lookup(ref config.VLANRef) (*VLAN, error) {
	if name, ok := ref.Name(); ok {
		return sw.LookupName(name)
	}
	if id, ok := ref.ID(); ok {
		if id == Untagged {
			return nil, errors.Semantic(errors.KindNotFound, "vlan", "invalid vlan id 0 for vswitch '%s'", sw.Name)
		}
		return sw.LookupID(id)
	}
	return sw.LookupID(Untagged)
}

// LookupName resolves a VLAN by name.
func (sw *VSwitch) LookupName(name string) (*VLAN, error) {
	if v, ok := sw.VLANsByName[strings.ToLower(name)]; ok {
		return v, nil
	}
	return nil, errors.Semantic(errors.KindNotFound, "vlan", "invalid vlan '%s' for vswitch '%s'", name, sw.Name)
}

// LookupID resolves a VLAN by id. Untagged resolves to the untagged VLAN or the
// default VLAN.
func (sw *VSwitch) LookupID(id int) (*VLAN, error) {
	if v, ok := sw.VLANsByID[id]; ok {
		return v, nil
	}
	if id == Untagged {
		if sw.DefaultVLAN != nil {
			return sw.DefaultVLAN, nil
		}
		return nil, errors.Semantic(errors.KindNotFound, "vlan",
			"vswitch '%s' has no untagged or default vlan; vlan must be specified", sw.Name)
	}
	return nil, errors.Semantic(errors.KindNotFound, "vlan", "invalid vlan id '%d' for vswitch '%s'", id, sw.Name)
}

func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

func intOr(i *int, def int) int {
	if i == nil {
		return def
	}
	return *i
}
