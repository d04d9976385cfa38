// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package topology

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/validation"
)

// VLAN field defaults. DHCP bounds are offsets from the network address.
const (
	DefaultDHCPMinIPv4 = 16
	DefaultDHCPMaxIPv4 = 252
	DefaultDHCPMinIPv6 = 16
	DefaultDHCPMaxIPv6 = 0xffff

	// AccessAllName is the access_vlans entry granting access to every VLAN.
	AccessAllName = "all"
)

var reservedVLANNames = map[string]bool{"all": true, "internet": true, "firewall": true}

// Options tunes catalog validation.
type Options struct {
	// ReservedNames may not be used as reservation hostnames or aliases.
	ReservedNames []string
	// IPv6Disabled drops IPv6 subnets from every VLAN.
	IPv6Disabled bool
}

// Catalog indexes every switch and VLAN in a site.
type Catalog struct {
	Domain    string
	VSwitches []*VSwitch

	byName   map[string]*VSwitch
	vlans    map[string]*VLAN
	uplinks  map[string]string
	internal *netipx.IPSet
	reserved map[string]struct{}
	log      *logging.Logger
}

// NewCatalog validates every switch in the site and indexes the result.
func NewCatalog(site *config.Site, opts Options) (*Catalog, error) {
	if err := validation.ValidateDomain(site.Domain); err != nil {
		return nil, errors.Attr(err, errors.AttrField, "domain")
	}
	if len(site.VSwitches) == 0 {
		return nil, errors.Schema("vswitches", nil, "no vswitches defined")
	}

	c := &Catalog{
		Domain:   strings.ToLower(site.Domain),
		byName:   make(map[string]*VSwitch),
		vlans:    make(map[string]*VLAN),
		uplinks:  make(map[string]string),
		reserved: make(map[string]struct{}),
		log:      logging.WithComponent("topology"),
	}
	for _, n := range opts.ReservedNames {
		c.reserved[n] = struct{}{}
	}

	for i, swCfg := range site.VSwitches {
		field := fmt.Sprintf("vswitches[%d]", i)

		if swCfg.Name == "" {
			return nil, errors.Schema(field+".name", "", "no name defined for vswitch %d", i+1)
		}
		if err := validation.ValidateIdentifier(swCfg.Name); err != nil {
			return nil, errors.Attr(err, errors.AttrField, field+".name")
		}
		if _, dup := c.byName[swCfg.Name]; dup {
			return nil, errors.Semantic(errors.KindConflict, field+".name", "duplicate vswitch name '%s'", swCfg.Name)
		}

		for _, uplink := range swCfg.Uplink {
			if owner, dup := c.uplinks[uplink]; dup {
				return nil, errors.Semantic(errors.KindConflict, field+".uplink",
					"uplink '%s' for vswitch '%s' is already used by vswitch '%s'", uplink, swCfg.Name, owner)
			}
			c.uplinks[uplink] = swCfg.Name
		}

		sw, err := c.validateVSwitch(field, swCfg, opts.IPv6Disabled)
		if err != nil {
			return nil, errors.Context(err, "vswitch '%s'", swCfg.Name)
		}
		c.VSwitches = append(c.VSwitches, sw)
		c.byName[sw.Name] = sw
	}

	var subnets netutil.SubnetSet
	for _, v := range c.AllVLANs() {
		subnets.Add(v.IPv4Subnet)
		subnets.Add(v.IPv6Subnet)
	}
	set, err := subnets.Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindInternal, "failed to index vlan subnets")
	}
	c.internal = set

	c.log.Debug("catalog built", "vswitches", len(c.VSwitches), "vlans", len(c.vlans))
	return c, nil
}

// VSwitch returns the named switch.
func (c *Catalog) VSwitch(name string) (*VSwitch, bool) {
	sw, ok := c.byName[name]
	return sw, ok
}

// VLAN returns the named VLAN from any switch. VLAN names are unique site-wide.
func (c *Catalog) VLAN(name string) (*VLAN, bool) {
	v, ok := c.vlans[strings.ToLower(name)]
	return v, ok
}

// AllVLANs returns every VLAN in switch then declaration order.
func (c *Catalog) AllVLANs() []*VLAN {
	var out []*VLAN
	for _, sw := range c.VSwitches {
		out = append(out, sw.VLANs...)
	}
	return out
}

// OverlappingVLAN returns the first VLAN whose subnet overlaps p, if any.
func (c *Catalog) OverlappingVLAN(p netip.Prefix) (*VLAN, bool) {
	if c.internal == nil || !c.internal.OverlapsPrefix(p) {
		return nil, false
	}
	for _, v := range c.AllVLANs() {
		if v.IPv4Subnet.Overlaps(p) || (v.HasIPv6() && v.IPv6Subnet.Overlaps(p)) {
			return v, true
		}
	}
	return nil, false
}

// Reserved reports whether name is reserved for role aliases.
func (c *Catalog) Reserved(name string) bool {
	_, ok := c.reserved[name]
	return ok
}

func (c *Catalog) validateVSwitch(field string, cfg config.VSwitch, ipv6Disabled bool) (*VSwitch, error) {
	if len(cfg.VLANs) == 0 {
		return nil, errors.Schema(field+".vlans", nil, "no vlans defined")
	}

	sw := &VSwitch{
		Name:        cfg.Name,
		Uplinks:     append([]string(nil), cfg.Uplink...),
		VLANsByID:   make(map[int]*VLAN),
		VLANsByName: make(map[string]*VLAN),
	}

	pdNetworks := make(map[int]string)

	for i, vcfg := range cfg.VLANs {
		vfield := fmt.Sprintf("%s.vlans[%d]", field, i)

		name := strings.ToLower(vcfg.Name)
		if name == "" {
			return nil, errors.Schema(vfield+".name", "", "no name defined for vlan %d", i+1)
		}
		if err := validation.ValidateIdentifier(name); err != nil {
			return nil, errors.Attr(err, errors.AttrField, vfield+".name")
		}
		if reservedVLANNames[name] {
			return nil, errors.Schema(vfield+".name", name, "vlan name '%s' is reserved for firewall zones", name)
		}
		if _, dup := c.vlans[name]; dup {
			return nil, errors.Semantic(errors.KindConflict, vfield+".name", "duplicate vlan name '%s'", name)
		}

		id := Untagged
		if vcfg.ID != nil {
			id = *vcfg.ID
			if id < 1 || id > 4094 {
				return nil, errors.Schema(vfield+".id", id, "invalid id '%d' for vlan '%s'; it must be 1-4094", id, name)
			}
		}
		if _, dup := sw.VLANsByID[id]; dup {
			if id == Untagged {
				return nil, errors.Semantic(errors.KindConflict, vfield+".id", "duplicate untagged vlan '%s'", name)
			}
			return nil, errors.Semantic(errors.KindConflict, vfield+".id", "duplicate id '%d' for vlan '%s'", id, name)
		}

		vlan, err := c.validateVLAN(vfield, name, id, vcfg, ipv6Disabled, len(cfg.VLANs))
		if err != nil {
			return nil, errors.Context(err, "vlan '%s'", name)
		}
		vlan.VSwitch = sw

		if !vlan.IPv6Disabled {
			pd := i + 1
			if vcfg.IPv6PDNetwork != nil {
				pd = *vcfg.IPv6PDNetwork
				if pd < 1 {
					return nil, errors.Schema(vfield+".ipv6_pd_network", pd, "ipv6_pd_network '%d' for vlan '%s' must be greater than 0", pd, name)
				}
			}
			if other, dup := pdNetworks[pd]; dup {
				return nil, errors.Semantic(errors.KindConflict, vfield+".ipv6_pd_network",
					"ipv6_pd_network '%d' for vlan '%s' is already used by vlan '%s'", pd, name, other)
			}
			pdNetworks[pd] = name
			vlan.IPv6PDNetwork = pd
		}

		sw.VLANs = append(sw.VLANs, vlan)
		sw.VLANsByID[id] = vlan
		sw.VLANsByName[name] = vlan
		c.vlans[name] = vlan
	}

	if err := configureDefaultVLAN(field, sw); err != nil {
		return nil, err
	}
	if err := resolveAccessVLANs(field, sw, cfg.VLANs); err != nil {
		return nil, err
	}

	return sw, nil
}

func configureDefaultVLAN(field string, sw *VSwitch) error {
	for _, v := range sw.VLANs {
		if !v.Default {
			continue
		}
		if sw.DefaultVLAN != nil {
			return errors.Semantic(errors.KindConflict, field+".vlans",
				"multiple default vlans: '%s' and '%s'", sw.DefaultVLAN.Name, v.Name)
		}
		sw.DefaultVLAN = v
	}

	if sw.DefaultVLAN == nil && len(sw.VLANs) == 1 {
		sw.DefaultVLAN = sw.VLANs[0]
		sw.DefaultVLAN.Default = true
	}
	return nil
}

func resolveAccessVLANs(field string, sw *VSwitch, cfgs []config.VLAN) error {
	for i, v := range sw.VLANs {
		refs := cfgs[i].AccessVLANs
		for _, ref := range refs {
			if name, ok := ref.Name(); ok && strings.ToLower(name) == AccessAllName {
				v.AccessAll = true
				v.AccessVLANs = []string{AccessAllName}
				break
			}
			target, err := sw.Lookup(ref)
			if err != nil {
				return errors.Context(errors.Attr(err, errors.AttrField, fmt.Sprintf("%s.vlans[%d].access_vlans", field, i)),
					"invalid access_vlan in vlan '%s'", v.Name)
			}
			v.AccessVLANs = append(v.AccessVLANs, target.Name)
		}
	}
	return nil
}
