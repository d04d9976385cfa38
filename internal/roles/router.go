// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package roles

import (
	"fmt"
	"strconv"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/topology"
)

// router routes every routable VLAN to the internet through the host uplink.
type router struct{ base }

func (router) Name() string                { return Router }
func (router) AdditionalAliases() []string { return []string{"gateway"} }

// ConfigureInterfaces adds a vlan interface for every routable VLAN, parented
// on a port per switch. The resulting order is switch interfaces, then the
// uplink, then the host's own interfaces, so VLANs are up before prefix
// delegation runs on the uplink.
func (router) ConfigureInterfaces(h *host.Host, site Site) error {
	uplink := h.Uplink
	if uplink == nil {
		return errors.Semantic(errors.KindSemantic, "uplink", "router '%s' must define an uplink", h.Hostname)
	}

	var out []*network.Interface

	for _, sw := range site.Catalog().VSwitches {
		parent := routerPort(h, sw)
		if parent != "" && parent == uplink.Name {
			return errors.Semantic(errors.KindConflict, "uplink",
				"router uplink cannot use the same interface as vswitch '%s': %s", sw.Name, parent)
		}

		var (
			vlanIfaces []*network.Interface
			untagged   bool
		)
		for _, vlan := range sw.VLANs {
			if !vlan.Routable {
				continue
			}
			if parent == "" {
				return errors.Semantic(errors.KindSemantic, "vswitches",
					"vswitch '%s' has routable vlans but does not define an uplink", sw.Name)
			}

			iface := network.ForVLAN(parent, vlan)
			vlanIfaces = append(vlanIfaces, iface)
			if vlan.Untagged() {
				untagged = true
			}

			if vlan.IPv6PDNetwork == 0 {
				continue
			}
			if err := checkPDNetwork(uplink, vlan); err != nil {
				return err
			}
			uplink.IPv6DelegatedPrefixes = append(uplink.IPv6DelegatedPrefixes,
				iface.Name+"/"+strconv.Itoa(vlan.IPv6PDNetwork))
		}

		if len(vlanIfaces) == 0 {
			continue
		}

		comment := fmt.Sprintf("vlans on '%s' vswitch", sw.Name)
		if untagged {
			vlanIfaces[0].Comment = comment
		} else {
			out = append(out, network.ForPort(parent, comment, sw))
		}
		out = append(out, vlanIfaces...)
	}

	out = append(out, uplink)
	h.Interfaces = append(out, h.Interfaces...)
	return nil
}

// routerPort names the router's interface on sw. VMs get one named after the
// switch; physical routers use the switch's first uplink.
func routerPort(h *host.Host, sw *topology.VSwitch) string {
	if h.VM {
		return sw.Name
	}
	if len(sw.Uplinks) > 0 {
		return sw.Uplinks[0]
	}
	return ""
}

func checkPDNetwork(uplink *network.Interface, vlan *topology.VLAN) error {
	if !uplink.IPv6AskForPrefix {
		return nil
	}
	networks := 1 << (topology.MaxIPv6PrefixLen - uplink.IPv6PDPrefixLen)
	if vlan.IPv6PDNetwork >= networks {
		return errors.Semantic(errors.KindSemantic, "ipv6_pd_network",
			"pd network %d of vlan '%s' is larger than the %d networks available with an ipv6_pd_prefixlen of %d",
			vlan.IPv6PDNetwork, vlan.Name, networks, uplink.IPv6PDPrefixLen)
	}
	return nil
}

func (router) AdditionalRules(h *host.Host, _ Site) ([]*firewall.Rule, error) {
	fw := []firewall.Endpoint{firewall.LocationFirewall()}
	all := []firewall.Endpoint{firewall.LocationAll()}
	internet := []firewall.Endpoint{firewall.LocationInternet()}

	specs := []struct {
		comment      string
		sources      []firewall.Endpoint
		destinations []firewall.Endpoint
		service      string
	}{
		{fmt.Sprintf("firewall (%s) can ping everything", h.Hostname), fw,
			[]firewall.Endpoint{firewall.LocationAll(), firewall.LocationInternet()}, "ping"},
		{fmt.Sprintf("allow pings to the firewall (%s)", h.Hostname), all, fw, "ping"},
		{fmt.Sprintf("allow traceroute from the firewall (%s)", h.Hostname), fw, internet, "traceroute"},
		{fmt.Sprintf("firewall (%s) can send DNS out so it does not depend on local DNS", h.Hostname), fw, internet, "dns"},
	}

	rules := make([]*firewall.Rule, 0, len(specs))
	for _, s := range specs {
		r, err := firewall.NewRule(h.Hostname, s.comment, s.sources, s.destinations, firewall.AllowService(s.service))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (router) Validate(h *host.Host, site Site) error {
	if !hasRoutableVLAN(site) {
		return errors.Semantic(errors.KindSemantic, "roles",
			"router '%s' not needed if there are no routable vlans", h.Hostname)
	}
	return nil
}

func (router) MinInstances(site Site) int {
	if hasRoutableVLAN(site) {
		return 1
	}
	return 0
}

func hasRoutableVLAN(site Site) bool {
	for _, vlan := range site.Catalog().AllVLANs() {
		if vlan.Routable {
			return true
		}
	}
	return false
}
