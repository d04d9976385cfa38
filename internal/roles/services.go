// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package roles

import (
	"fmt"
	"strings"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/reachability"
	"grimm.is/yodeler/internal/topology"
)

// dns serves internal names and recurses for the site.
type dns struct{ base }

func (dns) Name() string { return DNS }

func (dns) AdditionalRules(h *host.Host, _ Site) ([]*firewall.Rule, error) {
	return serviceRule(h, fmt.Sprintf("DNS for %s", h.Hostname), firewall.AllowService("dns"))
}

func (dns) Validate(h *host.Host, site Site) error {
	if len(h.ExternalDNS) == 0 {
		return errors.Semantic(errors.KindSemantic, "external_dns",
			"cannot configure DNS server '%s' with no external_dns addresses", h.Hostname)
	}
	if site.Catalog().Domain == "" && h.PrimaryDomain == "" {
		return errors.Semantic(errors.KindSemantic, "primary_domain",
			"cannot configure DNS server '%s' with no primary_domain or site domain", h.Hostname)
	}
	if err := rejectDHCP(h, "a DNS server"); err != nil {
		return err
	}
	return requireReachable(h, site, nil)
}

func (dns) MinInstances(site Site) int {
	if len(site.RoleHosts(FakeISP)) > 0 {
		return 0
	}
	return 1
}

func (dns) MaxInstances(Site) int { return 2 }

// dhcp hands out addresses on every VLAN with DHCP.
type dhcp struct{ base }

func (dhcp) Name() string { return DHCP }

func (dhcp) AdditionalRules(h *host.Host, _ Site) ([]*firewall.Rule, error) {
	v4, err := serviceRule(h,
		fmt.Sprintf("DHCP for %s; DHCP broadcast handled by dhcp option in interface config", h.Hostname),
		firewall.AllowService("dhcp"))
	if err != nil {
		return nil, err
	}
	relay := firewall.AllowProtoPort("udp", 546, 547)
	relay.Comment = "allow DHCP relay"
	v6, err := serviceRule(h, fmt.Sprintf("DHCP relay for %s", h.Hostname), []firewall.Action{relay})
	if err != nil {
		return nil, err
	}
	return append(v4, v6...), nil
}

func (dhcp) Validate(h *host.Host, site Site) error {
	if err := rejectDHCP(h, "a DHCP server"); err != nil {
		return err
	}
	return requireReachable(h, site, func(v *topology.VLAN) bool {
		return !v.DHCP4Enabled && !v.HasIPv6()
	})
}

func (dhcp) MinInstances(site Site) int {
	if len(site.RoleHosts(FakeISP)) > 0 {
		return 0
	}
	return 1
}

// ntp serves time to the site.
type ntp struct{ base }

func (ntp) Name() string                { return NTP }
func (ntp) AdditionalAliases() []string { return []string{"time", "sntp"} }

func (ntp) AdditionalRules(h *host.Host, _ Site) ([]*firewall.Rule, error) {
	return serviceRule(h, fmt.Sprintf("NTP for %s", h.Hostname), firewall.AllowService("ntp"))
}

// Validate only warns about unreachable VLANs; hosts there fall back to
// public time servers.
func (ntp) Validate(h *host.Host, site Site) error {
	if err := rejectDHCP(h, "an NTP server"); err != nil {
		return err
	}
	missing := reachability.UnreachableVLANs(h.Interfaces, site.Catalog().VSwitches, nil)
	if len(missing) > 0 {
		logging.WithComponent("roles").Warn("vlans cannot reach NTP host",
			"hostname", h.Hostname, "vlans", missing)
	}
	return nil
}

func (ntp) MinInstances(Site) int { return 0 }
func (ntp) MaxInstances(Site) int { return 2 }

// serviceRule allows actions from everywhere to each VLAN the host is on. A
// host with no addressed interfaces gets no rule.
func serviceRule(h *host.Host, comment string, actions []firewall.Action) ([]*firewall.Rule, error) {
	destinations := firewall.DestinationsFromInterfaces(h.Hostname, h.Interfaces)
	if len(destinations) == 0 {
		return nil, nil
	}
	r, err := firewall.NewRule(h.Hostname, comment,
		[]firewall.Endpoint{firewall.LocationAll()}, destinations, actions)
	if err != nil {
		return nil, err
	}
	return []*firewall.Rule{r}, nil
}

// rejectDHCP fails when a std interface takes its address from DHCP.
func rejectDHCP(h *host.Host, what string) error {
	for _, iface := range h.Interfaces {
		if iface.Type == network.TypeStd && iface.DHCP() {
			return errors.Semantic(errors.KindSemantic, "interfaces",
				"host '%s' cannot configure %s with a DHCP address on interface '%s'", h.Hostname, what, iface.Name)
		}
	}
	return nil
}

func requireReachable(h *host.Host, site Site, ignore func(*topology.VLAN) bool) error {
	missing := reachability.UnreachableVLANs(h.Interfaces, site.Catalog().VSwitches, ignore)
	if len(missing) > 0 {
		return errors.Semantic(errors.KindSemantic, "interfaces",
			"host '%s' does not have access to vlans [%s]", h.Hostname, strings.Join(missing, ", "))
	}
	return nil
}
