// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package roles

import (
	"fmt"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/network"
)

// storage shares disks over samba.
type storage struct{ base }

func (storage) Name() string                { return Storage }
func (storage) AdditionalAliases() []string { return []string{"nas", "samba", "smb"} }
func (storage) MinInstances(Site) int       { return 0 }

func (storage) AdditionalRules(h *host.Host, _ Site) ([]*firewall.Rule, error) {
	return serviceRule(h, fmt.Sprintf("samba shares on %s", h.Hostname), firewall.AllowService("samba"))
}

// vmhost runs the site's virtual machines and owns the switches.
type vmhost struct{ base }

func (vmhost) Name() string                { return VMHost }
func (vmhost) AdditionalAliases() []string { return []string{"kvm"} }

// ConfigureInterfaces adds a port for each switch ahead of the host's own interfaces.
func (vmhost) ConfigureInterfaces(h *host.Host, site Site) error {
	var ports []*network.Interface
	for _, sw := range site.Catalog().VSwitches {
		ports = append(ports, network.ForPort(sw.Name, "vswitch", sw))
		for _, uplink := range sw.Uplinks {
			ports = append(ports, network.ForPort(uplink, fmt.Sprintf("uplink for vswitch '%s'", sw.Name), sw))
		}
	}
	for _, p := range ports {
		for _, iface := range h.Interfaces {
			if iface.Name == p.Name {
				return errors.Semantic(errors.KindConflict, "interfaces",
					"interface '%s' on vmhost '%s' conflicts with a vswitch port", p.Name, h.Hostname)
			}
		}
	}
	h.Interfaces = append(ports, h.Interfaces...)
	return nil
}

func (vmhost) MinInstances(site Site) int {
	for _, h := range site.Hosts() {
		if h.VM {
			return 1
		}
	}
	return 0
}

// build compiles packages for the site.
type build struct{ base }

func (build) Name() string          { return Build }
func (build) MinInstances(Site) int { return 0 }
func (build) MaxInstances(Site) int { return Unlimited }

// xwindows runs a desktop on physical hardware.
type xwindows struct{ base }

func (xwindows) Name() string          { return XWindows }
func (xwindows) MinInstances(Site) int { return 0 }
func (xwindows) MaxInstances(Site) int { return Unlimited }

func (xwindows) Validate(h *host.Host, _ Site) error {
	if h.VM {
		return errors.Semantic(errors.KindSemantic, "is_vm", "xwindows cannot be installed on VM '%s'", h.Hostname)
	}
	return nil
}

// fakeisp simulates an upstream provider for test sites.
type fakeisp struct{ base }

func (fakeisp) Name() string          { return FakeISP }
func (fakeisp) MinInstances(Site) int { return 0 }
