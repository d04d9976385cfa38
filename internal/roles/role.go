// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package roles is the closed set of host roles. A role adds aliases,
// interfaces and firewall rules to the hosts carrying it and checks the site
// once every host is loaded.
package roles

import (
	"math"
	"sort"

	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/topology"
)

// Unlimited is the MaxInstances of roles any number of hosts may carry.
const Unlimited = math.MaxInt

// Site is the view of the site roles work against.
type Site interface {
	Catalog() *topology.Catalog
	// Hosts returns the hosts loaded so far, in load order.
	Hosts() []*host.Host
	// RoleHosts returns the loaded hosts carrying role, in load order.
	RoleHosts(role string) []*host.Host
}

// Role is implemented by every host role.
type Role interface {
	Name() string
	// AdditionalAliases are aliases given to the host besides the role name.
	AdditionalAliases() []string
	// ConfigureInterfaces runs while the host loads, after its own
	// interfaces are resolved.
	ConfigureInterfaces(h *host.Host, site Site) error
	// AdditionalRules returns firewall rules the role needs.
	AdditionalRules(h *host.Host, site Site) ([]*firewall.Rule, error)
	// Validate runs once every host is loaded.
	Validate(h *host.Host, site Site) error
	MinInstances(site Site) int
	MaxInstances(site Site) int
}

// Role names.
const (
	Common   = "common"
	Router   = "router"
	DNS      = "dns"
	DHCP     = "dhcp"
	NTP      = "ntp"
	Storage  = "storage"
	VMHost   = "vmhost"
	Build    = "build"
	XWindows = "xwindows"
	FakeISP  = "fakeisp"
)

var registry = map[string]Role{}

func register(r Role) {
	registry[r.Name()] = r
}

func init() {
	register(common{})
	register(router{})
	register(dns{})
	register(dhcp{})
	register(ntp{})
	register(storage{})
	register(vmhost{})
	register(build{})
	register(xwindows{})
	register(fakeisp{})
}

// Lookup returns the named role.
func Lookup(name string) (Role, bool) {
	r, ok := registry[name]
	return r, ok
}

// Names returns every role name, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Aliases returns the role name followed by its additional aliases.
func Aliases(r Role) []string {
	out := []string{r.Name()}
	for _, a := range r.AdditionalAliases() {
		if a != r.Name() {
			out = append(out, a)
		}
	}
	return out
}

// ReservedNames returns every role alias. They may not be used as explicit
// host aliases or reservation names.
func ReservedNames() []string {
	var out []string
	for _, n := range Names() {
		out = append(out, Aliases(registry[n])...)
	}
	return out
}

// base supplies the defaults: no aliases, interfaces or rules, one instance.
type base struct{}

func (base) AdditionalAliases() []string                                { return nil }
func (base) ConfigureInterfaces(*host.Host, Site) error                 { return nil }
func (base) AdditionalRules(*host.Host, Site) ([]*firewall.Rule, error) { return nil, nil }
func (base) Validate(*host.Host, Site) error                            { return nil }
func (base) MinInstances(Site) int                                      { return 1 }
func (base) MaxInstances(Site) int                                      { return 1 }
