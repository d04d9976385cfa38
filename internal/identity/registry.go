// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package identity

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/logging"
	"grimm.is/yodeler/internal/topology"
	"grimm.is/yodeler/internal/validation"
)

// Registry holds every host registered so far, in registration order.
type Registry struct {
	mu sync.RWMutex

	hosts  []*Identity
	byName map[string]*Identity

	// role -> hosts carrying it, in registration order
	roleHosts map[string][]*Identity
	// role -> unnumbered aliases
	roleBase map[string][]string

	reserved   map[string]bool
	renumbered int
	log        *logging.Logger
}

// NewRegistry returns an empty registry. Explicit aliases may not use any of
// the reserved names.
func NewRegistry(reserved ...string) *Registry {
	r := &Registry{
		byName:    make(map[string]*Identity),
		roleHosts: make(map[string][]*Identity),
		roleBase:  make(map[string][]string),
		reserved:  make(map[string]bool),
		log:       logging.WithComponent("identity"),
	}
	for _, n := range reserved {
		r.reserved[n] = true
	}
	return r
}

// Register adds a host. It happens before the host's own validation completes
// so later hosts and roles can see it.
func (r *Registry) Register(hostname string, aliases []string) (*Identity, error) {
	hostname = strings.ToLower(hostname)
	if err := validation.ValidateHostname(hostname); err != nil {
		return nil, errors.Attr(err, errors.AttrField, "hostname")
	}

	id := &Identity{
		ID:          uuid.NewString(),
		Hostname:    hostname,
		roleAliases: make(map[string][]string),
	}
	for i, alias := range aliases {
		alias = strings.ToLower(alias)
		if alias == hostname {
			continue
		}
		field := fmt.Sprintf("aliases[%d]", i)
		if err := validation.ValidateHostname(alias); err != nil {
			return nil, errors.Attr(err, errors.AttrField, field)
		}
		if r.reserved[alias] {
			return nil, errors.Semantic(errors.KindConflict, field,
				"alias '%s' for host '%s' is a role name", alias, hostname)
		}
		id.explicit = append(id.explicit, alias)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[hostname]; dup {
		return nil, errors.Semantic(errors.KindConflict, "hostname", "duplicate hostname '%s'", hostname)
	}
	r.hosts = append(r.hosts, id)
	r.byName[hostname] = id
	return id, nil
}

// AddRole applies role to a registered host. aliases are the role's aliases,
// normally the role name first. When more than one host carries the role,
// every host's aliases for it are suffixed with its 1-based position, so the
// first host's aliases are renumbered when the second arrives.
func (r *Registry) AddRole(id *Identity, role string, aliases []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := id.roleAliases[role]; ok {
		return
	}
	id.roles = append(id.roles, role)
	id.roleAliases[role] = nil

	if _, ok := r.roleBase[role]; !ok {
		r.roleBase[role] = aliases
	}
	r.roleHosts[role] = append(r.roleHosts[role], id)

	hosts := r.roleHosts[role]
	if len(hosts) == 2 {
		r.renumbered++
		r.log.Debug("renumbering role aliases", "role", role, "host", hosts[0].Hostname)
	}
	for i, h := range hosts {
		h.roleAliases[role] = numbered(h.Hostname, r.roleBase[role], i+1, len(hosts))
	}
}

func numbered(hostname string, base []string, index, count int) []string {
	var out []string
	for _, alias := range base {
		if count > 1 {
			alias += strconv.Itoa(index)
		}
		if alias != hostname {
			out = append(out, alias)
		}
	}
	return out
}

// Renumbered returns how many times a role's aliases switched to numbered form.
func (r *Registry) Renumbered() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.renumbered
}

// CanonicalHostname returns the hostname that name refers to, whether name is
// a hostname or an alias.
func (r *Registry) CanonicalHostname(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byName[name]; ok {
		return id.Hostname, true
	}
	for _, id := range r.hosts {
		for _, alias := range id.Aliases() {
			if alias == name {
				return id.Hostname, true
			}
		}
	}
	return "", false
}

// Validate checks the host's names against firewall static host names, every
// other registered host and the known aliases of the VLANs the host is on.
func (r *Registry) Validate(id *Identity, firewallNames []string, vlans []*topology.VLAN) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fw := make(map[string]bool, len(firewallNames))
	for _, n := range firewallNames {
		fw[n] = true
	}

	for _, name := range id.Names() {
		if fw[name] {
			return errors.Semantic(errors.KindConflict, "aliases",
				"name '%s' for host '%s' is already used by a firewall static host", name, id.Hostname)
		}
		for _, other := range r.hosts {
			if other == id {
				continue
			}
			if other.HasName(name) {
				return errors.Semantic(errors.KindConflict, "aliases",
					"name '%s' for host '%s' is already used by host '%s'", name, id.Hostname, other.Hostname)
			}
		}
		for _, v := range vlans {
			if v.IsKnownAlias(name) {
				return errors.Semantic(errors.KindConflict, "aliases",
					"name '%s' for host '%s' is already used by a reservation or static host on vlan '%s'",
					name, id.Hostname, v.Name)
			}
		}
	}
	return nil
}
