// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package identity tracks site hostnames and aliases, including the aliases
// hosts receive from their roles.
package identity

// Identity is one host's names.
type Identity struct {
	ID       string `json:"id"`
	Hostname string `json:"hostname"`

	explicit    []string
	roles       []string
	roleAliases map[string][]string // role -> current, possibly numbered, aliases
}

// Roles returns the roles applied to the host, in order.
func (id *Identity) Roles() []string {
	return append([]string(nil), id.roles...)
}

// HasRole reports whether role was applied to the host.
func (id *Identity) HasRole(role string) bool {
	_, ok := id.roleAliases[role]
	return ok
}

// Aliases returns the explicit aliases followed by the role aliases in role
// order. The hostname never appears and each alias appears once.
func (id *Identity) Aliases() []string {
	seen := map[string]bool{id.Hostname: true}
	var out []string
	add := func(names []string) {
		for _, n := range names {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	add(id.explicit)
	for _, role := range id.roles {
		add(id.roleAliases[role])
	}
	return out
}

// Names returns the hostname followed by every alias.
func (id *Identity) Names() []string {
	return append([]string{id.Hostname}, id.Aliases()...)
}

// HasName reports whether name is the hostname or an alias.
func (id *Identity) HasName(name string) bool {
	for _, n := range id.Names() {
		if n == name {
			return true
		}
	}
	return false
}
