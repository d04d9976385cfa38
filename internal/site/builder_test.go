// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/firewall"
	"grimm.is/yodeler/internal/metrics"
	"grimm.is/yodeler/internal/netutil"
	fixture "grimm.is/yodeler/internal/testutil"
)

func physical(cfg *config.Host) *config.Host {
	cfg.IsVM = fixture.BoolPtr(false)
	return cfg
}

func gateway() *config.Host {
	cfg := physical(fixture.Host("gw", []string{"router"}))
	cfg.Uplink = &config.Interface{Name: "wan", IPv4Address: "dhcp"}
	return cfg
}

// nameserver reaches every VLAN of the fixture site.
func nameserver(hostname, octet string, roles ...string) *config.Host {
	return physical(fixture.Host(hostname, roles,
		fixture.Iface("lan", "public", "192.168.1."+octet),
		fixture.Iface("lan", "isolated", "192.168.3."+octet),
		fixture.Iface("dmz", "", "10.10.0."+octet)))
}

func webserver(rules string) *config.Host {
	cfg := physical(fixture.Host("web", nil, fixture.Iface("lan", "public", "192.168.1.20")))
	cfg.Aliases = config.StringList{"www"}
	if rules != "" {
		cfg.Firewall = &config.HostRules{Rules: decodeRules(rules)}
	}
	return cfg
}

func decodeRules(rules string) []config.Rule {
	var parsed []config.Rule
	if err := config.Decode([]byte(rules), config.FormatYAML, "rules.yaml", &parsed, config.DefaultLoadOptions()); err != nil {
		panic(err)
	}
	return parsed
}

func newBuilder(t *testing.T) (*Builder, *metrics.Registry) {
	t.Helper()
	m := metrics.NewRegistry()
	b, err := NewBuilder(fixture.Site(), m)
	require.NoError(t, err)
	return b, m
}

func load(t *testing.T, b *Builder, hosts ...*config.Host) {
	t.Helper()
	for _, h := range hosts {
		_, err := b.LoadHost(h)
		require.NoError(t, err)
	}
}

func ruleOwnedBy(t *testing.T, rules []*firewall.Rule, owner string) *firewall.Rule {
	t.Helper()
	for _, r := range rules {
		if r.Owner == owner {
			return r
		}
	}
	t.Fatalf("no rule owned by %s", owner)
	return nil
}

const sshToWWW = `
- comment: ssh to the web server
  source: {vlan: all}
  destination: {vlan: public, hostname: www}
  allow: ssh
`

func TestBuildSite(t *testing.T) {
	b, m := newBuilder(t)
	load(t, b, gateway(), nameserver("ns", "2", "dns", "dhcp", "ntp"), webserver(sshToWWW))

	s, err := b.Finalize()
	require.NoError(t, err)
	require.Len(t, s.Hosts, 3)

	gw := s.Hosts[0]
	assert.Equal(t, []string{"common", "router"}, gw.Roles)
	assert.Equal(t, []string{"router", "gateway"}, gw.Aliases())

	ns := s.Hosts[1]
	assert.Equal(t, []string{"dns", "dhcp", "ntp", "time", "sntp"}, ns.Aliases())
	assert.Len(t, ns.ExternalDNS, len(config.DefaultExternalDNS))

	r := ruleOwnedBy(t, s.Firewall.Rules, "web")
	require.NotNil(t, r.IPv4)
	assert.Equal(t, "web", r.IPv4.Destinations[0].Hostname)
	assert.Equal(t, "192.168.1.20/32", r.IPv4.Destinations[0].Address.String())
	// web has no static IPv6 address
	assert.Nil(t, r.IPv6)

	public, ok := s.Catalog.VLAN("public")
	require.True(t, ok)
	var names []string
	for _, e := range public.DNSEntries {
		names = append(names, e.Hostname)
	}
	assert.Equal(t, []string{"gw", "ns", "web", "tv"}, names)
	assert.Equal(t, []string{"www"}, public.DNSEntries[2].Aliases)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HostsLoaded))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.VLANs))
	assert.Equal(t, float64(len(s.Firewall.Rules)), testutil.ToFloat64(m.FirewallRules))
	assert.Positive(t, testutil.ToFloat64(m.PayloadsDropped.WithLabelValues(netutil.IPv6.String())))
}

func TestRoleRenumbering(t *testing.T) {
	b, m := newBuilder(t)
	load(t, b, gateway(), nameserver("ns1", "2", "dns", "dhcp"))

	ns1, ok := b.Host("ns1")
	require.True(t, ok)
	assert.Equal(t, []string{"dns", "dhcp"}, ns1.Aliases())

	load(t, b, nameserver("ns2", "3", "dns"))
	ns2, _ := b.Host("ns2")
	assert.Equal(t, []string{"dns1", "dhcp"}, ns1.Aliases())
	assert.Equal(t, []string{"dns2"}, ns2.Aliases())

	canonical, ok := b.CanonicalHostname("dns2")
	require.True(t, ok)
	assert.Equal(t, "ns2", canonical)

	_, err := b.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AliasesRenumbered))
}

func TestLoadHostErrors(t *testing.T) {
	withAliases := func(cfg *config.Host, aliases ...string) *config.Host {
		cfg.Aliases = aliases
		return cfg
	}
	printer := fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp"))

	tests := []struct {
		name  string
		setup []*config.Host
		host  *config.Host
		kind  errors.Kind
		field string
	}{
		{
			name:  "unknown role",
			host:  fixture.Host("desk", []string{"metrics"}, fixture.Iface("lan", "public", "dhcp")),
			kind:  errors.KindSchema,
			field: "roles[0]",
		},
		{
			name:  "duplicate hostname",
			setup: []*config.Host{fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp"))},
			host:  printer,
			kind:  errors.KindConflict,
			field: "hostname",
		},
		{
			name: "alias is a role alias",
			host: withAliases(fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp")), "gateway"),
			kind: errors.KindConflict,
		},
		{
			name:  "alias is a reservation alias",
			host:  withAliases(fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp")), "telly"),
			kind:  errors.KindConflict,
			field: "aliases",
		},
		{
			name:  "alias is a firewall static host",
			host:  withAliases(fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp")), "vpn"),
			kind:  errors.KindConflict,
			field: "aliases",
		},
		{
			name:  "alias is another host's name",
			setup: []*config.Host{fixture.Host("laptop", nil, fixture.Iface("lan", "public", "dhcp"))},
			host:  withAliases(fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp")), "laptop"),
			kind:  errors.KindConflict,
			field: "aliases",
		},
		{
			name: "bad external dns",
			host: func() *config.Host {
				cfg := fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp"))
				cfg.ExternalDNS = []string{"dns.google"}
				return cfg
			}(),
			kind:  errors.KindSchema,
			field: "external_dns[0]",
		},
		{
			name:  "router without uplink",
			host:  physical(fixture.Host("gw", []string{"router"})),
			kind:  errors.KindSemantic,
			field: "uplink",
		},
		{
			name: "rule on a non-routable vlan",
			host: func() *config.Host {
				cfg := fixture.Host("desk", nil, fixture.Iface("lan", "public", "dhcp"))
				cfg.Firewall = &config.HostRules{Rules: decodeRules(`
- source: {vlan: isolated}
  destination: {vlan: public}
  allow: ssh
`)}
				return cfg
			}(),
			kind: errors.KindSemantic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newBuilder(t)
			load(t, b, tt.setup...)

			_, err := b.LoadHost(tt.host)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.GetKind(err), err.Error())
			if tt.field != "" {
				assert.Equal(t, tt.field, errors.Field(err))
			}
			assert.Contains(t, err.Error(), "host '")
		})
	}
}

func TestFinalizeErrors(t *testing.T) {
	tests := []struct {
		name     string
		hosts    func() []*config.Host
		kind     errors.Kind
		contains string
	}{
		{
			name: "missing router",
			hosts: func() []*config.Host {
				return []*config.Host{nameserver("ns", "2", "dns", "dhcp")}
			},
			kind:     errors.KindSemantic,
			contains: "role 'router'",
		},
		{
			name: "renumbered alias collides with a hostname",
			hosts: func() []*config.Host {
				return []*config.Host{
					gateway(),
					nameserver("ns", "2", "dns", "dhcp"),
					physical(fixture.Host("dns1", nil, fixture.Iface("lan", "public", "dhcp"))),
					nameserver("ns2", "3", "dns"),
				}
			},
			kind:     errors.KindConflict,
			contains: "name 'dns1'",
		},
		{
			name: "unknown rule hostname",
			hosts: func() []*config.Host {
				return []*config.Host{
					gateway(),
					nameserver("ns", "2", "dns", "dhcp"),
					physical(webserver(`
- source: {vlan: all}
  destination: {vlan: public, hostname: nosuchhost}
  allow: ssh
`)),
				}
			},
			kind:     errors.KindNotFound,
			contains: "nosuchhost",
		},
		{
			name: "dns cannot reach every vlan",
			hosts: func() []*config.Host {
				return []*config.Host{
					gateway(),
					physical(fixture.Host("ns", []string{"dns", "dhcp"}, fixture.Iface("lan", "public", "192.168.1.2"))),
				}
			},
			kind:     errors.KindSemantic,
			contains: "does not have access to vlans",
		},
		{
			name: "too many storage hosts",
			hosts: func() []*config.Host {
				return []*config.Host{
					gateway(),
					nameserver("ns", "2", "dns", "dhcp", "storage"),
					nameserver("ns2", "3", "storage"),
				}
			},
			kind:     errors.KindConflict,
			contains: "at most 1 host(s) with role 'storage'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newBuilder(t)
			load(t, b, tt.hosts()...)

			_, err := b.Finalize()
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.GetKind(err), err.Error())
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestFinalizeOnce(t *testing.T) {
	b, _ := newBuilder(t)
	load(t, b, gateway(), nameserver("ns", "2", "dns", "dhcp"))

	_, err := b.Finalize()
	require.NoError(t, err)

	_, err = b.Finalize()
	assert.Equal(t, errors.KindInternal, errors.GetKind(err))

	_, err = b.LoadHost(webserver(""))
	assert.Equal(t, errors.KindInternal, errors.GetKind(err))
}
