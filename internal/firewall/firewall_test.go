// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
	"grimm.is/yodeler/internal/network"
	"grimm.is/yodeler/internal/testutil"
	"grimm.is/yodeler/internal/topology"
)

// directory is a HostDirectory backed by maps.
type directory struct {
	aliases map[string]string
	ifaces  map[string][]*network.Interface
}

func (d *directory) CanonicalHostname(name string) (string, bool) {
	if _, ok := d.ifaces[name]; ok {
		return name, true
	}
	h, ok := d.aliases[name]
	return h, ok
}

func (d *directory) Interfaces(hostname string) []*network.Interface {
	return d.ifaces[hostname]
}

type fixture struct {
	site     *config.Site
	catalog  *topology.Catalog
	resolver *network.Resolver
	dir      *directory
}

func newFixture(t *testing.T, ipsets ...config.IPSet) *fixture {
	t.Helper()
	site := testutil.Site()
	site.Firewall.IPSets = ipsets
	c, err := topology.NewCatalog(site, topology.Options{})
	require.NoError(t, err)
	return &fixture{
		site:     site,
		catalog:  c,
		resolver: network.NewResolver(c, false),
		dir:      &directory{aliases: map[string]string{}, ifaces: map[string][]*network.Interface{}},
	}
}

func (fx *fixture) addHost(t *testing.T, hostname string, aliases []string, cfgs ...config.Interface) {
	t.Helper()
	for i, cfg := range cfgs {
		iface, err := fx.resolver.Resolve("interfaces", i, cfg)
		require.NoError(t, err)
		fx.dir.ifaces[hostname] = append(fx.dir.ifaces[hostname], iface)
	}
	for _, a := range aliases {
		fx.dir.aliases[a] = hostname
	}
}

func (fx *fixture) firewall(t *testing.T, rules string) *Firewall {
	t.Helper()
	var parsed []config.Rule
	require.NoError(t, config.Decode([]byte(rules), config.FormatYAML, "rules.yaml", &parsed, config.DefaultLoadOptions()))
	fx.site.Firewall.Rules = parsed

	f, err := New(fx.catalog, fx.site)
	require.NoError(t, err)
	return f
}

func TestIPSetSizing(t *testing.T) {
	set, err := NewIPSet(config.IPSet{
		Name:      "Blocked",
		Addresses: []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4", "203.0.113.5"},
	})
	require.NoError(t, err)
	assert.Equal(t, "blocked", set.Name)
	assert.Equal(t, 8, set.HashSize)
	assert.Equal(t, "ip", set.Type())
	assert.Equal(t, "inet", set.FamilyName())

	set, err = NewIPSet(config.IPSet{Name: "nets", Addresses: []string{"2001:db8::/32"}})
	require.NoError(t, err)
	assert.Equal(t, 1, set.HashSize)
	assert.Equal(t, "net", set.Type())
	assert.Equal(t, "inet6", set.FamilyName())

	for _, addrs := range [][]string{
		nil,
		{"203.0.113.1", "2001:db8::1"},
		{"203.0.113.1", "203.0.113.0/24"},
		{"not-an-address"},
	} {
		_, err := NewIPSet(config.IPSet{Name: "bad", Addresses: addrs})
		assert.Error(t, err, "%v", addrs)
	}
}

func TestHashSize(t *testing.T) {
	for n, want := range map[int]int{0: 1, 1: 1, 2: 2, 3: 4, 5: 8, 8: 8, 9: 16, 1000: 1024} {
		assert.Equal(t, want, hashSize(n), n)
	}
}

func TestParseRules(t *testing.T) {
	fx := newFixture(t, config.IPSet{Name: "bad-actors", Addresses: []string{"2001:db8::1", "2001:db8::2"}})
	f := fx.firewall(t, `
- comment: everything to the internet
  source: {vlan: all}
  destination: {vlan: internet}
  allow-all: true
  allow: ssh
- sources:
    - {vlan: public}
    - {vlan: all}
    - {vlan: iot}
  destinations:
    - {vlan: 20, vswitch: lan, ipv4_address: 192.168.2.0/28}
  allow:
    - ssh
    - {proto: TCP, port: [8080, "9000-9100"]}
- source: {vlan: internet, ipset: bad-actors}
  destination: {vlan: firewall}
  forward: {proto: udp, ports: 53}
- source: {vlan: iot}
  destination: {vlan: public}
  allow: web
`)

	require.Len(t, f.Rules, 4)

	r := f.Rules[0]
	assert.Equal(t, "everything to the internet", r.Comment)
	assert.Equal(t, OwnerSite, r.Owner)
	require.Len(t, r.Actions, 1)
	assert.Equal(t, ActionAllowAll, r.Actions[0].Kind)
	require.NotNil(t, r.IPv4)
	require.NotNil(t, r.IPv6)
	assert.Equal(t, KindAll, r.IPv4.Sources[0].Kind)
	assert.Equal(t, KindInternet, r.IPv6.Destinations[0].Kind)

	r = f.Rules[1]
	require.Len(t, r.IPv4.Sources, 1, "all short-circuits the list")
	assert.Equal(t, KindAll, r.IPv4.Sources[0].Kind)
	assert.Nil(t, r.IPv6, "address given only for ipv4")
	dst := r.IPv4.Destinations[0]
	assert.Equal(t, "iot", dst.Zone())
	assert.Equal(t, netip.MustParsePrefix("192.168.2.0/28"), dst.Address)
	require.Len(t, r.Actions, 2)
	assert.Equal(t, Action{Kind: ActionService, Verb: VerbAllow, Service: "ssh"}, r.Actions[0])
	assert.Equal(t, Action{Kind: ActionProtoPort, Verb: VerbAllow, Proto: "tcp", Ports: []string{"8080", "9000:9100"}}, r.Actions[1])

	r = f.Rules[2]
	assert.Nil(t, r.IPv4)
	require.NotNil(t, r.IPv6)
	assert.Equal(t, "bad-actors", r.IPv6.Sources[0].IPSet)
	assert.Equal(t, VerbForward, r.Actions[0].Verb)
	assert.Equal(t, []string{"53"}, r.Actions[0].Ports)

	r = f.Rules[3]
	assert.Nil(t, r.IPv6, "iot has no ipv6 subnet")
	assert.Equal(t, 4, f.Stats().Rules)
}

func TestParseRuleErrors(t *testing.T) {
	tests := []struct {
		name string
		rule config.Rule
		kind errors.Kind
	}{
		{"missing sources", config.Rule{Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindSchema},
		{"missing vlan", config.Rule{Sources: config.LocationList{{}}, Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindSchema},
		{"missing action", config.Rule{Sources: locs(loc("iot")), Destinations: locs(loc("public"))}, errors.KindSchema},
		{"unknown service", config.Rule{Sources: locs(loc("iot")), Destinations: locs(loc("public")), Allow: allow("gopher")}, errors.KindSchema},
		{"unknown vlan", config.Rule{Sources: locs(loc("nope")), Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindNotFound},
		{"non routable vlan", config.Rule{Sources: locs(loc("isolated")), Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindSemantic},
		{"id out of range", config.Rule{Sources: config.LocationList{{VLAN: config.VLANID(5000), VSwitch: "lan"}},
			Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindSchema},
		{"id without vswitch", config.Rule{Sources: config.LocationList{{VLAN: config.VLANID(10)}},
			Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindSchema},
		{"hostname on firewall", config.Rule{Sources: locs(loc("iot")),
			Destinations: config.LocationList{{VLAN: config.VLANName("firewall"), Hostname: str("fw")}}, Allow: allow("ssh")}, errors.KindSchema},
		{"unknown internet host", config.Rule{Sources: locs(loc("iot")),
			Destinations: config.LocationList{{VLAN: config.VLANName("internet"), Hostname: str("nowhere")}}, Allow: allow("ssh")}, errors.KindNotFound},
		{"two selectors", config.Rule{Sources: locs(loc("iot")),
			Destinations: config.LocationList{{VLAN: config.VLANName("public"), Hostname: str("tv"), IPv4Address: str("192.168.1.5")}}, Allow: allow("ssh")}, errors.KindSchema},
		{"address outside vlan", config.Rule{Sources: locs(loc("iot")),
			Destinations: config.LocationList{{VLAN: config.VLANName("public"), IPv4Address: str("192.168.2.5")}}, Allow: allow("ssh")}, errors.KindSemantic},
		{"internal internet address", config.Rule{Sources: locs(loc("iot")),
			Destinations: config.LocationList{{VLAN: config.VLANName("internet"), IPv4Address: str("192.168.2.5")}}, Allow: allow("ssh")}, errors.KindSemantic},
		{"address on firewall", config.Rule{Sources: locs(loc("iot")),
			Destinations: config.LocationList{{VLAN: config.VLANName("firewall"), IPv4Address: str("192.168.2.5")}}, Allow: allow("ssh")}, errors.KindSchema},
		{"unknown ipset", config.Rule{Sources: config.LocationList{{VLAN: config.VLANName("internet"), IPSet: str("nope")}},
			Destinations: locs(loc("public")), Allow: allow("ssh")}, errors.KindNotFound},
		{"no common family", config.Rule{
			Sources:      config.LocationList{{VLAN: config.VLANName("public"), IPv4Address: str("192.168.1.5")}},
			Destinations: config.LocationList{{VLAN: config.VLANName("public"), IPv6Address: str("fd00:1::5")}},
			Allow:        allow("ssh")}, errors.KindSemantic},
		{"bad proto", config.Rule{Sources: locs(loc("iot")), Destinations: locs(loc("public")),
			Allow: config.ActionList{{ProtoPort: &config.ProtoPort{Proto: "icmp", Ports: config.PortList{{Number: 1}}}}}}, errors.KindSchema},
		{"zero port", config.Rule{Sources: locs(loc("iot")), Destinations: locs(loc("public")),
			Allow: config.ActionList{{ProtoPort: &config.ProtoPort{Proto: "tcp", Ports: config.PortList{{Number: 0}}}}}}, errors.KindSchema},
		{"inverted range", config.Rule{Sources: locs(loc("iot")), Destinations: locs(loc("public")),
			Allow: config.ActionList{{ProtoPort: &config.ProtoPort{Proto: "tcp", Ports: config.PortList{{Range: "90-80"}}}}}}, errors.KindSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			f, err := New(fx.catalog, fx.site)
			require.NoError(t, err)

			_, err = f.ParseRules("host1", []config.Rule{tt.rule})
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.GetKind(err), err.Error())
		})
	}
}

func TestParseAddressOnFamilyWithoutSubnet(t *testing.T) {
	fx := newFixture(t)
	f := fx.firewall(t, `
- source: {vlan: all}
  destination: {vlan: iot, ipv6_address: "fd00:2::5"}
  allow: ssh
`)

	require.Len(t, f.Rules, 1)
	r := f.Rules[0]
	assert.Nil(t, r.IPv4)
	require.NotNil(t, r.IPv6)
	assert.Equal(t, "iot", r.IPv6.Destinations[0].Zone())
	assert.Equal(t, netip.MustParsePrefix("fd00:2::5/128"), r.IPv6.Destinations[0].Address)
}

func TestResolveExternalHostWithoutIPv6(t *testing.T) {
	fx := newFixture(t)
	f := fx.firewall(t, `
- source: {vlan: public}
  destination: {vlan: internet, hostname: offsite}
  allow: ssh
`)
	require.NotNil(t, f.Rules[0].IPv6)

	require.NoError(t, f.Resolve(fx.dir))
	require.Len(t, f.Rules, 1)

	r := f.Rules[0]
	assert.Nil(t, r.IPv6)
	require.NotNil(t, r.IPv4)
	require.Len(t, r.IPv4.Destinations, 1)
	assert.Equal(t, "offsite", r.IPv4.Destinations[0].Hostname)
	assert.Equal(t, netip.MustParsePrefix("203.0.113.5/32"), r.IPv4.Destinations[0].Address)
	assert.Equal(t, "public", r.IPv4.Sources[0].Zone())

	stats := f.Stats()
	assert.Equal(t, 1, stats.LocationsPruned[netutil.IPv6])
	assert.Equal(t, 1, stats.PayloadsDropped[netutil.IPv6])
	assert.Zero(t, stats.PayloadsDropped[netutil.IPv4])
}

func TestResolveAliasRewrite(t *testing.T) {
	fx := newFixture(t)
	fx.addHost(t, "beta", []string{"alias-of-b"},
		config.Interface{VSwitch: "lan", VLAN: config.VLANName("public"), IPv4Address: "192.168.1.20", IPv6Address: "fd00:1::20"})

	f := fx.firewall(t, `
- source: {vlan: all}
  destination: {vlan: public, hostname: alias-of-b}
  allow: ssh
`)
	require.NoError(t, f.Resolve(fx.dir))
	require.Len(t, f.Rules, 1)

	for _, fam := range netutil.Families {
		p := f.Rules[0].Payload(fam)
		require.NotNil(t, p, fam.String())
		assert.Equal(t, "beta", p.Destinations[0].Hostname)
	}
	assert.Equal(t, netip.MustParsePrefix("192.168.1.20/32"), f.Rules[0].IPv4.Destinations[0].Address)
	assert.Equal(t, netip.MustParsePrefix("fd00:1::20/128"), f.Rules[0].IPv6.Destinations[0].Address)
}

func TestResolvePruning(t *testing.T) {
	fx := newFixture(t)
	fx.addHost(t, "dynamic", nil, testutil.Iface("lan", "public", "dhcp"))
	fx.addHost(t, "static", nil, testutil.Iface("lan", "public", "192.168.1.30"))

	f := fx.firewall(t, `
- comment: dhcp host has no address at all
  source: {vlan: iot}
  destination: {vlan: public, hostname: dynamic}
  allow: ssh
- comment: only one of two destinations survives
  source: {vlan: public}
  destinations:
    - {vlan: public, hostname: dynamic}
    - {vlan: public, hostname: static}
    - {vlan: public, hostname: telly}
  allow: web
- comment: static host on iot
  source: {vlan: public}
  destination: {vlan: iot, hostname: printer}
  allow: {proto: tcp, port: 9100}
`)
	require.NoError(t, f.Resolve(fx.dir))
	require.Len(t, f.Rules, 2)

	r := f.Rules[0]
	assert.Equal(t, "only one of two destinations survives", r.Comment)
	require.NotNil(t, r.IPv4)
	require.Len(t, r.IPv4.Destinations, 2)
	assert.Equal(t, "static", r.IPv4.Destinations[0].Hostname)
	assert.Equal(t, "tv", r.IPv4.Destinations[1].Hostname)
	assert.Nil(t, r.IPv6, "no destination has an ipv6 address")

	r = f.Rules[1]
	assert.Equal(t, netip.MustParsePrefix("192.168.2.9/32"), r.IPv4.Destinations[0].Address)

	assert.Equal(t, 1, f.Stats().RulesRemoved)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name  string
		rules string
		kind  errors.Kind
	}{
		{
			name: "unknown host",
			rules: `
- source: {vlan: iot}
  destination: {vlan: public, hostname: ghost}
  allow: ssh`,
			kind: errors.KindNotFound,
		},
		{
			name: "host not on vlan",
			rules: `
- source: {vlan: public}
  destination: {vlan: iot, hostname: beta}
  allow: ssh`,
			kind: errors.KindSemantic,
		},
		{
			name: "external host off the internet",
			rules: `
- source: {vlan: iot}
  destination: {vlan: public, hostname: backup}
  allow: ssh`,
			kind: errors.KindSemantic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.addHost(t, "beta", nil, testutil.Iface("lan", "public", "192.168.1.20"))
			f := fx.firewall(t, tt.rules)

			err := f.Resolve(fx.dir)
			require.Error(t, err)
			assert.Equal(t, tt.kind, errors.GetKind(err), err.Error())
		})
	}
}

func TestBuilders(t *testing.T) {
	fx := newFixture(t)
	fx.addHost(t, "ns", nil,
		testutil.Iface("lan", "public", "192.168.1.53"),
		testutil.Iface("lan", "iot", "192.168.2.53"),
		testutil.Iface("dmz", "", "dhcp"),
	)
	f, err := New(fx.catalog, fx.site)
	require.NoError(t, err)

	dsts := DestinationsFromInterfaces("ns", fx.dir.ifaces["ns"])
	require.Len(t, dsts, 3)

	r, err := NewRule("ns", "dns", []Endpoint{LocationAll()}, dsts, AllowService("dns"))
	require.NoError(t, err)
	f.AddRule(r)
	require.Len(t, r.IPv4.Destinations, 3)
	require.Len(t, r.IPv6.Destinations, 2, "iot has no ipv6")

	require.NoError(t, f.Resolve(fx.dir))
	require.Len(t, f.Rules, 1)
	assert.Len(t, f.Rules[0].IPv4.Destinations, 2, "dhcp interface dropped")
	assert.Nil(t, f.Rules[0].IPv6, "no interface has a static ipv6 address")

	assert.Equal(t, Action{Kind: ActionProtoPort, Verb: VerbAllow, Proto: "udp", Ports: []string{"123"}}, AllowProtoPort("udp", 123))
	assert.Panics(t, func() { AllowService("gopher") })
	assert.Equal(t, []string{"vpn"}, f.StaticHostNames())
}

func TestResolveUplinkOnVLAN(t *testing.T) {
	const rules = `
- source: {vlan: all}
  destination: {vlan: dmz, hostname: rtr}
  allow: ssh`

	t.Run("static uplink supplies the address", func(t *testing.T) {
		fx := newFixture(t)
		fx.addHost(t, "rtr", nil, config.Interface{Type: "uplink", VSwitch: "dmz", IPv4Address: "10.10.0.1"})
		f := fx.firewall(t, rules)

		require.NoError(t, f.Resolve(fx.dir))
		require.Len(t, f.Rules, 1)
		assert.Equal(t, netip.MustParsePrefix("10.10.0.1/32"), f.Rules[0].IPv4.Destinations[0].Address)
		assert.Nil(t, f.Rules[0].IPv6)
	})

	t.Run("dhcp uplink is a member without an address", func(t *testing.T) {
		fx := newFixture(t)
		fx.addHost(t, "rtr", nil, config.Interface{Type: "uplink", VSwitch: "dmz", IPv4Address: "dhcp"})
		f := fx.firewall(t, rules)

		require.NoError(t, f.Resolve(fx.dir))
		assert.Empty(t, f.Rules)
	})

	t.Run("addressed interface wins", func(t *testing.T) {
		fx := newFixture(t)
		fx.addHost(t, "rtr", nil,
			config.Interface{Type: "uplink", VSwitch: "dmz", IPv4Address: "dhcp"},
			testutil.Iface("dmz", "", "10.10.0.2"),
		)
		f := fx.firewall(t, rules)

		require.NoError(t, f.Resolve(fx.dir))
		require.Len(t, f.Rules, 1)
		assert.Equal(t, netip.MustParsePrefix("10.10.0.2/32"), f.Rules[0].IPv4.Destinations[0].Address)
	})
}

func TestDestinationsSkipNonRoutable(t *testing.T) {
	fx := newFixture(t)
	fx.addHost(t, "vault", nil, testutil.Iface("lan", "isolated", "192.168.3.9"))
	assert.Empty(t, DestinationsFromInterfaces("vault", fx.dir.ifaces["vault"]))

	fx.addHost(t, "ns", nil,
		testutil.Iface("lan", "isolated", "192.168.3.53"),
		testutil.Iface("lan", "public", "192.168.1.53"),
	)
	dsts := DestinationsFromInterfaces("ns", fx.dir.ifaces["ns"])
	require.Len(t, dsts, 1)
	assert.Equal(t, "public", dsts[0].VLAN.Name)
	assert.True(t, dsts[0].VLAN.Routable)
}

func loc(vlan string) config.Location { return config.Location{VLAN: config.VLANName(vlan)} }

func locs(l ...config.Location) config.LocationList { return l }

func allow(services ...string) config.ActionList {
	var out config.ActionList
	for _, s := range services {
		out = append(out, config.ActionSpec{Service: s})
	}
	return out
}

func str(s string) *string { return &s }
