// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/host"
	"grimm.is/yodeler/internal/network"
	fixture "grimm.is/yodeler/internal/testutil"
	"grimm.is/yodeler/internal/topology"
)

func resolvedHost(t *testing.T, r *network.Resolver, hostname string, cfgs ...config.Interface) *host.Host {
	t.Helper()
	h := &host.Host{Hostname: hostname}
	for i, cfg := range cfgs {
		iface, err := r.Resolve("interfaces", i, cfg)
		require.NoError(t, err)
		h.Interfaces = append(h.Interfaces, iface)
	}
	return h
}

func TestServers(t *testing.T) {
	c, err := topology.NewCatalog(fixture.Site(), topology.Options{})
	require.NoError(t, err)
	r := network.NewResolver(c, false)

	ntp := resolvedHost(t, r, "ntp1", fixture.Iface("lan", "public", "192.168.1.123"))
	client := resolvedHost(t, r, "desk", fixture.Iface("lan", "iot", "dhcp"))
	isolated := resolvedHost(t, r, "vault", fixture.Iface("lan", "isolated", "192.168.3.9"))
	isolated.ExternalDNS = []netip.Addr{netip.MustParseAddr("9.9.9.9"), netip.MustParseAddr("2620:fe::fe")}
	holders := []*host.Host{ntp}

	t.Run("time through the router", func(t *testing.T) {
		assert.Equal(t, &Servers{IPv4: []string{"192.168.1.123"}}, timeServers(client, holders))
	})
	t.Run("time server syncs upstream", func(t *testing.T) {
		assert.Nil(t, timeServers(ntp, holders))
	})
	t.Run("no time server", func(t *testing.T) {
		assert.Nil(t, timeServers(client, nil))
	})
	t.Run("unreachable time server", func(t *testing.T) {
		assert.Nil(t, timeServers(isolated, holders))
	})
	t.Run("external resolvers without local dns", func(t *testing.T) {
		assert.Equal(t, &Servers{IPv4: []string{"9.9.9.9"}, IPv6: []string{"2620:fe::fe"}}, nameservers(isolated, holders))
	})
	t.Run("vlan clients", func(t *testing.T) {
		iot, _ := c.VLAN("iot")
		vault, _ := c.VLAN("isolated")
		assert.Equal(t, &Servers{IPv4: []string{"192.168.1.123"}}, vlanServers(iot, holders))
		assert.Nil(t, vlanServers(vault, holders))
	})
}
