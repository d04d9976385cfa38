// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package site

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"grimm.is/yodeler/internal/config"
	"grimm.is/yodeler/internal/errors"
	fixture "grimm.is/yodeler/internal/testutil"
)

var siteFiles = map[string]string{
	"site.yaml": `
name: home
domain: example.com
vswitches:
  - name: lan
    uplink: eno1
    vlans:
      - name: public
        id: 10
        domain: public.example.com
        ipv4_subnet: 192.168.1.0/24
        ipv6_subnet: fd00:1::/64
        dhcp_reservations:
          - hostname: tv
            mac_address: "00:11:22:33:44:55"
            ipv4_address: 192.168.1.50
external_hosts:
  - hostnames: backup
    ipv4_address: 203.0.113.5
firewall:
  ipsets:
    - name: blocked
      addresses: [203.0.113.1, 203.0.113.2, 203.0.113.3, 203.0.113.4, 203.0.113.6]
  rules:
    - comment: offsite backups
      source: {vlan: public, hostname: www}
      destination: {vlan: internet, hostname: backup}
      allow: ssh
`,
	"gw.yaml": `
is_vm: false
roles: router
uplink:
  name: wan
  ipv4_address: dhcp
`,
	"ns.yaml": `
is_vm: false
roles: [dns, dhcp]
interfaces:
  - vlan: public
    ipv4_address: 192.168.1.2
    ipv6_address: fd00:1::2
`,
	"web.yaml": `
is_vm: false
aliases: www
interfaces:
  - ipv4_address: 192.168.1.20
    ipv6_address: fd00:1::20
firewall:
  rules:
    - source: {vlan: all}
      destination: {vlan: public, hostname: www}
      allow: [ssh, web]
`,
}

func buildDir(t *testing.T) *Site {
	t.Helper()
	fixture.UseLogger(t)
	dir := t.TempDir()
	for name, content := range siteFiles {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	sd, err := config.LoadSiteDir(dir, config.DefaultLoadOptions())
	require.NoError(t, err)

	b, err := NewBuilder(sd.Site, nil)
	require.NoError(t, err)
	s, err := Build(sd, b)
	require.NoError(t, err)
	return s
}

func TestModel(t *testing.T) {
	m := buildDir(t).Model()

	_, err := uuid.Parse(m.BuildID)
	require.NoError(t, err)
	assert.Equal(t, "home", m.Site)

	require.Len(t, m.VSwitches, 1)
	sw := m.VSwitches[0]
	assert.Equal(t, "public", sw.DefaultVLAN)
	require.Len(t, sw.VLANs, 1)
	assert.Equal(t, 10, *sw.VLANs[0].ID)
	assert.Equal(t, "192.168.1.16-192.168.1.252", sw.VLANs[0].DHCPRangeIPv4)
	assert.Len(t, sw.VLANs[0].DNSEntries, 4)

	require.Len(t, m.Hosts, 3)
	assert.Equal(t, []string{"gw", "ns", "web"}, []string{m.Hosts[0].Hostname, m.Hosts[1].Hostname, m.Hosts[2].Hostname})
	assert.Equal(t, "web.public.example.com", m.Hosts[2].FQDN)

	want := Interface{
		Name:          "eth0",
		Type:          "std",
		VSwitch:       "lan",
		VLAN:          "public",
		FirewallZone:  "PUBLIC",
		IPv4Address:   "192.168.1.20",
		IPv4PrefixLen: 24,
		IPv4Gateway:   "192.168.1.1",
		IPv6Address:   "fd00:1::20",
		IPv6PrefixLen: 64,
		IPv6Tempaddr:  true,
		AcceptRA:      true,
	}
	require.Len(t, m.Hosts[2].Interfaces, 1)
	if diff := cmp.Diff(want, m.Hosts[2].Interfaces[0]); diff != "" {
		t.Errorf("web interface mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, "dhcp", m.Hosts[0].Interfaces[len(m.Hosts[0].Interfaces)-1].IPv4Address)

	require.Len(t, m.IPSets, 1)
	assert.Equal(t, IPSet{
		Name:      "blocked",
		Family:    "inet",
		Type:      "ip",
		HashSize:  8,
		Addresses: []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4", "203.0.113.6"},
	}, m.IPSets[0])

	var backup *Rule
	for i := range m.Rules {
		if m.Rules[i].Comment == "offsite backups" {
			backup = &m.Rules[i]
		}
	}
	require.NotNil(t, backup)
	assert.Nil(t, backup.IPv6)
	require.NotNil(t, backup.IPv4)
	assert.Equal(t, Location{Zone: "public", Hostname: "web", Address: "192.168.1.20"}, backup.IPv4.Sources[0])
	assert.Equal(t, Location{Zone: "internet", Hostname: "backup", Address: "203.0.113.5"}, backup.IPv4.Destinations[0])
	assert.Equal(t, []Action{{Type: "service", Verb: "allow", Service: "ssh"}}, backup.Actions)
}

func TestModelServers(t *testing.T) {
	m := buildDir(t).Model()
	local := &Servers{IPv4: []string{"192.168.1.2"}, IPv6: []string{"fd00:1::2"}}

	public := m.VSwitches[0].VLANs[0]
	assert.Equal(t, local, public.DNSServers)
	assert.Nil(t, public.NTPServers, "no ntp host")

	tests := []struct {
		hostname string
		want     *Servers
	}{
		{"gw", local},
		{"ns", &Servers{IPv4: []string{"127.0.0.1"}, IPv6: []string{"::1"}}},
		{"web", local},
	}
	for i, tt := range tests {
		t.Run(tt.hostname, func(t *testing.T) {
			h := m.Hosts[i]
			require.Equal(t, tt.hostname, h.Hostname)
			assert.Equal(t, tt.want, h.Nameservers)
			assert.Nil(t, h.NTPServers)
		})
	}
}

func TestModelWriteFile(t *testing.T) {
	m := buildDir(t).Model()
	out := t.TempDir()

	path, err := m.WriteFile(out, config.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "home", "site.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded Model
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	if diff := cmp.Diff(*m, decoded, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("yaml model mismatch (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf, config.FormatJSON))
	var fromJSON Model
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fromJSON))
	assert.Equal(t, m.BuildID, fromJSON.BuildID)
	assert.Len(t, fromJSON.Rules, len(m.Rules))

	err = m.Encode(&buf, config.FormatHCL)
	assert.Equal(t, errors.KindSchema, errors.GetKind(err))
}
