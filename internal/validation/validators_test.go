// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package validation

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
)

func TestValidateHostname(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "router", false},
		{"digits and hyphen", "nas-01", false},
		{"single char", "a", false},
		{"dotted", "www.example", false},
		{"empty", "", true},
		{"leading hyphen", "-router", true},
		{"trailing hyphen", "router-", true},
		{"underscore", "my_host", true},
		{"fqdn", "router.example.com.", true},
		{"empty label", "a..b", true},
		{"too long label", "a123456789012345678901234567890123456789012345678901234567890123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHostname(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsSchema(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsSubDomain(t *testing.T) {
	assert.True(t, IsSubDomain("example.com", "lan.example.com"))
	assert.True(t, IsSubDomain("example.com", "a.b.example.com"))
	assert.False(t, IsSubDomain("example.com", "example.com"))
	assert.False(t, IsSubDomain("example.com", "example.org"))
	assert.False(t, IsSubDomain("example.com", "badexample.com"))
}

func TestValidateMAC(t *testing.T) {
	mac, err := ValidateMAC("AA:BB:CC:00:11:22")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:00:11:22", mac)

	mac, err = ValidateMAC("aa-bb-cc-00-11-22")
	require.NoError(t, err)
	assert.Equal(t, "aa:bb:cc:00:11:22", mac)

	for _, bad := range []string{"", "aa:bb:cc", "zz:bb:cc:00:11:22", "00:00:5e:00:53:00:00:01"} {
		_, err := ValidateMAC(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidatePortRange(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"22", "22", false},
		{"8000-8080", "8000:8080", false},
		{"8000:8080", "8000:8080", false},
		{"0", "", true},
		{"70000", "", true},
		{"90-80", "", true},
		{"http", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ValidatePortRange(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidatePortNumber(t *testing.T) {
	assert.NoError(t, ValidatePortNumber(1))
	assert.NoError(t, ValidatePortNumber(65535))
	assert.Error(t, ValidatePortNumber(0))
	assert.Error(t, ValidatePortNumber(65536))
}

func TestValidateInterfaceName(t *testing.T) {
	assert.NoError(t, ValidateInterfaceName("eth0.10"))
	assert.NoError(t, ValidateInterfaceName("wlan0"))
	assert.Error(t, ValidateInterfaceName(""))
	assert.Error(t, ValidateInterfaceName("averyveryverylongname"))
	assert.Error(t, ValidateInterfaceName("eth0;rm"))
}

func TestValidateAllowlist(t *testing.T) {
	assert.NoError(t, ValidateAllowlist("tcp", []string{"tcp", "udp"}))
	assert.Error(t, ValidateAllowlist("icmp", []string{"tcp", "udp"}))
}

func TestValidateDomain(t *testing.T) {
	assert.NoError(t, ValidateDomain(""))
	assert.NoError(t, ValidateDomain("lab.example.com"))
	assert.Error(t, ValidateDomain("lab..example.com"))
	assert.Error(t, ValidateDomain("example.com."))
}

func TestValidateIdentifier(t *testing.T) {
	assert.NoError(t, ValidateIdentifier("blocked_hosts-2"))
	assert.Error(t, ValidateIdentifier(""))
	assert.Error(t, ValidateIdentifier("two words"))
}

func TestValidateAddressIn(t *testing.T) {
	subnet := netip.MustParsePrefix("192.168.1.0/24")

	a, err := ValidateAddressIn("ipv4_address", "192.168.1.20", netutil.IPv4, subnet)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.168.1.20"), a)

	_, err = ValidateAddressIn("ipv4_address", "192.168.2.20", netutil.IPv4, subnet)
	require.Error(t, err)
	assert.Equal(t, errors.KindSemantic, errors.GetKind(err))
	assert.Equal(t, "ipv4_address", errors.Field(err))

	_, err = ValidateAddressIn("ipv4_address", "fd00::1", netutil.IPv4, subnet)
	require.Error(t, err)
	assert.Equal(t, errors.KindSchema, errors.GetKind(err))
}
