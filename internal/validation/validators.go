// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package validation

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"grimm.is/yodeler/internal/errors"
	"grimm.is/yodeler/internal/netutil"
)

var (
	// Valid interface name: alphanumeric, dash, underscore, dot (for VLANs), max 15 chars
	interfaceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,15}$`)

	// Valid identifier: alphanumeric, dash, underscore
	identifierRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// One DNS label: letters, digits and inner hyphens
	labelRegex = regexp.MustCompile(`^([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9])$`)

	portRangeRegex = regexp.MustCompile(`^([0-9]+)(?:[:-]([0-9]+))?$`)
)

// ValidateInterfaceName validates a network interface name
func ValidateInterfaceName(name string) error {
	if name == "" {
		return errors.New(errors.KindSchema, "interface name cannot be empty")
	}

	if len(name) > 15 {
		return errors.Errorf(errors.KindSchema, "interface name too long (max 15 characters): %s", name)
	}

	if !interfaceNameRegex.MatchString(name) {
		return errors.Errorf(errors.KindSchema, "invalid interface name: %s (must be alphanumeric with -_.)", name)
	}

	return nil
}

// ValidateIdentifier validates a general identifier (vswitch names, ipset names, etc.)
func ValidateIdentifier(id string) error {
	if id == "" {
		return errors.New(errors.KindSchema, "identifier cannot be empty")
	}

	if len(id) > 255 {
		return errors.New(errors.KindSchema, "identifier too long (max 255 characters)")
	}

	if !identifierRegex.MatchString(id) {
		return errors.Errorf(errors.KindSchema, "invalid identifier: %s (must be alphanumeric with -_)", id)
	}

	return nil
}

// ValidateHostname validates a hostname or alias. Dotted names are accepted
// as long as every label is valid.
func ValidateHostname(name string) error {
	if name == "" {
		return errors.New(errors.KindSchema, "hostname cannot be empty")
	}
	if strings.HasSuffix(name, ".") {
		return errors.Errorf(errors.KindSchema, "invalid hostname: %s (must not be fully qualified)", name)
	}
	if _, ok := dns.IsDomainName(name); !ok {
		return errors.Errorf(errors.KindSchema, "invalid hostname: %s", name)
	}
	for _, label := range strings.Split(name, ".") {
		if len(label) > 63 || !labelRegex.MatchString(label) {
			return errors.Errorf(errors.KindSchema, "invalid hostname: %s (bad label %q)", name, label)
		}
	}
	return nil
}

// ValidateDomain validates a DNS domain. The empty string is accepted and means no domain.
func ValidateDomain(domain string) error {
	if domain == "" {
		return nil
	}
	if err := ValidateHostname(domain); err != nil {
		return errors.Errorf(errors.KindSchema, "invalid domain: %s", domain)
	}
	return nil
}

// IsSubDomain reports whether child is strictly below parent.
func IsSubDomain(parent, child string) bool {
	p := dns.CanonicalName(parent)
	c := dns.CanonicalName(child)
	return p != c && dns.IsSubDomain(p, c)
}

// ValidateMAC validates a MAC address and returns it in canonical lower-case colon form.
func ValidateMAC(mac string) (string, error) {
	if mac == "" {
		return "", errors.New(errors.KindSchema, "mac address cannot be empty")
	}
	canonical, ok := netutil.CanonicalMAC(mac)
	if !ok {
		return "", errors.Errorf(errors.KindSchema, "invalid mac address: %s", mac)
	}
	return canonical, nil
}

// ValidatePortNumber validates a port number
func ValidatePortNumber(port int) error {
	if port < 1 || port > 65535 {
		return errors.Errorf(errors.KindSchema, "invalid port number: %d (must be 1-65535)", port)
	}
	return nil
}

// ValidatePortRange validates a single port or a range written as "a-b" or "a:b"
// and returns it normalized to "a:b".
func ValidatePortRange(s string) (string, error) {
	m := portRangeRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", errors.Errorf(errors.KindSchema, "invalid port range: %q", s)
	}

	lo, _ := strconv.Atoi(m[1])
	if err := ValidatePortNumber(lo); err != nil {
		return "", err
	}
	if m[2] == "" {
		return m[1], nil
	}

	hi, _ := strconv.Atoi(m[2])
	if err := ValidatePortNumber(hi); err != nil {
		return "", err
	}
	if lo > hi {
		return "", errors.Errorf(errors.KindSchema, "invalid port range: %q (start after end)", s)
	}
	return m[1] + ":" + m[2], nil
}

// ValidateAllowlist validates that a value is in an allowlist
func ValidateAllowlist(value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.Errorf(errors.KindSchema, "value not in allowlist: %s (must be one of: %s)", value, strings.Join(allowed, ", "))
}

// ValidateAddressIn parses s as an address of the given family and requires it
// to lie inside subnet. A malformed address is a schema error, an address
// outside the subnet a semantic one.
func ValidateAddressIn(field, s string, family netutil.Family, subnet netip.Prefix) (netip.Addr, error) {
	a, err := netutil.ParseAddr(s, family)
	if err != nil {
		return netip.Addr{}, errors.Schema(field, s, "%v", err)
	}
	if !subnet.Contains(a) {
		return netip.Addr{}, errors.Semantic(errors.KindSemantic, field, "%s address %s is not in subnet %s", family, a, subnet)
	}
	return a, nil
}
