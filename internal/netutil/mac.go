// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package netutil

import (
	"net"
	"strings"
)

// CanonicalMAC parses a 48-bit hardware address in any form net.ParseMAC
// accepts and returns it lower-case and colon separated. ok is false for
// anything else, including EUI-64 and InfiniBand addresses.
func CanonicalMAC(s string) (mac string, ok bool) {
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return "", false
	}
	return strings.ToLower(hw.String()), true
}
