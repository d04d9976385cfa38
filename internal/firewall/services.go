// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import "sort"

// ServicePort is one protocol and port set of a named service. Ports is
// empty for ICMP.
type ServicePort struct {
	Proto string
	Ports []string
}

// Services is the fixed vocabulary of named services.
var Services = map[string][]ServicePort{
	"ping":       {{Proto: "icmp"}},
	"traceroute": {{Proto: "icmp"}, {Proto: "udp", Ports: []string{"33434:33625"}}},
	"ssh":        {{Proto: "tcp", Ports: []string{"22"}}},
	"telnet":     {{Proto: "tcp", Ports: []string{"23"}}},
	"dns":        {{Proto: "tcp", Ports: []string{"53"}}, {Proto: "udp", Ports: []string{"53"}}},
	"dhcp":       {{Proto: "udp", Ports: []string{"67:68", "546:547"}}},
	"ntp":        {{Proto: "udp", Ports: []string{"123"}}},
	"samba":      {{Proto: "tcp", Ports: []string{"139", "445"}}, {Proto: "udp", Ports: []string{"137:138"}}},
	"web":        {{Proto: "tcp", Ports: []string{"80", "443"}}},
	"ftp":        {{Proto: "tcp", Ports: []string{"20:21"}}},
	"mail":       {{Proto: "tcp", Ports: []string{"25", "465", "587"}}},
	"pop3":       {{Proto: "tcp", Ports: []string{"110", "995"}}},
	"imap":       {{Proto: "tcp", Ports: []string{"143"}}},
	"imaps":      {{Proto: "tcp", Ports: []string{"993"}}},
}

// ServiceNames returns the named services, sorted.
func ServiceNames() []string {
	names := make([]string, 0, len(Services))
	for n := range Services {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Protocols allowed in proto/port actions.
var Protocols = []string{"tcp", "udp"}
