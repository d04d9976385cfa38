// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics counts what a site compile did. Counters live in a
// per-compile registry and can be written in the node-exporter textfile
// format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/yodeler/internal/errors"
)

// Registry holds the compile metrics.
type Registry struct {
	reg *prometheus.Registry

	HostsLoaded       prometheus.Counter
	FirewallRules     prometheus.Counter
	LocationsPruned   *prometheus.CounterVec
	PayloadsDropped   *prometheus.CounterVec
	AliasesRenumbered prometheus.Counter
	VLANs             prometheus.Gauge
}

// NewRegistry creates the compile metrics and registers them.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		HostsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yodeler_hosts_loaded_total",
			Help: "Total number of hosts loaded into the site",
		}),
		FirewallRules: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yodeler_firewall_rules_total",
			Help: "Total number of firewall rules left after resolution",
		}),
		LocationsPruned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yodeler_firewall_locations_pruned_total",
			Help: "Total number of rule locations dropped for lack of an address",
		}, []string{"family"}),
		PayloadsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yodeler_firewall_payloads_dropped_total",
			Help: "Total number of rule payloads dropped with no sources or destinations left",
		}, []string{"family"}),
		AliasesRenumbered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yodeler_aliases_renumbered_total",
			Help: "Total number of roles whose aliases were renumbered",
		}),
		VLANs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yodeler_vlans",
			Help: "Number of VLANs in the site",
		}),
	}

	r.reg.MustRegister(
		r.HostsLoaded,
		r.FirewallRules,
		r.LocationsPruned,
		r.PayloadsDropped,
		r.AliasesRenumbered,
		r.VLANs,
	)
	return r
}

// Gatherer exposes the registry, for tests and HTTP handlers.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes every metric to path. The file is replaced atomically.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return errors.Wrapf(err, errors.KindInternal, "failed to write metrics to %s", path)
	}
	return nil
}
