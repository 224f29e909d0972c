// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package metrics exposes the Prometheus counters and gauges that
// observe the overlay core: filter verdicts, multicast announcements,
// config applies, and reassembly resets.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every metric the overlay core updates. A nil
// *Registry is safe to call methods on — all methods no-op — so
// callers that run without a configured Prometheus endpoint pay no
// per-frame cost beyond a nil check.
type Registry struct {
	framesOutbound *prometheus.CounterVec
	framesInbound  *prometheus.CounterVec
	teeEmitted     *prometheus.CounterVec
	redirects      *prometheus.CounterVec
	configApplies  prometheus.Counter
	configRejects  prometheus.Counter
	reassemblyReset prometheus.Counter
	multicastAnnounces prometheus.Counter
	bridgeRouteEvictions prometheus.Counter
	memberships    prometheus.Gauge
}

// NewRegistry creates a Registry and registers every metric on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		framesOutbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "filter",
			Name:      "outbound_total",
			Help:      "Outbound frames by verdict.",
		}, []string{"verdict"}),
		framesInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "filter",
			Name:      "inbound_total",
			Help:      "Inbound frames by verdict.",
		}, []string{"verdict"}),
		teeEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "filter",
			Name:      "tee_total",
			Help:      "TEE side-effect packets emitted, by direction.",
		}, []string{"direction"}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "filter",
			Name:      "redirect_total",
			Help:      "REDIRECT side-effect packets emitted, by direction.",
		}, []string{"direction"}),
		configApplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "config",
			Name:      "applies_total",
			Help:      "Successful NetworkConfig applies.",
		}),
		configRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "config",
			Name:      "rejects_total",
			Help:      "NetworkConfig applies rejected on networkId/issuedTo mismatch.",
		}),
		reassemblyReset: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "config",
			Name:      "reassembly_resets_total",
			Help:      "Chunk reassembly buffers discarded on overflow or corruption, or whose reassembled config failed to decode.",
		}),
		multicastAnnounces: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "multicast",
			Name:      "announces_total",
			Help:      "Multicast group announcement rounds sent.",
		}),
		bridgeRouteEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "overlay",
			Subsystem: "bridge",
			Name:      "route_evictions_total",
			Help:      "Bridge route table eviction passes triggered by MaxBridgeRoutes overflow.",
		}),
		memberships: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "overlay",
			Subsystem: "membership",
			Name:      "entries",
			Help:      "Membership table size of the network whose Clean ran last; not summed across networks.",
		}),
	}
	reg.MustRegister(r.framesOutbound, r.framesInbound, r.teeEmitted, r.redirects,
		r.configApplies, r.configRejects, r.reassemblyReset, r.multicastAnnounces,
		r.bridgeRouteEvictions, r.memberships)
	return r
}

func (r *Registry) ObserveOutbound(verdict string) {
	if r == nil {
		return
	}
	r.framesOutbound.WithLabelValues(verdict).Inc()
}

func (r *Registry) ObserveInbound(verdict string) {
	if r == nil {
		return
	}
	r.framesInbound.WithLabelValues(verdict).Inc()
}

func (r *Registry) ObserveTee(direction string) {
	if r == nil {
		return
	}
	r.teeEmitted.WithLabelValues(direction).Inc()
}

func (r *Registry) ObserveRedirect(direction string) {
	if r == nil {
		return
	}
	r.redirects.WithLabelValues(direction).Inc()
}

func (r *Registry) ObserveConfigApply(applied bool) {
	if r == nil {
		return
	}
	if applied {
		r.configApplies.Inc()
	} else {
		r.configRejects.Inc()
	}
}

func (r *Registry) ObserveReassemblyReset() {
	if r == nil {
		return
	}
	r.reassemblyReset.Inc()
}

func (r *Registry) ObserveMulticastAnnounce() {
	if r == nil {
		return
	}
	r.multicastAnnounces.Inc()
}

func (r *Registry) ObserveBridgeRouteEviction() {
	if r == nil {
		return
	}
	r.bridgeRouteEvictions.Inc()
}

func (r *Registry) SetMembershipCount(n int) {
	if r == nil {
		return
	}
	r.memberships.Set(float64(n))
}
