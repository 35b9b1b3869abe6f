/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */
// Package metrics registers the router's Prometheus collectors: per
// forwarding-algorithm outcome counters, location-table/location-service
// gauges, duplicate-detection hits, and Limeric duty-cycle/CBR gauges.
// These are observational only — nothing in the core's semantics depends
// on them, mirroring the teacher's own mon package being a side-channel
// health reporter rather than a control-flow participant.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the router exposes, each already
// registered with its own prometheus.Registry (kept private rather than
// the global default so multiple Engines in one test process don't
// collide).
type Registry struct {
	reg *prometheus.Registry

	ForwardOutcomes   *prometheus.CounterVec
	DuplicateHits     prometheus.Counter
	LocationTableSize prometheus.Gauge
	NeighbourCount    prometheus.Gauge
	LSPending         prometheus.Gauge
	LSFailed          prometheus.Counter
	DutyCycle         prometheus.Gauge
	LocalCBR          prometheus.Gauge
	TxInterval        prometheus.Gauge
	BufferDrops       *prometheus.CounterVec
}

// New constructs and registers every collector.
func New() *Registry {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		ForwardOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnrouter",
			Subsystem: "forward",
			Name:      "outcomes_total",
			Help:      "Forwarding algorithm invocations by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		DuplicateHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gnrouter",
			Subsystem: "loctable",
			Name:      "duplicate_hits_total",
			Help:      "Packets identified as duplicates by the location table.",
		}),
		LocationTableSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnrouter",
			Subsystem: "loctable",
			Name:      "entries",
			Help:      "Current number of location table entries.",
		}),
		NeighbourCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnrouter",
			Subsystem: "loctable",
			Name:      "neighbours",
			Help:      "Current number of one-hop neighbours.",
		}),
		LSPending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnrouter",
			Subsystem: "locservice",
			Name:      "pending",
			Help:      "Pending Location Service requests.",
		}),
		LSFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "gnrouter",
			Subsystem: "locservice",
			Name:      "failed_total",
			Help:      "Location Service requests that exhausted their retransmit budget.",
		}),
		DutyCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnrouter",
			Subsystem: "limeric",
			Name:      "duty_cycle",
			Help:      "Current Limeric duty cycle (delta).",
		}),
		LocalCBR: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnrouter",
			Subsystem: "limeric",
			Name:      "local_cbr",
			Help:      "Most recently sampled channel busy ratio.",
		}),
		TxInterval: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "gnrouter",
			Subsystem: "limeric",
			Name:      "tx_interval_seconds",
			Help:      "Current computed transmission interval.",
		}),
		BufferDrops: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gnrouter",
			Subsystem: "buffer",
			Name:      "drops_total",
			Help:      "Packets dropped from a buffer by reason.",
		}, []string{"buffer", "reason"}),
	}
}

// Handler returns the http.Handler serving this registry's metrics in the
// Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
