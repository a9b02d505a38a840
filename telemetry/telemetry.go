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

// Package telemetry exposes the engine's operational counters over
// Prometheus. State is handed off via Snapshot rather than by sharing the
// live SPT tables across goroutines.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// Snapshot is the cross-task view of engine state a reporter can publish
// without touching live, goroutine-owned tables.
type Snapshot struct {
	AdjacencySize    int
	NeighborhoodSize int
	InboundDepth     int
	OutboundDepth    int
}

// Registry holds the Prometheus collectors this node exposes.
type Registry struct {
	registry *prometheus.Registry

	beaconsSent       prometheus.Counter
	beaconsReceived   prometheus.Counter
	packetsForwarded  prometheus.Counter
	packetsDropped    *prometheus.CounterVec
	adjacencySize     prometheus.Gauge
	neighborhoodSize  prometheus.Gauge
	inboundDepth      prometheus.Gauge
	outboundDepth     prometheus.Gauge
}

// NewRegistry builds a fresh Registry with all collectors registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	reg := &Registry{
		registry: r,
		beaconsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hypercast_beacons_sent_total",
			Help: "Total SPT beacons emitted by this node.",
		}),
		beaconsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hypercast_beacons_received_total",
			Help: "Total SPT beacons accepted from peers.",
		}),
		packetsForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hypercast_overlay_packets_forwarded_total",
			Help: "Total overlay data packets forwarded along the tree.",
		}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hypercast_packets_dropped_total",
			Help: "Total packets dropped, by reason.",
		}, []string{"reason"}),
		adjacencySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hypercast_adjacency_size",
			Help: "Current number of directly-heard neighbors.",
		}),
		neighborhoodSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hypercast_neighborhood_size",
			Help: "Current number of tree neighborhood entries.",
		}),
		inboundDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hypercast_inbound_fifo_depth",
			Help: "Current occupancy of the inbound FIFO.",
		}),
		outboundDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hypercast_outbound_fifo_depth",
			Help: "Current occupancy of the outbound FIFO.",
		}),
	}

	r.MustRegister(
		reg.beaconsSent,
		reg.beaconsReceived,
		reg.packetsForwarded,
		reg.packetsDropped,
		reg.adjacencySize,
		reg.neighborhoodSize,
		reg.inboundDepth,
		reg.outboundDepth,
	)

	return reg
}

// BeaconSent increments the beacons-sent counter.
func (r *Registry) BeaconSent() { r.beaconsSent.Inc() }

// BeaconReceived increments the beacons-received counter.
func (r *Registry) BeaconReceived() { r.beaconsReceived.Inc() }

// PacketForwarded increments the forwarded-packets counter.
func (r *Registry) PacketForwarded() { r.packetsForwarded.Inc() }

// PacketDropped increments the dropped-packets counter for reason.
func (r *Registry) PacketDropped(reason string) { r.packetsDropped.WithLabelValues(reason).Inc() }

// Observe publishes a point-in-time Snapshot onto the gauges.
func (r *Registry) Observe(s Snapshot) {
	r.adjacencySize.Set(float64(s.AdjacencySize))
	r.neighborhoodSize.Set(float64(s.NeighborhoodSize))
	r.inboundDepth.Set(float64(s.InboundDepth))
	r.outboundDepth.Set(float64(s.OutboundDepth))
}

// Handler returns the HTTP handler a listener should mount to serve
// /metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
