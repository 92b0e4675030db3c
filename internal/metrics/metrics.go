// Package metrics declares the Prometheus instrumentation for the room
// hub, grounded on the teacher's internal/v1/metrics package: namespace
// "watchparty", subsystem per feature area, gauges for current state,
// counters for cumulative events, histograms for latency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks live streaming connections (C4).
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "ws",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks rooms currently held by the registry (C2).
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks membership count per room (C2).
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of members in each room",
	}, []string{"room_id"})

	// MessagesRelayed counts routed frames by type and outcome (C5).
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "ws",
		Name:      "messages_total",
		Help:      "Total inbound frames processed by the router",
	}, []string{"type", "outcome"})

	// PolicyViolations counts frames silently dropped by the message
	// policy table (C5 / spec §7 "Policy violation").
	PolicyViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "ws",
		Name:      "policy_violations_total",
		Help:      "Total inbound frames dropped by policy",
	}, []string{"type", "reason"})

	// HeartbeatTerminations counts liveness-driven disconnects (C4).
	HeartbeatTerminations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "ws",
		Name:      "heartbeat_terminations_total",
		Help:      "Total connections force-closed by the liveness monitor",
	}, []string{"reason"})

	// RoomsDeleted counts lifecycle-scheduler deletions (C7).
	RoomsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "room",
		Name:      "deleted_total",
		Help:      "Total rooms removed by the lifecycle scheduler",
	}, []string{"reason"})

	// MirrorFailures counts best-effort cache errors (C3).
	MirrorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "mirror",
		Name:      "failures_total",
		Help:      "Total metadata-mirror operations that failed",
	}, []string{"op"})

	// CircuitBreakerState mirrors the mirror's circuit-breaker state
	// (0: closed, 1: open, 2: half-open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "watchparty",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker",
	}, []string{"service"})

	// MessageProcessingDuration tracks router latency per message type.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "watchparty",
		Subsystem: "ws",
		Name:      "message_processing_seconds",
		Help:      "Time spent routing a single inbound message",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"type"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchparty",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded a rate limit",
	}, []string{"scope"})
)
