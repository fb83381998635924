// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the current number of session channels.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncparty",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of active session channels",
	})

	// ActiveRooms tracks the current number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "syncparty",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of live rooms",
	})

	// MessagesRelayed counts frames fanned out to room participants.
	MessagesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "syncparty",
		Subsystem: "session",
		Name:      "messages_relayed_total",
		Help:      "Total frames broadcast to rooms",
	}, []string{"type"})

	// BroadcastEvictions counts participants dropped because a send failed.
	BroadcastEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncparty",
		Subsystem: "session",
		Name:      "broadcast_evictions_total",
		Help:      "Total participants evicted after a failed broadcast send",
	})

	// InvitesIssued counts invite tokens minted over HTTP or the channel.
	InvitesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "syncparty",
		Subsystem: "invite",
		Name:      "issued_total",
		Help:      "Total invite tokens issued",
	})
)
