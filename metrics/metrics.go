// Package metrics holds the Prometheus collectors shared by soupbin and
// moldudp64. Register adds them to a caller-supplied registry; the admin
// server registers them into its own registry and exports it alongside the
// admin JSON API via promhttp.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SoupBinConnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "soupbin",
		Name:      "connects_total",
		Help:      "SoupBinTCP connections accepted.",
	})

	SoupBinLoginRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "soupbin",
		Name:      "login_rejects_total",
		Help:      "SoupBinTCP login requests rejected, by reason.",
	}, []string{"reason"})

	SoupBinLogouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "soupbin",
		Name:      "logouts_total",
		Help:      "SoupBinTCP connections closed by client logout.",
	})

	SoupBinHeartbeatsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "soupbin",
		Name:      "heartbeats_sent_total",
		Help:      "ServerHeartbeat packets sent.",
	})

	SoupBinActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "marketlink",
		Subsystem: "soupbin",
		Name:      "active_sessions",
		Help:      "SoupBinTCP sessions currently registered with the sessions manager.",
	})

	MoldGapsDetected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "moldudp64",
		Name:      "sequence_gaps_detected_total",
		Help:      "MoldUDP64 sequence gaps detected by a receiver.",
	})

	MoldGapsFilled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "moldudp64",
		Name:      "sequence_gaps_filled_total",
		Help:      "MoldUDP64 sequence gaps filled by a buffered or rerequested packet.",
	})

	MoldRerequestsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "moldudp64",
		Name:      "rerequests_sent_total",
		Help:      "RequestPacket datagrams sent to fill a sequence gap.",
	})

	MoldHeartbeatsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketlink",
		Subsystem: "moldudp64",
		Name:      "heartbeats_received_total",
		Help:      "MoldUDP64 heartbeat (count==0) packets received.",
	})
)

// Register adds every collector in this package to reg. Call once at
// startup; a second call against the same registry panics, matching
// prometheus.MustRegister's contract.
func Register(reg *prometheus.Registry) {
	reg.MustRegister(
		SoupBinConnects,
		SoupBinLoginRejects,
		SoupBinLogouts,
		SoupBinHeartbeatsSent,
		SoupBinActiveSessions,
		MoldGapsDetected,
		MoldGapsFilled,
		MoldRerequestsSent,
		MoldHeartbeatsReceived,
	)
}
