package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	registerOnce sync.Once

	packetsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thermctl",
			Subsystem: "link",
			Name:      "packets_sent_total",
			Help:      "Packets handed to the link for transmission.",
		},
		[]string{"node"},
	)
	packetsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thermctl",
			Subsystem: "link",
			Name:      "packets_received_total",
			Help:      "Valid packets accepted by the receive handler.",
		},
		[]string{"node"},
	)
	packetsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thermctl",
			Subsystem: "link",
			Name:      "packets_rejected_total",
			Help:      "Inbound datagrams dropped for malformed length.",
		},
		[]string{"node"},
	)
	sendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thermctl",
			Subsystem: "link",
			Name:      "send_errors_total",
			Help:      "Transmit failures; never retried.",
		},
		[]string{"node"},
	)
	sandboxRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "thermctl",
			Subsystem: "sandbox",
			Name:      "runs_total",
			Help:      "Control program runs by outcome.",
		},
		[]string{"node", "outcome"},
	)
	processVariable = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "thermctl",
			Subsystem: "process",
			Name:      "variable",
			Help:      "Last known process variable.",
		},
		[]string{"node"},
	)
	actuatorCommand = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "thermctl",
			Subsystem: "process",
			Name:      "actuator_command",
			Help:      "Last commanded actuator level in [0,1].",
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			packetsSent, packetsReceived, packetsRejected, sendErrors,
			sandboxRuns, processVariable, actuatorCommand,
		)
	})
}

func RecordPacketSent(node string) {
	RegisterMetrics()
	packetsSent.WithLabelValues(node).Inc()
}

func RecordPacketReceived(node string) {
	RegisterMetrics()
	packetsReceived.WithLabelValues(node).Inc()
}

func RecordPacketRejected(node string) {
	RegisterMetrics()
	packetsRejected.WithLabelValues(node).Inc()
}

func RecordSendError(node string) {
	RegisterMetrics()
	sendErrors.WithLabelValues(node).Inc()
}

func RecordSandboxRun(node, outcome string) {
	RegisterMetrics()
	sandboxRuns.WithLabelValues(node, outcome).Inc()
}

func SetProcessVariable(node string, v float64) {
	RegisterMetrics()
	processVariable.WithLabelValues(node).Set(v)
}

func SetActuatorCommand(node string, v float64) {
	RegisterMetrics()
	actuatorCommand.WithLabelValues(node).Set(v)
}

// ServeMetrics exposes the prometheus registry on addr. Best effort: a
// listener failure is logged, not fatal to the node.
func ServeMetrics(addr string, logger zerolog.Logger) {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}
