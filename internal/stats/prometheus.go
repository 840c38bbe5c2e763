package stats

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RelayTotal counts relay attempts by outcome: "persisted", "invalid" or "storage_error".
	RelayTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sarthi_relay_total",
		Help: "Total number of chat messages submitted for relay",
	}, []string{"outcome"})

	// PersistLatency records how long the record store took to persist a message.
	PersistLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sarthi_persist_latency_seconds",
		Help:    "Message persistence latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	})

	// DeliveriesTotal counts per-subscriber fan-out attempts by result: "queued" or "dropped".
	DeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sarthi_deliveries_total",
		Help: "Total number of per-connection message deliveries",
	}, []string{"result"})

	// Connections tracks the current number of open websocket connections.
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sarthi_ws_connections",
		Help: "Current number of open websocket connections",
	})
)

func init() {
	prometheus.MustRegister(
		RelayTotal,
		PersistLatency,
		DeliveriesTotal,
		Connections,
	)
}

// Handler returns the prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
