// Prometheus metrics for the fleet simulator
package monitoring

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_attempts_total",
			Help: "Transmission attempts by outcome",
		},
		[]string{"outcome"},
	)

	BytesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleet_bytes_sent_total",
			Help: "Payload bytes successfully delivered",
		},
	)

	DevicesActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_devices_active",
			Help: "Devices currently between start and stop",
		},
	)
)

var registerOnce sync.Once

// Register adds the fleet collectors to the default registry. Safe to
// call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(AttemptsTotal, BytesSentTotal, DevicesActive)
	})
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}
