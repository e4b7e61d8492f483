package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder counts send outcomes and published readings.
type PrometheusRecorder struct {
	sends    *prometheus.CounterVec
	readings prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewPrometheusRecorder creates the collectors and registers them with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	r := &PrometheusRecorder{
		sends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mqtt_north",
				Name:      "sends_total",
				Help:      "Batch send attempts, labelled by outcome.",
			},
			[]string{"outcome"},
		),
		readings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mqtt_north",
				Name:      "readings_sent_total",
				Help:      "Readings reported to the host as delivered.",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mqtt_north",
				Name:      "send_duration_seconds",
				Help:      "Duration of batch sends, including connect and disconnect.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		),
	}
	for _, c := range []prometheus.Collector{r.sends, r.readings, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric collector: %w", err)
		}
	}
	return r, nil
}

// ObserveSend records one send call.
func (r *PrometheusRecorder) ObserveSend(outcome string, delivered int, d time.Duration) {
	r.sends.WithLabelValues(outcome).Inc()
	r.readings.Add(float64(delivered))
	r.duration.WithLabelValues(outcome).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
