// Package metrics records operation outcomes as Prometheus metrics.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"drive-go/internal/drive"
)

// Metrics holds the drive collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal      *prometheus.CounterVec
	OperationDuration    *prometheus.HistogramVec
	NotificationsDropped prometheus.Counter
}

// New creates and registers the drive collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drive_operations_total",
				Help: "Total number of drive operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drive_operation_duration_seconds",
				Help:    "Drive operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		NotificationsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "drive_notifications_dropped_total",
				Help: "Events discarded because the notification queue was full",
			},
		),
	}

	m.registry.MustRegister(m.OperationsTotal, m.OperationDuration, m.NotificationsDropped)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOperation counts op under the outcome label derived from err.
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.OperationsTotal.WithLabelValues(op, drive.ErrorKind(err)).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// NotificationDropped counts one dropped event.
func (m *Metrics) NotificationDropped() {
	m.NotificationsDropped.Inc()
}

// WriteTextfile writes every metric in the text exposition format, for
// pickup by the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}

var _ drive.Metrics = (*Metrics)(nil)
