// Package metrics exposes Prometheus instrumentation for API calls and
// crypto pipeline throughput.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// defaultRegistry is the default Prometheus registry
	defaultRegistry = prometheus.DefaultRegisterer
)

// Metrics holds all application metrics.
type Metrics struct {
	apiOperationsTotal   *prometheus.CounterVec
	apiOperationDuration *prometheus.HistogramVec
	apiOperationErrors   *prometheus.CounterVec
	apiRetriesTotal      *prometheus.CounterVec
	transferBytes        *prometheus.CounterVec
	cryptoOperations     *prometheus.CounterVec
	cryptoBytes          *prometheus.CounterVec
	cryptoErrors         *prometheus.CounterVec
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	return newMetricsWithRegistry(defaultRegistry)
}

// newMetricsWithRegistry creates a new metrics instance with a custom registry (for testing).
func newMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		apiOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_operations_total",
				Help: "Total number of backup API operations",
			},
			[]string{"operation", "status"},
		),
		apiOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_operation_duration_seconds",
				Help:    "Backup API operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		apiOperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_operation_errors_total",
				Help: "Total number of backup API operation errors",
			},
			[]string{"operation", "error_type"},
		),
		apiRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_retries_total",
				Help: "Total number of retried API requests",
			},
			[]string{"operation"},
		),
		transferBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transfer_bytes_total",
				Help: "Total bytes uploaded and downloaded",
			},
			[]string{"direction"}, // "upload" or "download"
		),
		cryptoOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_operations_total",
				Help: "Total number of encryption/decryption operations",
			},
			[]string{"operation"}, // "encrypt" or "decrypt"
		),
		cryptoBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_bytes_total",
				Help: "Total bytes encrypted/decrypted",
			},
			[]string{"operation"},
		),
		cryptoErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crypto_errors_total",
				Help: "Total number of encryption/decryption errors",
			},
			[]string{"operation", "error_type"},
		),
	}
}

// RecordAPIOperation records a completed API call.
func (m *Metrics) RecordAPIOperation(operation, status string, duration time.Duration) {
	m.apiOperationsTotal.WithLabelValues(operation, status).Inc()
	m.apiOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIError records a failed API call.
func (m *Metrics) RecordAPIError(operation, errorType string) {
	m.apiOperationErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordRetry records a retried request.
func (m *Metrics) RecordRetry(operation string) {
	m.apiRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordTransfer records bytes moved over the wire.
func (m *Metrics) RecordTransfer(direction string, bytes int64) {
	m.transferBytes.WithLabelValues(direction).Add(float64(bytes))
}

// RecordCryptoOperation records an encryption or decryption pass.
func (m *Metrics) RecordCryptoOperation(operation string, bytes int64) {
	m.cryptoOperations.WithLabelValues(operation).Inc()
	m.cryptoBytes.WithLabelValues(operation).Add(float64(bytes))
}

// RecordCryptoError records a failed encryption or decryption pass.
func (m *Metrics) RecordCryptoError(operation, errorType string) {
	m.cryptoErrors.WithLabelValues(operation, errorType).Inc()
}
