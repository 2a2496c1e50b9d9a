package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the portal's prometheus collectors
type Metrics struct {
	// Lifecycle event metrics
	EventsTotal *prometheus.CounterVec

	// Notification channel metrics
	NotificationsTotal *prometheus.CounterVec

	// Storage operation metrics
	StorageOperationsTotal *prometheus.CounterVec

	// Finalization pipeline metrics
	FinalizationsTotal *prometheus.CounterVec
}

var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// New creates (or returns the already-registered) metrics instance
func New() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "upload_events_total",
			Help: "Total number of lifecycle events processed",
		}, []string{"type", "status"}),

		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification channel operations",
		}, []string{"operation", "status"}),

		StorageOperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage backend operations",
		}, []string{"backend", "operation", "status"}),

		FinalizationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "finalizations_total",
			Help: "Total number of finalization pipeline runs",
		}, []string{"status"}),
	}

	registerOrGet(m.EventsTotal)
	registerOrGet(m.NotificationsTotal)
	registerOrGet(m.StorageOperationsTotal)
	registerOrGet(m.FinalizationsTotal)

	globalMetrics = m
	return m
}

// registerOrGet tries to register a collector, keeping the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}
