package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auditcache/internal/ports"
)

const Namespace = "auditcache"

// Collector holds the process metrics on a private registry so tests can
// build as many collectors as they like.
type Collector struct {
	registry *prometheus.Registry

	// Capture outcomes by result: recorded, ignored_role, empty_content,
	// duplicate, storage_error, invalid.
	Captures *prometheus.CounterVec
	// Moderation notifications by result: recorded, channel_not_watched,
	// normalization_error, duplicate, storage_error.
	Moderation *prometheus.CounterVec
	// Relay deliveries by status: ok, failed.
	RelayDeliveries *prometheus.CounterVec
	// Restore lookups by result: found, not_found, invalid_reference, error.
	Restores *prometheus.CounterVec

	FlushedEntries prometheus.Counter
	SweptRecords   prometheus.Counter
	PendingEntries prometheus.Gauge
	SweepDuration  prometheus.Histogram
}

var _ ports.Metrics = (*Collector)(nil)

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "captures_total",
			Help:      "Deletion events handled by the capture path, by result",
		}, []string{"result"}),
		Moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "moderation_notifications_total",
			Help:      "Moderation notifications handled, by result",
		}, []string{"result"}),
		RelayDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "relay_deliveries_total",
			Help:      "Relay webhook deliveries, by status",
		}, []string{"status"}),
		Restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "restores_total",
			Help:      "Restore lookups, by result",
		}, []string{"result"}),
		FlushedEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "flushed_entries_total",
			Help:      "Buffer entries delivered by flushes",
		}),
		SweptRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "swept_records_total",
			Help:      "Audit records removed by the eviction sweeper",
		}),
		PendingEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pending_entries",
			Help:      "Buffer entries waiting for the next flush",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of eviction sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		c.Captures,
		c.Moderation,
		c.RelayDeliveries,
		c.Restores,
		c.FlushedEntries,
		c.SweptRecords,
		c.PendingEntries,
		c.SweepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) CaptureResult(result string) {
	c.Captures.WithLabelValues(result).Inc()
}

func (c *Collector) ModerationResult(result string) {
	c.Moderation.WithLabelValues(result).Inc()
}

func (c *Collector) RelayResult(status string) {
	c.RelayDeliveries.WithLabelValues(status).Inc()
}

func (c *Collector) RestoreResult(result string) {
	c.Restores.WithLabelValues(result).Inc()
}

func (c *Collector) Flushed(entries int) {
	c.FlushedEntries.Add(float64(entries))
}

func (c *Collector) Pending(entries int) {
	c.PendingEntries.Set(float64(entries))
}

func (c *Collector) Swept(records int64, took time.Duration) {
	c.SweptRecords.Add(float64(records))
	c.SweepDuration.Observe(took.Seconds())
}
