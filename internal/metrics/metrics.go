package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tripwindow/internal/resolve"
)

type Collector struct {
	reg *prometheus.Registry

	ResolveDuration *prometheus.HistogramVec // regime label: SCHEDULED|HISTORICAL
	Descriptors     *prometheus.CounterVec   // source label: scheduled|history|derived
	Degraded        prometheus.Counter
	SkippedTrips    prometheus.Counter

	ScheduleSaves    *prometheus.CounterVec // result label: ok|invalid|error
	HistorySnapshots *prometheus.CounterVec // result label: inserted|existing|error
	SnapshotDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	HTTPRequests *prometheus.CounterVec // route, method, code

	ScheduledWindow  prometheus.Gauge // seconds
	SpanWindow       prometheus.Gauge // seconds
	DerivedPadding   prometheus.Gauge // seconds
	BucketHours      prometheus.Gauge
	SnapshotInterval prometheus.Gauge // seconds
}

func NewCollector(policy resolve.Policy, snapshotInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ResolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripwindow_resolve_duration_seconds",
			Help:    "Duration of trip resolutions by regime.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}, []string{"regime"}),
		Descriptors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripwindow_trip_descriptors_total",
			Help: "Trip descriptors produced, by source.",
		}, []string{"source"}),
		Degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripwindow_degraded_resolutions_total",
			Help: "Past-date references approximated with the live timetable.",
		}),
		SkippedTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripwindow_trip_definitions_skipped_total",
			Help: "Timetable entries skipped for malformed or missing times.",
		}),
		ScheduleSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripwindow_schedule_saves_total",
			Help: "Schedule save requests by result.",
		}, []string{"result"}),
		HistorySnapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripwindow_history_snapshots_total",
			Help: "History snapshot attempts by result.",
		}, []string{"result"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripwindow_snapshot_duration_seconds",
			Help:    "Duration of one history snapshot pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripwindow_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripwindow_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwindow_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripwindow_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripwindow_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		ScheduledWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwindow_scheduled_window_seconds",
			Help: "Half-width of a scheduled trip window in seconds.",
		}),
		SpanWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwindow_span_window_seconds",
			Help: "Padding applied to legacy start/end spans in seconds.",
		}),
		DerivedPadding: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwindow_derived_padding_seconds",
			Help: "Padding applied to clustered trips in seconds.",
		}),
		BucketHours: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwindow_cluster_bucket_hours",
			Help: "Width of a clustering bucket in hours.",
		}),
		SnapshotInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripwindow_snapshot_interval_seconds",
			Help: "History snapshot interval in seconds.",
		}),
	}

	// Register
	reg.MustRegister(
		c.ResolveDuration, c.Descriptors, c.Degraded, c.SkippedTrips,
		c.ScheduleSaves, c.HistorySnapshots, c.SnapshotDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.HTTPRequests,
		c.ScheduledWindow, c.SpanWindow, c.DerivedPadding, c.BucketHours, c.SnapshotInterval,
	)

	// Set static gauges
	c.ScheduledWindow.Set(policy.ScheduledWindow.Seconds())
	c.SpanWindow.Set(policy.SpanWindow.Seconds())
	c.DerivedPadding.Set(policy.DerivedPadding.Seconds())
	c.BucketHours.Set(float64(policy.BucketHours))
	c.SnapshotInterval.Set(snapshotInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger zerolog.Logger) *http.Server {
	logger = logger.With().Str("component", "metrics").Logger()
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	logger.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
