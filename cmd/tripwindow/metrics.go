package main

import (
	"strconv"
	"time"

	"tripwindow/internal/api"
	"tripwindow/internal/metrics"
	"tripwindow/internal/publisher"
	"tripwindow/internal/resolve"
	"tripwindow/internal/schedules"
	"tripwindow/internal/trips"
)

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}

func wrapResolverMetrics(c *metrics.Collector) resolve.Metrics {
	if c == nil {
		return nil
	}
	return &resolverMetrics{c: c}
}

type resolverMetrics struct{ c *metrics.Collector }

func (r *resolverMetrics) ResolveObserve(regime trips.Regime, d time.Duration) {
	r.c.ResolveDuration.WithLabelValues(string(regime)).Observe(d.Seconds())
}
func (r *resolverMetrics) DescriptorsAdd(source trips.Source, n int) {
	r.c.Descriptors.WithLabelValues(string(source)).Add(float64(n))
}
func (r *resolverMetrics) DegradedInc() { r.c.Degraded.Inc() }
func (r *resolverMetrics) SkippedInc()  { r.c.SkippedTrips.Inc() }

func wrapScheduleMetrics(c *metrics.Collector) schedules.Metrics {
	if c == nil {
		return nil
	}
	return &scheduleMetrics{c: c}
}

type scheduleMetrics struct{ c *metrics.Collector }

func (s *scheduleMetrics) SaveInc(result string)     { s.c.ScheduleSaves.WithLabelValues(result).Inc() }
func (s *scheduleMetrics) SnapshotInc(result string) { s.c.HistorySnapshots.WithLabelValues(result).Inc() }
func (s *scheduleMetrics) SnapshotObserve(d time.Duration) {
	s.c.SnapshotDuration.Observe(d.Seconds())
}

func wrapAPIMetrics(c *metrics.Collector) api.Metrics {
	if c == nil {
		return nil
	}
	return &apiMetrics{c: c}
}

type apiMetrics struct{ c *metrics.Collector }

func (a *apiMetrics) RequestInc(route, method string, code int) {
	a.c.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
}
