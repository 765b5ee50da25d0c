// Package api exposes trip resolution and the record listings that depend on
// it over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"tripwindow/internal/resolve"
	"tripwindow/internal/schedules"
	"tripwindow/internal/trips"
)

// RecordLister pages through stored passenger and unmatched records.
type RecordLister interface {
	ListPassengers(ctx context.Context, f trips.RecordFilter) ([]trips.Passenger, int, error)
	ListUnmatched(ctx context.Context, f trips.RecordFilter) ([]trips.Unmatched, int, error)
	AnalyzeTrips(ctx context.Context, f trips.RecordFilter) (*trips.UsageReport, error)
}

type Metrics interface {
	RequestInc(route, method string, code int)
}

// API exposes HTTP handlers.
type API struct {
	resolver  *resolve.Resolver
	matcher   *resolve.Matcher
	schedules *schedules.Service
	records   RecordLister

	ping    func(ctx context.Context) error
	timeout time.Duration
	metrics Metrics
	logger  zerolog.Logger
}

type Option func(*API)

// WithPing sets the dependency check behind /healthz.
func WithPing(ping func(ctx context.Context) error) Option { return func(a *API) { a.ping = ping } }
func WithTimeout(d time.Duration) Option                    { return func(a *API) { a.timeout = d } }
func WithMetrics(m Metrics) Option                          { return func(a *API) { a.metrics = m } }

func New(resolver *resolve.Resolver, matcher *resolve.Matcher, svc *schedules.Service, records RecordLister, logger zerolog.Logger, opts ...Option) *API {
	a := &API{
		resolver:  resolver,
		matcher:   matcher,
		schedules: svc,
		records:   records,
		logger:    logger.With().Str("component", "api").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Router builds the chi router with the standard middleware stack.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.instrument)
	r.Use(middleware.Recoverer)
	if a.timeout > 0 {
		r.Use(middleware.Timeout(a.timeout))
	}

	r.Get("/healthz", a.handleHealth)
	a.Routes(r)
	return r
}

func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/trips", func(r chi.Router) {
			r.Get("/", a.handleTrips)
			r.Get("/resolve", a.handleResolve)
			r.Get("/analyze", a.handleAnalyze)
		})
		r.Get("/passengers", a.handlePassengers)
		r.Get("/passengers/date-range", a.handlePassengerRange)
		r.Get("/unmatched", a.handleUnmatched)
		r.Get("/scheduled-trips", a.handleScheduledTrips)
		r.Route("/bus-schedule", func(r chi.Router) {
			r.Post("/", a.handleSaveSchedule)
			r.Get("/{busID}", a.handleGetSchedule)
		})
	})
}

// instrument logs each request and counts it by route pattern.
func (a *API) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		if a.metrics != nil {
			a.metrics.RequestInc(route, r.Method, status)
		}
		ev := a.logger.Debug()
		if status >= http.StatusInternalServerError {
			ev = a.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.ping != nil {
		if err := a.ping(r.Context()); err != nil {
			a.logger.Warn().Err(err).Msg("health check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

// internalError logs err and answers 500 without leaking it.
func (a *API) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	a.logger.Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}
