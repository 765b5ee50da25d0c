// Package resolve decides which trips a bus ran on a day and which events
// belong to each of them. Every read path that needs trip attribution goes
// through a Resolver and a Matcher.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"tripwindow/internal/trips"
)

// Metrics receives resolver observations. A nil Metrics disables them.
type Metrics interface {
	ResolveObserve(regime trips.Regime, d time.Duration)
	DescriptorsAdd(source trips.Source, n int)
	DegradedInc()
	SkippedInc()
}

// Resolver is the single source of truth for what trips existed on a bus on
// a date. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	schedules ScheduleProvider
	history   HistoryProvider
	events    EventProvider

	policy  Policy
	loc     *time.Location
	now     func() time.Time
	logger  zerolog.Logger
	metrics Metrics
}

type Option func(*Resolver)

func WithPolicy(p Policy) Option              { return func(r *Resolver) { r.policy = p } }
func WithLocation(loc *time.Location) Option  { return func(r *Resolver) { r.loc = loc } }
func WithClock(now func() time.Time) Option   { return func(r *Resolver) { r.now = now } }
func WithLogger(logger zerolog.Logger) Option { return func(r *Resolver) { r.logger = logger } }
func WithMetrics(m Metrics) Option            { return func(r *Resolver) { r.metrics = m } }

func New(schedules ScheduleProvider, history HistoryProvider, events EventProvider, opts ...Option) *Resolver {
	r := &Resolver{
		schedules: schedules,
		history:   history,
		events:    events,
		policy:    DefaultPolicy(),
		loc:       time.UTC,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With().Str("component", "resolver").Logger()
	return r
}

// Location returns the fixed local zone the resolver works in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Now returns the current instant as seen by the resolver.
func (r *Resolver) Now() time.Time { return r.now() }

// Policy returns the window sizing rules in effect.
func (r *Resolver) Policy() Policy { return r.policy }

// Result is an ordered resolution for one date.
type Result struct {
	Date   trips.Date         `json:"date" yaml:"date"`
	Regime trips.Regime       `json:"regime" yaml:"regime"`
	Trips  []trips.Descriptor `json:"trips" yaml:"trips"`
}

// Resolve lists the trips of busID ("" for every bus) on date, ordered by
// departure.
func (r *Resolver) Resolve(ctx context.Context, busID string, date trips.Date) (*Result, error) {
	started := time.Now()
	regime := trips.Classify(date, r.now(), r.loc)

	var (
		out []trips.Descriptor
		err error
	)
	if regime == trips.RegimeHistorical {
		out, err = r.historical(ctx, busID, date)
	} else {
		out, err = r.scheduled(ctx, busID, date)
	}
	if err != nil {
		return nil, err
	}
	sortDescriptors(out)
	r.observe(regime, started, out)
	r.logger.Debug().
		Str("bus_id", busID).
		Str("date", date.String()).
		Str("regime", string(regime)).
		Int("trips", len(out)).
		Msg("resolved trips")
	return &Result{Date: date, Regime: regime, Trips: out}, nil
}

// ResolveRef resolves one scheduled reference. It returns nil when no source
// knows the trip; callers then filter by the reference as a literal.
func (r *Resolver) ResolveRef(ctx context.Context, ref trips.Scheduled) (*trips.Descriptor, error) {
	started := time.Now()
	regime := trips.Classify(ref.Date, r.now(), r.loc)

	var (
		d   *trips.Descriptor
		err error
	)
	if regime == trips.RegimeHistorical {
		d, err = r.historicalRef(ctx, ref)
	} else {
		d, err = r.liveRef(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if d != nil {
		r.observe(regime, started, []trips.Descriptor{*d})
	}
	return d, nil
}

func (r *Resolver) scheduled(ctx context.Context, busID string, date trips.Date) ([]trips.Descriptor, error) {
	var schedules []trips.Schedule
	if busID != "" {
		s, err := r.schedules.FindSchedule(ctx, busID)
		if err != nil {
			return nil, fmt.Errorf("find schedule %s: %w", busID, err)
		}
		if s != nil {
			schedules = append(schedules, *s)
		}
	} else {
		list, err := r.schedules.ListSchedules(ctx)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		schedules = list
	}

	var out []trips.Descriptor
	for _, s := range schedules {
		out = append(out, r.fromSchedule(s, date)...)
	}
	return out, nil
}

func (r *Resolver) historical(ctx context.Context, busID string, date trips.Date) ([]trips.Descriptor, error) {
	histories := make(map[string]trips.ScheduleHistory)
	var buses []string

	if busID != "" {
		h, err := r.history.FindHistory(ctx, busID, date)
		if err != nil {
			return nil, fmt.Errorf("find history %s %s: %w", busID, date, err)
		}
		if h != nil {
			histories[busID] = *h
		}
		buses = []string{busID}
	} else {
		list, err := r.history.ListHistory(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("list history %s: %w", date, err)
		}
		seen := make(map[string]bool)
		for _, h := range list {
			histories[h.BusID] = h
			seen[h.BusID] = true
			buses = append(buses, h.BusID)
		}
		start, end := date.Bounds(r.loc)
		active, err := r.events.BusesInWindow(ctx, start, end)
		if err != nil {
			return nil, fmt.Errorf("list buses with events on %s: %w", date, err)
		}
		for _, b := range active {
			if !seen[b] {
				seen[b] = true
				buses = append(buses, b)
			}
		}
		sort.Strings(buses)
	}

	var out []trips.Descriptor
	for _, b := range buses {
		// A history row is authoritative even when none of its trips is listed.
		if h, ok := histories[b]; ok {
			out = append(out, r.fromTrips(b, h.RouteName, h.Trips, date, trips.SourceHistory)...)
			continue
		}
		ds, err := r.cluster(ctx, b, date)
		if err != nil {
			return nil, err
		}
		out = append(out, ds...)
	}
	return out, nil
}

func (r *Resolver) liveRef(ctx context.Context, ref trips.Scheduled) (*trips.Descriptor, error) {
	s, err := r.schedules.FindSchedule(ctx, ref.BusID)
	if err != nil {
		return nil, fmt.Errorf("find schedule %s: %w", ref.BusID, err)
	}
	if s == nil {
		return nil, nil
	}
	if len(s.Trips) > 0 {
		if ref.Index >= len(s.Trips) {
			return nil, nil
		}
		d, ok := r.tripDescriptor(s.BusID, s.RouteName, ref.Index, s.Trips[ref.Index], ref.Date, trips.SourceScheduled)
		if !ok {
			return nil, nil
		}
		return &d, nil
	}
	if s.Span != nil && ref.Index == 0 {
		d, ok := r.spanDescriptor(*s, ref.Date)
		if !ok {
			return nil, nil
		}
		return &d, nil
	}
	return nil, nil
}

func (r *Resolver) historicalRef(ctx context.Context, ref trips.Scheduled) (*trips.Descriptor, error) {
	h, err := r.history.FindHistory(ctx, ref.BusID, ref.Date)
	if err != nil {
		return nil, fmt.Errorf("find history %s %s: %w", ref.BusID, ref.Date, err)
	}
	// An index the row holds is answered by the row alone; clustering only
	// covers indices the snapshot never issued.
	if h != nil && ref.Index < len(h.Trips) {
		d, ok := r.tripDescriptor(h.BusID, h.RouteName, ref.Index, h.Trips[ref.Index], ref.Date, trips.SourceHistory)
		if !ok {
			return nil, nil
		}
		return &d, nil
	}

	clusters, err := r.cluster(ctx, ref.BusID, ref.Date)
	if err != nil {
		return nil, err
	}
	if ref.Index < len(clusters) {
		d := clusters[ref.Index]
		return &d, nil
	}

	if !r.policy.DegradedFallback {
		return nil, nil
	}
	d, err := r.liveRef(ctx, ref)
	if err != nil || d == nil {
		return d, err
	}
	d.Degraded = true
	if r.metrics != nil {
		r.metrics.DegradedInc()
	}
	r.logger.Warn().
		Str("trip_id", ref.String()).
		Time("window_start", d.WindowStart).
		Time("window_end", d.WindowEnd).
		Msg("no history or events for past date, using live timetable window")
	return d, nil
}

func (r *Resolver) fromSchedule(s trips.Schedule, date trips.Date) []trips.Descriptor {
	if len(s.Trips) > 0 {
		return r.fromTrips(s.BusID, s.RouteName, s.Trips, date, trips.SourceScheduled)
	}
	if s.Span != nil {
		if d, ok := r.spanDescriptor(s, date); ok {
			return []trips.Descriptor{d}
		}
	}
	return nil
}

func (r *Resolver) fromTrips(busID, routeName string, defs []trips.TripDefinition, date trips.Date, source trips.Source) []trips.Descriptor {
	var out []trips.Descriptor
	for i, td := range defs {
		if !td.IsActive() {
			continue
		}
		if d, ok := r.tripDescriptor(busID, routeName, i, td, date, source); ok {
			out = append(out, d)
		}
	}
	return out
}

// tripDescriptor windows one timetable entry around its departure. A
// malformed entry is logged and reported as not ok.
func (r *Resolver) tripDescriptor(busID, routeName string, index int, td trips.TripDefinition, date trips.Date, source trips.Source) (trips.Descriptor, bool) {
	clock, err := trips.ParseClock(td.Departure())
	if err != nil {
		r.skip(busID, index, "departure_time", err)
		return trips.Descriptor{}, false
	}
	departure := date.At(clock, r.loc)
	name := td.TripName
	if name == "" {
		name = fmt.Sprintf("Trip %d", index+1)
	}
	return trips.Descriptor{
		TripID:      trips.Encode(busID, date, index),
		Index:       index,
		Name:        name,
		BusID:       busID,
		RouteName:   routeName,
		Route:       td.Route,
		Direction:   td.Direction,
		Departure:   departure,
		WindowStart: departure.Add(-r.policy.ScheduledWindow),
		WindowEnd:   departure.Add(r.policy.ScheduledWindow),
		Source:      source,
	}, true
}

func (r *Resolver) spanDescriptor(s trips.Schedule, date trips.Date) (trips.Descriptor, bool) {
	startClock, err := trips.ParseClock(s.Span.Start)
	if err != nil {
		r.skip(s.BusID, 0, "trip_start", err)
		return trips.Descriptor{}, false
	}
	endClock, err := trips.ParseClock(s.Span.End)
	if err != nil {
		r.skip(s.BusID, 0, "trip_end", err)
		return trips.Descriptor{}, false
	}
	start := date.At(startClock, r.loc)
	end := date.At(endClock, r.loc)
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	name := s.BusName
	if name == "" {
		name = s.BusID
	}
	return trips.Descriptor{
		TripID:      trips.Encode(s.BusID, date, 0),
		Name:        name,
		BusID:       s.BusID,
		RouteName:   s.RouteName,
		Departure:   start,
		WindowStart: start.Add(-r.policy.SpanWindow),
		WindowEnd:   end.Add(r.policy.SpanWindow),
		Source:      trips.SourceScheduled,
	}, true
}

func (r *Resolver) skip(busID string, index int, field string, err error) {
	if r.metrics != nil {
		r.metrics.SkippedInc()
	}
	r.logger.Warn().
		Err(err).
		Str("bus_id", busID).
		Int("trip_index", index).
		Str("field", field).
		Msg("skipping malformed trip definition")
}

func (r *Resolver) observe(regime trips.Regime, started time.Time, ds []trips.Descriptor) {
	if r.metrics == nil {
		return
	}
	r.metrics.ResolveObserve(regime, time.Since(started))
	counts := make(map[trips.Source]int)
	for _, d := range ds {
		counts[d.Source]++
	}
	for src, n := range counts {
		r.metrics.DescriptorsAdd(src, n)
	}
}

func sortDescriptors(ds []trips.Descriptor) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if !a.Departure.Equal(b.Departure) {
			return a.Departure.Before(b.Departure)
		}
		if a.BusID != b.BusID {
			return a.BusID < b.BusID
		}
		return a.Index < b.Index
	})
}
