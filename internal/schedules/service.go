// Package schedules owns the write side of bus timetables: saving a live
// schedule, freezing it into the per-day history and the status view of the
// trips it defines.
package schedules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"tripwindow/internal/publisher"
	"tripwindow/internal/resolve"
	"tripwindow/internal/trips"
)

var ErrInvalidSchedule = errors.New("invalid schedule")

type ScheduleWriter interface {
	UpsertSchedule(ctx context.Context, s trips.Schedule) error
}

type HistoryWriter interface {
	// UpsertHistory replaces the (bus, date) row.
	UpsertHistory(ctx context.Context, h trips.ScheduleHistory) error
	// InsertHistoryIfAbsent writes h only when no (bus, date) row exists and
	// reports whether it did.
	InsertHistoryIfAbsent(ctx context.Context, h trips.ScheduleHistory) (bool, error)
}

// HistoryStore reads and writes the per-day snapshots.
type HistoryStore interface {
	resolve.HistoryProvider
	HistoryWriter
}

// Notifier announces schedule changes. A nil Notifier disables announcements.
type Notifier interface {
	PublishSchedule(msg publisher.ScheduleMessage) error
}

type Metrics interface {
	SaveInc(result string)
	SnapshotInc(result string)
	SnapshotObserve(d time.Duration)
}

type env struct {
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger
	notifier Notifier
	metrics  Metrics
}

type Option func(*env)

func WithLocation(loc *time.Location) Option  { return func(e *env) { e.loc = loc } }
func WithClock(now func() time.Time) Option   { return func(e *env) { e.now = now } }
func WithLogger(logger zerolog.Logger) Option { return func(e *env) { e.logger = logger } }
func WithNotifier(n Notifier) Option          { return func(e *env) { e.notifier = n } }
func WithMetrics(m Metrics) Option            { return func(e *env) { e.metrics = m } }

func newEnv(component string, opts []Option) env {
	e := env{loc: time.UTC, now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&e)
	}
	e.logger = e.logger.With().Str("component", component).Logger()
	return e
}

func (e env) today() trips.Date { return trips.DateOf(e.now(), e.loc) }

func (e env) notify(busID string, date trips.Date, reason publisher.Reason, tripCount int) {
	if e.notifier == nil {
		return
	}
	err := e.notifier.PublishSchedule(publisher.ScheduleMessage{
		BusID:     busID,
		Date:      date.String(),
		Reason:    reason,
		TripCount: tripCount,
		Timestamp: e.now().UTC(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("bus_id", busID).Msg("publish schedule notification")
	}
}

// SaveRequest is the body of a schedule save.
type SaveRequest struct {
	BusID     string                 `json:"bus_id" validate:"required,max=64"`
	BusName   string                 `json:"bus_name,omitempty" validate:"max=128"`
	RouteName string                 `json:"route_name,omitempty" validate:"max=256"`
	Trips     []trips.TripDefinition `json:"trips" validate:"max=96,dive"`
}

type Service struct {
	env
	reader   resolve.ScheduleProvider
	writer   ScheduleWriter
	history  HistoryStore
	validate *validator.Validate
}

// NewService wires the schedule service. reader may be a resolve.ScheduleChain
// so listings see legacy spans; writes always go to writer. Past dates are
// listed from history, the snapshot the resolver decodes their ids against.
func NewService(reader resolve.ScheduleProvider, writer ScheduleWriter, history HistoryStore, opts ...Option) *Service {
	return &Service{
		env:      newEnv("schedules", opts),
		reader:   reader,
		writer:   writer,
		history:  history,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateTrip, trips.TripDefinition{})
	return v
}

// validateTrip requires a departure (or boarding start) and that every
// present clock field is HH:MM.
func validateTrip(sl validator.StructLevel) {
	td := sl.Current().Interface().(trips.TripDefinition)
	if td.Departure() == "" {
		sl.ReportError(td.DepartureTime, "departure_time", "DepartureTime", "required", "")
	}
	fields := []struct {
		value, json, name string
	}{
		{td.BoardingStartTime, "boarding_start_time", "BoardingStartTime"},
		{td.DepartureTime, "departure_time", "DepartureTime"},
		{td.EstimatedArrivalTime, "estimated_arrival_time", "EstimatedArrivalTime"},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if _, err := trips.ParseClock(f.value); err != nil {
			sl.ReportError(f.value, f.json, f.name, "clock", "")
		}
	}
}

// Get returns the live schedule of busID, or nil.
func (s *Service) Get(ctx context.Context, busID string) (*trips.Schedule, error) {
	sched, err := s.reader.FindSchedule(ctx, busID)
	if err != nil {
		return nil, fmt.Errorf("find schedule %s: %w", busID, err)
	}
	return sched, nil
}

// Save replaces the live schedule of a bus and freezes it as the history of
// the local today. A later save on the same day replaces that history row.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*trips.Schedule, error) {
	if err := s.validate.Struct(req); err != nil {
		s.count("invalid")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	now := s.now()
	today := s.today()
	sched := trips.Schedule{
		BusID:     req.BusID,
		BusName:   req.BusName,
		RouteName: req.RouteName,
		Trips:     req.Trips,
		UpdatedAt: now,
	}
	if err := s.writer.UpsertSchedule(ctx, sched); err != nil {
		s.count("error")
		return nil, fmt.Errorf("upsert schedule %s: %w", req.BusID, err)
	}
	hist := trips.ScheduleHistory{
		BusID:     req.BusID,
		Date:      today,
		RouteName: req.RouteName,
		Trips:     req.Trips,
		CreatedAt: now,
	}
	if err := s.history.UpsertHistory(ctx, hist); err != nil {
		s.count("error")
		return nil, fmt.Errorf("upsert history %s %s: %w", req.BusID, today, err)
	}
	s.count("ok")
	s.logger.Info().
		Str("bus_id", req.BusID).
		Str("date", today.String()).
		Int("trips", len(req.Trips)).
		Msg("saved schedule and history")
	s.notify(req.BusID, today, publisher.ReasonSaved, len(req.Trips))

	stored, err := s.Get(ctx, req.BusID)
	if err != nil || stored == nil {
		return &sched, nil
	}
	return stored, nil
}

func (s *Service) count(result string) {
	if s.metrics != nil {
		s.metrics.SaveInc(result)
	}
}
