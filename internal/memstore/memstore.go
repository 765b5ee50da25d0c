// Package memstore keeps timetables, history and event records in memory. It
// implements the same contracts as the Postgres store and backs tests and
// fixture-driven resolution.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"tripwindow/internal/trips"
)

type historyKey struct {
	busID string
	date  trips.Date
}

type Store struct {
	mu         sync.RWMutex
	schedules  map[string]trips.Schedule
	history    map[historyKey]trips.ScheduleHistory
	passengers []trips.Passenger
	unmatched  []trips.Unmatched
	err        error
}

func New() *Store {
	return &Store{
		schedules: make(map[string]trips.Schedule),
		history:   make(map[historyKey]trips.ScheduleHistory),
	}
}

// Fail makes every subsequent call return err; nil restores normal operation.
func (s *Store) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) AddPassenger(p trips.Passenger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passengers = append(s.passengers, p)
}

func (s *Store) AddUnmatched(u trips.Unmatched) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmatched = append(s.unmatched, u)
}

func (s *Store) UpsertSchedule(_ context.Context, sched trips.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.schedules[sched.BusID] = sched
	return nil
}

func (s *Store) FindSchedule(_ context.Context, busID string) (*trips.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	sched, ok := s.schedules[busID]
	if !ok {
		return nil, nil
	}
	return &sched, nil
}

func (s *Store) ListSchedules(_ context.Context) ([]trips.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]trips.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusID < out[j].BusID })
	return out, nil
}

func (s *Store) UpsertHistory(_ context.Context, h trips.ScheduleHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.history[historyKey{h.BusID, h.Date}] = h
	return nil
}

func (s *Store) InsertHistoryIfAbsent(_ context.Context, h trips.ScheduleHistory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	key := historyKey{h.BusID, h.Date}
	if _, exists := s.history[key]; exists {
		return false, nil
	}
	s.history[key] = h
	return true, nil
}

func (s *Store) FindHistory(_ context.Context, busID string, date trips.Date) (*trips.ScheduleHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	h, ok := s.history[historyKey{busID, date}]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (s *Store) ListHistory(_ context.Context, date trips.Date) ([]trips.ScheduleHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []trips.ScheduleHistory
	for k, h := range s.history {
		if k.date == date {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusID < out[j].BusID })
	return out, nil
}

func (s *Store) FindInWindow(_ context.Context, busID string, start, end time.Time) ([]trips.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []trips.Event
	for _, ev := range s.events() {
		if ev.BusID == busID && within(ev.Timestamp, start, end) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountInWindow(_ context.Context, busID string, start, end time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return 0, s.err
	}
	n := 0
	for _, p := range s.passengers {
		if p.BusID == busID && within(p.EntryTimestamp, start, end) {
			n++
		}
	}
	return n, nil
}

func (s *Store) BusesInWindow(_ context.Context, start, end time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	seen := make(map[string]bool)
	var out []string
	for _, ev := range s.events() {
		if ev.BusID != "" && !seen[ev.BusID] && within(ev.Timestamp, start, end) {
			seen[ev.BusID] = true
			out = append(out, ev.BusID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListPassengers(_ context.Context, f trips.RecordFilter) ([]trips.Passenger, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, 0, s.err
	}
	var matched []trips.Passenger
	for _, p := range s.passengers {
		if matches(f, p.BusID, p.TripID, p.EntryTimestamp) {
			matched = append(matched, p)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].EntryTimestamp.After(matched[j].EntryTimestamp) })
	lo, hi := page(f, len(matched))
	return matched[lo:hi], len(matched), nil
}

func (s *Store) AnalyzeTrips(_ context.Context, f trips.RecordFilter) (*trips.UsageReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	report := &trips.UsageReport{Trips: []trips.TripUsage{}}
	byTrip := make(map[string]int)
	for _, p := range s.passengers {
		if !matches(f, p.BusID, p.TripID, p.EntryTimestamp) {
			continue
		}
		report.TotalPassengers++
		if p.TripID == "" {
			report.WithoutTrip++
			continue
		}
		i, ok := byTrip[p.TripID]
		if !ok {
			i = len(report.Trips)
			byTrip[p.TripID] = i
			report.Trips = append(report.Trips, trips.TripUsage{
				TripID: p.TripID, BusID: p.BusID, RouteName: p.RouteName, FirstEntry: p.EntryTimestamp,
			})
		}
		u := &report.Trips[i]
		u.Count++
		if p.EntryTimestamp.Before(u.FirstEntry) {
			u.FirstEntry = p.EntryTimestamp
		}
		if p.ExitTimestamp != nil && (u.LastExit == nil || p.ExitTimestamp.After(*u.LastExit)) {
			exit := *p.ExitTimestamp
			u.LastExit = &exit
		}
	}
	sort.SliceStable(report.Trips, func(i, j int) bool {
		a, b := report.Trips[i], report.Trips[j]
		if !a.FirstEntry.Equal(b.FirstEntry) {
			return a.FirstEntry.After(b.FirstEntry)
		}
		return a.TripID < b.TripID
	})
	return report, nil
}

func (s *Store) ListUnmatched(_ context.Context, f trips.RecordFilter) ([]trips.Unmatched, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, 0, s.err
	}
	var matched []trips.Unmatched
	for _, u := range s.unmatched {
		if f.Type != "" && u.Type != f.Type {
			continue
		}
		if matches(f, u.BusID, u.TripID, u.Timestamp) {
			matched = append(matched, u)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Timestamp.After(matched[j].Timestamp) })
	lo, hi := page(f, len(matched))
	return matched[lo:hi], len(matched), nil
}

// events flattens records into events the way the Postgres store does.
func (s *Store) events() []trips.Event {
	out := make([]trips.Event, 0, 2*len(s.passengers)+len(s.unmatched))
	for _, p := range s.passengers {
		out = append(out, trips.Event{
			ID: p.ID, BusID: p.BusID, Kind: trips.KindPassenger, Type: trips.EventEntry,
			Timestamp: p.EntryTimestamp, Location: p.EntryLocation, RouteName: p.RouteName, TripID: p.TripID,
		})
		if p.ExitTimestamp != nil {
			ev := trips.Event{
				ID: p.ID, BusID: p.BusID, Kind: trips.KindPassenger, Type: trips.EventExit,
				Timestamp: *p.ExitTimestamp, RouteName: p.RouteName, TripID: p.TripID,
			}
			if p.ExitLocation != nil {
				ev.Location = *p.ExitLocation
			}
			out = append(out, ev)
		}
	}
	for _, u := range s.unmatched {
		out = append(out, trips.Event{
			ID: u.ID, BusID: u.BusID, Kind: trips.KindUnmatched, Type: u.Type,
			Timestamp: u.Timestamp, Location: u.Location, RouteName: u.RouteName, TripID: u.TripID,
		})
	}
	return out
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}

func matches(f trips.RecordFilter, busID, tripID string, at time.Time) bool {
	if f.BusID != "" && busID != f.BusID {
		return false
	}
	if f.TripID != "" && tripID != f.TripID {
		return false
	}
	if f.From != nil && at.Before(*f.From) {
		return false
	}
	if f.To != nil && at.After(*f.To) {
		return false
	}
	return true
}

func page(f trips.RecordFilter, n int) (int, int) {
	if f.Unbounded {
		return 0, n
	}
	limit, skip := f.Page()
	if skip > n {
		skip = n
	}
	end := skip + limit
	if end > n {
		end = n
	}
	return skip, end
}
