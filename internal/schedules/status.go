package schedules

import (
	"context"
	"fmt"
	"time"

	"tripwindow/internal/trips"
)

// ScheduledTrip is one timetable entry with its status on a date.
type ScheduledTrip struct {
	TripID               string       `json:"trip_id"`
	TripName             string       `json:"trip_name"`
	Direction            string       `json:"direction"`
	BoardingStartTime    string       `json:"boarding_start_time"`
	DepartureTime        string       `json:"departure_time"`
	EstimatedArrivalTime string       `json:"estimated_arrival_time"`
	Status               trips.Status `json:"status"`
	BusID                string       `json:"bus_id"`
	RouteName            string       `json:"route_name"`
}

// ScheduledTrips lists the active timetable entries of busID ("" for every
// bus) with their status on date relative to now. Today and later read the
// live schedule; earlier dates read the history row of that day, so a trip id
// listed here names the same trip the resolver decodes it to. A past day
// without history has no timetable and lists nothing.
func (s *Service) ScheduledTrips(ctx context.Context, busID string, date trips.Date) ([]ScheduledTrip, error) {
	now := s.now()
	if trips.Classify(date, now, s.loc) == trips.RegimeHistorical {
		return s.historicalTrips(ctx, busID, date, now)
	}

	var list []trips.Schedule
	if busID != "" {
		sched, err := s.reader.FindSchedule(ctx, busID)
		if err != nil {
			return nil, fmt.Errorf("find schedule %s: %w", busID, err)
		}
		if sched != nil {
			list = append(list, *sched)
		}
	} else {
		all, err := s.reader.ListSchedules(ctx)
		if err != nil {
			return nil, fmt.Errorf("list schedules: %w", err)
		}
		list = all
	}

	out := []ScheduledTrip{}
	for _, sched := range list {
		if len(sched.Trips) > 0 {
			out = append(out, s.timetable(sched.BusID, sched.RouteName, sched.Trips, date, now)...)
			continue
		}
		if sched.Span == nil {
			continue
		}
		st, ok := s.status(sched.BusID, 0, date, sched.Span.Start, sched.Span.End, now)
		if !ok {
			continue
		}
		out = append(out, ScheduledTrip{
			TripID:               trips.Encode(sched.BusID, date, 0),
			TripName:             orDefault(sched.BusName, orDefault(sched.BusID, "Bus Trip")),
			Direction:            "route",
			BoardingStartTime:    sched.Span.Start,
			DepartureTime:        sched.Span.Start,
			EstimatedArrivalTime: sched.Span.End,
			Status:               st,
			BusID:                sched.BusID,
			RouteName:            orDefault(sched.RouteName, "Unknown Route"),
		})
	}
	return out, nil
}

func (s *Service) historicalTrips(ctx context.Context, busID string, date trips.Date, now time.Time) ([]ScheduledTrip, error) {
	var rows []trips.ScheduleHistory
	if busID != "" {
		h, err := s.history.FindHistory(ctx, busID, date)
		if err != nil {
			return nil, fmt.Errorf("find history %s %s: %w", busID, date, err)
		}
		if h != nil {
			rows = append(rows, *h)
		}
	} else {
		all, err := s.history.ListHistory(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("list history %s: %w", date, err)
		}
		rows = all
	}

	out := []ScheduledTrip{}
	for _, h := range rows {
		out = append(out, s.timetable(h.BusID, h.RouteName, h.Trips, date, now)...)
	}
	return out, nil
}

// timetable lists the active entries of one snapshot, keeping their position
// in defs as the trip index.
func (s *Service) timetable(busID, routeName string, defs []trips.TripDefinition, date trips.Date, now time.Time) []ScheduledTrip {
	var out []ScheduledTrip
	for i, td := range defs {
		if !td.IsActive() {
			continue
		}
		boarding := td.BoardingStartTime
		if boarding == "" {
			boarding = td.Departure()
		}
		st, ok := s.status(busID, i, date, boarding, td.EstimatedArrivalTime, now)
		if !ok {
			continue
		}
		out = append(out, ScheduledTrip{
			TripID:               trips.Encode(busID, date, i),
			TripName:             orDefault(td.TripName, "Bus Trip"),
			Direction:            orDefault(td.Direction, "unknown"),
			BoardingStartTime:    boarding,
			DepartureTime:        td.Departure(),
			EstimatedArrivalTime: td.EstimatedArrivalTime,
			Status:               st,
			BusID:                busID,
			RouteName:            orDefault(routeName, "Unknown Route"),
		})
	}
	return out
}

func (s *Service) status(busID string, index int, date trips.Date, start, end string, now time.Time) (trips.Status, bool) {
	boarding, err := trips.ParseClock(start)
	if err != nil {
		s.logger.Warn().Err(err).Str("bus_id", busID).Int("trip_index", index).Msg("skipping trip without boarding time")
		return "", false
	}
	arrival, err := trips.ParseClock(end)
	if err != nil {
		s.logger.Warn().Err(err).Str("bus_id", busID).Int("trip_index", index).Msg("skipping trip without arrival time")
		return "", false
	}
	return trips.TripStatus(date, boarding, arrival, now, s.loc), true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
