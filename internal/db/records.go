package db

import (
	"context"
	"database/sql"
	"fmt"

	"tripwindow/internal/trips"
)

const passengerColumns = `id, COALESCE(bus_id, ''), COALESCE(route_name, ''), COALESCE(trip_id, ''),
  COALESCE(entry_lat, 0), COALESCE(entry_lon, 0), COALESCE(entry_device_id, ''),
  exit_lat, exit_lon, COALESCE(exit_device_id, ''),
  entry_timestamp, exit_timestamp,
  COALESCE(journey_duration_minutes, 0), COALESCE(similarity_score, 0), created_at`

// ListPassengers returns one page of matched passengers, newest boarding
// first, and the total matching the filter.
func (s *Store) ListPassengers(ctx context.Context, f trips.RecordFilter) ([]trips.Passenger, int, error) {
	w := passengerWhere(f)
	total, err := s.count(ctx, "passengers", w)
	if err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + passengerColumns + ` FROM passengers` + w.String() +
		` ORDER BY entry_timestamp DESC, id` + pageClause(w, f)
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query passengers: %w", err)
	}
	defer rows.Close()
	var out []trips.Passenger
	for rows.Next() {
		var (
			p                trips.Passenger
			exitLat, exitLon sql.NullFloat64
			exitDevice       string
			exitAt           sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.BusID, &p.RouteName, &p.TripID,
			&p.EntryLocation.Latitude, &p.EntryLocation.Longitude, &p.EntryLocation.DeviceID,
			&exitLat, &exitLon, &exitDevice,
			&p.EntryTimestamp, &exitAt,
			&p.JourneyDurationMinutes, &p.SimilarityScore, &p.CreatedAt); err != nil {
			return nil, 0, err
		}
		if exitLat.Valid && exitLon.Valid {
			p.ExitLocation = &trips.Location{Latitude: exitLat.Float64, Longitude: exitLon.Float64, DeviceID: exitDevice}
		}
		if exitAt.Valid {
			t := exitAt.Time
			p.ExitTimestamp = &t
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

const unmatchedColumns = `id, COALESCE(bus_id, ''), COALESCE(route_name, ''), COALESCE(trip_id, ''), type,
  COALESCE(latitude, 0), COALESCE(longitude, 0), COALESCE(device_id, ''), COALESCE(location_name, ''),
  detected_at, COALESCE(best_similarity_found, 0), COALESCE(reason, ''), created_at`

// ListUnmatched returns one page of unmatched detections, newest first, and
// the total matching the filter.
func (s *Store) ListUnmatched(ctx context.Context, f trips.RecordFilter) ([]trips.Unmatched, int, error) {
	w := unmatchedWhere(f)
	total, err := s.count(ctx, "unmatched_passengers", w)
	if err != nil {
		return nil, 0, err
	}
	q := `SELECT ` + unmatchedColumns + ` FROM unmatched_passengers` + w.String() +
		` ORDER BY detected_at DESC, id` + pageClause(w, f)
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query unmatched_passengers: %w", err)
	}
	defer rows.Close()
	var out []trips.Unmatched
	for rows.Next() {
		var (
			u   trips.Unmatched
			typ string
		)
		if err := rows.Scan(&u.ID, &u.BusID, &u.RouteName, &u.TripID, &typ,
			&u.Location.Latitude, &u.Location.Longitude, &u.Location.DeviceID, &u.LocationName,
			&u.Timestamp, &u.BestSimilarityFound, &u.Reason, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		u.Type = trips.EventType(typ)
		out = append(out, u)
	}
	return out, total, rows.Err()
}

// AnalyzeTrips groups the passengers matching f by their stored trip id.
func (s *Store) AnalyzeTrips(ctx context.Context, f trips.RecordFilter) (*trips.UsageReport, error) {
	report := &trips.UsageReport{Trips: []trips.TripUsage{}}

	w := passengerWhere(f)
	q := `SELECT COUNT(*), COUNT(*) FILTER (WHERE trip_id IS NULL OR trip_id = '') FROM passengers` + w.String()
	if err := s.db.QueryRowContext(ctx, q, w.args...).Scan(&report.TotalPassengers, &report.WithoutTrip); err != nil {
		return nil, fmt.Errorf("count passengers: %w", err)
	}

	w = passengerWhere(f)
	w.and("trip_id IS NOT NULL AND trip_id <> ''")
	q = `SELECT trip_id, COALESCE(MIN(bus_id), ''), COALESCE(MIN(route_name), ''), COUNT(*),
  MIN(entry_timestamp), MAX(exit_timestamp)
FROM passengers` + w.String() + `
GROUP BY trip_id
ORDER BY MIN(entry_timestamp) DESC, trip_id`
	rows, err := s.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("group passengers by trip: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			u      trips.TripUsage
			exitAt sql.NullTime
		)
		if err := rows.Scan(&u.TripID, &u.BusID, &u.RouteName, &u.Count, &u.FirstEntry, &exitAt); err != nil {
			return nil, err
		}
		if exitAt.Valid {
			t := exitAt.Time
			u.LastExit = &t
		}
		report.Trips = append(report.Trips, u)
	}
	return report, rows.Err()
}

func pageClause(w *where, f trips.RecordFilter) string {
	if f.Unbounded {
		return ""
	}
	limit, skip := f.Page()
	return ` LIMIT ` + w.next(limit) + ` OFFSET ` + w.next(skip)
}

func (s *Store) count(ctx context.Context, table string, w *where) (int, error) {
	var n int
	q := `SELECT COUNT(*) FROM ` + table + w.String()
	if err := s.db.QueryRowContext(ctx, q, w.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func passengerWhere(f trips.RecordFilter) *where {
	w := &where{}
	if f.BusID != "" {
		w.add("bus_id = $%d", f.BusID)
	}
	if f.TripID != "" {
		w.add("trip_id = $%d", f.TripID)
	}
	if f.From != nil {
		w.add("entry_timestamp >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("entry_timestamp <= $%d", *f.To)
	}
	return w
}

func unmatchedWhere(f trips.RecordFilter) *where {
	w := &where{}
	if f.BusID != "" {
		w.add("bus_id = $%d", f.BusID)
	}
	if f.TripID != "" {
		w.add("trip_id = $%d", f.TripID)
	}
	if f.From != nil {
		w.add("detected_at >= $%d", *f.From)
	}
	if f.To != nil {
		w.add("detected_at <= $%d", *f.To)
	}
	if f.Type != "" {
		w.add("type = $%d", string(f.Type))
	}
	return w
}
