package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tripwindow/internal/trips"
)

// A matched passenger row yields an ENTRY event at entry_timestamp and an EXIT
// event at exit_timestamp; an unmatched row yields one event of its type.
const eventsInWindowQuery = `
SELECT id, 'passenger' AS kind, 'ENTRY' AS type, entry_timestamp AS ts,
       COALESCE(entry_lat, 0), COALESCE(entry_lon, 0), COALESCE(entry_device_id, ''),
       COALESCE(route_name, ''), COALESCE(trip_id, '')
FROM passengers WHERE bus_id = $1 AND entry_timestamp BETWEEN $2 AND $3
UNION ALL
SELECT id, 'passenger', 'EXIT', exit_timestamp,
       COALESCE(exit_lat, 0), COALESCE(exit_lon, 0), COALESCE(exit_device_id, ''),
       COALESCE(route_name, ''), COALESCE(trip_id, '')
FROM passengers WHERE bus_id = $1 AND exit_timestamp BETWEEN $2 AND $3
UNION ALL
SELECT id, 'unmatched', type, detected_at,
       COALESCE(latitude, 0), COALESCE(longitude, 0), COALESCE(device_id, ''),
       COALESCE(route_name, ''), COALESCE(trip_id, '')
FROM unmatched_passengers WHERE bus_id = $1 AND detected_at BETWEEN $2 AND $3
ORDER BY ts, id`

func (s *Store) FindInWindow(ctx context.Context, busID string, start, end time.Time) ([]trips.Event, error) {
	rows, err := s.db.QueryContext(ctx, eventsInWindowQuery, busID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var out []trips.Event
	for rows.Next() {
		ev := trips.Event{BusID: busID}
		var kind, typ string
		if err := rows.Scan(&ev.ID, &kind, &typ, &ev.Timestamp,
			&ev.Location.Latitude, &ev.Location.Longitude, &ev.Location.DeviceID,
			&ev.RouteName, &ev.TripID); err != nil {
			return nil, err
		}
		ev.Kind = trips.EventKind(kind)
		ev.Type = trips.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *Store) CountInWindow(ctx context.Context, busID string, start, end time.Time) (int, error) {
	q := `SELECT COUNT(*) FROM passengers WHERE bus_id = $1 AND entry_timestamp BETWEEN $2 AND $3`
	var n int
	if err := s.db.QueryRowContext(ctx, q, busID, start, end).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passengers: %w", err)
	}
	return n, nil
}

func (s *Store) BusesInWindow(ctx context.Context, start, end time.Time) ([]string, error) {
	q := `
SELECT bus_id FROM passengers WHERE entry_timestamp BETWEEN $1 AND $2
UNION
SELECT bus_id FROM passengers WHERE exit_timestamp BETWEEN $1 AND $2
UNION
SELECT bus_id FROM unmatched_passengers WHERE detected_at BETWEEN $1 AND $2
ORDER BY bus_id`
	rows, err := s.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, fmt.Errorf("query buses with events: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var b sql.NullString
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		if b.Valid && b.String != "" {
			out = append(out, b.String)
		}
	}
	return out, rows.Err()
}
