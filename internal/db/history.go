package db

import (
	"context"
	"database/sql"
	"fmt"

	"tripwindow/internal/trips"
)

func (s *Store) FindHistory(ctx context.Context, busID string, date trips.Date) (*trips.ScheduleHistory, error) {
	q := `SELECT bus_id, date, COALESCE(route_name, ''), trips, created_at
FROM schedule_history WHERE bus_id = $1 AND date = $2`
	h, err := scanHistory(s.db.QueryRowContext(ctx, q, busID, string(date)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query schedule_history: %w", err)
	}
	return h, nil
}

func (s *Store) ListHistory(ctx context.Context, date trips.Date) ([]trips.ScheduleHistory, error) {
	q := `SELECT bus_id, date, COALESCE(route_name, ''), trips, created_at
FROM schedule_history WHERE date = $1 ORDER BY bus_id`
	rows, err := s.db.QueryContext(ctx, q, string(date))
	if err != nil {
		return nil, fmt.Errorf("query schedule_history: %w", err)
	}
	defer rows.Close()
	var out []trips.ScheduleHistory
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// UpsertHistory writes the snapshot for (bus_id, date); the last writer wins
// and no fields are merged.
func (s *Store) UpsertHistory(ctx context.Context, h trips.ScheduleHistory) error {
	raw, err := encodeTrips(h.Trips)
	if err != nil {
		return err
	}
	q := `INSERT INTO schedule_history (bus_id, date, route_name, trips, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (bus_id, date) DO UPDATE SET
  route_name = EXCLUDED.route_name,
  trips = EXCLUDED.trips,
  created_at = EXCLUDED.created_at`
	if _, err := s.db.ExecContext(ctx, q, h.BusID, string(h.Date), h.RouteName, raw, h.CreatedAt); err != nil {
		return fmt.Errorf("upsert schedule_history %s %s: %w", h.BusID, h.Date, err)
	}
	return nil
}

// InsertHistoryIfAbsent writes the snapshot only when (bus_id, date) has none
// and reports whether it did.
func (s *Store) InsertHistoryIfAbsent(ctx context.Context, h trips.ScheduleHistory) (bool, error) {
	raw, err := encodeTrips(h.Trips)
	if err != nil {
		return false, err
	}
	q := `INSERT INTO schedule_history (bus_id, date, route_name, trips, created_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (bus_id, date) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, h.BusID, string(h.Date), h.RouteName, raw, h.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert schedule_history %s %s: %w", h.BusID, h.Date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func scanHistory(row rowScanner) (*trips.ScheduleHistory, error) {
	var (
		h    trips.ScheduleHistory
		date string
		raw  []byte
	)
	if err := row.Scan(&h.BusID, &date, &h.RouteName, &raw, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.Date = trips.Date(date)
	defs, err := decodeTrips(raw)
	if err != nil {
		return nil, fmt.Errorf("decode history trips for %s %s: %w", h.BusID, date, err)
	}
	h.Trips = defs
	return &h, nil
}
