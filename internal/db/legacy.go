package db

import (
	"context"
	"database/sql"
	"fmt"

	"tripwindow/internal/trips"
)

// PowerConfigStore reads the older power_configs table, where a bus carries
// one trip_start/trip_end pair instead of a trip array. It is only consulted
// when bus_schedules has nothing.
type PowerConfigStore struct {
	db *sql.DB
}

func NewPowerConfigStore(db *sql.DB) *PowerConfigStore { return &PowerConfigStore{db: db} }

func (s *PowerConfigStore) FindSchedule(ctx context.Context, busID string) (*trips.Schedule, error) {
	q := `SELECT bus_id, COALESCE(bus_name, ''), COALESCE(trip_start, ''), COALESCE(trip_end, ''), updated_at
FROM power_configs WHERE bus_id = $1`
	sched, err := scanPowerConfig(s.db.QueryRowContext(ctx, q, busID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query power_configs: %w", err)
	}
	return sched, nil
}

func (s *PowerConfigStore) ListSchedules(ctx context.Context) ([]trips.Schedule, error) {
	q := `SELECT bus_id, COALESCE(bus_name, ''), COALESCE(trip_start, ''), COALESCE(trip_end, ''), updated_at
FROM power_configs ORDER BY bus_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query power_configs: %w", err)
	}
	defer rows.Close()
	var out []trips.Schedule
	for rows.Next() {
		sched, err := scanPowerConfig(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sched)
	}
	return out, rows.Err()
}

func scanPowerConfig(row rowScanner) (*trips.Schedule, error) {
	var (
		sched      trips.Schedule
		start, end string
	)
	if err := row.Scan(&sched.BusID, &sched.BusName, &start, &end, &sched.UpdatedAt); err != nil {
		return nil, err
	}
	sched.Span = powerConfigSpan(start, end)
	return &sched, nil
}

// powerConfigSpan only yields a span when both ends are configured.
func powerConfigSpan(start, end string) *trips.Span {
	if start == "" || end == "" {
		return nil
	}
	return &trips.Span{Start: start, End: end}
}
