package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tripwindow/internal/trips"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// Store serves the primary timetables, schedule history and event records
// from Postgres.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) FindSchedule(ctx context.Context, busID string) (*trips.Schedule, error) {
	q := `SELECT bus_id, COALESCE(bus_name, ''), COALESCE(route_name, ''), trips, updated_at
FROM bus_schedules WHERE bus_id = $1`
	sched, err := scanSchedule(s.db.QueryRowContext(ctx, q, busID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query bus_schedules: %w", err)
	}
	return sched, nil
}

func (s *Store) ListSchedules(ctx context.Context) ([]trips.Schedule, error) {
	q := `SELECT bus_id, COALESCE(bus_name, ''), COALESCE(route_name, ''), trips, updated_at
FROM bus_schedules ORDER BY bus_id`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query bus_schedules: %w", err)
	}
	defer rows.Close()
	var out []trips.Schedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sched)
	}
	return out, rows.Err()
}

// UpsertSchedule replaces the live timetable of a bus.
func (s *Store) UpsertSchedule(ctx context.Context, sched trips.Schedule) error {
	raw, err := encodeTrips(sched.Trips)
	if err != nil {
		return err
	}
	q := `INSERT INTO bus_schedules (bus_id, bus_name, route_name, trips, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (bus_id) DO UPDATE SET
  bus_name = EXCLUDED.bus_name,
  route_name = EXCLUDED.route_name,
  trips = EXCLUDED.trips,
  updated_at = EXCLUDED.updated_at`
	if _, err := s.db.ExecContext(ctx, q, sched.BusID, sched.BusName, sched.RouteName, raw, sched.UpdatedAt); err != nil {
		return fmt.Errorf("upsert bus_schedules %s: %w", sched.BusID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*trips.Schedule, error) {
	var (
		sched trips.Schedule
		raw   []byte
	)
	if err := row.Scan(&sched.BusID, &sched.BusName, &sched.RouteName, &raw, &sched.UpdatedAt); err != nil {
		return nil, err
	}
	defs, err := decodeTrips(raw)
	if err != nil {
		return nil, fmt.Errorf("decode trips for %s: %w", sched.BusID, err)
	}
	sched.Trips = defs
	return &sched, nil
}

func encodeTrips(defs []trips.TripDefinition) (string, error) {
	if defs == nil {
		defs = []trips.TripDefinition{}
	}
	b, err := json.Marshal(defs)
	if err != nil {
		return "", fmt.Errorf("encode trips: %w", err)
	}
	return string(b), nil
}

func decodeTrips(raw []byte) ([]trips.TripDefinition, error) {
	if len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var defs []trips.TripDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// where accumulates numbered Postgres placeholders.
type where struct {
	clauses []string
	args    []any
}

// add appends a clause containing one %d placeholder index.
func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// and appends a clause that takes no argument.
func (w *where) and(clause string) {
	w.clauses = append(w.clauses, clause)
}

// next returns the placeholder for an argument appended after the clauses.
func (w *where) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}
