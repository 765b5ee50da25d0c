package db

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bus_schedules (
  bus_id     TEXT PRIMARY KEY,
  bus_name   TEXT,
  route_name TEXT,
  trips      JSONB NOT NULL DEFAULT '[]'::jsonb,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS power_configs (
  bus_id     TEXT PRIMARY KEY,
  bus_name   TEXT,
  trip_start TEXT,
  trip_end   TEXT,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS schedule_history (
  bus_id     TEXT NOT NULL,
  date       TEXT NOT NULL,
  route_name TEXT,
  trips      JSONB NOT NULL DEFAULT '[]'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (bus_id, date)
)`,
	`CREATE INDEX IF NOT EXISTS schedule_history_date_idx ON schedule_history (date)`,
	`CREATE TABLE IF NOT EXISTS passengers (
  id                       TEXT PRIMARY KEY,
  bus_id                   TEXT,
  route_name               TEXT,
  trip_id                  TEXT,
  entry_lat                DOUBLE PRECISION,
  entry_lon                DOUBLE PRECISION,
  entry_device_id          TEXT,
  exit_lat                 DOUBLE PRECISION,
  exit_lon                 DOUBLE PRECISION,
  exit_device_id           TEXT,
  entry_timestamp          TIMESTAMPTZ NOT NULL,
  exit_timestamp           TIMESTAMPTZ,
  journey_duration_minutes DOUBLE PRECISION,
  similarity_score         DOUBLE PRECISION,
  created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS passengers_bus_entry_idx ON passengers (bus_id, entry_timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS passengers_bus_exit_idx ON passengers (bus_id, exit_timestamp)`,
	`CREATE INDEX IF NOT EXISTS passengers_trip_idx ON passengers (trip_id, entry_timestamp DESC)`,
	`CREATE TABLE IF NOT EXISTS unmatched_passengers (
  id                    TEXT PRIMARY KEY,
  bus_id                TEXT,
  route_name            TEXT,
  trip_id               TEXT,
  type                  TEXT NOT NULL CHECK (type IN ('ENTRY', 'EXIT')),
  latitude              DOUBLE PRECISION,
  longitude             DOUBLE PRECISION,
  device_id             TEXT,
  location_name         TEXT,
  detected_at           TIMESTAMPTZ NOT NULL,
  best_similarity_found DOUBLE PRECISION,
  reason                TEXT,
  created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS unmatched_bus_detected_idx ON unmatched_passengers (bus_id, detected_at DESC)`,
}

// Migrate creates the tables and indexes this service reads and writes.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
