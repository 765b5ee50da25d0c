package memstore

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"tripwindow/internal/trips"
)

// Fixture is the YAML layout accepted by LoadFixture.
type Fixture struct {
	Schedules    []trips.Schedule        `yaml:"schedules"`
	PowerConfigs []fixturePowerConfig    `yaml:"power_configs"`
	History      []trips.ScheduleHistory `yaml:"history"`
	Passengers   []fixturePassenger      `yaml:"passengers"`
	Unmatched    []fixtureUnmatched      `yaml:"unmatched"`
}

type fixturePowerConfig struct {
	BusID     string `yaml:"bus_id"`
	BusName   string `yaml:"bus_name"`
	TripStart string `yaml:"trip_start"`
	TripEnd   string `yaml:"trip_end"`
}

type fixturePassenger struct {
	ID        string     `yaml:"id"`
	BusID     string     `yaml:"bus_id"`
	RouteName string     `yaml:"route_name"`
	TripID    string     `yaml:"trip_id"`
	Entry     time.Time  `yaml:"entry"`
	Exit      *time.Time `yaml:"exit"`
}

type fixtureUnmatched struct {
	ID        string    `yaml:"id"`
	BusID     string    `yaml:"bus_id"`
	RouteName string    `yaml:"route_name"`
	TripID    string    `yaml:"trip_id"`
	Type      string    `yaml:"type"`
	At        time.Time `yaml:"at"`
}

// LoadFixture reads a YAML fixture into a primary store (timetables, history,
// events) and a legacy store holding the power config spans.
func LoadFixture(path string) (primary, legacy *Store, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	primary, legacy = New(), New()
	ctx := context.Background()
	for _, s := range fx.Schedules {
		_ = primary.UpsertSchedule(ctx, s)
	}
	for _, pc := range fx.PowerConfigs {
		_ = legacy.UpsertSchedule(ctx, trips.Schedule{
			BusID:   pc.BusID,
			BusName: pc.BusName,
			Span:    &trips.Span{Start: pc.TripStart, End: pc.TripEnd},
		})
	}
	for _, h := range fx.History {
		_ = primary.UpsertHistory(ctx, h)
	}
	for _, p := range fx.Passengers {
		primary.AddPassenger(trips.Passenger{
			ID: p.ID, BusID: p.BusID, RouteName: p.RouteName, TripID: p.TripID,
			EntryTimestamp: p.Entry, ExitTimestamp: p.Exit, CreatedAt: p.Entry,
		})
	}
	for _, u := range fx.Unmatched {
		primary.AddUnmatched(trips.Unmatched{
			ID: u.ID, BusID: u.BusID, RouteName: u.RouteName, TripID: u.TripID,
			Type: trips.EventType(u.Type), Timestamp: u.At, CreatedAt: u.At,
		})
	}
	return primary, legacy, nil
}
