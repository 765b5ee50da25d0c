package memstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwindow/internal/trips"
)

func TestEventsFlattenPassengersAndUnmatched(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)
	exit := base.Add(40 * time.Minute)
	s.AddPassenger(trips.Passenger{ID: "p1", BusID: "B1", EntryTimestamp: base, ExitTimestamp: &exit})
	s.AddUnmatched(trips.Unmatched{ID: "u1", BusID: "B1", Type: trips.EventExit, Timestamp: base.Add(10 * time.Minute)})
	s.AddPassenger(trips.Passenger{ID: "p2", BusID: "B2", EntryTimestamp: base})

	evs, err := s.FindInWindow(ctx, "B1", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, evs, 3)
	assert.Equal(t, trips.EventEntry, evs[0].Type)
	assert.Equal(t, trips.KindUnmatched, evs[1].Kind)
	assert.Equal(t, trips.EventExit, evs[2].Type)

	n, err := s.CountInWindow(ctx, "B1", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	buses, err := s.BusesInWindow(ctx, base, base)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1", "B2"}, buses)
}

func TestInsertHistoryIfAbsentKeepsFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	first := trips.ScheduleHistory{BusID: "B1", Date: "2024-01-10", RouteName: "first"}
	second := trips.ScheduleHistory{BusID: "B1", Date: "2024-01-10", RouteName: "second"}

	ok, err := s.InsertHistoryIfAbsent(ctx, first)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.InsertHistoryIfAbsent(ctx, second)
	require.NoError(t, err)
	assert.False(t, ok)

	h, err := s.FindHistory(ctx, "B1", "2024-01-10")
	require.NoError(t, err)
	assert.Equal(t, "first", h.RouteName)
}

func TestListPassengersPaging(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.AddPassenger(trips.Passenger{ID: string(rune('a' + i)), BusID: "B1", EntryTimestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	page, total, err := s.ListPassengers(context.Background(), trips.RecordFilter{BusID: "B1", Limit: 2, Skip: 1})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "d", page[0].ID)
	assert.Equal(t, "c", page[1].ID)

	page, _, err = s.ListPassengers(context.Background(), trips.RecordFilter{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestLoadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
schedules:
  - bus_id: NB-1234
    route_name: Jaffna-Colombo
    trips:
      - trip_name: Morning
        departure_time: "08:15"
power_configs:
  - bus_id: OLD-1
    trip_start: "06:00"
    trip_end: "18:00"
history:
  - bus_id: NB-1234
    date: "2024-01-10"
    trips:
      - trip_name: Old Morning
        departure_time: "07:00"
passengers:
  - id: p1
    bus_id: NB-1234
    entry: 2024-01-10T02:00:00Z
unmatched:
  - id: u1
    bus_id: NB-1234
    type: EXIT
    at: 2024-01-10T04:00:00Z
`), 0o600))

	primary, legacy, err := LoadFixture(path)
	require.NoError(t, err)
	ctx := context.Background()

	s, err := primary.FindSchedule(ctx, "NB-1234")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "08:15", s.Trips[0].DepartureTime)

	old, err := legacy.FindSchedule(ctx, "OLD-1")
	require.NoError(t, err)
	require.NotNil(t, old)
	assert.Equal(t, &trips.Span{Start: "06:00", End: "18:00"}, old.Span)

	h, err := primary.FindHistory(ctx, "NB-1234", "2024-01-10")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Old Morning", h.Trips[0].TripName)

	evs, err := primary.FindInWindow(ctx, "NB-1234", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, evs, 2)
}

func TestListPassengersUnbounded(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)
	for i := 0; i < trips.DefaultPageLimit+5; i++ {
		s.AddPassenger(trips.Passenger{ID: string(rune('A' + i)), BusID: "B1", EntryTimestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	all, total, err := s.ListPassengers(context.Background(), trips.RecordFilter{Skip: 3, Limit: 2, Unbounded: true})
	require.NoError(t, err)
	assert.Equal(t, trips.DefaultPageLimit+5, total)
	assert.Len(t, all, total)
}

func TestAnalyzeTripsGroupsByTripID(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 10, 3, 0, 0, 0, time.UTC)
	exit := base.Add(2 * time.Hour)
	laterExit := base.Add(3 * time.Hour)
	s.AddPassenger(trips.Passenger{ID: "p1", BusID: "B1", TripID: "T1", EntryTimestamp: base.Add(time.Hour), ExitTimestamp: &exit})
	s.AddPassenger(trips.Passenger{ID: "p2", BusID: "B1", TripID: "T1", EntryTimestamp: base, ExitTimestamp: &laterExit})
	s.AddPassenger(trips.Passenger{ID: "p3", BusID: "B2", TripID: "T2", EntryTimestamp: base.Add(4 * time.Hour)})
	s.AddPassenger(trips.Passenger{ID: "p4", BusID: "B2", EntryTimestamp: base})

	report, err := s.AnalyzeTrips(context.Background(), trips.RecordFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalPassengers)
	assert.Equal(t, 1, report.WithoutTrip)
	require.Len(t, report.Trips, 2)
	assert.Equal(t, "T2", report.Trips[0].TripID)
	assert.Nil(t, report.Trips[0].LastExit)

	t1 := report.Trips[1]
	assert.Equal(t, 2, t1.Count)
	assert.True(t, t1.FirstEntry.Equal(base))
	require.NotNil(t, t1.LastExit)
	assert.True(t, t1.LastExit.Equal(laterExit))

	report, err = s.AnalyzeTrips(context.Background(), trips.RecordFilter{BusID: "B1"})
	require.NoError(t, err)
	assert.Equal(t, 2, report.TotalPassengers)
	assert.Len(t, report.Trips, 1)
}
