package schedules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwindow/internal/memstore"
	"tripwindow/internal/publisher"
	"tripwindow/internal/resolve"
	"tripwindow/internal/trips"
)

var colombo = time.FixedZone("UTC+05:30", 19800)

type recorder struct {
	mu   sync.Mutex
	msgs []publisher.ScheduleMessage
	err  error
}

func (r *recorder) PublishSchedule(msg publisher.ScheduleMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

type counts struct {
	mu        sync.Mutex
	saves     map[string]int
	snapshots map[string]int
}

func newCounts() *counts {
	return &counts{saves: map[string]int{}, snapshots: map[string]int{}}
}

func (c *counts) SaveInc(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves[result]++
}

func (c *counts) SnapshotInc(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[result]++
}

func (c *counts) SnapshotObserve(time.Duration) {}

func clockAt(t time.Time) func() time.Time { return func() time.Time { return t } }

func morningTrip(name, departure string) trips.TripDefinition {
	return trips.TripDefinition{TripName: name, DepartureTime: departure, BoardingStartTime: departure, EstimatedArrivalTime: "23:00"}
}

func TestSaveWritesScheduleAndTodaysHistory(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	notes := &recorder{}
	m := newCounts()
	// 20:00 UTC on the 9th is already the 10th in Colombo.
	now := time.Date(2024, 1, 9, 20, 0, 0, 0, time.UTC)
	svc := NewService(store, store, store, WithLocation(colombo), WithClock(clockAt(now)), WithNotifier(notes), WithMetrics(m))

	saved, err := svc.Save(ctx, SaveRequest{
		BusID:     "NB-1234",
		RouteName: "Jaffna-Colombo",
		Trips:     []trips.TripDefinition{morningTrip("Morning", "08:15")},
	})
	require.NoError(t, err)
	assert.Equal(t, "NB-1234", saved.BusID)
	assert.True(t, saved.UpdatedAt.Equal(now))

	h, err := store.FindHistory(ctx, "NB-1234", "2024-01-10")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, "Morning", h.Trips[0].TripName)

	require.Len(t, notes.msgs, 1)
	assert.Equal(t, publisher.ScheduleMessage{BusID: "NB-1234", Date: "2024-01-10", Reason: publisher.ReasonSaved, TripCount: 1, Timestamp: now}, notes.msgs[0])
	assert.Equal(t, 1, m.saves["ok"])
}

func TestSaveSameDayReplacesHistory(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewService(store, store, store, WithLocation(colombo), WithClock(clockAt(time.Date(2024, 1, 10, 6, 0, 0, 0, colombo))))

	_, err := svc.Save(ctx, SaveRequest{BusID: "B1", Trips: []trips.TripDefinition{morningTrip("First", "08:00")}})
	require.NoError(t, err)
	_, err = svc.Save(ctx, SaveRequest{BusID: "B1", Trips: []trips.TripDefinition{morningTrip("Second", "09:00"), morningTrip("Third", "17:00")}})
	require.NoError(t, err)

	h, err := store.FindHistory(ctx, "B1", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, h.Trips, 2)
	assert.Equal(t, "Second", h.Trips[0].TripName)
}

func TestSaveValidation(t *testing.T) {
	store := memstore.New()
	m := newCounts()
	svc := NewService(store, store, store, WithMetrics(m))

	cases := map[string]SaveRequest{
		"missing bus":       {Trips: []trips.TripDefinition{morningTrip("A", "08:00")}},
		"bad departure":     {BusID: "B1", Trips: []trips.TripDefinition{{DepartureTime: "8am"}}},
		"missing departure": {BusID: "B1", Trips: []trips.TripDefinition{{TripName: "A"}}},
		"bad arrival":       {BusID: "B1", Trips: []trips.TripDefinition{{DepartureTime: "08:00", EstimatedArrivalTime: "24:10"}}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
	assert.Equal(t, len(cases), m.saves["invalid"])

	list, err := store.ListSchedules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSaveStoreFailure(t *testing.T) {
	store := memstore.New()
	boom := errors.New("write conflict")
	store.Fail(boom)
	svc := NewService(store, store, store)

	_, err := svc.Save(context.Background(), SaveRequest{BusID: "B1"})
	assert.ErrorIs(t, err, boom)
}

func TestSaveIgnoresNotifierFailure(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, store, store, WithNotifier(&recorder{err: errors.New("no responders")}))
	_, err := svc.Save(context.Background(), SaveRequest{BusID: "B1"})
	assert.NoError(t, err)
}

func TestScheduledTripsStatus(t *testing.T) {
	ctx := context.Background()
	primary, legacy := memstore.New(), memstore.New()
	off := false
	require.NoError(t, primary.UpsertSchedule(ctx, trips.Schedule{
		BusID: "B1",
		Trips: []trips.TripDefinition{
			{TripName: "Early", BoardingStartTime: "06:00", DepartureTime: "06:15", EstimatedArrivalTime: "09:00"},
			{BoardingStartTime: "11:00", EstimatedArrivalTime: "14:00"},
			{TripName: "Night", Direction: "down", BoardingStartTime: "22:00", EstimatedArrivalTime: "02:00"},
			{TripName: "Off", BoardingStartTime: "10:00", EstimatedArrivalTime: "11:00", Active: &off},
			{TripName: "Broken", BoardingStartTime: "10:00"},
		},
	}))
	require.NoError(t, legacy.UpsertSchedule(ctx, trips.Schedule{BusID: "OLD", Span: &trips.Span{Start: "06:00", End: "18:00"}}))
	noon := time.Date(2024, 1, 10, 12, 0, 0, 0, colombo)
	svc := NewService(resolve.ScheduleChain{primary, legacy}, primary, primary, WithLocation(colombo), WithClock(clockAt(noon)))

	today, err := svc.ScheduledTrips(ctx, "B1", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, today, 3)
	assert.Equal(t, trips.StatusCompleted, today[0].Status)
	assert.Equal(t, "SCHEDULED_B1_2024-01-10_0", today[0].TripID)
	assert.Equal(t, "06:15", today[0].DepartureTime)
	assert.Equal(t, trips.StatusActive, today[1].Status)
	assert.Equal(t, "Bus Trip", today[1].TripName)
	assert.Equal(t, "unknown", today[1].Direction)
	assert.Equal(t, "11:00", today[1].DepartureTime)
	assert.Equal(t, "Unknown Route", today[1].RouteName)
	assert.Equal(t, trips.StatusUpcoming, today[2].Status)
	assert.Equal(t, "SCHEDULED_B1_2024-01-10_2", today[2].TripID)

	past, err := svc.ScheduledTrips(ctx, "B1", "2024-01-09")
	require.NoError(t, err)
	assert.NotNil(t, past)
	assert.Empty(t, past, "a past day without history has no timetable")

	old, err := svc.ScheduledTrips(ctx, "OLD", "2024-01-11")
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "OLD", old[0].TripName)
	assert.Equal(t, "route", old[0].Direction)
	assert.Equal(t, trips.StatusUpcoming, old[0].Status)

	none, err := svc.ScheduledTrips(ctx, "NOPE", "2024-01-10")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestScheduledTripsPastDateListsHistoryIDs(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.UpsertSchedule(ctx, trips.Schedule{
		BusID: "B",
		Trips: []trips.TripDefinition{{TripName: "New evening", DepartureTime: "18:00", EstimatedArrivalTime: "21:00"}},
	}))
	require.NoError(t, store.UpsertHistory(ctx, trips.ScheduleHistory{
		BusID: "B", Date: "2024-01-05", RouteName: "Jaffna-Colombo",
		Trips: []trips.TripDefinition{{TripName: "Old morning", DepartureTime: "06:00", EstimatedArrivalTime: "09:00"}},
	}))
	require.NoError(t, store.UpsertHistory(ctx, trips.ScheduleHistory{
		BusID: "C", Date: "2024-01-05",
		Trips: []trips.TripDefinition{{DepartureTime: "07:30", EstimatedArrivalTime: "10:00"}},
	}))
	noon := time.Date(2024, 1, 10, 12, 0, 0, 0, colombo)
	svc := NewService(store, store, store, WithLocation(colombo), WithClock(clockAt(noon)))
	r := resolve.New(store, store, store, resolve.WithLocation(colombo), resolve.WithClock(clockAt(noon)))

	listed, err := svc.ScheduledTrips(ctx, "B", "2024-01-05")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "Old morning", listed[0].TripName)
	assert.Equal(t, "06:00", listed[0].DepartureTime)
	assert.Equal(t, "Jaffna-Colombo", listed[0].RouteName)
	assert.Equal(t, trips.StatusCompleted, listed[0].Status)

	ref, ok := trips.Decode(listed[0].TripID)
	require.True(t, ok)
	d, err := r.ResolveRef(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "Old morning", d.Name)
	assert.Equal(t, trips.SourceHistory, d.Source)

	all, err := svc.ScheduledTrips(ctx, "", "2024-01-05")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "SCHEDULED_B_2024-01-05_0", all[0].TripID)
	assert.Equal(t, "SCHEDULED_C_2024-01-05_0", all[1].TripID)

	live, err := svc.ScheduledTrips(ctx, "B", "2024-01-10")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "New evening", live[0].TripName)
}
