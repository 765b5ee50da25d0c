package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwindow/internal/memstore"
	"tripwindow/internal/trips"
)

func TestMatcherCountsScheduledTrips(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.UpsertSchedule(ctx, schedule("B1", "08:15", "16:15")))
	// inside the morning window, on the boundary, outside both, inside the evening window
	for i, at := range []ts{{11, 6, 0}, {11, 11, 15}, {11, 12, 0}, {11, 17, 0}} {
		store.AddPassenger(passenger(string(rune('a'+i)), "B1", local(at.day, at.h, at.m)))
	}
	store.AddPassenger(passenger("other-bus", "B2", local(11, 8, 0)))

	r := newResolver(store)
	res, err := r.Resolve(ctx, "B1", "2024-01-11")
	require.NoError(t, err)

	m := NewMatcher(store)
	require.NoError(t, m.AttachCounts(ctx, res.Trips))
	require.NotNil(t, res.Trips[0].PassengerCount)
	assert.Equal(t, 2, *res.Trips[0].PassengerCount)
	assert.Equal(t, 1, *res.Trips[1].PassengerCount)

	for _, d := range res.Trips {
		evs, err := m.Events(ctx, d)
		require.NoError(t, err)
		boardings := 0
		for _, ev := range evs {
			assert.True(t, d.Contains(ev.Timestamp))
			if ev.IsBoarding() {
				boardings++
			}
		}
		assert.Equal(t, *d.PassengerCount, boardings)
	}
}

type ts struct{ day, h, m int }

func TestMatcherLeavesOtherSourcesAlone(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.AddPassenger(passenger("a", "B1", local(9, 7, 0)))
	derived := 7
	ds := []trips.Descriptor{
		{TripID: "d", BusID: "B1", Source: trips.SourceDerived, PassengerCount: &derived, WindowStart: local(9, 0, 0), WindowEnd: local(9, 23, 0)},
		{TripID: "h", BusID: "B1", Source: trips.SourceHistory, WindowStart: local(9, 0, 0), WindowEnd: local(9, 23, 0)},
	}
	require.NoError(t, NewMatcher(store).AttachCounts(ctx, ds))
	assert.Equal(t, 7, *ds[0].PassengerCount)
	assert.Nil(t, ds[1].PassengerCount)
}

func TestMatcherErrors(t *testing.T) {
	boom := errors.New("timeout")
	store := memstore.New()
	store.Fail(boom)
	m := NewMatcher(store)
	d := trips.Descriptor{TripID: "x", BusID: "B1", Source: trips.SourceScheduled}

	assert.ErrorIs(t, m.AttachCounts(context.Background(), []trips.Descriptor{d}), boom)
	_, err := m.Events(context.Background(), d)
	assert.ErrorIs(t, err, boom)
}

func TestScheduleChainStopsAtFirstHit(t *testing.T) {
	ctx := context.Background()
	first, second := memstore.New(), memstore.New()
	require.NoError(t, second.UpsertSchedule(ctx, schedule("B1", "08:00")))
	chain := ScheduleChain{first, second}

	s, err := chain.FindSchedule(ctx, "B1")
	require.NoError(t, err)
	require.NotNil(t, s)

	s, err = chain.FindSchedule(ctx, "B9")
	require.NoError(t, err)
	assert.Nil(t, s)

	first.Fail(errors.New("down"))
	_, err = chain.FindSchedule(ctx, "B1")
	assert.Error(t, err)
}
