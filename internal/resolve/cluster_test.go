package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwindow/internal/trips"
)

func entry(id string, at time.Time) trips.Event {
	return trips.Event{ID: id, BusID: "B1", Kind: trips.KindPassenger, Type: trips.EventEntry, Timestamp: at}
}

func TestClusterEmpty(t *testing.T) {
	assert.Nil(t, Cluster("B1", "2024-01-09", nil, DefaultPolicy(), colombo))
}

func TestClusterOrdersUnsortedInput(t *testing.T) {
	events := []trips.Event{
		entry("late", local(9, 21, 0)),
		entry("early", local(9, 1, 0)),
		{ID: "x", BusID: "B1", Kind: trips.KindPassenger, Type: trips.EventExit, Timestamp: local(9, 2, 30)},
	}
	ds := Cluster("B1", "2024-01-09", events, DefaultPolicy(), colombo)
	require.Len(t, ds, 2)
	assert.True(t, ds[0].Departure.Equal(local(9, 1, 0)))
	assert.True(t, ds[0].WindowEnd.Equal(local(9, 3, 0)))
	assert.Equal(t, 1, *ds[0].PassengerCount)
	assert.Equal(t, 1, ds[1].Index)
	assert.Equal(t, "SCHEDULED_B1_2024-01-09_1", ds[1].TripID)
}

func TestClusterUsesLocalHour(t *testing.T) {
	// 22:45 UTC on the 8th is 04:15 local on the 9th: bucket 1, not bucket 5.
	events := []trips.Event{
		entry("a", time.Date(2024, 1, 8, 22, 45, 0, 0, time.UTC)),
		entry("b", local(9, 7, 0)),
	}
	ds := Cluster("B1", "2024-01-09", events, DefaultPolicy(), colombo)
	require.Len(t, ds, 1)
	assert.Equal(t, 2, *ds[0].PassengerCount)
}

func TestClusterBucketWidth(t *testing.T) {
	events := []trips.Event{entry("a", local(9, 6, 0)), entry("b", local(9, 7, 0))}

	p := DefaultPolicy()
	p.BucketHours = 1
	assert.Len(t, Cluster("B1", "2024-01-09", events, p, colombo), 2)

	p.BucketHours = 0
	assert.Len(t, Cluster("B1", "2024-01-09", events, p, colombo), 1)
}

func TestClusterRouteNameFromFirstEvent(t *testing.T) {
	ev := entry("a", local(9, 9, 0))
	ev.RouteName = "Jaffna-Colombo"
	ds := Cluster("B1", "2024-01-09", []trips.Event{ev}, DefaultPolicy(), colombo)
	require.Len(t, ds, 1)
	assert.Equal(t, "Jaffna-Colombo", ds[0].Name)
	assert.Equal(t, "Jaffna-Colombo", ds[0].RouteName)
}
