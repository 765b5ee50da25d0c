package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripwindow/internal/trips"
)

func TestDecodeTripsKeepsOrderAndDefaultsActive(t *testing.T) {
	raw := []byte(`[
	  {"trip_name":"Morning","departure_time":"08:15","boarding_start_time":"08:00","estimated_arrival_time":"12:00"},
	  {"trip_name":"Evening","departure_time":"16:15","active":false}
	]`)
	defs, err := decodeTrips(raw)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "Morning", defs[0].TripName)
	assert.True(t, defs[0].IsActive())
	assert.False(t, defs[1].IsActive())
}

func TestDecodeTripsEmpty(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("null")} {
		defs, err := decodeTrips(raw)
		require.NoError(t, err)
		assert.Nil(t, defs)
	}
}

func TestEncodeTripsNeverNull(t *testing.T) {
	s, err := encodeTrips(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)
}

func TestPassengerWhere(t *testing.T) {
	from := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	w := passengerWhere(trips.RecordFilter{BusID: "B1", From: &from, To: &to})
	assert.Equal(t, " WHERE bus_id = $1 AND entry_timestamp >= $2 AND entry_timestamp <= $3", w.String())
	assert.Equal(t, []any{"B1", from, to}, w.args)
	assert.Equal(t, "$4", w.next(50))
}

func TestUnmatchedWhereLiteralTrip(t *testing.T) {
	w := unmatchedWhere(trips.RecordFilter{TripID: "BUS7_1705000000", Type: trips.EventExit})
	assert.Equal(t, " WHERE trip_id = $1 AND type = $2", w.String())
	assert.Equal(t, []any{"BUS7_1705000000", "EXIT"}, w.args)
}

func TestWhereEmpty(t *testing.T) {
	w := &where{}
	assert.Equal(t, "", w.String())
	assert.Equal(t, "$1", w.next(10))
}

func TestPowerConfigSpanNeedsBothEnds(t *testing.T) {
	assert.Nil(t, powerConfigSpan("06:00", ""))
	assert.Nil(t, powerConfigSpan("", "18:00"))
	assert.Equal(t, &trips.Span{Start: "06:00", End: "18:00"}, powerConfigSpan("06:00", "18:00"))
}

func TestWithDBName(t *testing.T) {
	got, err := WithDBName("postgres://svc:pw@db:5432/postgres?sslmode=disable", "transit_2024")
	require.NoError(t, err)
	assert.Equal(t, "postgres://svc:pw@db:5432/transit_2024?sslmode=disable", got)

	got, err = WithDBName("svc@db:5432/postgres", "/transit")
	require.NoError(t, err)
	assert.Equal(t, "postgres://svc@db:5432/transit", got)

	got, err = WithDBName("postgres://db/app", "")
	require.NoError(t, err)
	assert.Equal(t, "postgres://db/app", got)

	_, err = WithDBName("", "transit")
	assert.Error(t, err)
	_, err = WithDBName("mysql://db/app", "transit")
	assert.Error(t, err)
}

func TestPageClause(t *testing.T) {
	w := passengerWhere(trips.RecordFilter{BusID: "B1"})
	assert.Equal(t, " LIMIT $2 OFFSET $3", pageClause(w, trips.RecordFilter{Skip: 5}))
	assert.Equal(t, []any{"B1", 50, 5}, w.args)

	w = passengerWhere(trips.RecordFilter{BusID: "B1"})
	assert.Equal(t, "", pageClause(w, trips.RecordFilter{Limit: 10, Unbounded: true}))
	assert.Equal(t, []any{"B1"}, w.args)
}

func TestWhereAndTakesNoArgument(t *testing.T) {
	w := passengerWhere(trips.RecordFilter{BusID: "B1"})
	w.and("trip_id IS NOT NULL")
	w.add("entry_timestamp >= $%d", "x")
	assert.Equal(t, " WHERE bus_id = $1 AND trip_id IS NOT NULL AND entry_timestamp >= $2", w.String())
}
