package trips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		busID string
		date  Date
		index int
	}{
		{name: "plain bus id", busID: "BUS001", date: "2024-01-10", index: 0},
		{name: "underscore bus id", busID: "NB_1234_A", date: "2024-02-29", index: 3},
		{name: "leading underscore segment", busID: "_x", date: "2025-12-31", index: 12},
		{name: "bus id that looks like a ref", busID: "SCHEDULED_2024-01-01_1", date: "2024-01-02", index: 7},
		{name: "large index", busID: "B", date: "2024-06-01", index: 104},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			enc := Encode(tc.busID, tc.date, tc.index)
			got, ok := Decode(enc)
			require.True(t, ok, "decode %q", enc)
			assert.Equal(t, Scheduled{BusID: tc.busID, Date: tc.date, Index: tc.index}, got)
			assert.Equal(t, enc, got.String())
		})
	}
}

func TestEncodeFormat(t *testing.T) {
	assert.Equal(t, "SCHEDULED_NB-1234_2024-01-10_2", Encode("NB-1234", "2024-01-10", 2))
}

func TestDecodeRejectsNonScheduled(t *testing.T) {
	for _, ref := range []string{
		"",
		"trip_42",
		"SCHEDULED",
		"SCHEDULED_2024-01-10_1",
		"SCHEDULED__2024-01-10_1",
		"SCHEDULED_BUS_2024-01-10_x",
		"SCHEDULED_BUS_2024-01-10_-1",
		"SCHEDULED_BUS_2024-01-10_+1",
		"SCHEDULED_BUS_2024-13-10_1",
		"SCHEDULED_BUS_yesterday_1",
		"scheduled_BUS_2024-01-10_1",
		"TRIP_BUS_2024-01-10_1",
	} {
		_, ok := Decode(ref)
		assert.False(t, ok, "expected %q to be rejected", ref)
	}
}

func TestParseRef(t *testing.T) {
	assert.Nil(t, ParseRef(""))
	assert.Nil(t, ParseRef("ALL"))

	ref := ParseRef("SCHEDULED_BUS_7_2024-01-10_1")
	sched, ok := ref.(Scheduled)
	require.True(t, ok)
	assert.Equal(t, "BUS_7", sched.BusID)

	lit, ok := ParseRef("BUS7_1705000000").(Literal)
	require.True(t, ok)
	assert.Equal(t, "BUS7_1705000000", lit.String())
}

func TestBusFilter(t *testing.T) {
	assert.Equal(t, "", BusFilter("ALL"))
	assert.Equal(t, "", BusFilter(" "))
	assert.Equal(t, "B1", BusFilter("B1"))
}
