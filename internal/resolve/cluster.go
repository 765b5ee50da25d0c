package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"tripwindow/internal/trips"
)

// Cluster segments one bus-day of events into derived trips. Events are
// bucketed by local hour / BucketHours; each non-empty bucket, ordered by its
// earliest event, becomes one trip padded by DerivedPadding on both sides.
func Cluster(busID string, date trips.Date, events []trips.Event, policy Policy, loc *time.Location) []trips.Descriptor {
	if len(events) == 0 {
		return nil
	}
	sorted := make([]trips.Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	width := policy.bucketHours()
	buckets := make(map[int][]trips.Event)
	var order []int
	for _, ev := range sorted {
		key := ev.Timestamp.In(loc).Hour() / width
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], ev)
	}

	out := make([]trips.Descriptor, 0, len(order))
	for i, key := range order {
		evs := buckets[key]
		first, last := evs[0], evs[len(evs)-1]
		count := 0
		for _, ev := range evs {
			if ev.IsBoarding() {
				count++
			}
		}
		name := first.RouteName
		if name == "" {
			name = fmt.Sprintf("Trip %d", i+1)
		}
		out = append(out, trips.Descriptor{
			TripID:         trips.Encode(busID, date, i),
			Index:          i,
			Name:           name,
			BusID:          busID,
			RouteName:      first.RouteName,
			Departure:      first.Timestamp,
			WindowStart:    first.Timestamp.Add(-policy.DerivedPadding),
			WindowEnd:      last.Timestamp.Add(policy.DerivedPadding),
			Source:         trips.SourceDerived,
			PassengerCount: &count,
		})
	}
	return out
}

// cluster loads the bus-day of events, bounded to the local calendar day, and
// segments it.
func (r *Resolver) cluster(ctx context.Context, busID string, date trips.Date) ([]trips.Descriptor, error) {
	start, end := date.Bounds(r.loc)
	events, err := r.events.FindInWindow(ctx, busID, start, end)
	if err != nil {
		return nil, fmt.Errorf("find events for %s on %s: %w", busID, date, err)
	}
	return Cluster(busID, date, events, r.policy, r.loc), nil
}
