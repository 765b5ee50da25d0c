package resolve

import (
	"context"
	"fmt"

	"tripwindow/internal/trips"
)

// Matcher attributes events to resolved trips through their windows.
type Matcher struct {
	events EventProvider
}

func NewMatcher(events EventProvider) *Matcher {
	return &Matcher{events: events}
}

// Events returns the events of the trip's bus inside its window.
func (m *Matcher) Events(ctx context.Context, d trips.Descriptor) ([]trips.Event, error) {
	evs, err := m.events.FindInWindow(ctx, d.BusID, d.WindowStart, d.WindowEnd)
	if err != nil {
		return nil, fmt.Errorf("find events for %s: %w", d.TripID, err)
	}
	return evs, nil
}

// AttachCounts sets the passenger count on scheduled descriptors. Derived
// trips keep the count from clustering; history trips carry none.
func (m *Matcher) AttachCounts(ctx context.Context, ds []trips.Descriptor) error {
	for i := range ds {
		if ds[i].Source != trips.SourceScheduled {
			continue
		}
		n, err := m.events.CountInWindow(ctx, ds[i].BusID, ds[i].WindowStart, ds[i].WindowEnd)
		if err != nil {
			return fmt.Errorf("count passengers for %s: %w", ds[i].TripID, err)
		}
		ds[i].PassengerCount = &n
	}
	return nil
}
