package resolve

import (
	"context"
	"time"

	"tripwindow/internal/trips"
)

// ScheduleProvider returns live timetables. A miss is (nil, nil).
type ScheduleProvider interface {
	FindSchedule(ctx context.Context, busID string) (*trips.Schedule, error)
	ListSchedules(ctx context.Context) ([]trips.Schedule, error)
}

// HistoryProvider returns frozen per-day timetables. A miss is (nil, nil).
type HistoryProvider interface {
	FindHistory(ctx context.Context, busID string, date trips.Date) (*trips.ScheduleHistory, error)
	ListHistory(ctx context.Context, date trips.Date) ([]trips.ScheduleHistory, error)
}

// EventProvider is the range-queryable store of passenger and unmatched events.
type EventProvider interface {
	// FindInWindow returns events of busID with timestamp in [start, end], oldest first.
	FindInWindow(ctx context.Context, busID string, start, end time.Time) ([]trips.Event, error)
	// CountInWindow counts matched passenger boardings of busID in [start, end].
	CountInWindow(ctx context.Context, busID string, start, end time.Time) (int, error)
	// BusesInWindow lists the distinct buses with any event in [start, end].
	BusesInWindow(ctx context.Context, start, end time.Time) ([]string, error)
}

// ScheduleChain queries providers in priority order. A bus is answered by the
// first provider that knows it; later providers are compatibility sources only.
type ScheduleChain []ScheduleProvider

func (c ScheduleChain) FindSchedule(ctx context.Context, busID string) (*trips.Schedule, error) {
	for _, p := range c {
		s, err := p.FindSchedule(ctx, busID)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	return nil, nil
}

// ListSchedules merges every provider's list per bus id, keeping the entry of
// the earliest provider that has the bus.
func (c ScheduleChain) ListSchedules(ctx context.Context) ([]trips.Schedule, error) {
	var out []trips.Schedule
	seen := make(map[string]bool)
	for _, p := range c {
		list, err := p.ListSchedules(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range list {
			if seen[s.BusID] {
				continue
			}
			seen[s.BusID] = true
			out = append(out, s)
		}
	}
	return out, nil
}
