package trips

import "time"

const DefaultPageLimit = 50

// RecordFilter selects passenger or unmatched records for listing.
type RecordFilter struct {
	BusID string
	// TripID filters by the stored trip id, for literal references.
	TripID string
	From   *time.Time
	To     *time.Time
	// Type applies to unmatched records only.
	Type  EventType
	Limit int
	Skip  int
	// Unbounded returns every match; Limit and Skip are ignored.
	Unbounded bool
}

// Page returns limit and offset with defaults applied.
func (f RecordFilter) Page() (limit, skip int) {
	limit, skip = f.Limit, f.Skip
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if skip < 0 {
		skip = 0
	}
	return limit, skip
}

// TripUsage aggregates the passengers stored under one trip id.
type TripUsage struct {
	TripID     string     `json:"trip_id"`
	BusID      string     `json:"bus_id"`
	RouteName  string     `json:"route_name,omitempty"`
	Count      int        `json:"count"`
	FirstEntry time.Time  `json:"first_entry"`
	LastExit   *time.Time `json:"last_exit,omitempty"`
}

// UsageReport groups passengers by stored trip id, most recent trip first.
type UsageReport struct {
	Trips           []TripUsage `json:"trips"`
	TotalPassengers int         `json:"total_passengers"`
	WithoutTrip     int         `json:"passengers_without_trip"`
}
