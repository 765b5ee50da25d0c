package trips

import "time"

// TripDefinition is one entry of a bus timetable. Times are local "HH:MM".
type TripDefinition struct {
	TripName             string `json:"trip_name" yaml:"trip_name"`
	Direction            string `json:"direction,omitempty" yaml:"direction,omitempty"`
	Route                string `json:"route,omitempty" yaml:"route,omitempty"`
	RouteID              string `json:"route_id,omitempty" yaml:"route_id,omitempty"`
	BoardingStartTime    string `json:"boarding_start_time" yaml:"boarding_start_time"`
	DepartureTime        string `json:"departure_time" yaml:"departure_time"`
	EstimatedArrivalTime string `json:"estimated_arrival_time" yaml:"estimated_arrival_time"`
	Active               *bool  `json:"active,omitempty" yaml:"active,omitempty"`
}

// IsActive reports whether the trip runs. A missing flag means active.
func (t TripDefinition) IsActive() bool { return t.Active == nil || *t.Active }

// Departure returns the departure clock time, falling back to boarding start.
func (t TripDefinition) Departure() string {
	if t.DepartureTime != "" {
		return t.DepartureTime
	}
	return t.BoardingStartTime
}

// Span is the legacy single start/end pair a bus may be configured with
// instead of a trip array.
type Span struct {
	Start string `json:"trip_start" yaml:"trip_start"`
	End   string `json:"trip_end" yaml:"trip_end"`
}

// Schedule is the live, editable timetable of one bus.
type Schedule struct {
	BusID     string           `json:"bus_id" yaml:"bus_id"`
	BusName   string           `json:"bus_name,omitempty" yaml:"bus_name,omitempty"`
	RouteName string           `json:"route_name,omitempty" yaml:"route_name,omitempty"`
	Trips     []TripDefinition `json:"trips" yaml:"trips"`
	Span      *Span            `json:"span,omitempty" yaml:"span,omitempty"`
	UpdatedAt time.Time        `json:"updated_at" yaml:"updated_at"`
}

// ScheduleHistory is the frozen timetable of one bus for one local day.
type ScheduleHistory struct {
	BusID     string           `json:"bus_id" yaml:"bus_id"`
	Date      Date             `json:"date" yaml:"date"`
	RouteName string           `json:"route_name,omitempty" yaml:"route_name,omitempty"`
	Trips     []TripDefinition `json:"trips" yaml:"trips"`
	CreatedAt time.Time        `json:"created_at" yaml:"created_at"`
}

type EventKind string

const (
	KindPassenger EventKind = "passenger"
	KindUnmatched EventKind = "unmatched"
)

type EventType string

const (
	EventEntry EventType = "ENTRY"
	EventExit  EventType = "EXIT"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	DeviceID  string  `json:"device_id,omitempty"`
}

// Event is a single boarding or alighting observation.
type Event struct {
	ID        string    `json:"id"`
	BusID     string    `json:"bus_id"`
	Kind      EventKind `json:"kind"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Location  Location  `json:"location"`
	RouteName string    `json:"route_name,omitempty"`
	TripID    string    `json:"trip_id,omitempty"`
}

// IsBoarding reports whether e is a matched passenger boarding.
func (e Event) IsBoarding() bool { return e.Kind == KindPassenger && e.Type == EventEntry }

// Passenger is one matched journey (entry face matched to exit face).
type Passenger struct {
	ID                     string     `json:"id"`
	BusID                  string     `json:"bus_id"`
	RouteName              string     `json:"route_name,omitempty"`
	TripID                 string     `json:"trip_id,omitempty"`
	EntryLocation          Location   `json:"entryLocation"`
	ExitLocation           *Location  `json:"exitLocation,omitempty"`
	EntryTimestamp         time.Time  `json:"entry_timestamp"`
	ExitTimestamp          *time.Time `json:"exit_timestamp,omitempty"`
	JourneyDurationMinutes float64    `json:"journey_duration_minutes,omitempty"`
	SimilarityScore        float64    `json:"similarity_score,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
}

// Unmatched is a detection that could not be paired with its counterpart.
type Unmatched struct {
	ID                  string    `json:"id"`
	BusID               string    `json:"bus_id"`
	RouteName           string    `json:"route_name,omitempty"`
	TripID              string    `json:"trip_id,omitempty"`
	Type                EventType `json:"type"`
	Location            Location  `json:"location"`
	LocationName        string    `json:"location_name,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
	BestSimilarityFound float64   `json:"best_similarity_found,omitempty"`
	Reason              string    `json:"reason,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type Source string

const (
	SourceScheduled Source = "scheduled"
	SourceHistory   Source = "history"
	SourceDerived   Source = "derived"
)

// Descriptor is a resolved trip: a stable identifier plus its attribution window.
type Descriptor struct {
	TripID         string    `json:"trip_id" yaml:"trip_id"`
	Index          int       `json:"trip_index" yaml:"trip_index"`
	Name           string    `json:"trip_name" yaml:"trip_name"`
	BusID          string    `json:"bus_id" yaml:"bus_id"`
	RouteName      string    `json:"route_name,omitempty" yaml:"route_name,omitempty"`
	Route          string    `json:"route,omitempty" yaml:"route,omitempty"`
	Direction      string    `json:"direction,omitempty" yaml:"direction,omitempty"`
	Departure      time.Time `json:"start_time" yaml:"start_time"`
	WindowStart    time.Time `json:"window_start" yaml:"window_start"`
	WindowEnd      time.Time `json:"window_end" yaml:"window_end"`
	Source         Source    `json:"source" yaml:"source"`
	PassengerCount *int      `json:"passenger_count,omitempty" yaml:"passenger_count,omitempty"`
	Degraded       bool      `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}

// Contains reports whether t falls inside the inclusive window.
func (d Descriptor) Contains(t time.Time) bool {
	return !t.Before(d.WindowStart) && !t.After(d.WindowEnd)
}
