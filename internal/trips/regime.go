package trips

import "time"

type Regime string

const (
	RegimeScheduled  Regime = "SCHEDULED"
	RegimeHistorical Regime = "HISTORICAL"
)

// Classify picks the data regime for date. Only days strictly before the
// local today are historical; today and the future use the live timetable.
func Classify(date Date, now time.Time, loc *time.Location) Regime {
	if date < DateOf(now, loc) {
		return RegimeHistorical
	}
	return RegimeScheduled
}

type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// TripStatus reports where a trip stands on date relative to now, using the
// boarding start and estimated arrival clocks. An arrival earlier than the
// boarding start runs past midnight.
func TripStatus(date Date, boarding, arrival time.Duration, now time.Time, loc *time.Location) Status {
	today := DateOf(now, loc)
	switch {
	case date < today:
		return StatusCompleted
	case date > today:
		return StatusUpcoming
	}
	if arrival < boarding {
		arrival += 24 * time.Hour
	}
	local := now.In(loc)
	cur := time.Duration(local.Hour())*time.Hour + time.Duration(local.Minute())*time.Minute
	switch {
	case cur >= boarding && cur <= arrival:
		return StatusActive
	case cur > arrival:
		return StatusCompleted
	default:
		return StatusUpcoming
	}
}
