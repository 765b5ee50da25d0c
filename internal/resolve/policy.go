package resolve

import "time"

const (
	DefaultScheduledWindow = 3 * time.Hour
	DefaultSpanWindow      = 30 * time.Minute
	DefaultDerivedPadding  = 30 * time.Minute
	DefaultBucketHours     = 4
)

// Policy holds the window sizing rules.
type Policy struct {
	// ScheduledWindow is applied on both sides of a timetable departure.
	ScheduledWindow time.Duration
	// SpanWindow widens a legacy start/end pair on both sides.
	SpanWindow time.Duration
	// DerivedPadding widens a clustered trip around its first and last event.
	DerivedPadding time.Duration
	// BucketHours is the width of a clustering bucket in local hours.
	BucketHours int
	// DegradedFallback lets a historical reference with no surviving data be
	// approximated with the live timetable.
	DegradedFallback bool
}

func DefaultPolicy() Policy {
	return Policy{
		ScheduledWindow:  DefaultScheduledWindow,
		SpanWindow:       DefaultSpanWindow,
		DerivedPadding:   DefaultDerivedPadding,
		BucketHours:      DefaultBucketHours,
		DegradedFallback: true,
	}
}

func (p Policy) bucketHours() int {
	if p.BucketHours <= 0 || p.BucketHours > 24 {
		return DefaultBucketHours
	}
	return p.BucketHours
}
