package trips

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	ErrDateRequired = errors.New("date parameter is required")
	ErrInvalidDate  = errors.New("date must be YYYY-MM-DD")
	ErrInvalidClock = errors.New("time must be HH:MM")
)

// Date is a local calendar day formatted YYYY-MM-DD. The zero value is empty.
type Date string

// ParseDate reads a date from a query value; only the first 10 characters count,
// so full ISO timestamps are accepted.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrDateRequired
	}
	if len(s) > 10 {
		s = s[:10]
	}
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date(s), nil
}

// DateOf returns the local calendar day of t in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	return Date(t.In(loc).Format(dateLayout))
}

func (d Date) String() string { return string(d) }

// Midnight returns 00:00 of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Bounds returns the inclusive instants [00:00, 23:59:59.999] of d in loc.
func (d Date) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := d.Midnight(loc)
	return start, start.AddDate(0, 0, 1).Add(-time.Millisecond)
}

// At returns the instant of a clock offset on d in loc.
func (d Date) At(clock time.Duration, loc *time.Location) time.Time {
	return d.Midnight(loc).Add(clock)
}

// ParseClock parses a local "HH:MM" (seconds tolerated) into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	limits := []int{23, 59, 59}
	total := 0
	for i, p := range parts {
		if p == "" || len(p) > 2 || !isDigits(p) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		v, _ := strconv.Atoi(p)
		if v > limits[i] {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
		}
		switch i {
		case 0:
			total += v * 3600
		case 1:
			total += v * 60
		default:
			total += v
		}
	}
	return time.Duration(total) * time.Second, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ParseOffset parses a fixed UTC offset like "+05:30" or "-04:00" into a zone.
func ParseOffset(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" || strings.EqualFold(s, "UTC") {
		return time.UTC, nil
	}
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return nil, fmt.Errorf("invalid utc offset %q", s)
	}
	d, err := ParseClock(s[1:])
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q", s)
	}
	return time.FixedZone("UTC"+s, sign*int(d.Seconds())), nil
}
