package trips

import (
	"strconv"
	"strings"
	"time"
)

const scheduledPrefix = "SCHEDULED"

// All is the sentinel query value meaning "no filter".
const All = "ALL"

// Ref identifies a trip to external callers: either Scheduled or Literal.
type Ref interface {
	String() string
	isRef()
}

// Scheduled points at position Index of the timetable snapshot that applies
// to BusID on Date.
type Scheduled struct {
	BusID string
	Date  Date
	Index int
}

func (s Scheduled) String() string { return Encode(s.BusID, s.Date, s.Index) }
func (Scheduled) isRef()           {}

// Literal is any externally supplied identifier that is not a scheduled
// reference. It filters records by their stored trip id.
type Literal string

func (l Literal) String() string { return string(l) }
func (Literal) isRef()           {}

// Encode builds the opaque reference SCHEDULED_<bus>_<date>_<index>.
func Encode(busID string, date Date, index int) string {
	return scheduledPrefix + "_" + busID + "_" + string(date) + "_" + strconv.Itoa(index)
}

// Decode parses a scheduled reference. Bus ids may contain underscores: the
// index is the last segment, the date the one before it, and everything in
// between is the bus id.
func Decode(ref string) (Scheduled, bool) {
	parts := strings.Split(ref, "_")
	if len(parts) < 4 || parts[0] != scheduledPrefix {
		return Scheduled{}, false
	}
	last := parts[len(parts)-1]
	if !isDigits(last) {
		return Scheduled{}, false
	}
	index, err := strconv.Atoi(last)
	if err != nil {
		return Scheduled{}, false
	}
	date := parts[len(parts)-2]
	if _, err := time.Parse(dateLayout, date); err != nil {
		return Scheduled{}, false
	}
	busID := strings.Join(parts[1:len(parts)-2], "_")
	if busID == "" {
		return Scheduled{}, false
	}
	return Scheduled{BusID: busID, Date: Date(date), Index: index}, true
}

// ParseRef validates an inbound reference once. Empty and ALL yield nil.
func ParseRef(s string) Ref {
	s = strings.TrimSpace(s)
	if s == "" || s == All {
		return nil
	}
	if sched, ok := Decode(s); ok {
		return sched
	}
	return Literal(s)
}

// BusFilter normalizes a bus_id query value; "" and ALL mean every bus.
func BusFilter(s string) string {
	s = strings.TrimSpace(s)
	if s == All {
		return ""
	}
	return s
}
