package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tripwindow/internal/trips"
)

// tripWindow reports the resolved window a listing was filtered by.
type tripWindow struct {
	TripID      string       `json:"trip_id"`
	BusID       string       `json:"bus_id"`
	WindowStart time.Time    `json:"window_start"`
	WindowEnd   time.Time    `json:"window_end"`
	Source      trips.Source `json:"source"`
	Degraded    bool         `json:"degraded,omitempty"`
}

// recordFilter turns listing query parameters into a filter. A scheduled
// trip_id that resolves becomes a bus and time window; anything else filters
// by the stored trip id.
func (a *API) recordFilter(r *http.Request) (trips.RecordFilter, *tripWindow, error) {
	q := r.URL.Query()
	var f trips.RecordFilter

	var err error
	if f.Limit, err = intParam(q.Get("limit"), trips.DefaultPageLimit); err != nil {
		return f, nil, inputError(fmt.Sprintf("invalid limit: %v", err))
	}
	if f.Skip, err = intParam(q.Get("skip"), 0); err != nil {
		return f, nil, inputError(fmt.Sprintf("invalid skip: %v", err))
	}
	if t := strings.ToUpper(strings.TrimSpace(q.Get("type"))); t != "" {
		if t != string(trips.EventEntry) && t != string(trips.EventExit) {
			return f, nil, inputError(fmt.Sprintf("invalid type %q", t))
		}
		f.Type = trips.EventType(t)
	}

	var window *tripWindow
	switch ref := trips.ParseRef(q.Get("trip_id")).(type) {
	case trips.Scheduled:
		d, err := a.resolver.ResolveRef(r.Context(), ref)
		if err != nil {
			return f, nil, err
		}
		if d != nil {
			start, end := d.WindowStart, d.WindowEnd
			f.BusID, f.From, f.To = d.BusID, &start, &end
			window = &tripWindow{
				TripID: d.TripID, BusID: d.BusID, WindowStart: start, WindowEnd: end,
				Source: d.Source, Degraded: d.Degraded,
			}
		} else {
			f.TripID = ref.String()
		}
	case trips.Literal:
		f.TripID = ref.String()
	}

	if f.BusID == "" {
		f.BusID = trips.BusFilter(q.Get("bus_id"))
	}
	if window == nil && q.Get("date") != "" {
		date, err := trips.ParseDate(q.Get("date"))
		if err != nil {
			return f, nil, inputError(err.Error())
		}
		start, end := date.Bounds(a.resolver.Location())
		f.From, f.To = &start, &end
	}
	return f, window, nil
}

// inputError is a malformed query parameter, answered with 400.
type inputError string

func (e inputError) Error() string { return string(e) }

func (a *API) handlePassengers(w http.ResponseWriter, r *http.Request) {
	f, window, err := a.recordFilter(r)
	if err != nil {
		a.filterError(w, r, err)
		return
	}
	list, total, err := a.records.ListPassengers(r.Context(), f)
	if err != nil {
		a.internalError(w, r, "failed to fetch passengers", err)
		return
	}
	if list == nil {
		list = []trips.Passenger{}
	}
	limit, skip := f.Page()
	writeJSON(w, http.StatusOK, listing(total, len(list), limit, skip, window, "passengers", list))
}

func (a *API) handleUnmatched(w http.ResponseWriter, r *http.Request) {
	f, window, err := a.recordFilter(r)
	if err != nil {
		a.filterError(w, r, err)
		return
	}
	list, total, err := a.records.ListUnmatched(r.Context(), f)
	if err != nil {
		a.internalError(w, r, "failed to fetch unmatched passengers", err)
		return
	}
	if list == nil {
		list = []trips.Unmatched{}
	}
	limit, skip := f.Page()
	writeJSON(w, http.StatusOK, listing(total, len(list), limit, skip, window, "unmatched", list))
}

// handlePassengerRange lists every passenger boarding in [startDate, endDate],
// newest first. Each bound is an RFC 3339 instant or a local calendar day.
func (a *API) handlePassengerRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loc := a.resolver.Location()
	from, err := rangeBound(firstParam(q, "startDate", "start_date"), false, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "startDate: "+err.Error())
		return
	}
	to, err := rangeBound(firstParam(q, "endDate", "end_date"), true, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "endDate: "+err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "endDate is before startDate")
		return
	}

	f := trips.RecordFilter{BusID: trips.BusFilter(q.Get("bus_id")), From: &from, To: &to, Unbounded: true}
	list, total, err := a.records.ListPassengers(r.Context(), f)
	if err != nil {
		a.internalError(w, r, "failed to fetch passengers", err)
		return
	}
	if list == nil {
		list = []trips.Passenger{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "success",
		"total":      total,
		"count":      len(list),
		"passengers": list,
	})
}

// rangeBound parses one end of a date range. A bare day expands to its first
// or last instant in loc.
func rangeBound(s string, end bool, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("is required")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if len(s) != len("2006-01-02") {
		return time.Time{}, fmt.Errorf("%q is neither a date nor an RFC 3339 instant", s)
	}
	date, err := trips.ParseDate(s)
	if err != nil {
		return time.Time{}, err
	}
	first, last := date.Bounds(loc)
	if end {
		return last, nil
	}
	return first, nil
}

func firstParam(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func (a *API) filterError(w http.ResponseWriter, r *http.Request, err error) {
	var bad inputError
	if errors.As(err, &bad) {
		writeError(w, http.StatusBadRequest, bad.Error())
		return
	}
	a.internalError(w, r, "failed to resolve trip filter", err)
}

func listing(total, count, limit, skip int, window *tripWindow, key string, items any) map[string]any {
	body := map[string]any{
		"status": "success",
		"total":  total,
		"count":  count,
		"limit":  limit,
		"skip":   skip,
		key:      items,
	}
	if window != nil {
		body["window"] = window
	}
	return body
}

func intParam(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
