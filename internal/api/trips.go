package api

import (
	"errors"
	"net/http"
	"strings"

	"tripwindow/internal/trips"
)

func (a *API) handleTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := trips.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, dateMessage(err))
		return
	}

	res, err := a.resolver.Resolve(r.Context(), trips.BusFilter(q.Get("bus_id")), date)
	if err != nil {
		a.internalError(w, r, "failed to resolve trips", err)
		return
	}
	if err := a.matcher.AttachCounts(r.Context(), res.Trips); err != nil {
		a.internalError(w, r, "failed to count passengers", err)
		return
	}

	list := res.Trips
	if list == nil {
		list = []trips.Descriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"date":   res.Date,
		"regime": res.Regime,
		"count":  len(list),
		"trips":  list,
	})
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("trip_ref")
	if raw == "" {
		raw = q.Get("trip_id")
	}
	ref := trips.ParseRef(raw)
	if ref == nil {
		writeError(w, http.StatusBadRequest, "trip_ref parameter is required")
		return
	}
	sched, ok := ref.(trips.Scheduled)
	if !ok {
		writeError(w, http.StatusNotFound, "not a scheduled trip reference")
		return
	}

	d, err := a.resolver.ResolveRef(r.Context(), sched)
	if err != nil {
		a.internalError(w, r, "failed to resolve trip", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "trip not found")
		return
	}
	one := []trips.Descriptor{*d}
	if err := a.matcher.AttachCounts(r.Context(), one); err != nil {
		a.internalError(w, r, "failed to count passengers", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"regime": trips.Classify(sched.Date, a.resolver.Now(), a.resolver.Location()),
		"trip":   one[0],
	})
}

// handleAnalyze groups stored passengers by the trip they were attributed to.
func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := trips.RecordFilter{BusID: trips.BusFilter(q.Get("bus_id")), Unbounded: true}
	if q.Get("date") != "" {
		date, err := trips.ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, dateMessage(err))
			return
		}
		start, end := date.Bounds(a.resolver.Location())
		f.From, f.To = &start, &end
	}

	rep, err := a.records.AnalyzeTrips(r.Context(), f)
	if err != nil {
		a.internalError(w, r, "failed to analyze trips", err)
		return
	}
	list := rep.Trips
	if list == nil {
		list = []trips.TripUsage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                  "success",
		"trips":                   list,
		"total_passengers":        rep.TotalPassengers,
		"passengers_without_trip": rep.WithoutTrip,
	})
}

func dateMessage(err error) string {
	if errors.Is(err, trips.ErrDateRequired) {
		return "Date parameter is required"
	}
	return strings.TrimSpace(err.Error())
}
