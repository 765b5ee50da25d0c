package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tripwindow/internal/schedules"
	"tripwindow/internal/trips"
)

const maxScheduleBody = 1 << 20

func (a *API) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	busID := chi.URLParam(r, "busID")
	sched, err := a.schedules.Get(r.Context(), busID)
	if err != nil {
		a.internalError(w, r, "failed to fetch schedule", err)
		return
	}
	if sched == nil {
		writeError(w, http.StatusNotFound, "schedule not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "schedule": sched})
}

func (a *API) handleSaveSchedule(w http.ResponseWriter, r *http.Request) {
	var req schedules.SaveRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScheduleBody))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sched, err := a.schedules.Save(r.Context(), req)
	if errors.Is(err, schedules.ErrInvalidSchedule) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.internalError(w, r, "failed to save schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "schedule": sched})
}

func (a *API) handleScheduledTrips(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := a.resolver.Now()
	date := trips.DateOf(now, a.resolver.Location())
	if raw := q.Get("date"); raw != "" {
		d, err := trips.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, dateMessage(err))
			return
		}
		date = d
	}

	list, err := a.schedules.ScheduledTrips(r.Context(), trips.BusFilter(q.Get("bus_id")), date)
	if err != nil {
		a.internalError(w, r, "failed to fetch scheduled trips", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"date":        date,
		"trips":       list,
		"currentTime": now.UTC().Format(time.RFC3339),
	})
}
