package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/internal/store"
	"github.com/wendao/limitpulse/pkg/logger"
)

// SnapshotHandler serves persisted snapshot artifacts and calendar lookups.
type SnapshotHandler struct {
	store    *store.Store
	calendar *calendar.Calendar
	logger   *logger.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(st *store.Store, cal *calendar.Calendar, log *logger.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		store:    st,
		calendar: cal,
		logger:   log,
	}
}

// GetByDate returns the artifact for an exact (dataType, date) pair
// GET /api/snapshots/{dataType}/{date}
func (h *SnapshotHandler) GetByDate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataType, date, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	env, err := h.store.Get(ctx, dataType, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No snapshot for this date")
			return
		}
		h.logger.WithError(err).Error("Failed to read snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}

	respondJSON(w, http.StatusOK, env)
}

// GetLatest returns the newest artifact at or before the given date
// GET /api/snapshots/{dataType}/{date}/latest
func (h *SnapshotHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dataType, date, ok := h.pathParams(w, r)
	if !ok {
		return
	}

	env, err := h.store.GetLatest(ctx, dataType, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, "No snapshot at or before this date")
			return
		}
		h.logger.WithError(err).Error("Failed to read latest snapshot")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve snapshot")
		return
	}

	respondJSON(w, http.StatusOK, env)
}

// GetDayStatus returns the trading-day status for a date
// GET /api/calendar/{date}
func (h *SnapshotHandler) GetDayStatus(w http.ResponseWriter, r *http.Request) {
	day, err := calendar.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	respondJSON(w, http.StatusOK, h.calendar.Status(day))
}

func (h *SnapshotHandler) pathParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	vars := mux.Vars(r)
	dataType := vars["dataType"]
	date := vars["date"]

	if !knownDataType(dataType) {
		respondError(w, http.StatusBadRequest, "Unknown data type")
		return "", "", false
	}
	if _, err := calendar.ParseDate(date); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return "", "", false
	}
	return dataType, date, true
}

func knownDataType(dt string) bool {
	switch dt {
	case store.TypeQuotes, store.TypeLimitUp, store.TypeLimitDown, store.TypeSuspended:
		return true
	}
	return false
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
