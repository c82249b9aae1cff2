package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/internal/limits"
	"github.com/wendao/limitpulse/pkg/logger"
)

// ArchiveReader reads classified facts back out of the Postgres archive.
type ArchiveReader interface {
	ListLimitFacts(ctx context.Context, date string, direction limits.Direction) ([]limits.LimitFact, error)
	TradeDates(ctx context.Context, limit int) ([]string, error)
}

// ArchiveHandler serves the archived limit facts for dashboard history
// queries. Only mounted when a database is configured.
type ArchiveHandler struct {
	archive ArchiveReader
	logger  *logger.Logger
}

// NewArchiveHandler creates a new archive handler
func NewArchiveHandler(archive ArchiveReader, log *logger.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		logger:  log,
	}
}

// ListFacts returns the archived facts for a date and direction
// GET /api/archive/{direction}/{date}
func (h *ArchiveHandler) ListFacts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	direction, ok := parseDirection(vars["direction"])
	if !ok {
		respondError(w, http.StatusBadRequest, "Unknown direction, expected up or down")
		return
	}
	date := vars["date"]
	if _, err := calendar.ParseDate(date); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	facts, err := h.archive.ListLimitFacts(r.Context(), date, direction)
	if err != nil {
		h.logger.WithError(err).Error("Failed to read archived facts")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve archived facts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":      date,
		"direction": direction,
		"count":     len(facts),
		"facts":     facts,
	})
}

// ListDates returns the archived trade dates, newest first
// GET /api/archive/dates?limit=30
func (h *ArchiveHandler) ListDates(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	dates, err := h.archive.TradeDates(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list archived dates")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve archived dates")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(dates),
		"dates": dates,
	})
}

func parseDirection(raw string) (limits.Direction, bool) {
	switch raw {
	case string(limits.DirectionUp):
		return limits.DirectionUp, true
	case string(limits.DirectionDown):
		return limits.DirectionDown, true
	}
	return "", false
}
