package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wendao/limitpulse/internal/calendar"
	"github.com/wendao/limitpulse/internal/store"
	"github.com/wendao/limitpulse/pkg/logger"
)

func newTestHandler(t *testing.T) (*SnapshotHandler, *store.Store) {
	t.Helper()
	st, err := store.New(logger.NewNop(), store.NewFileLocation("primary", t.TempDir()))
	require.NoError(t, err)
	return NewSnapshotHandler(st, calendar.New(), logger.NewNop()), st
}

func testRouter(h *SnapshotHandler) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/snapshots/{dataType}/{date}", h.GetByDate).Methods("GET")
	r.HandleFunc("/api/snapshots/{dataType}/{date}/latest", h.GetLatest).Methods("GET")
	r.HandleFunc("/api/calendar/{date}", h.GetDayStatus).Methods("GET")
	return r
}

func seedSnapshot(t *testing.T, st *store.Store, dataType, date string) {
	t.Helper()
	env, err := store.NewEnvelope(dataType, date, []string{"600000"})
	require.NoError(t, err)
	env.TotalCount = 1
	require.NoError(t, st.Put(context.Background(), env))
}

func TestGetByDate(t *testing.T) {
	h, st := newTestHandler(t)
	seedSnapshot(t, st, store.TypeLimitUp, "2025-01-27")
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/snapshots/limit_up/2025-01-27", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env store.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, store.TypeLimitUp, env.DataType)
	assert.Equal(t, 1, env.TotalCount)
}

func TestGetByDateMisses(t *testing.T) {
	h, _ := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/snapshots/limit_up/2025-01-27", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetByDateValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/snapshots/bogus/2025-01-27", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/snapshots/quotes/27-01-2025", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLatestFallsBack(t *testing.T) {
	h, st := newTestHandler(t)
	seedSnapshot(t, st, store.TypeQuotes, "2025-01-24")
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/snapshots/quotes/2025-01-27/latest", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var env store.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "2025-01-24", env.Date)
}

func TestGetDayStatus(t *testing.T) {
	h, _ := newTestHandler(t)
	router := testRouter(h)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/calendar/2025-02-02", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var status calendar.DayStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.IsTradingDay)
	assert.Equal(t, calendar.ReasonHoliday, status.Reason)
}
