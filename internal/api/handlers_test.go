package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwatch/server/internal/dedup"
	"propwatch/server/internal/limits"
	"propwatch/server/internal/models"
	"propwatch/server/internal/orchestrator"
)

type fakeCollector struct {
	err     error
	running bool
	calls   int
}

func (f *fakeCollector) RunCycleAsync() error {
	f.calls++
	return f.err
}

func (f *fakeCollector) Running() bool { return f.running }

func newTestRouter(t *testing.T, collector *fakeCollector) (*gin.Engine, *limits.Gate, *dedup.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := dedup.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	store := dedup.NewStore(db, 0, logger)
	require.NoError(t, store.Migrate())

	gate := limits.NewGate(limits.NewStore(), map[string]int{
		"villa": 300000,
		"land":  200000,
	})

	router := gin.New()
	SetupRoutes(router, NewHandler(collector, gate, store, logger))
	return router, gate, store
}

func perform(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestStartCollectionAccepted(t *testing.T) {
	collector := &fakeCollector{}
	router, _, _ := newTestRouter(t, collector)

	w := perform(router, http.MethodPost, "/api/collect", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, collector.calls)
}

func TestStartCollectionConflictWhileRunning(t *testing.T) {
	collector := &fakeCollector{err: orchestrator.ErrCycleRunning}
	router, _, _ := newTestRouter(t, collector)

	w := perform(router, http.MethodPost, "/api/collect", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "already running")
}

func TestGetLimitsMergesOverrides(t *testing.T) {
	router, gate, _ := newTestRouter(t, &fakeCollector{})
	gate.Override("villa", 280000)

	w := perform(router, http.MethodGet, "/api/limits", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]int{"villa": 280000, "land": 200000}, got)
}

func TestUpdateLimit(t *testing.T) {
	router, gate, _ := newTestRouter(t, &fakeCollector{})

	w := perform(router, http.MethodPut, "/api/limits/villa", `{"ceiling": 275000}`)
	require.Equal(t, http.StatusOK, w.Code)

	ceiling, ok := gate.Ceiling("villa")
	require.True(t, ok)
	assert.Equal(t, 275000, ceiling)
}

func TestUpdateLimitRejectsUnknownType(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeCollector{})

	w := perform(router, http.MethodPut, "/api/limits/castle", `{"ceiling": 1000000}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateLimitRejectsNonPositiveCeiling(t *testing.T) {
	router, gate, _ := newTestRouter(t, &fakeCollector{})

	w := perform(router, http.MethodPut, "/api/limits/villa", `{"ceiling": -5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ceiling, _ := gate.Ceiling("villa")
	assert.Equal(t, 300000, ceiling)
}

func TestGetRecentListings(t *testing.T) {
	router, _, store := newTestRouter(t, &fakeCollector{})

	price := 250000
	l := models.Listing{
		Title:   "Villa in Adeje",
		Address: "Costa Adeje",
		Link:    "https://example.com/1",
		Price:   &price,
		Source:  "Kyero",
	}
	ok, err := store.AcceptIfNew(&l)
	require.NoError(t, err)
	require.True(t, ok)

	w := perform(router, http.MethodGet, "/api/listings/recent?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rows []models.DedupRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Villa in Adeje", rows[0].Title)
}

func TestHealthReportsRunningState(t *testing.T) {
	router, _, _ := newTestRouter(t, &fakeCollector{running: true})

	w := perform(router, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["collecting"])
}
