package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/purple-haze-etl/internal/adapter/http"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	report *domain.Report
}

func (m *mockReports) LastReport() (domain.Report, bool) {
	if m.report == nil {
		return domain.Report{}, false
	}
	return *m.report, true
}

func newTestServer(readyErr error, report *domain.Report) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockReports{report: report}, slog.Default())
}

func testReport() *domain.Report {
	return &domain.Report{
		GeneratedAt: time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		Files: []domain.IdentityRow{
			{File: "a.csv", Lat: 47.6, Lon: -122.3, SensorName: "alpha", LocationClass: "outside", Channel: "A", DatasetKind: "primary"},
		},
		Tracts: []domain.TractAggregate{
			{TractID: "1", FileCount: 4, SensorCount: 1, OutdoorCount: 1, MeanAQI: null.FloatFrom(42), Threshold: 100, Exposure: null.FloatFrom(0), IncludeSmoke: true},
			{TractID: "2", Threshold: 100, IncludeSmoke: true},
		},
	}
}

func get(t *testing.T, srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(t, newTestServer(nil, testReport()), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(t, newTestServer(fmt.Errorf("no report yet"), nil), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no report yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTractsReturns503BeforeFirstReport(t *testing.T) {
	srv := newTestServer(nil, nil)
	for _, path := range []string{"/tracts", "/tracts/1", "/files"} {
		rec := get(t, srv, path)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestTractsReturnsLastReport(t *testing.T) {
	rec := get(t, newTestServer(nil, testReport()), "/tracts")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{
		"generated_at": "2021-01-01T00:00:00Z",
		"tracts": [
			{"tract_id": "1", "file_count": 4, "sensor_count": 1, "outdoor_sensor_count": 1,
			 "mean_aqi": 42, "threshold": 100, "exposure_minutes_per_day": 0, "include_smoke": true},
			{"tract_id": "2", "file_count": 0, "sensor_count": 0, "outdoor_sensor_count": 0,
			 "mean_aqi": null, "threshold": 100, "exposure_minutes_per_day": null, "include_smoke": true}
		]
	}`, rec.Body.String())
}

func TestTractByID(t *testing.T) {
	srv := newTestServer(nil, testReport())

	rec := get(t, srv, "/tracts/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var row domain.TractAggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &row))
	assert.Equal(t, "1", row.TractID)
	assert.InDelta(t, 42, row.MeanAQI.Float64, 0)

	rec = get(t, srv, "/tracts/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilesReturnsIdentityTable(t *testing.T) {
	rec := get(t, newTestServer(nil, testReport()), "/files")

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []domain.IdentityRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, testReport().Files, rows)
}
