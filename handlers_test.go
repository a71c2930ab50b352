package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kwv/coordenv/coordenv"
	"github.com/kwv/coordenv/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	catalog, err := coordenv.DefaultCatalog()
	require.NoError(t, err)
	opts := coordenv.DefaultOptions()
	opts.RandomSeed = 3

	reg := prometheus.NewRegistry()
	worker := service.NewWorker(coordenv.NewLocalGeometryFinder(catalog, opts), service.BatchConfig{Workers: 2}, service.NewMetrics(reg), nil)
	return newHTTPServer(worker, reg)
}

func TestHealthEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Greater(t, body["geometries"], 0.0)
}

func TestCatalogEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog?cn=6", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []catalogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.NotEmpty(t, entries)
	symbols := make([]string, len(entries))
	for i, e := range entries {
		assert.Equal(t, 6, e.Coordination)
		assert.Len(t, e.Points, 6)
		symbols[i] = e.Symbol
	}
	assert.Contains(t, symbols, "O:6")

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog?cn=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMatchEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(sitesJSON)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var results []service.SiteResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "O:6", results[0].Environments[0].Ranking[0].Symbol)
	assert.Equal(t, "T:4", results[1].Environments[0].Ranking[0].Symbol)
}

func TestMatchEndpoint_Errors(t *testing.T) {
	srv := testServer(t)

	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"empty body", http.MethodPost, "", http.StatusBadRequest},
		{"bad json", http.MethodPost, "{", http.StatusBadRequest},
		{"unknown symbol", http.MethodPost, `{"neighbors":[[1,0,0],[0,1,0]],"symbols":["QQ:2"]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tt.method, "/match", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/match", strings.NewReader(sitesJSON)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coordenv_sites_total{outcome="matched"} 2`)
	assert.Contains(t, rec.Body.String(), "coordenv_batches_total 1")
}
