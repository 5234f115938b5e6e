package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbank/bloodbank/internal/config"
	"github.com/bloodbank/bloodbank/internal/platform/idgen"
	"github.com/bloodbank/bloodbank/internal/platform/metrics"
)

func testServer(env string) http.Handler {
	cfg := &config.Config{
		Env:                     env,
		CORSOrigins:             []string{"http://localhost:3000"},
		UnitShelfLifeDays:       42,
		MinDonationIntervalDays: 56,
		EnforceABOCompatibility: true,
	}
	m := metrics.New()
	svcs := newServices(cfg, nil, m, zerolog.Nop())
	return newServer(cfg, zerolog.Nop(), svcs, idgen.New(idgen.NewMemorySequencer()), m)
}

func TestNewServer_Routes(t *testing.T) {
	cfg := &config.Config{Env: "development", UnitShelfLifeDays: 42, MinDonationIntervalDays: 56}
	svcs := newServices(cfg, nil, nil, zerolog.Nop())
	e := newServer(cfg, zerolog.Nop(), svcs, idgen.New(idgen.NewMemorySequencer()), nil)

	registered := make(map[string]bool)
	for _, r := range e.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/donors",
		"GET /api/v1/donors/status",
		"POST /api/v1/blood-units",
		"POST /api/v1/blood-units/:id/status",
		"DELETE /api/v1/blood-units/:id",
		"GET /api/v1/blood-units/:id/expiry",
		"GET /api/v1/blood-units/inventory",
		"POST /api/v1/recipients",
		"POST /api/v1/recipients/:id/requests",
		"POST /api/v1/recipients/transfusions",
		"GET /api/v1/recipients/:id/transfusions",
		"DELETE /api/v1/recipients/:id/transfusions/:tid",
		"GET /api/v1/compatibility",
		"GET /api/v1/deferrals/:id",
		"GET /api/v1/transfusions/:id",
		"PATCH /api/v1/donors/:id",
	} {
		assert.True(t, registered[want], "route %s not registered", want)
	}
	assert.False(t, registered["GET /metrics"], "metrics route needs a registry")
}

func TestNewServer_RequiresTokenOutsideDevelopment(t *testing.T) {
	srv := testServer("production")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compatibility?donor=O-&recipient=A-", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewServer_DevCompatibility(t *testing.T) {
	srv := testServer("development")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compatibility?donor=O-&recipient=A-", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"compatible":true`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestNewServer_Metrics(t *testing.T) {
	srv := testServer("development")

	srv.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/compatibility?donor=O-&recipient=A-", nil))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bloodbank_http_request_duration_seconds")
}

func TestNewServer_SecurityHeaders(t *testing.T) {
	srv := testServer("development")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/compatibility?donor=O-&recipient=A-", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "no HSTS outside production")
}

func TestNewServer_CORSPreflightAllowsPatch(t *testing.T) {
	srv := testServer("development")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/donors/6f1c9a52-3b7e-4d0a-9c55-2d4f8e1a7b90", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
