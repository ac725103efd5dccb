package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	testlog "github.com/rufatasadov/sober-driver-backend/internal/testutil"
)

func TestHandlers_Ping(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	New(nil).Ping(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "pong", body["message"])
}

func TestHandlers_HealthcheckHead(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	New(nil).HealthcheckHead(rr, httptest.NewRequest(http.MethodHead, "/healthcheck", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandlers_Ready(t *testing.T) {
	t.Parallel()

	ok := Check{Name: "postgres", Probe: func(context.Context) error { return nil }}
	down := Check{Name: "redis", Probe: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name       string
		checks     []Check
		wantStatus int
		wantBody   readyResponse
		wantWarn   bool
	}{
		{
			name:       "no backends",
			wantStatus: http.StatusOK,
			wantBody:   readyResponse{Status: "ok"},
		},
		{
			name:       "all healthy",
			checks:     []Check{ok},
			wantStatus: http.StatusOK,
			wantBody:   readyResponse{Status: "ok", Checks: map[string]string{"postgres": "ok"}},
		},
		{
			name:       "one failing",
			checks:     []Check{ok, down},
			wantStatus: http.StatusServiceUnavailable,
			wantBody: readyResponse{Status: "unavailable", Checks: map[string]string{
				"postgres": "ok",
				"redis":    "connection refused",
			}},
			wantWarn: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := testlog.New()
			rr := httptest.NewRecorder()
			New(rec.Logger(), tt.checks...).Ready(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tt.wantStatus, rr.Code)
			var body readyResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			require.Equal(t, tt.wantBody, body)
			require.Equal(t, tt.wantWarn, rec.Has("readiness check failed"))
		})
	}
}

func TestHandlers_NotFoundAndMethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := New(nil)

	rr := httptest.NewRecorder()
	h.NotFound(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	var body errResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Equal(t, "route not found", body.Error)

	rr = httptest.NewRecorder()
	h.MethodNotAllowed(rr, httptest.NewRequest(http.MethodDelete, "/ping", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
