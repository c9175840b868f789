package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/steampulse/steampulse/internal/metrics"
)

func TestRootReportsRunning(t *testing.T) {
	h := newHarness(t)

	// Public route: no signature, no bearer.
	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}

	var resp rootResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assertEqual(t, "message", resp.Message, "SteamPulse API")
	assertEqual(t, "version", resp.Version, "test")
	assertEqual(t, "status", resp.Status, "running")
}

func TestRootDoesNotMatchUnknownPaths(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assertEqual(t, "status", rec.Code, http.StatusNotFound)
}

func TestHealthStates(t *testing.T) {
	cases := []struct {
		name      string
		pingErr   error
		scheduler SchedulerStatus
		want      healthResponse
	}{
		{
			name:      "all up",
			scheduler: &fakeScheduler{running: true},
			want:      healthResponse{Status: "healthy", Database: "connected", Scheduler: "running"},
		},
		{
			name:      "database down",
			pingErr:   errors.New("pool exhausted"),
			scheduler: &fakeScheduler{running: true},
			want:      healthResponse{Status: "degraded", Database: "disconnected", Scheduler: "running"},
		},
		{
			name:      "scheduler wedged",
			scheduler: &fakeScheduler{running: false},
			want:      healthResponse{Status: "degraded", Database: "connected", Scheduler: "stopped"},
		},
		{
			// SCHEDULER_ENABLED=false wires a nil status source; a stopped
			// scheduler is then the expected state, not a degradation.
			name: "scheduler disabled",
			want: healthResponse{Status: "healthy", Database: "connected", Scheduler: "stopped"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, func(_ *Config, deps *Deps) { deps.Scheduler = tc.scheduler })
			h.store.pingErr = tc.pingErr

			rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
			assertEqual(t, "status code", rec.Code, http.StatusOK)

			var resp healthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			assertEqual(t, "health", resp, tc.want)
		})
	}
}

func TestMetricsRouteAbsentWithoutSet(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assertEqual(t, "status", rec.Code, http.StatusNotFound)
}

func TestMetricsRouteServesExposition(t *testing.T) {
	h := newHarness(t, func(_ *Config, deps *Deps) { deps.Metrics = metrics.New() })

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "steampulse_watchlist_size") {
		t.Error("exposition is missing the process collectors")
	}
}
