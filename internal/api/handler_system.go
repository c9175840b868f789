package api

import (
	"context"
	"net/http"
	"time"
)

// healthPingTimeout bounds the database probe so a hung pool cannot stall
// the health endpoint.
const healthPingTimeout = 2 * time.Second

type rootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// HandleRoot returns a handler for GET /.
func HandleRoot(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, rootResponse{
			Message: "SteamPulse API",
			Version: version,
			Status:  "running",
		})
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Scheduler string `json:"scheduler"`
}

// HandleHealth returns a handler for GET /health. The report is degraded
// when the database is unreachable or when a configured scheduler is not
// running; with the scheduler disabled, "stopped" is the expected state and
// does not degrade the report.
func HandleHealth(st Store, sched SchedulerStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		resp := healthResponse{Status: "healthy", Database: "connected", Scheduler: "stopped"}
		if err := st.Ping(ctx); err != nil {
			resp.Database = "disconnected"
			resp.Status = "degraded"
		}
		if sched != nil {
			if sched.Running() {
				resp.Scheduler = "running"
			} else {
				resp.Status = "degraded"
			}
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
