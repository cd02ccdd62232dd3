package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/flemzord/mcrelay/internal/proxy"
)

// HealthResponse is the JSON response for GET /health.
// Returns 200 while accepting traffic, 503 once shutdown begins.
type HealthResponse struct {
	Status  string `json:"status"` // "ok" or "draining"
	Workers int    `json:"workers"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Workers: s.instance.Workers(),
		}
		if s.instance.ShuttingDown() {
			resp.Status = "draining"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Uptime  int64          `json:"uptime_seconds"`
	Workers []WorkerStatus `json:"workers"`
	Totals  proxy.Snapshot `json:"totals"`
}

// WorkerStatus is one worker's counter snapshot.
type WorkerStatus struct {
	ID    int            `json:"id"`
	Stats proxy.Snapshot `json:"stats"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Uptime: int64(s.instance.Uptime() / time.Second),
			Totals: proxy.Snapshot{},
		}
		for id, snap := range s.instance.StatsSnapshots() {
			resp.Workers = append(resp.Workers, WorkerStatus{ID: id, Stats: snap})
			for name, v := range snap {
				resp.Totals[name] += v
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
