package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const statsStreamInterval = time.Second

// handleStatsStream upgrades to a websocket and pushes one status snapshot
// per second until the client disconnects. Used by debugging dashboards
// that want live counters without polling /status.
func (s *Server) handleStatsStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.Warn("admin: websocket accept failed", "error", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		ticker := time.NewTicker(statsStreamInterval)
		defer ticker.Stop()

		for {
			payload := map[string]any{
				"uptime_seconds": int64(s.instance.Uptime() / time.Second),
				"workers":        s.instance.StatsSnapshots(),
			}
			data, err := json.Marshal(payload)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
