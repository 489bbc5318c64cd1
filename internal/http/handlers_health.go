package http

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339),
		"uptime":    s.deps.Now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady pings the store and reports middleware counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, code := "ready", http.StatusOK
	checks := map[string]any{}

	if s.deps.Store == nil {
		checks["store"] = "not_configured"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else if err := s.deps.Store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	rl := s.limiter.GetMetrics()
	checks["rate_limiter"] = map[string]any{
		"active_clients": rl.ClientCount,
		"rejected":       rl.Rejected,
	}
	checks["requests"] = map[string]any{
		"total":      s.tracer.GetMetrics().TotalRequests,
		"suspicious": s.detector.GetMetrics().SuspiciousRequests,
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.deps.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
