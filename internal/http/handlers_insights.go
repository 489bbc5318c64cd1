package http

import (
	"net/http"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	from, err := parseDateParam(q, "from")
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := parseDateParam(q, "to")
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := s.deps.Insights.Summarize(r.Context(), accountID, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	trend, err := s.deps.Insights.Trend(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}
