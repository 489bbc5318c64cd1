package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type budgetRequest struct {
	Limit   core.Money        `json:"limit"`
	Enabled *bool             `json:"enabled"`
	Period  core.BudgetPeriod `json:"period"`
}

// budgetView is a budget with its derived figures.
type budgetView struct {
	Category    string            `json:"category"`
	Limit       core.Money        `json:"limit"`
	Spent       core.Money        `json:"spent"`
	Remaining   core.Money        `json:"remaining"`
	Enabled     bool              `json:"enabled"`
	Period      core.BudgetPeriod `json:"period"`
	PercentUsed float64           `json:"percentUsed"`
	Exceeded    bool              `json:"exceeded"`
}

func newBudgetView(b core.Budget) budgetView {
	return budgetView{
		Category:    b.Category,
		Limit:       b.Limit,
		Spent:       b.Spent,
		Remaining:   b.Remaining(),
		Enabled:     b.Enabled,
		Period:      b.Period,
		PercentUsed: b.PercentUsed().InexactFloat64(),
		Exceeded:    b.Exceeded(),
	}
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	budgets, err := s.deps.Budgets.List(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make(map[string]budgetView, len(budgets))
	for cat, b := range budgets {
		out[cat] = newBudgetView(b)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	b, err := s.deps.Budgets.Get(r.Context(), accountID, r.PathValue("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetView(b))
}

// handlePutBudget creates or updates a budget. Enabled defaults to true.
func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := decodeJSON(w, r, &req, "limit"); err != nil {
		writeError(w, r, err)
		return
	}
	in := services.BudgetInput{Limit: req.Limit, Enabled: true, Period: req.Period}
	if req.Enabled != nil {
		in.Enabled = *req.Enabled
	}
	b, err := s.deps.Budgets.Upsert(r.Context(), accountID, r.PathValue("category"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetView(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	if err := s.deps.Budgets.Remove(r.Context(), accountID, r.PathValue("category")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

func (s *Server) handleRecomputeBudget(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	b, err := s.deps.Budgets.Recompute(r.Context(), accountID, r.PathValue("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetView(b))
}
