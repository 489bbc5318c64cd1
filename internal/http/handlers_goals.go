package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type goalRequest struct {
	Title    string            `json:"title"`
	Target   core.Money        `json:"target"`
	Current  core.Money        `json:"current"`
	Category core.GoalCategory `json:"category"`
	DueDate  core.Date         `json:"dueDate"`
}

type depositRequest struct {
	Amount core.Money `json:"amount"`
}

type goalView struct {
	core.SavingsGoal
	Remaining core.Money `json:"remaining"`
	Progress  float64    `json:"progress"`
}

func newGoalView(g core.SavingsGoal) goalView {
	return goalView{
		SavingsGoal: g,
		Remaining:   g.Remaining(),
		Progress:    g.Progress().InexactFloat64(),
	}
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	goals, err := s.deps.Goals.List(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]goalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, newGoalView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	var req goalRequest
	if err := decodeJSON(w, r, &req, "target"); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Goals.Create(r.Context(), accountID, services.GoalInput{
		Title:    req.Title,
		Target:   req.Target,
		Current:  req.Current,
		Category: req.Category,
		DueDate:  req.DueDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGoalView(g))
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	g, err := s.deps.Goals.Get(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGoalView(g))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	if err := s.deps.Goals.Remove(r.Context(), accountID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}

// handleDeposit adds to (or, with a negative amount, withdraws from) a goal.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	var req depositRequest
	if err := decodeJSON(w, r, &req, "amount"); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.deps.Goals.Deposit(r.Context(), accountID, r.PathValue("id"), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Goal deposit",
		log.FieldAccountID, accountID,
		log.FieldGoalID, g.ID,
		log.FieldAmountCents, req.Amount.Cents,
		log.FieldOperation, log.OpDeposit,
		"status", string(g.Status))
	writeJSON(w, http.StatusOK, newGoalView(g))
}
