package http

import (
	"bytes"
	"fmt"
	"net/http"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/export"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type entryRequest struct {
	Kind        core.EntryKind `json:"kind"`
	Category    string         `json:"category"`
	Amount      core.Money     `json:"amount"`
	Description string         `json:"description"`
	Date        core.Date      `json:"date"`
}

// account resolves the authenticated account or writes a 401.
func account(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := auth.AccountID(r.Context())
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	return id, true
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	cats, err := s.deps.Ledger.Categories(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"categories": cats})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	var req entryRequest
	if err := decodeJSON(w, r, &req, "amount"); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.deps.Ledger.Record(r.Context(), accountID, services.EntryInput{
		Kind:        req.Kind,
		Category:    req.Category,
		Amount:      req.Amount,
		Description: req.Description,
		Date:        req.Date,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	f, err := parseEntryFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Ledger.List(r.Context(), accountID, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleExportEntries renders the filtered entries as a CSV or XLSX
// attachment.
func (s *Server) handleExportEntries(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	format, err := export.ParseFormat(q.Get("format"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := parseEntryFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.deps.Ledger.List(r.Context(), accountID, f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, entries); err != nil {
		writeError(w, r, fmt.Errorf("export entries: %w", err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(core.DateOf(s.deps.Now().UTC()))))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())

	log.FromContext(r.Context()).InfoContext(r.Context(), "Entries exported",
		log.FieldAccountID, accountID, log.FieldOperation, log.OpExport, "format", string(format), "count", len(entries))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	entry, err := s.deps.Ledger.Get(r.Context(), accountID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	var patch core.EntryPatch
	if err := decodeJSON(w, r, &patch, "amount"); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.deps.Ledger.Update(r.Context(), accountID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	accountID, ok := account(w, r)
	if !ok {
		return
	}
	if err := s.deps.Ledger.Remove(r.Context(), accountID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	NoContent().Write(w)
}
