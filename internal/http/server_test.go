package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/events"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"
)

type testAPI struct {
	t      *testing.T
	srv    *httptest.Server
	events *events.Recorder
	token  string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithLog(t, io.Discard, slog.LevelError)
}

func newTestAPIWithLog(t *testing.T, out io.Writer, level slog.Level) *testAPI {
	t.Helper()
	store := memory.New()
	rec := &events.Recorder{}
	budgets := services.NewBudgetService(store, rec)
	insights := services.NewInsightsService(store, cache.NewLRUCache[core.Summary](32, time.Minute))
	tokens := auth.NewTokens("0123456789abcdef-test", time.Hour)

	s := NewServer(":0", Deps{
		Accounts:           services.NewAccountService(store, auth.NewPasswords(bcrypt.MinCost), tokens),
		Ledger:             services.NewLedgerService(store, budgets, insights, rec),
		Budgets:            budgets,
		Goals:              services.NewGoalService(store),
		Insights:           insights,
		Tokens:             tokens,
		Store:              store,
		Logger:             log.New(log.Config{Level: level, Output: out}),
		RateLimitPerMinute: 1000,
	})
	srv := httptest.NewServer(s.Handler)
	t.Cleanup(func() {
		srv.Close()
		_ = s.Shutdown(context.Background())
	})
	return &testAPI{t: t, srv: srv, events: rec}
}

// login registers a fresh account and keeps its bearer token.
func (a *testAPI) login(email string) {
	a.t.Helper()
	a.expect(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada", "email": email, "password": "correct horse",
	}, http.StatusCreated, nil)

	var session struct {
		Token string `json:"token"`
	}
	a.expect(http.MethodPost, "/api/auth/login", map[string]string{
		"email": email, "password": "correct horse",
	}, http.StatusOK, &session)
	if session.Token == "" {
		a.t.Fatal("login returned no token")
	}
	a.token = session.Token
}

func (a *testAPI) do(method, path string, body any) *http.Response {
	a.t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rdr)
	if err != nil {
		a.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.srv.Client().Do(req)
	if err != nil {
		a.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// expect performs a request, checks the status and decodes the body into out.
func (a *testAPI) expect(method, path string, body any, status int, out any) {
	a.t.Helper()
	resp := a.do(method, path, body)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != status {
		a.t.Fatalf("%s %s: status = %d, want %d (body %s)", method, path, resp.StatusCode, status, raw)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			a.t.Fatalf("%s %s: decode %s: %v", method, path, raw, err)
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	api := newTestAPI(t)

	var health map[string]any
	api.expect(http.MethodGet, "/healthz", nil, http.StatusOK, &health)
	if health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}

	var ready struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}
	api.expect(http.MethodGet, "/readyz", nil, http.StatusOK, &ready)
	if ready.Status != "ready" || ready.Checks["store"] != "ok" {
		t.Errorf("ready = %+v", ready)
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/api/me", "/api/entries", "/api/budgets", "/api/goals", "/api/insights/summary"} {
		resp := api.do(http.MethodGet, path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("GET %s without token: status = %d, want 401", path, resp.StatusCode)
		}
	}

	api.token = "not-a-jwt"
	api.expect(http.MethodGet, "/api/me", nil, http.StatusUnauthorized, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	var me core.Account
	api.expect(http.MethodGet, "/api/me", nil, http.StatusOK, &me)
	if me.Email != "ada@example.com" || me.Balance.Cents != 0 {
		t.Errorf("me = %+v", me)
	}

	var errBody ErrorBody
	api.expect(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Ada", "email": "ADA@example.com", "password": "correct horse",
	}, http.StatusConflict, &errBody)

	api.expect(http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ada@example.com", "password": "wrong password",
	}, http.StatusUnauthorized, nil)

	api.expect(http.MethodPost, "/api/auth/register", map[string]string{
		"name": "Bob", "email": "bob@example.com", "password": "short",
	}, http.StatusBadRequest, &errBody)
	if errBody.Field != "password" {
		t.Errorf("field = %q, want password", errBody.Field)
	}
}

func TestEntryLifecycle(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	var salary, lunch core.LedgerEntry
	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "income", "category": "Salary", "amount": 2000, "date": "2025-03-01",
	}, http.StatusCreated, &salary)
	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": " Food ", "amount": "12,50", "description": "lunch", "date": "2025-03-02",
	}, http.StatusCreated, &lunch)
	if lunch.Category != "food" || lunch.Amount.Cents != 1250 {
		t.Errorf("lunch = %+v", lunch)
	}

	var me core.Account
	api.expect(http.MethodGet, "/api/me", nil, http.StatusOK, &me)
	if me.Balance.Cents != 198750 {
		t.Errorf("balance = %d, want 198750", me.Balance.Cents)
	}

	var list []core.LedgerEntry
	api.expect(http.MethodGet, "/api/entries?kind=expense", nil, http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != lunch.ID {
		t.Errorf("filtered list = %+v", list)
	}

	var updated core.LedgerEntry
	api.expect(http.MethodPatch, "/api/entries/"+lunch.ID, map[string]any{"amount": 20}, http.StatusOK, &updated)
	if updated.Amount.Cents != 2000 || updated.Description != "lunch" {
		t.Errorf("updated = %+v", updated)
	}

	api.expect(http.MethodDelete, "/api/entries/"+lunch.ID, nil, http.StatusNoContent, nil)
	api.expect(http.MethodGet, "/api/entries/"+lunch.ID, nil, http.StatusNotFound, nil)

	api.expect(http.MethodGet, "/api/me", nil, http.StatusOK, &me)
	if me.Balance.Cents != 200000 {
		t.Errorf("balance after delete = %d, want 200000", me.Balance.Cents)
	}

	types := api.events.Types()
	want := []events.Type{events.EntryRecorded, events.EntryRecorded, events.EntryUpdated, events.EntryRemoved}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestEntryValidationErrors(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{"zero amount", map[string]any{"kind": "expense", "category": "food", "amount": 0}, "amount"},
		{"negative amount", map[string]any{"kind": "expense", "category": "food", "amount": -5}, "amount"},
		{"overflowing amount", map[string]any{"kind": "income", "category": "salary", "amount": "184467440737095516.17"}, "amount"},
		{"unparseable amount", map[string]any{"kind": "expense", "category": "food", "amount": "ten"}, "amount"},
		{"bad kind", map[string]any{"kind": "transfer", "category": "food", "amount": 5}, "kind"},
		{"bad date", map[string]any{"kind": "expense", "category": "food", "amount": 5, "date": "03/02/2025"}, "date"},
		{"unknown field", map[string]any{"kind": "expense", "category": "food", "amount": 5, "currency": "EUR"}, "currency"},
		{"malformed json", `{"kind":`, "body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errBody ErrorBody
			api.expect(http.MethodPost, "/api/entries", tt.body, http.StatusBadRequest, &errBody)
			if errBody.Field != tt.field {
				t.Errorf("field = %q, want %q (error %q)", errBody.Field, tt.field, errBody.Error)
			}
		})
	}

	var errBody ErrorBody
	api.expect(http.MethodGet, "/api/entries?from=yesterday", nil, http.StatusBadRequest, &errBody)
	if errBody.Field != "from" {
		t.Errorf("field = %q, want from", errBody.Field)
	}
}

func TestEntriesAreScopedToAccount(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	var entry core.LedgerEntry
	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": "food", "amount": 5,
	}, http.StatusCreated, &entry)

	api.login("bob@example.com")
	api.expect(http.MethodGet, "/api/entries/"+entry.ID, nil, http.StatusNotFound, nil)
	api.expect(http.MethodDelete, "/api/entries/"+entry.ID, nil, http.StatusNotFound, nil)

	var list []core.LedgerEntry
	api.expect(http.MethodGet, "/api/entries", nil, http.StatusOK, &list)
	if len(list) != 0 {
		t.Errorf("bob sees %d entries", len(list))
	}
}

func TestBudgetEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": "food", "amount": 50,
	}, http.StatusCreated, nil)

	var b budgetView
	api.expect(http.MethodPut, "/api/budgets/Food", map[string]any{"limit": 100}, http.StatusOK, &b)
	if b.Category != "food" || b.Spent.Cents != 5000 || b.PercentUsed != 50 || !b.Enabled || b.Exceeded {
		t.Errorf("budget = %+v", b)
	}

	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": "food", "amount": 70,
	}, http.StatusCreated, nil)

	var all map[string]budgetView
	api.expect(http.MethodGet, "/api/budgets", nil, http.StatusOK, &all)
	food := all["food"]
	if food.Spent.Cents != 12000 || food.PercentUsed != 100 || !food.Exceeded {
		t.Errorf("food budget = %+v", food)
	}

	api.expect(http.MethodPost, "/api/budgets/food/recompute", nil, http.StatusOK, &b)
	if b.Spent.Cents != 12000 {
		t.Errorf("recomputed spent = %d", b.Spent.Cents)
	}

	var errBody ErrorBody
	api.expect(http.MethodPut, "/api/budgets/food", map[string]any{"limit": 10, "period": "daily"}, http.StatusBadRequest, &errBody)
	if errBody.Field != "period" {
		t.Errorf("field = %q, want period", errBody.Field)
	}

	api.expect(http.MethodDelete, "/api/budgets/food", nil, http.StatusNoContent, nil)
	api.expect(http.MethodGet, "/api/budgets/food", nil, http.StatusOK, &b)
	if b.Limit.Cents != 0 || b.PercentUsed != 0 {
		t.Errorf("removed budget = %+v", b)
	}
}

func TestGoalEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	var g goalView
	api.expect(http.MethodPost, "/api/goals", map[string]any{
		"title": "Bike", "target": 1000, "category": "gadget", "dueDate": "2099-12-31",
	}, http.StatusCreated, &g)
	if g.Status != core.GoalInProgress {
		t.Fatalf("status = %s", g.Status)
	}

	api.expect(http.MethodPost, "/api/goals/"+g.ID+"/deposit", map[string]any{"amount": 400}, http.StatusOK, &g)
	if g.Current.Cents != 40000 || g.Progress != 40 {
		t.Errorf("after deposit = %+v", g)
	}

	var errBody ErrorBody
	api.expect(http.MethodPost, "/api/goals/"+g.ID+"/deposit", map[string]any{"amount": -500}, http.StatusBadRequest, &errBody)
	if errBody.Field != "amount" {
		t.Errorf("field = %q, want amount", errBody.Field)
	}

	api.expect(http.MethodPost, "/api/goals/"+g.ID+"/deposit", map[string]any{"amount": 600}, http.StatusOK, &g)
	if g.Status != core.GoalCompleted || g.Remaining.Cents != 0 {
		t.Errorf("after completion = %+v", g)
	}

	api.expect(http.MethodPost, "/api/goals/"+g.ID+"/deposit", map[string]any{"amount": 1}, http.StatusConflict, nil)

	var goals []goalView
	api.expect(http.MethodGet, "/api/goals", nil, http.StatusOK, &goals)
	if len(goals) != 1 {
		t.Errorf("goals = %d", len(goals))
	}

	api.expect(http.MethodDelete, "/api/goals/"+g.ID, nil, http.StatusNoContent, nil)
	api.expect(http.MethodGet, "/api/goals/"+g.ID, nil, http.StatusNotFound, nil)

	var started goalView
	api.expect(http.MethodPost, "/api/goals", map[string]any{
		"title": "Fund", "target": 500, "current": 200, "category": "emergency", "dueDate": "2099-12-31",
	}, http.StatusCreated, &started)
	if started.Current.Cents != 20000 || started.Progress != 40 {
		t.Errorf("goal with starting amount = %+v", started)
	}

	api.expect(http.MethodPost, "/api/goals", map[string]any{
		"title": "Trip", "target": "abc", "category": "travel", "dueDate": "2099-12-31",
	}, http.StatusBadRequest, &errBody)
	if errBody.Field != "target" {
		t.Errorf("field = %q, want target", errBody.Field)
	}
}

func TestInsightsEndpoints(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	for _, e := range []map[string]any{
		{"kind": "income", "category": "salary", "amount": 3000, "date": "2025-01-31"},
		{"kind": "expense", "category": "food", "amount": 100, "date": "2025-01-10"},
		{"kind": "expense", "category": "rent", "amount": 900, "date": "2025-02-01"},
	} {
		api.expect(http.MethodPost, "/api/entries", e, http.StatusCreated, nil)
	}

	var all core.Summary
	api.expect(http.MethodGet, "/api/insights/summary", nil, http.StatusOK, &all)
	if all.TotalIncome.Cents != 300000 || all.TotalExpense.Cents != 100000 || all.Balance.Cents != 200000 || all.EntryCount != 3 {
		t.Errorf("summary = %+v", all)
	}

	var jan core.Summary
	api.expect(http.MethodGet, "/api/insights/summary?from=2025-01-01&to=2025-01-31", nil, http.StatusOK, &jan)
	if jan.TotalExpense.Cents != 10000 || jan.ByCategory["food"].Cents != 10000 {
		t.Errorf("january = %+v", jan)
	}

	api.expect(http.MethodGet, "/api/insights/summary?from=2025-02-01&to=2025-01-01", nil, http.StatusBadRequest, nil)

	var trend core.Trend
	api.expect(http.MethodGet, "/api/insights/trend", nil, http.StatusOK, &trend)
	if trend.PredictedSavings.Cents != 200000 {
		t.Errorf("predicted savings = %d, want 200000", trend.PredictedSavings.Cents)
	}
	if trend.Month == "" {
		t.Errorf("trend = %+v", trend)
	}
}

func TestExportEntries(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": "food", "amount": "4.20", "description": "coffee", "date": "2025-03-02",
	}, http.StatusCreated, nil)

	resp := api.do(http.MethodGet, "/api/entries/export?format=csv", nil)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/csv") {
		t.Errorf("content type = %s", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "fintrack_entries_") {
		t.Errorf("disposition = %s", resp.Header.Get("Content-Disposition"))
	}
	if !strings.Contains(string(body), "2025-03-02,expense,food,4.20,coffee") {
		t.Errorf("csv body = %s", body)
	}

	xlsx := api.do(http.MethodGet, "/api/entries/export?format=xlsx", nil)
	xlsx.Body.Close()
	if xlsx.StatusCode != http.StatusOK {
		t.Errorf("xlsx status = %d", xlsx.StatusCode)
	}

	api.expect(http.MethodGet, "/api/entries/export?format=pdf", nil, http.StatusBadRequest, nil)
}

func TestCategories(t *testing.T) {
	api := newTestAPI(t)
	api.login("ada@example.com")

	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": "Climbing", "amount": 30,
	}, http.StatusCreated, nil)

	var out struct {
		Categories []string `json:"categories"`
	}
	api.expect(http.MethodGet, "/api/categories", nil, http.StatusOK, &out)
	found := false
	for _, c := range out.Categories {
		if c == "climbing" {
			found = true
		}
	}
	if !found {
		t.Errorf("categories = %v", out.Categories)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodGet, "/healthz", nil)
	resp.Body.Close()

	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
	if !strings.HasPrefix(resp.Header.Get("X-Request-ID"), "req_") {
		t.Errorf("request id = %q", resp.Header.Get("X-Request-ID"))
	}

	probe := api.do(http.MethodGet, "/.env", nil)
	probe.Body.Close()
	if probe.StatusCode != http.StatusBadRequest {
		t.Errorf("probe status = %d, want 400", probe.StatusCode)
	}
}

func TestHandlersDoNotRepeatServiceLogs(t *testing.T) {
	var buf bytes.Buffer
	api := newTestAPIWithLog(t, &buf, slog.LevelInfo)
	api.login("ada@example.com")
	api.expect(http.MethodPost, "/api/entries", map[string]any{
		"kind": "expense", "category": "food", "amount": 5,
	}, http.StatusCreated, nil)

	for _, msg := range []string{"Account registered", "Entry recorded"} {
		if strings.Contains(buf.String(), msg) {
			t.Errorf("request log repeats service message %q", msg)
		}
	}
}

