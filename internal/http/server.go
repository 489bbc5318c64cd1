package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the API is served from.
type Deps struct {
	Accounts *services.AccountService
	Ledger   *services.LedgerService
	Budgets  *services.BudgetService
	Goals    *services.GoalService
	Insights *services.InsightsService
	Tokens   *auth.Tokens
	Store    Pinger
	Logger   *log.Logger

	RateLimitPerMinute int
	// Now defaults to time.Now and names export files.
	Now func() time.Time
}

type Server struct {
	http.Server
	deps Deps

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	detector := security.NewDetector()
	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute}),
		detector: detector,
		tracer:   trace.NewMiddleware(deps.Logger, detector.ExtractClientIP),
		started:  deps.Now(),
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/me", s.handleMe)
	api.HandleFunc("GET /api/categories", s.handleCategories)

	api.HandleFunc("POST /api/entries", s.handleCreateEntry)
	api.HandleFunc("GET /api/entries", s.handleListEntries)
	api.HandleFunc("GET /api/entries/export", s.handleExportEntries)
	api.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	api.HandleFunc("PATCH /api/entries/{id}", s.handleUpdateEntry)
	api.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	api.HandleFunc("GET /api/budgets", s.handleListBudgets)
	api.HandleFunc("GET /api/budgets/{category}", s.handleGetBudget)
	api.HandleFunc("PUT /api/budgets/{category}", s.handlePutBudget)
	api.HandleFunc("DELETE /api/budgets/{category}", s.handleDeleteBudget)
	api.HandleFunc("POST /api/budgets/{category}/recompute", s.handleRecomputeBudget)

	api.HandleFunc("GET /api/goals", s.handleListGoals)
	api.HandleFunc("POST /api/goals", s.handleCreateGoal)
	api.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	api.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	api.HandleFunc("POST /api/goals/{id}/deposit", s.handleDeposit)

	api.HandleFunc("GET /api/insights/summary", s.handleSummary)
	api.HandleFunc("GET /api/insights/trend", s.handleTrend)

	api.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.Handle("/api/", auth.Middleware(s.deps.Tokens, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, core.ErrUnauthorized)
	})(api))

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Mutating, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})(h)
	h = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = log.Middleware(s.deps.Logger.WithComponent(log.ComponentHTTP))(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	return h
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
